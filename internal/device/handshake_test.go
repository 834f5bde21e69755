// internal/device/handshake_test.go
package device

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestVerifier(t *testing.T, opener *fakeOpener) *Verifier {
	t.Helper()
	cfg := testDeviceConfig()
	cfg.HandshakeWindow = 100 * time.Millisecond
	return NewVerifier(cfg, opener, zaptest.NewLogger(t))
}

func TestVerifier_Verify(t *testing.T) {
	tests := []struct {
		name    string
		device  *fakeDevice
		wantErr error
	}{
		{
			name:   "signature after boot noise",
			device: sensor(),
		},
		{
			name:   "signature without line terminator",
			device: &fakeDevice{banner: "xx" + testSignature},
		},
		{
			name:    "unrelated data",
			device:  &fakeDevice{banner: "Hello from a GPS receiver\r\n$GPGGA,,,,\r\n"},
			wantErr: ErrHandshakeTimeout,
		},
		{
			name:    "silent port",
			device:  &fakeDevice{},
			wantErr: ErrHandshakeTimeout,
		},
		{
			name:    "open fails",
			device:  &fakeDevice{openErr: errors.New("access denied")},
			wantErr: ErrPortUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opener := newFakeOpener()
			opener.add("COM5", tt.device)
			v := newTestVerifier(t, opener)

			err := v.Verify(context.Background(), "COM5")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}

			assert.Zero(t, opener.openCount(), "handshake port must be closed")
		})
	}
}

func TestVerifier_MissingPort(t *testing.T) {
	opener := newFakeOpener()
	v := newTestVerifier(t, opener)

	err := v.Verify(context.Background(), "/dev/ttyACM9")
	assert.ErrorIs(t, err, ErrPortUnavailable)
}

func TestVerifier_ReadErrorIsIOFailure(t *testing.T) {
	opener := newFakeOpener()
	opener.add("COM5", &fakeDevice{readErr: errors.New("framing error")})
	v := newTestVerifier(t, opener)

	err := v.Verify(context.Background(), "COM5")
	assert.ErrorIs(t, err, ErrIOFailure)
	assert.Zero(t, opener.openCount())
}

func TestVerifier_WindowBoundsDuration(t *testing.T) {
	opener := newFakeOpener()
	opener.add("COM5", &fakeDevice{})
	v := newTestVerifier(t, opener)

	start := time.Now()
	err := v.Verify(context.Background(), "COM5")
	elapsed := time.Since(start)

	require.ErrorIs(t, err, ErrHandshakeTimeout)
	assert.GreaterOrEqual(t, elapsed, v.window)
	assert.Less(t, elapsed, v.window+time.Second)
}

func TestVerifier_CancelledDuringSettle(t *testing.T) {
	opener := newFakeOpener()
	opener.add("COM5", sensor())
	v := newTestVerifier(t, opener)
	v.settleDelay = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := v.Verify(ctx, "COM5")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, opener.openCount())
}
