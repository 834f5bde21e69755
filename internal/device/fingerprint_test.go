// internal/device/fingerprint_test.go
package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFingerprintLine(t *testing.T) {
	tests := []struct {
		line   string
		wantID int
		wantOK bool
	}{
		{"ID #12", 12, true},
		{"  ID #3  ", 3, true},
		{"ID # 5", 5, true},
		{"ID #", 0, false},
		{"ID #abc", 0, false},
		{"12", 0, false},
		{"Found ID #12", 0, false},
	}

	for _, tt := range tests {
		id, ok := ParseFingerprintLine(tt.line)
		assert.Equal(t, tt.wantOK, ok, "line %q", tt.line)
		assert.Equal(t, tt.wantID, id, "line %q", tt.line)
	}
}

func TestParseFingerprintID(t *testing.T) {
	id, ok := ParseFingerprintID("17")
	assert.True(t, ok)
	assert.Equal(t, 17, id)

	id, ok = ParseFingerprintID("ID #9")
	assert.True(t, ok)
	assert.Equal(t, 9, id)

	_, ok = ParseFingerprintID("Place finger")
	assert.False(t, ok)
}
