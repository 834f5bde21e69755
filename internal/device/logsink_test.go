// internal/device/logsink_test.go
package device

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fingerprint-bridge/internal/metrics"
)

func TestLogSink_KeepsReceiptOrder(t *testing.T) {
	sink := NewLogSink(10, nil)

	for _, line := range []string{"A", "B", "C"} {
		sink.Append(line)
	}

	assert.Equal(t, []string{"A", "B", "C"}, sink.Lines())

	entries := sink.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, uint64(1), entries[0].Sequence)
	assert.Equal(t, uint64(3), entries[2].Sequence)
}

func TestLogSink_EmptySnapshots(t *testing.T) {
	sink := NewLogSink(10, nil)

	assert.NotNil(t, sink.Lines())
	assert.Empty(t, sink.Lines())
	assert.Empty(t, sink.Entries())
	assert.Zero(t, sink.Len())
}

func TestLogSink_BoundedCapacity(t *testing.T) {
	sink := NewLogSink(3, nil)

	for i := 1; i <= 10; i++ {
		sink.Append(fmt.Sprintf("line %d", i))
	}

	assert.Equal(t, 3, sink.Len())
	assert.Equal(t, []string{"line 8", "line 9", "line 10"}, sink.Lines())
	assert.Equal(t, uint64(10), sink.Entries()[2].Sequence)
}

func TestLogSink_SnapshotsAreImmutable(t *testing.T) {
	sink := NewLogSink(4, nil)
	sink.Append("A")
	sink.Append("B")

	before := sink.Lines()
	entriesBefore := sink.Entries()

	for i := 0; i < 20; i++ {
		sink.Append(fmt.Sprintf("later %d", i))
	}

	assert.Equal(t, []string{"A", "B"}, before)
	assert.Equal(t, "A", entriesBefore[0].Line)
	assert.Equal(t, "B", entriesBefore[1].Line)
}

func TestLogSink_ConcurrentReadersSeeConsistentPrefixes(t *testing.T) {
	sink := NewLogSink(1000, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			sink.Append(fmt.Sprintf("%d", i))
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				entries := sink.Entries()
				for j := 1; j < len(entries); j++ {
					if entries[j].Sequence != entries[j-1].Sequence+1 {
						t.Errorf("gap in snapshot at %d", j)
						return
					}
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 500, sink.Len())
}

func TestLogSink_Subscribe(t *testing.T) {
	m := metrics.New()
	sink := NewLogSink(10, m)

	ch, cancel := sink.Subscribe(4)
	sink.Append("A")
	sink.Append("B")

	assert.Equal(t, "A", (<-ch).Line)
	assert.Equal(t, "B", (<-ch).Line)

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)

	// Appending after unsubscribe must not panic on the closed channel.
	sink.Append("C")
}

func TestLogSink_SlowSubscriberDropsLines(t *testing.T) {
	sink := NewLogSink(10, nil)

	ch, cancel := sink.Subscribe(1)
	defer cancel()

	sink.Append("A")
	sink.Append("B")
	sink.Append("C")

	assert.Equal(t, "A", (<-ch).Line)
	select {
	case entry := <-ch:
		t.Fatalf("unexpected entry %q", entry.Line)
	default:
	}
	assert.Equal(t, 3, sink.Len())
}

func TestLogSink_CloseDetachesSubscribers(t *testing.T) {
	sink := NewLogSink(10, nil)

	ch, cancel := sink.Subscribe(1)
	sink.Close()

	_, open := <-ch
	assert.False(t, open)
	cancel()

	late, _ := sink.Subscribe(1)
	_, open = <-late
	assert.False(t, open, "subscribing to a closed sink yields a closed channel")
}
