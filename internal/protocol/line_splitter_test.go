// internal/protocol/line_splitter_test.go
package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineSplitter_Feed(t *testing.T) {
	var ls LineSplitter

	assert.Empty(t, ls.Feed([]byte("Ardu")))
	assert.Equal(t, "Ardu", ls.Pending())

	lines := ls.Feed([]byte("ino ready\r\nsecond\r\nthi"))
	assert.Equal(t, []string{"Arduino ready", "second"}, lines)
	assert.Equal(t, "thi", ls.Pending())

	assert.Equal(t, []string{"third"}, ls.Feed([]byte("rd  \n")))
	assert.Empty(t, ls.Pending())
}

func TestLineSplitter_EmptyLines(t *testing.T) {
	var ls LineSplitter
	assert.Equal(t, []string{"", "A", ""}, ls.Feed([]byte("\r\nA\n\n")))
}

func TestLineSplitter_OverlongLineIsFlushed(t *testing.T) {
	var ls LineSplitter
	long := strings.Repeat("x", MaxLineLength+1)

	lines := ls.Feed([]byte(long))
	assert.Equal(t, []string{long}, lines)
	assert.Empty(t, ls.Pending())
}
