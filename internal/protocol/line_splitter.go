// internal/protocol/line_splitter.go
package protocol

import (
	"bytes"
	"strings"
)

// MaxLineLength caps a pending line; longer input is flushed as its own line
const MaxLineLength = 4096

// LineSplitter reassembles newline-terminated lines from arbitrary read chunks.
// Reads that time out return zero bytes, so a bufio.Scanner cannot sit on the port directly.
type LineSplitter struct {
	pending []byte
}

// Feed appends a chunk and returns every line it completed, with trailing whitespace trimmed.
func (ls *LineSplitter) Feed(chunk []byte) []string {
	var lines []string
	for len(chunk) > 0 {
		idx := bytes.IndexByte(chunk, '\n')
		if idx < 0 {
			ls.pending = append(ls.pending, chunk...)
			break
		}
		ls.pending = append(ls.pending, chunk[:idx]...)
		lines = append(lines, strings.TrimRight(string(ls.pending), " \t\r\n"))
		ls.pending = ls.pending[:0]
		chunk = chunk[idx+1:]
	}

	if len(ls.pending) > MaxLineLength {
		lines = append(lines, strings.TrimRight(string(ls.pending), " \t\r\n"))
		ls.pending = ls.pending[:0]
	}
	return lines
}

// Pending returns the unterminated tail
func (ls *LineSplitter) Pending() string {
	return string(ls.pending)
}
