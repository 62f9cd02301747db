package sse

import (
	"bufio"
	"bytes"
	"io"
)

// Lines reads newline-delimited JSON, one object per line. Blank lines are
// skipped.
type Lines struct {
	scanner *bufio.Scanner
	current []byte
}

// NewLines creates a reader over r. Lines may be up to 1 MiB.
func NewLines(r io.Reader) *Lines {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Lines{scanner: scanner}
}

// Next advances to the next non-blank line.
func (l *Lines) Next() bool {
	for l.scanner.Scan() {
		line := bytes.TrimSpace(l.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		l.current = line
		return true
	}
	l.current = nil
	return false
}

// Bytes returns the current line. It is only valid until the next call to Next.
func (l *Lines) Bytes() []byte {
	return l.current
}

// Err returns the first non-EOF error.
func (l *Lines) Err() error {
	return l.scanner.Err()
}
