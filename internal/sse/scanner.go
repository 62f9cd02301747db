// Package sse reads the two streaming framings vendors use: Server-Sent
// Events and newline-delimited JSON.
package sse

import (
	"bufio"
	"io"
	"strings"
)

// Done is the data payload OpenAI-style streams send as their last event.
const Done = "[DONE]"

// Event is a single Server-Sent Event.
type Event struct {
	// Type is the "event:" field, empty for the default event type.
	Type string

	// Data is the payload. Multiple "data:" lines are joined with newlines.
	Data string
}

// Scanner reads Server-Sent Events from an io.Reader.
//
// Events are delimited by blank lines. Comment lines (starting with ":"),
// "id" and "retry" fields, and unknown fields are ignored.
//
//	scanner := sse.NewScanner(body)
//	for scanner.Next() {
//	    event := scanner.Event()
//	}
//	if err := scanner.Err(); err != nil {
//	    // handle error
//	}
type Scanner struct {
	reader  *bufio.Reader
	current Event
	err     error
}

// NewScanner creates a scanner over r.
func NewScanner(r io.Reader) *Scanner {
	return &Scanner{reader: bufio.NewReaderSize(r, 64*1024)}
}

// Next advances to the next event. It returns false at EOF or on error;
// call Err to tell them apart.
func (s *Scanner) Next() bool {
	s.current = Event{}
	if s.err != nil {
		return false
	}

	var (
		dataLines []string
		eventType string
		hasData   bool
	)

	for {
		line, err := s.reader.ReadString('\n')

		// A final line without a trailing newline still counts.
		if err != nil && line == "" {
			if err == io.EOF && hasData {
				s.current = Event{Type: eventType, Data: strings.Join(dataLines, "\n")}
				s.err = io.EOF
				return true
			}
			s.err = err
			return false
		}

		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if hasData {
				s.current = Event{Type: eventType, Data: strings.Join(dataLines, "\n")}
				return true
			}
			eventType = ""
			if err != nil {
				s.err = err
				return false
			}
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, hasColon := strings.Cut(line, ":")
		if !hasColon {
			field = line
			value = ""
		} else {
			value = strings.TrimPrefix(value, " ")
		}

		switch field {
		case "data":
			dataLines = append(dataLines, value)
			hasData = true
		case "event":
			eventType = value
		}

		if err != nil {
			// Unterminated last line: flush what we have.
			if hasData {
				s.current = Event{Type: eventType, Data: strings.Join(dataLines, "\n")}
				s.err = err
				return true
			}
			s.err = err
			return false
		}
	}
}

// Event returns the most recently parsed event.
func (s *Scanner) Event() Event {
	return s.current
}

// Err returns the first non-EOF error.
func (s *Scanner) Err() error {
	if s.err == io.EOF {
		return nil
	}
	return s.err
}
