// Package sse decodes Server-Sent-Events streams returned by LLM backends.
//
// The decoder is pull-based: each call to Next reads from the underlying
// body until one complete event has been assembled, so a consumer that
// stops pulling stops reading from the network.
package sse

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// maxLineSize bounds a single SSE line. Backends occasionally emit large
// data payloads (e.g., base64 citations), so the scanner default of 64KB
// is too small.
const maxLineSize = 1 << 20

// Event is one dispatched SSE event. Name is empty when the stream did not
// send an "event:" field.
type Event struct {
	Name string
	Data string
}

// Done reports whether the event is the "[DONE]" sentinel used by
// Chat Completions streams.
func (e Event) Done() bool {
	return e.Data == "[DONE]"
}

// Decoder reads events from an SSE body.
type Decoder struct {
	scanner *bufio.Scanner
	err     error
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Decoder{scanner: scanner}
}

// Next returns the next event. It returns io.EOF when the body ends
// without a pending event, and the read error if the body fails.
// Events without a data field are skipped.
func (d *Decoder) Next() (Event, error) {
	if d.err != nil {
		return Event{}, d.err
	}

	var (
		name    string
		data    strings.Builder
		hasData bool
	)

	for d.scanner.Scan() {
		line := d.scanner.Text()

		if line == "" {
			if hasData {
				return Event{Name: name, Data: data.String()}, nil
			}
			name = ""
			continue
		}

		// Comment line.
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			name = value
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
		}
	}

	if err := d.scanner.Err(); err != nil {
		d.err = err
	} else {
		d.err = io.EOF
	}

	// Flush an event left pending by a body that ended without a blank line.
	if hasData && errors.Is(d.err, io.EOF) {
		return Event{Name: name, Data: data.String()}, nil
	}
	return Event{}, d.err
}
