package sse

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
)

// TeeReader reads SSE events from a source io.Reader while copying the raw
// bytes of every event to a destination io.Writer.
//
// ┌──────────────────┐
// │ source io.Reader │
// └──────────────────┘
// │
// ▼
// ┌──────────────────┐   ┌───────────────────────┐
// │ TeeReader.Next() │──▶│ destination io.Writer │
// └──────────────────┘   └───────────────────────┘
// │
// ▼
// ┌──────────────────┐
// │      Event       │
// └──────────────────┘
//
// Raw bytes are written to the destination once per event, at the blank
// line that terminates it, so the destination always sees whole events.
// Line endings ("\n" or "\r\n") pass through unchanged.
// Comment and keep-alive lines are forwarded with the event that follows them.
type TeeReader struct {
	reader *bufio.Reader
	dest   io.Writer

	// raw holds the verbatim lines of the event being built, line endings
	// included.
	raw bytes.Buffer

	current *Event
	hasData bool
}

// MaxLineSize bounds a single line of the stream.
const MaxLineSize = 1024 * 1024

// ErrLineTooLong is returned by Next when a line exceeds MaxLineSize.
var ErrLineTooLong = errors.New("sse: line too long")

// NewTeeReader returns a TeeReader that parses SSE events from src and
// writes their raw bytes through to dest.
func NewTeeReader(src io.Reader, dest io.Writer) *TeeReader {
	if dest == nil {
		dest = io.Discard
	}

	return &TeeReader{
		reader:  bufio.NewReaderSize(src, 64*1024),
		dest:    dest,
		current: &Event{},
	}
}

// NewReader returns a TeeReader that only parses events and discards the raw
// bytes.
func NewReader(src io.Reader) *TeeReader {
	return NewTeeReader(src, io.Discard)
}

// SetDestination replaces the writer that receives raw event bytes. Events
// already returned by Next have been written to the previous destination.
func (r *TeeReader) SetDestination(dest io.Writer) {
	if dest == nil {
		dest = io.Discard
	}
	r.dest = dest
}

// Next blocks until a complete event is available and returns it.
// Next returns nil, nil when the source is exhausted.
func (r *TeeReader) Next() (*Event, error) {
	for {
		line, err := r.readLine()
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}

		if len(line) > 0 {
			r.raw.Write(line)

			text := trimLineEnding(line)
			switch {
			case text != "":
				if !strings.HasPrefix(text, ":") {
					r.parseLine(text)
				}
			case r.hasData:
				if err := r.flush(); err != nil {
					return nil, err
				}
				return r.take(), nil
			}
			// Blank line with nothing accumulated: leading newline or keep-alive.
		}

		if err != nil {
			break
		}
	}

	// Source exhausted. Forward the trailing bytes exactly as received and
	// yield an event that was not terminated by a blank line.
	if err := r.flush(); err != nil {
		return nil, err
	}
	if r.hasData {
		return r.take(), nil
	}

	return nil, nil
}

// readLine returns the next line with its terminator, or the unterminated
// tail of the stream together with io.EOF.
func (r *TeeReader) readLine() ([]byte, error) {
	var line []byte
	for {
		chunk, err := r.reader.ReadSlice('\n')
		line = append(line, chunk...)
		if len(line) > MaxLineSize {
			return nil, ErrLineTooLong
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return line, err
	}
}

// trimLineEnding strips a trailing "\n" or "\r\n".
func trimLineEnding(line []byte) string {
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	return string(line)
}

// parseLine accumulates a single "field:value" line into the current event.
// A single leading space after the colon is stripped.
func (r *TeeReader) parseLine(line string) {
	field, value, ok := strings.Cut(line, ":")
	if ok {
		value = strings.TrimPrefix(value, " ")
	}

	switch field {
	case "data":
		if r.hasData && r.current.Data != "" {
			r.current.Data += "\n"
		}
		r.current.Data += value
		r.hasData = true
	case "event":
		r.current.Type = value
		r.hasData = true
	case "id":
		r.current.ID = value
		r.hasData = true
	default:
		// "retry" and unknown fields are ignored.
	}
}

func (r *TeeReader) flush() error {
	if r.raw.Len() == 0 {
		return nil
	}
	_, err := r.dest.Write(r.raw.Bytes())
	r.raw.Reset()
	return err
}

func (r *TeeReader) take() *Event {
	ev := r.current
	r.current = &Event{}
	r.hasData = false
	return ev
}
