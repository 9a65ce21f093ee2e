package event

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// maxLineBytes bounds a single log line. Backlog events can be large.
const maxLineBytes = 16 << 20

// LineError reports a problem decoding one line of a log.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// Reader decodes newline-delimited JSON events.
type Reader struct {
	sc       *bufio.Scanner
	line     int
	validate bool
}

// NewReader returns a Reader over r. When validate is true every line is
// checked against the event schema before decoding.
func NewReader(r io.Reader, validate bool) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	return &Reader{sc: sc, validate: validate}
}

// Next returns the next event, or io.EOF when the log is exhausted.
// Blank lines are skipped.
func (r *Reader) Next() (Event, error) {
	for r.sc.Scan() {
		r.line++
		raw := bytes.TrimSpace(r.sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		if r.validate {
			if err := Validate(raw); err != nil {
				return Event{}, &LineError{Line: r.line, Err: err}
			}
		}
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			return Event{}, &LineError{Line: r.line, Err: err}
		}
		return ev, nil
	}
	if err := r.sc.Err(); err != nil {
		return Event{}, &LineError{Line: r.line + 1, Err: err}
	}
	return Event{}, io.EOF
}

// ReadAll decodes every event from r.
func ReadAll(r io.Reader, validate bool) ([]Event, error) {
	rd := NewReader(r, validate)
	var out []Event
	for {
		ev, err := rd.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, ev)
	}
}

// ReadFile decodes the log stored at path.
func ReadFile(path string, validate bool) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer f.Close()
	events, err := ReadAll(f, validate)
	if err != nil {
		return events, fmt.Errorf("%s: %w", path, err)
	}
	return events, nil
}

// Writer appends events as newline-delimited JSON.
type Writer struct {
	enc *json.Encoder
}

// NewWriter returns a Writer emitting to w.
func NewWriter(w io.Writer) *Writer {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &Writer{enc: enc}
}

// Write appends one event.
func (w *Writer) Write(ev Event) error {
	return w.enc.Encode(ev)
}

// WriteAll appends events in order.
func WriteAll(w io.Writer, events []Event) error {
	ew := NewWriter(w)
	for i, ev := range events {
		if err := ew.Write(ev); err != nil {
			return fmt.Errorf("write event %d: %w", i, err)
		}
	}
	return nil
}
