package event

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

const maxLineSize = 1 << 20

// Reader reads newline-delimited JSON events.
type Reader struct {
	scanner *bufio.Scanner
	line    int
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Reader{scanner: scanner}
}

// Next returns the next event, or io.EOF. Blank lines and lines starting with
// '#' are skipped. A line that fails to decode yields a *LineError; reading can
// continue after it.
func (r *Reader) Next() (Event, error) {
	for r.scanner.Scan() {
		r.line++
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ev, err := Decode([]byte(line))
		if err != nil {
			return nil, &LineError{Line: r.line, Err: err}
		}
		return ev, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// LineError is a decode failure on one input line.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// IsLineError reports whether err is a recoverable per-line decode failure.
func IsLineError(err error) bool {
	var le *LineError
	return errors.As(err, &le)
}
