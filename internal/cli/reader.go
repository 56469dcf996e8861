package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
)

// ErrInputCancelled is returned when a read is abandoned because its context ended.
var ErrInputCancelled = errors.New("input canceled")

type scanned struct {
	err  error
	line string
}

// LineReader hands out trimmed input lines to callers that may give up
// waiting. One goroutine owns the underlying reader so abandoned reads never
// race each other; it starts on the first ReadLine.
type LineReader struct {
	src   io.Reader
	lines chan scanned
	once  sync.Once
}

// NewLineReader wraps src.
func NewLineReader(src io.Reader) *LineReader {
	return &LineReader{src: src, lines: make(chan scanned)}
}

// pump feeds lines until the source is exhausted. A read error is delivered
// once; afterwards lines is closed, which readers see as io.EOF.
func (r *LineReader) pump() {
	defer close(r.lines)
	sc := bufio.NewScanner(r.src)
	for sc.Scan() {
		r.lines <- scanned{line: sc.Text()}
	}
	if err := sc.Err(); err != nil {
		r.lines <- scanned{err: err}
	}
}

// ReadLine returns the next line without surrounding whitespace. It returns
// io.EOF once input is exhausted and ErrInputCancelled if ctx ends first.
func (r *LineReader) ReadLine(ctx context.Context) (string, error) {
	if ctx.Err() != nil {
		return "", ErrInputCancelled
	}
	r.once.Do(func() { go r.pump() })

	select {
	case <-ctx.Done():
		return "", ErrInputCancelled
	case s, ok := <-r.lines:
		if !ok {
			return "", io.EOF
		}
		if s.err != nil {
			return "", s.err
		}
		return strings.TrimSpace(s.line), nil
	}
}
