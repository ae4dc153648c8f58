package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
)

// ErrInputCancelled is returned when input is canceled by context.
var ErrInputCancelled = errors.New("input canceled")

// LineReader reads trimmed lines while honoring context cancellation.
// It is meant for a single consumer.
type LineReader struct {
	lines chan string
	errCh chan error
	err   error
}

// NewLineReader starts reading r in the background.
func NewLineReader(r io.Reader) *LineReader {
	lr := &LineReader{
		lines: make(chan string),
		errCh: make(chan error, 1),
	}
	go func() {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lr.lines <- strings.TrimSpace(scanner.Text())
		}
		err := scanner.Err()
		if err == nil {
			err = io.EOF
		}
		lr.errCh <- err
		close(lr.lines)
	}()
	return lr
}

// ReadLine returns the next line, io.EOF at end of input, or
// ErrInputCancelled when ctx ends first.
func (r *LineReader) ReadLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ErrInputCancelled
	case line, ok := <-r.lines:
		if ok {
			return line, nil
		}
		if r.err == nil {
			r.err = <-r.errCh
		}
		return "", r.err
	}
}
