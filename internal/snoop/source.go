// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package snoop turns the decoder's text dump into deduplicated guide events.
package snoop

import (
	"bufio"
	"io"
	"strings"
)

// LineSource supplies decoder output one line at a time.
//
// ReadLine blocks until a line is available and returns io.EOF once the
// stream has ended. Close stops the underlying producer; buffered lines that
// were not read yet are discarded and a blocked ReadLine returns. Close must
// be safe to call more than once.
type LineSource interface {
	ReadLine() (string, error)
	Close() error
}

// readerSource adapts an io.Reader, e.g. a saved decoder dump.
type readerSource struct {
	scanner *bufio.Scanner
	closer  io.Closer
}

// NewReaderSource returns a LineSource reading newline separated text from r.
// If r implements io.Closer it is closed by Close.
func NewReaderSource(r io.Reader) LineSource {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	src := &readerSource{scanner: s}
	if c, ok := r.(io.Closer); ok {
		src.closer = c
	}
	return src
}

func (s *readerSource) ReadLine() (string, error) {
	if s.scanner.Scan() {
		return s.scanner.Text(), nil
	}
	if err := s.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (s *readerSource) Close() error {
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}

// NewStringSource is a convenience for fixtures.
func NewStringSource(text string) LineSource {
	return NewReaderSource(strings.NewReader(text))
}
