// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package decoder runs dvbsnoop and exposes its text dump as a line source.
package decoder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/encoding/charmap"

	"github.com/ManuGH/epgsnoop/internal/log"
	"github.com/ManuGH/epgsnoop/internal/procgroup"
)

var (
	// ErrDecoderUnavailable is returned when the decoder binary cannot be started.
	ErrDecoderUnavailable = errors.New("decoder unavailable")
	// ErrDecoderExited is returned by ReadLine when the decoder ended with a failure status.
	ErrDecoderExited = errors.New("decoder exited")
	// ErrClosed is returned by ReadLine after Close.
	ErrClosed = errors.New("decoder closed")
)

// Supported values for Options.Charset.
const (
	CharsetLatin1 = "latin1"
	CharsetUTF8   = "utf-8"
)

const (
	DefaultBin = "dvbsnoop"
	// DefaultPID is the EIT table pid.
	DefaultPID = "0x12"
)

// Options describe one decoder invocation.
type Options struct {
	Bin     string
	Adapter int
	PID     string
	Charset string
	// Packets bounds the number of packets dvbsnoop prints; 0 is unbounded.
	Packets int
	// Grace is the SIGTERM to SIGKILL delay used by Close.
	Grace time.Duration
}

func (o Options) withDefaults() Options {
	if o.Bin == "" {
		o.Bin = DefaultBin
	}
	if o.PID == "" {
		o.PID = DefaultPID
	}
	if o.Charset == "" {
		o.Charset = CharsetLatin1
	}
	if o.Grace <= 0 {
		o.Grace = procgroup.DefaultGrace
	}
	return o
}

// Args returns the decoder command line without the binary.
func (o Options) Args() []string {
	args := []string{"-adapter", strconv.Itoa(o.Adapter)}
	if o.Packets > 0 {
		args = append(args, "-n", strconv.Itoa(o.Packets))
	}
	return append(args, "-nph", o.withDefaults().PID)
}

// Process is a running decoder. It implements snoop.LineSource.
type Process struct {
	opts   Options
	cmd    *exec.Cmd
	lines  chan string
	done   chan struct{}
	waitCh chan error
	stderr *lineRing

	// written by the pump before lines is closed
	endErr error

	closeOnce sync.Once
}

// Start spawns the decoder in its own process group. The context only
// bounds the start itself; use Close to stop the decoder.
func Start(ctx context.Context, opts Options) (*Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	cmd := exec.Command(opts.Bin, opts.Args()...) // #nosec G204
	procgroup.Set(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout pipe: %v", ErrDecoderUnavailable, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stderr pipe: %v", ErrDecoderUnavailable, err)
	}

	p := &Process{
		opts:   opts,
		cmd:    cmd,
		lines:  make(chan string, 256),
		done:   make(chan struct{}),
		waitCh: make(chan error, 1),
		stderr: newLineRing(20),
	}

	logger := log.WithComponentFromContext(ctx, "decoder")
	logger.Info().
		Str(log.FieldEvent, "decoder.start").
		Str("command", cmd.String()).
		Msg("starting decoder")

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecoderUnavailable, opts.Bin, err)
	}

	var stderrDone sync.WaitGroup
	stderrDone.Add(1)
	go func() {
		defer stderrDone.Done()
		s := bufio.NewScanner(stderr)
		for s.Scan() {
			p.stderr.Add(s.Text())
		}
	}()

	go p.pump(p.reader(stdout), &stderrDone)
	return p, nil
}

func (p *Process) reader(stdout io.Reader) io.Reader {
	if strings.EqualFold(p.opts.Charset, CharsetLatin1) {
		return charmap.ISO8859_1.NewDecoder().Reader(stdout)
	}
	return stdout
}

// pump forwards stdout lines until EOF or Close, then reaps the process.
func (p *Process) pump(r io.Reader, stderrDone *sync.WaitGroup) {
	defer close(p.lines)

	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for s.Scan() {
		select {
		case p.lines <- s.Text():
		case <-p.done:
			// discard what is still buffered so the process can exit
			_, _ = io.Copy(io.Discard, r)
			p.finish(s.Err(), stderrDone)
			return
		}
	}
	if s.Err() != nil {
		// an oversized line stops the scanner; keep the pipe flowing
		_, _ = io.Copy(io.Discard, r)
	}
	p.finish(s.Err(), stderrDone)
}

func (p *Process) finish(scanErr error, stderrDone *sync.WaitGroup) {
	stderrDone.Wait()
	waitErr := p.cmd.Wait()
	p.waitCh <- waitErr

	switch {
	case scanErr != nil:
		p.endErr = fmt.Errorf("read decoder output: %w", scanErr)
	case waitErr != nil:
		p.endErr = fmt.Errorf("%w: %v: %s", ErrDecoderExited, waitErr, strings.Join(p.stderr.Lines(), " | "))
	default:
		p.endErr = io.EOF
	}
}

// ReadLine returns the next decoded line. It returns io.EOF once the decoder
// exited cleanly, ErrDecoderExited when it failed and ErrClosed after Close.
func (p *Process) ReadLine() (string, error) {
	select {
	case <-p.done:
		return "", ErrClosed
	default:
	}
	select {
	case line, ok := <-p.lines:
		if !ok {
			return "", p.endErr
		}
		return line, nil
	case <-p.done:
		return "", ErrClosed
	}
}

// Close terminates the decoder's process group and discards pending output.
func (p *Process) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
		err := procgroup.Terminate(p.cmd, p.waitCh, p.opts.Grace)
		logger := log.WithComponent("decoder")
		logger.Debug().
			Str(log.FieldEvent, "decoder.stopped").
			AnErr("wait", err).
			Msg("decoder stopped")
	})
	return nil
}

// StderrTail returns the last diagnostic lines the decoder printed.
func (p *Process) StderrTail() []string { return p.stderr.Lines() }
