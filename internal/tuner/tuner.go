// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package tuner locks a DVB-S adapter onto a transponder with dvbtune.
package tuner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ManuGH/epgsnoop/internal/decoder"
	"github.com/ManuGH/epgsnoop/internal/log"
	"github.com/ManuGH/epgsnoop/internal/metrics"
	"github.com/ManuGH/epgsnoop/internal/procgroup"
)

var (
	// ErrTuningFailed means dvbtune could not be started or exited inside the settle window.
	ErrTuningFailed = errors.New("tuning failed")
	// ErrNotTuned is returned by Flush before a successful Tune.
	ErrNotTuned = errors.New("tuner not tuned")
)

const (
	DefaultBin          = "dvbtune"
	DefaultSettle       = 500 * time.Millisecond
	DefaultFlushPackets = 2000
)

// Options configure the tuner.
type Options struct {
	Bin     string
	Adapter int
	// LNBOffset in MHz is subtracted from the transponder frequency.
	LNBOffset int
	Settle    time.Duration
	Grace     time.Duration

	// Decoder runs the stale data flush.
	Decoder      decoder.Options
	FlushPackets int
}

// Transponder identifies what to tune to.
type Transponder struct {
	Frequency  int    // MHz
	Polarity   string // H or V
	SymbolRate int    // kSym/s
}

// Tuner owns a running dvbtune process. It is not safe for concurrent use.
type Tuner struct {
	opts Options

	mu     sync.Mutex
	cmd    *exec.Cmd
	waitCh chan error
}

func New(opts Options) *Tuner {
	if opts.Bin == "" {
		opts.Bin = DefaultBin
	}
	if opts.Settle <= 0 {
		opts.Settle = DefaultSettle
	}
	if opts.Grace <= 0 {
		opts.Grace = procgroup.DefaultGrace
	}
	if opts.FlushPackets <= 0 {
		opts.FlushPackets = DefaultFlushPackets
	}
	opts.Decoder.Adapter = opts.Adapter
	return &Tuner{opts: opts}
}

// Args returns the dvbtune command line for tp without the binary.
func (t *Tuner) Args(tp Transponder) []string {
	freq := (tp.Frequency - t.opts.LNBOffset) * 1000
	return []string{
		"-c", strconv.Itoa(t.opts.Adapter),
		"-f", strconv.Itoa(freq),
		"-s", strconv.Itoa(tp.SymbolRate),
		"-p", strings.ToUpper(tp.Polarity),
		"-m",
		"-tone", "0",
	}
}

// Tune starts dvbtune and waits for the settle window. dvbtune keeps running
// while it holds the lock; an exit inside the window is a lock failure.
// The process keeps running until Release.
func (t *Tuner) Tune(ctx context.Context, tp Transponder) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	logger := log.WithComponentFromContext(ctx, "tuner")
	if t.cmd != nil {
		t.releaseLocked()
	}

	cmd := exec.Command(t.opts.Bin, t.Args(tp)...) // #nosec G204
	procgroup.Set(cmd)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard

	logger.Info().
		Str(log.FieldEvent, "tuner.tune").
		Int("adapter", t.opts.Adapter).
		Int("frequency", tp.Frequency).
		Str("polarity", tp.Polarity).
		Int("symbol_rate", tp.SymbolRate).
		Msg("tuning DVB card")

	if err := cmd.Start(); err != nil {
		metrics.IncTuneAttempt("failed")
		return fmt.Errorf("%w: start %s: %v", ErrTuningFailed, t.opts.Bin, err)
	}

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	timer := time.NewTimer(t.opts.Settle)
	defer timer.Stop()

	select {
	case err := <-waitCh:
		metrics.IncTuneAttempt("failed")
		logger.Error().
			Str(log.FieldEvent, "tuner.lock_failed").
			AnErr("exit", err).
			Msg("tuner exited during settle window")
		return fmt.Errorf("%w: adapter %d: tuner exited early (%v)", ErrTuningFailed, t.opts.Adapter, err)
	case <-ctx.Done():
		_ = procgroup.Terminate(cmd, waitCh, t.opts.Grace)
		return ctx.Err()
	case <-timer.C:
	}

	t.cmd, t.waitCh = cmd, waitCh
	metrics.IncTuneAttempt("locked")
	logger.Debug().Str(log.FieldEvent, "tuner.locked").Msg("dvbtune process running")
	return nil
}

// Flush discards EIT data the decoder buffered from a previous tune by
// running it for a fixed number of packets.
func (t *Tuner) Flush(ctx context.Context) error {
	t.mu.Lock()
	tuned := t.cmd != nil
	t.mu.Unlock()
	if !tuned {
		return ErrNotTuned
	}

	logger := log.WithComponentFromContext(ctx, "tuner")
	logger.Info().Str(log.FieldEvent, "tuner.flush").Int(log.FieldPackets, t.opts.FlushPackets).Msg("flushing stale EIT data")

	opts := t.opts.Decoder
	opts.Packets = t.opts.FlushPackets
	p, err := decoder.Start(ctx, opts)
	if err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	defer func() { _ = p.Close() }()

	stop := context.AfterFunc(ctx, func() { _ = p.Close() })
	defer stop()

	lines := 0
	for {
		if _, err := p.ReadLine(); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("flush: %w", err)
		}
		lines++
	}
	logger.Debug().Str(log.FieldEvent, "tuner.flush_done").Int("lines", lines).Msg("flush done")
	return nil
}

// Release stops dvbtune. It is safe to call when not tuned and more than once.
func (t *Tuner) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.releaseLocked()
}

func (t *Tuner) releaseLocked() {
	if t.cmd == nil {
		return
	}
	err := procgroup.Terminate(t.cmd, t.waitCh, t.opts.Grace)
	logger := log.WithComponent("tuner")
	logger.Debug().
		Str(log.FieldEvent, "tuner.released").
		AnErr("wait", err).
		Msg("tuner released")
	t.cmd, t.waitCh = nil, nil
}

// Tuned reports whether dvbtune currently holds the adapter.
func (t *Tuner) Tuned() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cmd != nil
}
