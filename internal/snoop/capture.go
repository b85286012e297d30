// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package snoop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/ManuGH/epgsnoop/internal/log"
	"github.com/ManuGH/epgsnoop/internal/program"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// DefaultIdleThreshold is the number of consecutive packets without a new
// event after which the carousel is assumed to have repeated completely.
const DefaultIdleThreshold = 2500

// Recorder receives capture metrics. Implementations must be cheap; they are
// called once per packet.
type Recorder interface {
	ObservePacket(newEvents int)
	SetIdleStreak(n int)
}

// Options controls a capture run.
type Options struct {
	IdleThreshold    int           // consecutive packets without new events before stopping
	Quiet            bool          // suppress periodic progress logging
	ProgressInterval time.Duration // minimum gap between progress log lines
	Recorder         Recorder      // optional
}

// Progress is a point-in-time view of a running capture.
type Progress struct {
	Packets  int64 `json:"packets"`
	Events   int64 `json:"events"`
	Programs int64 `json:"programs"`
	Idle     int64 `json:"idle"`
	Done     bool  `json:"done"`
}

// Capture drives the assembler until no new events have been seen for
// IdleThreshold consecutive packets.
type Capture struct {
	src       LineSource
	assembler *Assembler
	collector *Collector
	extractor *Extractor
	opts      Options
	logger    zerolog.Logger

	packets  atomic.Int64
	events   atomic.Int64
	programs atomic.Int64
	idle     atomic.Int64
	done     atomic.Bool
}

// NewCapture prepares a capture over src.
func NewCapture(src LineSource, opts Options) *Capture {
	if opts.IdleThreshold <= 0 {
		opts.IdleThreshold = DefaultIdleThreshold
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = 5 * time.Second
	}
	collector := NewCollector()
	return &Capture{
		src:       src,
		assembler: NewAssembler(src),
		collector: collector,
		extractor: NewExtractor(collector),
		opts:      opts,
		logger:    log.WithComponent("snoop"),
	}
}

// Progress returns the current counters. Safe for concurrent use.
func (c *Capture) Progress() Progress {
	return Progress{
		Packets:  c.packets.Load(),
		Events:   c.events.Load(),
		Programs: c.programs.Load(),
		Idle:     c.idle.Load(),
		Done:     c.done.Load(),
	}
}

// Run captures until the idle threshold is reached, the stream ends or ctx
// is cancelled. The line source is always closed before Run returns, which
// terminates the decoder and discards any output it still had buffered.
//
// The collected programs are returned in every case; the error is non-nil
// only for cancellation or a failing source.
func (c *Capture) Run(ctx context.Context) ([]*program.Program, error) {
	logger := log.WithContext(ctx, c.logger)

	// a cancelled context must also unblock a pending read
	stopClose := context.AfterFunc(ctx, func() { _ = c.src.Close() })
	defer stopClose()
	defer func() {
		if err := c.src.Close(); err != nil {
			logger.Debug().Err(err).Str(log.FieldEvent, "capture.close_error").Msg("closing line source")
		}
		c.done.Store(true)
	}()

	logger.Info().
		Str(log.FieldEvent, "capture.start").
		Int("idle_threshold", c.opts.IdleThreshold).
		Msg("capturing EIT packets")

	progress := rate.Sometimes{Interval: c.opts.ProgressInterval}
	idle := 0
	for idle < c.opts.IdleThreshold {
		if err := ctx.Err(); err != nil {
			return c.collector.Programs(), err
		}

		pkt, readErr := c.assembler.NextPacket()
		found := 0
		if len(pkt) > 0 {
			found = c.extractor.Extract(pkt)
			c.packets.Add(1)
		}

		if found > 0 {
			idle = 0
		} else {
			idle++
		}
		c.events.Store(int64(c.extractor.Events()))
		c.programs.Store(int64(c.collector.Len()))
		c.idle.Store(int64(idle))
		if r := c.opts.Recorder; r != nil {
			r.ObservePacket(found)
			r.SetIdleStreak(idle)
		}

		if !c.opts.Quiet {
			progress.Do(func() {
				logger.Info().
					Str(log.FieldEvent, "capture.progress").
					Int64(log.FieldPackets, c.packets.Load()).
					Int(log.FieldPrograms, c.collector.Len()).
					Int(log.FieldIdle, idle).
					Msg("processing packets")
			})
		}

		if readErr != nil {
			if ctx.Err() != nil {
				return c.collector.Programs(), ctx.Err()
			}
			if errors.Is(readErr, io.EOF) {
				logger.Warn().
					Str(log.FieldEvent, "capture.source_ended").
					Int64(log.FieldPackets, c.packets.Load()).
					Msg("decoder output ended before the idle threshold was reached")
				break
			}
			return c.collector.Programs(), fmt.Errorf("read decoder output: %w", readErr)
		}
	}

	logger.Info().
		Str(log.FieldEvent, "capture.complete").
		Int64(log.FieldPackets, c.packets.Load()).
		Int(log.FieldEvents, c.extractor.Events()).
		Int(log.FieldPrograms, c.collector.Len()).
		Msg("capture complete")
	return c.collector.Programs(), nil
}
