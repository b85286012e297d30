// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package jobs runs one guide grab: tune, capture, enrich, render, write.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ManuGH/epgsnoop/internal/channels"
	"github.com/ManuGH/epgsnoop/internal/epg"
	"github.com/ManuGH/epgsnoop/internal/log"
	"github.com/ManuGH/epgsnoop/internal/metrics"
	"github.com/ManuGH/epgsnoop/internal/processor"
	"github.com/ManuGH/epgsnoop/internal/program"
	"github.com/ManuGH/epgsnoop/internal/snoop"
)

// ErrNoSource is returned when Deps.OpenSource is missing.
var ErrNoSource = errors.New("no line source configured")

// Grab is a single capture run. Status may be called concurrently with Run.
type Grab struct {
	cfg  Config
	deps Deps

	runID   string
	stage   atomic.Value // Stage
	capture atomic.Pointer[snoop.Capture]

	mu      sync.Mutex
	started time.Time
	result  *Result
	err     error
}

// New prepares a grab with a fresh run id.
func New(cfg Config, deps Deps) *Grab {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if cfg.OutputPath == "" {
		cfg.OutputPath = StdoutPath
	}
	g := &Grab{cfg: cfg, deps: deps, runID: uuid.NewString()}
	g.stage.Store(StageIdle)
	return g
}

// RunID identifies this grab in logs.
func (g *Grab) RunID() string { return g.runID }

// Status returns a snapshot of the grab.
func (g *Grab) Status() Status {
	st := Status{RunID: g.runID, Stage: g.stage.Load().(Stage)}
	if c := g.capture.Load(); c != nil {
		st.Capture = c.Progress()
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	st.Started = g.started
	if g.result != nil {
		r := *g.result
		st.Result = &r
	}
	if g.err != nil {
		st.Error = g.err.Error()
	}
	return st
}

// Run performs the grab. Every process it starts is stopped before it
// returns. A failed run leaves a previously written guide in place.
func (g *Grab) Run(ctx context.Context) (*Result, error) {
	ctx = log.ContextWithRunID(ctx, g.runID)
	logger := log.WithComponentFromContext(ctx, "jobs")
	started := g.deps.Clock()
	g.mu.Lock()
	g.started = started
	g.mu.Unlock()

	logger.Info().Str(log.FieldEvent, "grab.start").Msg("starting guide grab")

	res, stage, err := g.run(ctx)
	if err != nil {
		metrics.IncRunFailure(string(stage))
		logger.Error().
			Err(err).
			Str(log.FieldEvent, "grab.failed").
			Str("stage", string(stage)).
			Msg("guide grab failed")
	} else {
		res.RunID = g.runID
		res.Duration = g.deps.Clock().Sub(started)
		logger.Info().
			Str(log.FieldEvent, "grab.complete").
			Int(log.FieldPrograms, res.Programmes).
			Int("channels", res.Channels).
			Dur("duration", res.Duration).
			Msg("guide grab complete")
	}

	g.writeMetrics(ctx)

	g.mu.Lock()
	g.result, g.err = res, err
	g.mu.Unlock()
	g.stage.Store(StageFinished)
	return res, err
}

func (g *Grab) enter(ctx context.Context, s Stage) {
	g.stage.Store(s)
	log.FromContext(ctx).Debug().Str(log.FieldEvent, "grab.stage").Str("stage", string(s)).Msg("entering stage")
}

func (g *Grab) run(ctx context.Context) (*Result, Stage, error) {
	g.enter(ctx, StageCatalog)
	catalog, err := channels.LoadFile(g.cfg.ChannelsFile)
	if err != nil {
		return nil, StageCatalog, err
	}

	captured, stage, err := g.capturePrograms(ctx)
	if err != nil {
		return nil, stage, err
	}
	res := &Result{Captured: len(captured)}

	bind(ctx, catalog, captured)

	g.enter(ctx, StageProcess)
	pl, err := processor.Build(ctx, g.cfg.Processors, g.cfg.ProcessorConfig)
	if err != nil {
		return nil, StageProcess, err
	}
	defer func() {
		if cerr := pl.Close(); cerr != nil {
			log.FromContext(ctx).Debug().Err(cerr).Msg("closing processors")
		}
	}()
	programs, err := pl.Run(ctx, captured)
	if err != nil {
		return nil, StageProcess, err
	}
	for _, p := range programs {
		if p.Valid() {
			res.Valid++
		}
	}

	g.enter(ctx, StageRender)
	var stats epg.Stats
	var renderErr error
	writeErr := writeGuide(ctx, g.cfg.OutputPath, g.deps.Stdout, func(w io.Writer) error {
		stats, renderErr = epg.Render(w, catalog, programs, g.cfg.Render)
		return renderErr
	})
	metrics.RecordOutput(stats.Channels, stats.Programmes, writeErr)
	if renderErr != nil {
		return nil, StageRender, renderErr
	}
	if writeErr != nil {
		return nil, StageWrite, writeErr
	}
	if g.cfg.OutputPath != StdoutPath {
		log.FromContext(ctx).Info().
			Str(log.FieldEvent, "guide.write").
			Str(log.FieldPath, g.cfg.OutputPath).
			Int("channels", stats.Channels).
			Int(log.FieldPrograms, stats.Programmes).
			Msg("guide written")
	}
	res.Channels, res.Programmes = stats.Channels, stats.Programmes
	return res, "", nil
}

// capturePrograms tunes, flushes and captures. The tuner is released on
// every path.
func (g *Grab) capturePrograms(ctx context.Context) ([]*program.Program, Stage, error) {
	if g.deps.OpenSource == nil {
		return nil, StageDecoder, ErrNoSource
	}

	tuning := g.deps.Tuner != nil && g.cfg.Transponder.Frequency != 0
	if tuning {
		defer g.deps.Tuner.Release()

		g.enter(ctx, StageTune)
		if err := g.deps.Tuner.Tune(ctx, g.cfg.Transponder); err != nil {
			return nil, StageTune, err
		}
		if g.cfg.Flush {
			g.enter(ctx, StageFlush)
			if err := g.deps.Tuner.Flush(ctx); err != nil {
				return nil, StageFlush, err
			}
		}
	}

	g.enter(ctx, StageDecoder)
	src, err := g.deps.OpenSource(ctx)
	if err != nil {
		return nil, StageDecoder, err
	}

	g.enter(ctx, StageCapture)
	opts := g.cfg.Capture
	if opts.Recorder == nil {
		opts.Recorder = metrics.CaptureRecorder{}
	}
	capture := snoop.NewCapture(src, opts)
	g.capture.Store(capture)

	began := g.deps.Clock()
	programs, err := capture.Run(ctx)
	metrics.RecordCaptureDuration(g.deps.Clock().Sub(began).Seconds())
	if err != nil {
		return nil, StageCapture, fmt.Errorf("capture: %w", err)
	}
	return programs, "", nil
}

// bind points every program at its catalog channel. Programs on services
// missing from the catalog stay unbound and therefore invalid.
func bind(ctx context.Context, catalog *channels.Catalog, programs []*program.Program) {
	unknown := make(map[string]int)
	for _, p := range programs {
		if ch, ok := catalog.Lookup(p.PID); ok {
			p.Channel = ch
			continue
		}
		unknown[p.PID]++
	}
	logger := log.FromContext(ctx)
	for pid, n := range unknown {
		logger.Debug().
			Str(log.FieldEvent, "grab.unknown_service").
			Str(log.FieldPID, pid).
			Int(log.FieldPrograms, n).
			Msg("service not in channel catalog")
	}
}

func (g *Grab) writeMetrics(ctx context.Context) {
	if g.cfg.MetricsTextfile == "" {
		return
	}
	if err := metrics.WriteTextfile(g.cfg.MetricsTextfile); err != nil {
		log.FromContext(ctx).Warn().
			Err(err).
			Str(log.FieldEvent, "metrics.textfile_failed").
			Str(log.FieldPath, g.cfg.MetricsTextfile).
			Msg("writing metrics textfile failed")
	}
}
