// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs

import (
	"context"
	"io"
	"time"

	"github.com/ManuGH/epgsnoop/internal/epg"
	"github.com/ManuGH/epgsnoop/internal/processor"
	"github.com/ManuGH/epgsnoop/internal/snoop"
	"github.com/ManuGH/epgsnoop/internal/tuner"
)

// Tuner is the part of tuner.Tuner the grab needs.
type Tuner interface {
	Tune(ctx context.Context, tp tuner.Transponder) error
	Flush(ctx context.Context) error
	Release()
}

// SourceOpener starts the line source the capture reads from.
type SourceOpener func(ctx context.Context) (snoop.LineSource, error)

// Config holds everything one grab needs apart from its collaborators.
type Config struct {
	ChannelsFile string

	// Transponder with Frequency 0 skips tuning.
	Transponder tuner.Transponder
	Flush       bool

	Capture snoop.Options

	Processors      []string
	ProcessorConfig processor.Config

	// OutputPath "-" writes to Deps.Stdout.
	OutputPath string
	Render     epg.Options

	// MetricsTextfile is written after the run when set.
	MetricsTextfile string
}

// Deps holds the collaborators of a grab.
type Deps struct {
	Tuner      Tuner // nil skips tuning
	OpenSource SourceOpener
	Stdout     io.Writer
	Clock      func() time.Time
}

// Stage names a step of the grab. They double as failure metric labels.
type Stage string

const (
	StageIdle     Stage = "idle"
	StageCatalog  Stage = "catalog"
	StageTune     Stage = "tune"
	StageFlush    Stage = "flush"
	StageDecoder  Stage = "decoder"
	StageCapture  Stage = "capture"
	StageProcess  Stage = "process"
	StageRender   Stage = "render"
	StageWrite    Stage = "write"
	StageFinished Stage = "finished"
)

// Result summarises a successful grab.
type Result struct {
	RunID      string        `json:"run_id"`
	Captured   int           `json:"captured"`
	Valid      int           `json:"valid"`
	Channels   int           `json:"channels"`
	Programmes int           `json:"programmes"`
	Duration   time.Duration `json:"duration"`
}

// Status is a snapshot of a grab for the status server.
type Status struct {
	RunID   string         `json:"run_id"`
	Stage   Stage          `json:"stage"`
	Started time.Time      `json:"started"`
	Capture snoop.Progress `json:"capture"`
	Result  *Result        `json:"result,omitempty"`
	Error   string         `json:"error,omitempty"`
}
