// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/ManuGH/epgsnoop/internal/log"
	"github.com/ManuGH/epgsnoop/internal/metrics"
	"github.com/ManuGH/epgsnoop/internal/program"
)

// ErrUnknownProcessor is returned by Build for names without a constructor.
var ErrUnknownProcessor = errors.New("unknown processor")

// Config carries the settings of the optional processors.
type Config struct {
	CategoryDB string

	SearchReplaceURL     string
	SearchReplaceTimeout time.Duration
	HTTPClient           *http.Client

	MergeHost         string
	MergeGuest        string
	MergeTitlePattern string
}

// Constructor builds one processor. Unavailable dependencies must be
// reported as an Inactive outcome, never as a panic.
type Constructor func(ctx context.Context, cfg Config) Outcome

var registry = map[string]Constructor{
	"strip_html":           func(context.Context, Config) Outcome { return Active(StripHTML{}) },
	"hd":                   func(context.Context, Config) Outcome { return Active(HD{}) },
	"widescreen":           func(context.Context, Config) Outcome { return Active(Widescreen{}) },
	"credits":              func(context.Context, Config) Outcome { return Active(Credits{}) },
	"year":                 func(context.Context, Config) Outcome { return Active(Year{}) },
	"movie_title":          func(context.Context, Config) Outcome { return Active(MovieTitle{}) },
	"subtitle":             func(context.Context, Config) Outcome { return Active(Subtitle{}) },
	"movie_desc":           func(context.Context, Config) Outcome { return Active(MovieDesc{}) },
	"category_list":        func(context.Context, Config) Outcome { return Active(CategoryList{}) },
	"category_db":          NewCategoryDB,
	"sky_ratings":          func(context.Context, Config) Outcome { return Active(SkyRatings{}) },
	"search_replace_title": NewSearchReplaceTitle,
	"channel_merge":        NewChannelMerge,
	"normalize_title":      func(context.Context, Config) Outcome { return Active(NormalizeTitle{}) },
}

// DefaultOrder is the processor order used when none is configured.
var DefaultOrder = []string{
	"strip_html", "hd", "widescreen", "credits", "year", "movie_title",
	"subtitle", "movie_desc", "category_list", "category_db", "sky_ratings",
	"search_replace_title",
}

// Names lists every registered processor.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Known reports whether name is a registered processor.
func Known(name string) bool {
	_, ok := registry[name]
	return ok
}

// Pipeline runs processors strictly in order.
type Pipeline struct {
	outcomes []Outcome
}

// New returns a pipeline over already constructed outcomes.
func New(outcomes ...Outcome) *Pipeline {
	return &Pipeline{outcomes: outcomes}
}

// Build constructs the named processors in order.
func Build(ctx context.Context, names []string, cfg Config) (*Pipeline, error) {
	var unknown []string
	for _, n := range names {
		if !Known(n) {
			unknown = append(unknown, n)
		}
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProcessor, strings.Join(unknown, ", "))
	}

	outcomes := make([]Outcome, 0, len(names))
	for _, n := range names {
		outcomes = append(outcomes, registry[n](ctx, cfg))
	}
	return New(outcomes...), nil
}

// Outcomes returns the constructed processors in run order.
func (pl *Pipeline) Outcomes() []Outcome { return pl.outcomes }

// Run passes programs through every active processor. Only valid programs
// are visited; invalid ones stay in the collection untouched. Processor N
// sees every change made by processors 1..N-1. Cancellation is checked
// between processors and returns the collection as far as it got.
func (pl *Pipeline) Run(ctx context.Context, programs []*program.Program) ([]*program.Program, error) {
	logger := log.WithComponentFromContext(ctx, "processor")

	for _, o := range pl.outcomes {
		if err := ctx.Err(); err != nil {
			return programs, err
		}

		proc, ok := o.Processor()
		if !ok {
			metrics.IncProcessorInactive(o.Name())
			logger.Info().
				Str(log.FieldEvent, "processor.inactive").
				Str(log.FieldProcessor, o.Name()).
				Str("reason", o.Reason()).
				Msg("processor not in use")
			continue
		}

		plog := logger.With().Str(log.FieldProcessor, o.Name()).Logger()
		plog.Info().Str(log.FieldEvent, "processor.start").Msg("processing programs")

		started := time.Now()
		visited := 0
		for _, p := range programs {
			if !p.Valid() {
				plog.Debug().
					Str(log.FieldPID, p.PID).
					Str(log.FieldTitle, p.Title).
					Strs("missing", p.Missing()).
					Msg("ignoring invalid program")
				continue
			}
			proc.Process(p)
			visited++
		}

		if f, ok := proc.(Finisher); ok {
			var batch Batch
			f.Finish(programs, &batch)
			inserted, deleted := batch.Inserts(), batch.Deletes()
			programs = batch.Apply(programs)
			metrics.RecordProcessorMutations(o.Name(), inserted, deleted)
			if inserted > 0 || deleted > 0 {
				plog.Debug().Int("inserted", inserted).Int("deleted", deleted).Msg("applied batch")
			}
		}
		metrics.ObserveProcessorPass(o.Name(), visited, time.Since(started).Seconds())
	}
	return programs, nil
}

// Close releases resources held by processors, such as database handles.
func (pl *Pipeline) Close() error {
	var errs []error
	for _, o := range pl.outcomes {
		if c, ok := o.proc.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", o.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}
