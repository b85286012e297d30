// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ManuGH/epgsnoop/internal/config"
	"github.com/ManuGH/epgsnoop/internal/decoder"
	"github.com/ManuGH/epgsnoop/internal/epg"
	"github.com/ManuGH/epgsnoop/internal/processor"
	"github.com/ManuGH/epgsnoop/internal/snoop"
	"github.com/ManuGH/epgsnoop/internal/tuner"
)

// Overrides are command line settings that win over the configuration.
type Overrides struct {
	Quiet  bool
	Output string
	// Input replays a saved decoder dump instead of tuning and spawning
	// the decoder.
	Input string
}

// FromConfig translates the run configuration into a grab setup.
func FromConfig(cfg config.Config, ov Overrides) (Config, Deps) {
	dec := decoder.Options{
		Bin:     cfg.Decoder.Bin,
		Adapter: cfg.Adapter,
		PID:     cfg.Decoder.PID,
		Charset: strings.ToLower(cfg.Decoder.Charset),
	}

	jc := Config{
		ChannelsFile: cfg.ChannelsFile,
		Transponder: tuner.Transponder{
			Frequency:  cfg.Transponder.Frequency,
			Polarity:   cfg.Transponder.Polarity,
			SymbolRate: cfg.Transponder.SymbolRate,
		},
		Flush: cfg.Tuner.Flush,
		Capture: snoop.Options{
			IdleThreshold: cfg.Capture.IdleThreshold,
			Quiet:         ov.Quiet,
		},
		Processors: cfg.Processors,
		ProcessorConfig: processor.Config{
			CategoryDB:           cfg.CategoryDB.Database,
			SearchReplaceURL:     cfg.SearchReplaceTitle.URL,
			SearchReplaceTimeout: cfg.SearchReplaceTitle.Timeout,
			MergeHost:            cfg.ChannelMerge.Host,
			MergeGuest:           cfg.ChannelMerge.Guest,
			MergeTitlePattern:    cfg.ChannelMerge.TitlePattern,
		},
		OutputPath: cfg.Output.Path,
		Render: epg.Options{
			Format:      cfg.Output.Format,
			Encoding:    strings.ToUpper(cfg.Output.Encoding),
			ShowIcons:   cfg.XMLTV.ShowIcons,
			IconURLBase: cfg.XMLTV.IconURLBase,
		},
		MetricsTextfile: cfg.Metrics.Textfile,
	}
	if ov.Output != "" {
		jc.OutputPath = ov.Output
	}

	if ov.Input != "" {
		return jc, Deps{OpenSource: fileSource(ov.Input)}
	}

	deps := Deps{
		OpenSource: func(ctx context.Context) (snoop.LineSource, error) {
			proc, err := decoder.Start(ctx, dec)
			if err != nil {
				return nil, err
			}
			return proc, nil
		},
	}
	if cfg.Transponder.Frequency != 0 {
		deps.Tuner = tuner.New(tuner.Options{
			Bin:          cfg.Tuner.Bin,
			Adapter:      cfg.Adapter,
			LNBOffset:    cfg.LNBOffset,
			Settle:       cfg.Tuner.Settle,
			Decoder:      dec,
			FlushPackets: cfg.Tuner.FlushPackets,
		})
	}
	return jc, deps
}

// fileSource replays a decoder dump, "-" reads standard input.
func fileSource(path string) SourceOpener {
	return func(context.Context) (snoop.LineSource, error) {
		if path == "-" {
			return snoop.NewReaderSource(os.Stdin), nil
		}
		// #nosec G304 -- dump path is given on the command line
		f, err := os.Open(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("open decoder dump: %w", err)
		}
		return snoop.NewReaderSource(f), nil
	}
}
