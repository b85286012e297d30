// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/epgsnoop/internal/api"
	"github.com/ManuGH/epgsnoop/internal/config"
	"github.com/ManuGH/epgsnoop/internal/health"
	"github.com/ManuGH/epgsnoop/internal/jobs"
	"github.com/ManuGH/epgsnoop/internal/log"
	"github.com/ManuGH/epgsnoop/internal/version"
)

func newRunCmd(root *rootOptions) *cobra.Command {
	var ov jobs.Overrides
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Capture the guide and write it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGrab(cmd, root.resolveConfigPath(), ov)
		},
	}
	cmd.Flags().BoolVarP(&ov.Quiet, "quiet", "q", false, "suppress capture progress logging")
	cmd.Flags().StringVarP(&ov.Output, "output", "o", "", `output file, "-" for stdout (overrides output.path)`)
	cmd.Flags().StringVarP(&ov.Input, "input", "i", "", `replay a saved dvbsnoop dump instead of tuning ("-" for stdin)`)
	return cmd
}

func runGrab(cmd *cobra.Command, configPath string, ov jobs.Overrides) error {
	cfg, err := config.NewLoader(configPath).Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	log.Configure(log.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Output:  cmd.ErrOrStderr(),
		Version: version.Version,
	})

	logger := log.WithComponent("cli")
	source := "env+defaults"
	if configPath != "" {
		source = configPath
	}
	logger.Info().
		Str(log.FieldEvent, "config.loaded").
		Str("source", source).
		Msg("loaded configuration")

	jc, deps := jobs.FromConfig(cfg, ov)
	deps.Stdout = cmd.OutOrStdout()
	grab := jobs.New(jc, deps)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	g, gctx := errgroup.WithContext(ctx)
	// stopped once the grab is over, successful or not
	srvCtx, stopServer := context.WithCancel(gctx)
	defer stopServer()

	g.Go(func() error {
		defer stopServer()
		res, err := grab.Run(gctx)
		if err != nil {
			return err
		}
		logger.Info().
			Str(log.FieldEvent, "run.summary").
			Int("captured", res.Captured).
			Int("valid", res.Valid).
			Int("channels", res.Channels).
			Int(log.FieldPrograms, res.Programmes).
			Dur("duration", res.Duration).
			Msg("run finished")
		return nil
	})

	if cfg.Status.Listen != "" {
		hm := health.NewManager(version.Version,
			health.NewFileChecker("channels", cfg.ChannelsFile),
			health.NewGrabChecker(func() (string, string) {
				st := grab.Status()
				return string(st.Stage), st.Error
			}),
		)
		srv := api.New(grab.Status, hm)
		g.Go(func() error {
			// the grab carries on without its status server
			if err := srv.ListenAndServe(srvCtx, cfg.Status.Listen); err != nil {
				logger.Error().
					Err(err).
					Str(log.FieldEvent, "status.failed").
					Str("listen", cfg.Status.Listen).
					Msg("status server stopped")
			}
			return nil
		})
	}

	return g.Wait()
}
