// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command epgsnoop grabs a DVB EPG with dvbsnoop and writes XMLTV.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ManuGH/epgsnoop/internal/log"
	"github.com/ManuGH/epgsnoop/internal/version"
)

// defaultConfigPath is used when --config is not given and the file exists.
const defaultConfigPath = "/etc/epgsnoop/epgsnoop.yaml"

func main() {
	// safe defaults until the configuration is loaded
	log.Configure(log.Config{Level: "info", Format: "console", Version: version.Version})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	root := newRootCmd(os.Stdout, os.Stderr)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		logger := log.WithComponent("cli")
		logger.Fatal().Err(err).Str(log.FieldEvent, "cli.failed").Msg("epgsnoop failed")
	}
}

type rootOptions struct {
	configPath string
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "epgsnoop",
		Short:         "Build an XMLTV guide from DVB EIT data",
		Long:          "epgsnoop tunes a DVB adapter, captures the EIT carousel through dvbsnoop and renders the reconstructed guide as XMLTV.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config file (YAML)")

	root.AddCommand(
		newRunCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return root
}

// resolveConfigPath falls back to defaultConfigPath when it exists.
func (o *rootOptions) resolveConfigPath() string {
	if o.configPath != "" {
		return o.configPath
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("epgsnoop %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
