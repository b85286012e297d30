// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ManuGH/epgsnoop/internal/channels"
	"github.com/ManuGH/epgsnoop/internal/config"
	"github.com/ManuGH/epgsnoop/internal/persistence/sqlite"
)

// errCorruptCategoryDB is returned when the category database fails its check.
var errCorruptCategoryDB = errors.New("category database failed integrity check")

func newConfigCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}
	cmd.AddCommand(newConfigValidateCmd(root), newConfigDumpCmd(root))
	return cmd
}

func newConfigValidateCmd(root *rootOptions) *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and the files it references",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := root.resolveConfigPath()
			cfg, err := config.NewLoader(path).Load()
			if err != nil {
				return err
			}

			cat, err := channels.LoadFile(cfg.ChannelsFile)
			if err != nil {
				return err
			}

			if db := cfg.CategoryDB.Database; db != "" {
				problems, err := sqlite.VerifyIntegrity(cmd.Context(), sqlite.ExpandPath(db), full)
				if err != nil {
					return fmt.Errorf("category database %s: %w", db, err)
				}
				if len(problems) > 0 {
					return fmt.Errorf("%w: %s", errCorruptCategoryDB, strings.Join(problems, "; "))
				}
			}

			name := path
			if name == "" {
				name = "configuration"
			}
			cmd.Printf("✓ %s is valid (%d channels)\n", name, cat.Len())
			return nil
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "run a full integrity check on the category database")
	return cmd
}

func newConfigDumpCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dump",
		Short: "Print the effective configuration (defaults + file + env)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.NewLoader(root.resolveConfigPath()).Load()
			if err != nil {
				return err
			}
			data, err := config.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("encode configuration: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
