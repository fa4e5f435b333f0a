// Copyright (C) 2024 The Bygg Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"log"
	"os"

	"github.com/byggbuild/bygg/internal/config"
	"github.com/byggbuild/bygg/internal/logger"
	"github.com/spf13/cobra"
)

var (
	// cfgFile is the --config flag value.
	cfgFile string

	// quiet is the --quiet flag value.
	quiet bool

	// appConfig is populated by initialize before any subcommand runs.
	appConfig *config.Config

	// appLogger is built from appConfig once initialize has run.
	appLogger logger.Logger

	// version is set at build time via -ldflags.
	version = "0.0.0"
)

func main() {
	cmd := &cobra.Command{
		Use:   "bygg",
		Short: "Digest-based build engine",
		Long:  "bygg builds a declared action graph, skipping work whose inputs haven't changed.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initialize()
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./bygg.yaml if present)")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all but error-level logging")

	cmd.AddCommand(buildCmd())
	cmd.AddCommand(cleanCmd())
	cmd.AddCommand(versionCmd())

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initialize() error {
	path := cfgFile
	if path == "" {
		path = "bygg.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("configuration load failed: %v", err)
	}
	appConfig = cfg
	appLogger = buildLogger(cfg, quiet)
	return nil
}
