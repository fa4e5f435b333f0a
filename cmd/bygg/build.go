// Copyright (C) 2024 The Bygg Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"

	"github.com/byggbuild/bygg/internal/engine"
	"github.com/byggbuild/bygg/internal/listener"
	"github.com/byggbuild/bygg/internal/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

func buildCmd() *cobra.Command {
	var alwaysMake bool
	var checkEnabled bool
	var traceEnabled bool

	cmd := &cobra.Command{
		Use:   "build [dir]",
		Short: "build the demo action graph rooted in dir (default: .)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workDir := "."
			if len(args) == 1 {
				workDir = args[0]
			}

			e := engine.New(appConfig, appLogger)
			defer func() { _ = e.Shutdown() }()

			if traceEnabled {
				tp, err := tracing.NewProvider(cmd.Context(), "bygg")
				if err != nil {
					return fmt.Errorf("starting tracer: %w", err)
				}
				defer func() { _ = tp.Shutdown(cmd.Context()) }()
				e.SetTracer(tracing.Tracer(tp, "bygg/runner"))
			}

			entry, err := registerDemoGraph(e, workDir)
			if err != nil {
				return fmt.Errorf("registering demo graph: %w", err)
			}

			e.Subscribe(newTableListener())
			metrics := listener.NewMetricsListener(prometheus.NewRegistry())
			e.Subscribe(metrics)

			metrics.ObserveBuildStart()
			res, err := e.Build(cmd.Context(), entry, engine.BuildOptions{
				AlwaysMake:   alwaysMake,
				CheckEnabled: checkEnabled,
			})
			metrics.ObserveBuildDone()
			if err != nil {
				return err
			}

			for _, d := range res.Diagnostics {
				appLogger.Warn(d.String())
			}
			appLogger.Infof("build %s (%s): %d finished, %d failed", res.RunID, res.Status, len(res.FinishedJobs), len(res.FailedJobs))
			if len(res.FailedJobs) > 0 {
				return fmt.Errorf("build failed: %v", res.FailedJobs)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&alwaysMake, "always-make", false, "treat every action as dirty")
	cmd.Flags().BoolVar(&checkEnabled, "check", false, "run consistency checks during the build")
	cmd.Flags().BoolVar(&traceEnabled, "trace", false, "wrap job execution in OpenTelemetry spans")
	return cmd
}
