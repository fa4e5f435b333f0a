// Copyright (C) 2024 The Bygg Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"

	"github.com/byggbuild/bygg/internal/engine"
	"github.com/spf13/cobra"
)

func cleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean [dir]",
		Short: "remove the demo action graph's declared outputs rooted in dir (default: .)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workDir := "."
			if len(args) == 1 {
				workDir = args[0]
			}

			e := engine.New(appConfig, appLogger)
			defer func() { _ = e.Shutdown() }()

			entry, err := registerDemoGraph(e, workDir)
			if err != nil {
				return fmt.Errorf("registering demo graph: %w", err)
			}

			if err := e.Clean(cmd.Context(), entry); err != nil {
				return err
			}
			appLogger.Info("clean complete")
			return nil
		},
	}
}
