// Copyright (C) 2024 The Bygg Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"github.com/byggbuild/bygg/internal/config"
	"github.com/byggbuild/bygg/internal/logger"
)

func buildLogger(cfg *config.Config, quiet bool) logger.Logger {
	var opts []logger.Option
	if cfg.Debug {
		opts = append(opts, logger.WithDebug())
	}
	if cfg.LogFormat != "" {
		opts = append(opts, logger.WithFormat(cfg.LogFormat))
	}
	if quiet {
		opts = append(opts, logger.WithQuiet())
	}
	return logger.NewLogger(opts...)
}
