// Copyright (C) 2024 The Bygg Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"os"
	"sync"

	"github.com/byggbuild/bygg/internal/listener"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
)

// tableListener renders each job's terminal status as a row in a live
// table, colorized by outcome. It implements listener.StatusListener.
type tableListener struct {
	mu  sync.Mutex
	t   table.Writer
	row int
}

func newTableListener() *tableListener {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"#", "Job", "Status"})
	return &tableListener{t: t}
}

func (l *tableListener) OnJobStatus(event listener.JobEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch event.Status {
	case listener.StatusFinished, listener.StatusFailed, listener.StatusSkipped, listener.StatusStopped:
	default:
		return
	}

	l.row++
	l.t.AppendRow(table.Row{l.row, event.JobName, colorize(event.Status)})
	l.t.Render()
}

func (l *tableListener) OnRunnerStatus(message string) {
	fmt.Println(color.HiBlackString(message))
}

func colorize(status listener.Status) string {
	switch status {
	case listener.StatusFinished:
		return color.GreenString(string(status))
	case listener.StatusFailed:
		return color.RedString(string(status))
	case listener.StatusSkipped:
		return color.YellowString(string(status))
	case listener.StatusStopped:
		return color.HiBlackString(string(status))
	default:
		return string(status)
	}
}

var _ listener.StatusListener = (*tableListener)(nil)
