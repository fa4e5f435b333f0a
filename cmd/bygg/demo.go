// Copyright (C) 2024 The Bygg Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/byggbuild/bygg/internal/action"
	"github.com/byggbuild/bygg/internal/engine"
)

// demoEntrypoint is the aggregator action name registerDemoGraph builds.
const demoEntrypoint = "all"

// demoSources are seeded into workDir/src on first run, if not already
// present, so `bygg build` has something to chew on out of the box.
var demoSources = map[string]string{
	"greeting.txt": "hello, bygg\n",
	"notes.txt":    "build once, cache forever\n",
}

// registerDemoGraph declares an illustrative pipeline: each file under
// workDir/src is "compiled" (upper-cased) into workDir/out, then an
// aggregator action named demoEntrypoint depends on every compiled output.
// It carries no behavior the engine depends on — it exists purely so the
// CLI has a graph to build and clean.
func registerDemoGraph(e *engine.Engine, workDir string) (string, error) {
	srcDir := filepath.Join(workDir, "src")
	outDir := filepath.Join(workDir, "out")
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		return "", err
	}

	for name, content := range demoSources {
		path := filepath.Join(srcDir, name)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return "", err
			}
		}
	}

	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return "", err
	}

	var pairs []action.IOPair
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		pairs = append(pairs, action.IOPair{
			Input:  filepath.Join(srcDir, entry.Name()),
			Output: filepath.Join(outDir, entry.Name()),
		})
	}

	_, _, err = e.RegisterActionSet(action.SetOptions{
		AggregatorName: demoEntrypoint,
		NamePrefix:     "compile",
		Pairs:          pairs,
		SchedulingType: action.ProcessPool,
		IsEntrypoint:   true,
		Command: func(pair action.IOPair) action.Command {
			return func(ctx action.Context) action.CommandStatus {
				b, err := os.ReadFile(pair.Input)
				if err != nil {
					return action.CommandStatus{Rc: 1, Message: err.Error()}
				}
				if err := os.MkdirAll(filepath.Dir(pair.Output), 0o755); err != nil {
					return action.CommandStatus{Rc: 1, Message: err.Error()}
				}
				if err := os.WriteFile(pair.Output, []byte(strings.ToUpper(string(b))), 0o644); err != nil {
					return action.CommandStatus{Rc: 1, Message: err.Error()}
				}
				return action.CommandStatus{Rc: 0, Message: fmt.Sprintf("compiled %s", pair.Input)}
			}
		},
	})
	if err != nil {
		return "", err
	}

	return demoEntrypoint, nil
}
