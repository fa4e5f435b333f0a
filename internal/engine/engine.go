// Copyright (C) 2024 The Bygg Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package engine wires the Registry, DAG, Scheduler, Runner, Cache, checks,
// and listeners behind a single in-process API.
// It owns the one Scheduler and Cache Store for a project's lifetime, and
// drives the bounded restart-build protocol, re-invoking the scheduler
// rather than leaving that to the Runner itself.
package engine

import (
	"context"
	"fmt"
	"os"

	"github.com/byggbuild/bygg/internal/action"
	"github.com/byggbuild/bygg/internal/cache"
	"github.com/byggbuild/bygg/internal/check"
	"github.com/byggbuild/bygg/internal/config"
	"github.com/byggbuild/bygg/internal/digest"
	"github.com/byggbuild/bygg/internal/listener"
	"github.com/byggbuild/bygg/internal/logger"
	"github.com/byggbuild/bygg/internal/runner"
	"github.com/byggbuild/bygg/internal/scheduler"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxRestarts bounds how many times a single Build call re-enters
// the scheduler on a restart_build instruction before giving up with
// scheduler.ErrRestartsExhausted.
const DefaultMaxRestarts = 17

// BuildOptions configures a single Build call.
type BuildOptions struct {
	// AlwaysMake forces every reachable action dirty, bypassing the cache.
	AlwaysMake bool
	// CheckEnabled turns on the same_output_files and check_inputs_outputs
	// consistency checks for this run.
	CheckEnabled bool
	// MaxWorkers bounds Runner concurrency; 0 uses the Engine's configured
	// default.
	MaxWorkers int
	// MaxRestarts bounds the restart_build loop; 0 uses DefaultMaxRestarts.
	MaxRestarts int
}

// Result summarizes a finished Build call.
type Result struct {
	RunID        string
	Status       scheduler.Status
	FinishedJobs []string
	FailedJobs   []string
	Diagnostics  []check.Diagnostic
	Restarts     int
}

// Engine is the top-level façade a host program drives: register actions,
// run builds, clean outputs, subscribe listeners.
type Engine struct {
	cfg    *config.Config
	logger logger.Logger

	registry   *action.Registry
	store      cache.Store
	memo       *digest.Memo
	sch        *scheduler.Scheduler
	dispatcher *listener.Dispatcher
	tracer     trace.Tracer
}

// New creates an Engine from cfg, constructing whichever Cache backend cfg
// selects (Redis if cfg.RedisAddr is set, otherwise a file at
// cfg.CachePath) and an in-process digest Memo.
func New(cfg *config.Config, lg logger.Logger) *Engine {
	if lg == nil {
		lg = logger.NewLogger()
	}

	store := newStore(cfg)
	memo := digest.NewMemo(0)
	registry := action.NewRegistry()

	return &Engine{
		cfg:        cfg,
		logger:     lg,
		registry:   registry,
		store:      store,
		memo:       memo,
		sch:        scheduler.New(registry, store, memo),
		dispatcher: listener.NewDispatcher(),
	}
}

func newStore(cfg *config.Config) cache.Store {
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return cache.NewRedisStore(client, "bygg:cache:"+cfg.CacheDir)
	}
	return cache.NewFileStore(cfg.CachePath)
}

// SetTracer attaches an OpenTelemetry tracer used by every subsequent
// Build's Runner; nil (the default) disables tracing.
func (e *Engine) SetTracer(t trace.Tracer) {
	e.tracer = t
}

// Subscribe adds l to the set of listeners notified during every
// subsequent Build.
func (e *Engine) Subscribe(l listener.StatusListener) {
	e.dispatcher.Subscribe(l)
}

// RegisterAction declares a new action. The in-process equivalent of
// any declarative action-defining configuration layered on top.
func (e *Engine) RegisterAction(opts action.Options) (*action.Action, error) {
	return e.registry.Register(opts)
}

// RegisterActionSet expands a list of (input, output) pairs into one
// per-pair action plus a phony aggregator depending on all of them. A thin
// pass-through to action.Registry.ActionSet for callers building a
// file-to-file pipeline without declaring each pair by hand.
func (e *Engine) RegisterActionSet(opts action.SetOptions) (*action.Action, []*action.Action, error) {
	return e.registry.ActionSet(opts)
}

// Build runs entry's reachable graph to completion, driving the bounded
// restart-build protocol when a Command signals RestartBuild. The Cache is
// always flushed on the way out, success or failure.
func (e *Engine) Build(ctx context.Context, entry string, opts BuildOptions) (Result, error) {
	maxWorkers := opts.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = e.cfg.MaxWorkers
	}
	maxRestarts := opts.MaxRestarts
	if maxRestarts <= 0 {
		maxRestarts = DefaultMaxRestarts
	}

	runID := uuid.NewString()
	e.logger.Infof("build %s: starting at %s (max_workers=%d)", runID, entry, maxWorkers)

	defer func() {
		if err := e.sch.Shutdown(); err != nil {
			e.logger.Warnf("build %s: cache flush failed: %v", runID, err)
		}
	}()

	restarts := 0
	for {
		if err := e.sch.StartRun(entry, opts.AlwaysMake, opts.CheckEnabled); err != nil {
			return Result{}, fmt.Errorf("engine: starting run: %w", err)
		}

		r := runner.New(e.sch, e.dispatcher, e.tracer)
		exitReasons, err := r.Start(ctx, maxWorkers)
		if err != nil {
			return Result{}, fmt.Errorf("engine: running build: %w", err)
		}

		restarted := false
		for _, job := range exitReasons {
			if job.Status.Instruction == action.RestartBuild {
				restarted = true
			}
		}

		if !restarted {
			return e.result(runID, restarts), nil
		}

		restarts++
		if restarts > maxRestarts {
			return Result{}, fmt.Errorf("engine: %w", scheduler.ErrRestartsExhausted)
		}
		e.logger.Infof("build %s: restart_build requested, re-entering scheduler (attempt %d)", runID, restarts)
	}
}

func (e *Engine) result(runID string, restarts int) Result {
	finished := e.sch.FinishedJobs()
	failed := e.sch.FailedJobs()

	res := Result{
		RunID:       runID,
		Status:      e.sch.RunStatus(),
		Diagnostics: e.sch.Diagnostics(),
		Restarts:    restarts,
	}
	for name := range finished {
		res.FinishedJobs = append(res.FinishedJobs, name)
	}
	for name := range failed {
		res.FailedJobs = append(res.FailedJobs, name)
	}
	if e.sch.CheckFailed() && res.Status != scheduler.Failed {
		res.Status = scheduler.Failed
	}
	return res
}

// Clean walks entry's reachable sub-graph and removes every declared
// output file, ignoring ones already missing; digests are left untouched
// in the cache, which is saved once at the end.
func (e *Engine) Clean(ctx context.Context, entry string) error {
	if err := e.sch.PrepareRun(entry, false); err != nil {
		return fmt.Errorf("engine: preparing clean: %w", err)
	}
	if err := e.store.Load(); err != nil {
		return fmt.Errorf("engine: loading cache: %w", err)
	}

	for _, name := range e.sch.Remaining() {
		a, err := e.registry.MustGet(name)
		if err != nil {
			return fmt.Errorf("engine: %w", err)
		}
		for _, out := range a.Outputs {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if err := os.Remove(out); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("engine: removing %s: %w", out, err)
			}
		}
	}

	return e.store.Save()
}

// Shutdown releases resources held by the Engine's Cache Store. Callers
// that are done with the Engine entirely (not just between builds) should
// call this once.
func (e *Engine) Shutdown() error {
	return e.store.Close()
}
