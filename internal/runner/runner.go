// Copyright (C) 2024 The Bygg Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package runner implements the parallel worker pool that executes ready
// jobs, honors work channels, collects results, and reports failure and
// restart instructions back to its caller.
//
// The source project's worker model is a pool of OS processes (fork or
// spawn). In Go, an Action.Command is a first-class function value handed
// to RegisterAction directly — it cannot be marshaled across a process
// boundary the way a Python callable can. This Runner instead uses a
// bounded pool of goroutines, concurrency capped by a
// golang.org/x/sync/semaphore.Weighted sized to max_workers, reporting
// through a results channel the driver polls — the natural Go substitute
// for the same future-based-pool, explicit-restart, work-channel-throttled
// contract.
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/byggbuild/bygg/internal/action"
	"github.com/byggbuild/bygg/internal/listener"
	"github.com/byggbuild/bygg/internal/scheduler"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

// pollInterval is how long the driver waits for any in-flight job to finish
// before re-checking the backlog and termination conditions.
const pollInterval = 100 * time.Millisecond

// Runner drives job dispatch for a single scheduler Scheduler. It owns the
// worker pool and the scheduled-jobs table for the current run; nothing
// else mutates them.
type Runner struct {
	sch        *scheduler.Scheduler
	dispatcher *listener.Dispatcher
	tracer     trace.Tracer

	backlog  []*scheduler.Job
	deferred []*scheduler.Job

	// channelOccupancy tracks, per work channel name, the set of job names
	// currently occupying that channel this run. WorkChannels are declared
	// on the Action (name, width) but their live "current_jobs" set is
	// per-run Runner state, not state carried on the Action's declaration.
	channelOccupancy map[string]map[string]bool

	finishedCount int
	totalCount    int
}

// New creates a Runner driving sch, notifying dispatcher of job and runner
// status. tracer may be nil, in which case job execution is not traced.
func New(sch *scheduler.Scheduler, dispatcher *listener.Dispatcher, tracer trace.Tracer) *Runner {
	return &Runner{
		sch:              sch,
		dispatcher:       dispatcher,
		tracer:           tracer,
		channelOccupancy: make(map[string]map[string]bool),
	}
}

// Start drives the dispatch loop until the build terminates, returning the
// jobs that caused termination: empty on clean success; otherwise the failed
// job(s), any restart-requesting job, and every backlog job that was
// reported stopped once exit was requested.
func (r *Runner) Start(ctx context.Context, maxWorkers int) ([]*scheduler.Job, error) {
	if maxWorkers < 1 {
		maxWorkers = 1
	}

	sem := semaphore.NewWeighted(int64(maxWorkers))
	results := make(chan *scheduler.Job, maxWorkers*2)

	var (
		mu            sync.Mutex
		scheduledSet  = make(map[string]bool)
		exitRequested bool
		exitReasons   []*scheduler.Job
	)

	scheduledCount := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(scheduledSet)
	}

	for {
		// 1. Replenish backlog, then drain deferred jobs back onto it.
		if !exitRequested {
			for len(r.backlog)+scheduledCount() < 2*maxWorkers {
				jobs, err := r.sch.GetReadyJobs(2 * maxWorkers)
				if err != nil {
					return nil, err
				}
				if len(jobs) == 0 {
					break
				}
				r.totalCount += len(jobs)
				r.backlog = append(r.backlog, jobs...)
			}
		}
		r.backlog = append(r.backlog, r.deferred...)
		r.deferred = nil

		// 2. Termination test.
		if scheduledCount() == 0 && len(r.backlog) == 0 &&
			(r.sch.RunStatus() == scheduler.Finished || exitRequested) {
			r.dispatcher.Drain()
			return exitReasons, nil
		}

		// 3. Dispatch.
		select {
		case <-ctx.Done():
			if !exitRequested {
				exitRequested = true
				r.dispatcher.NotifyRunner("build interrupted, waiting for in-flight jobs")
			}
		default:
		}

		// Once exit is requested — by cancellation, a failed job, or a
		// restart instruction — nothing still sitting in the backlog is
		// allowed to start; in-flight jobs (already in scheduledSet) still
		// drain normally below, but backlog jobs are reported stopped and
		// never handed to a worker.
		if exitRequested {
			for _, job := range r.backlog {
				job.Status = action.CommandStatus{Rc: 1, Message: "stopped"}
				r.notify(listener.StatusStopped, job)
				if err := r.sch.JobFinished(job); err != nil {
					return nil, err
				}
				exitReasons = append(exitReasons, job)
			}
			r.backlog = nil
		}

		var remaining []*scheduler.Job
		for _, job := range r.backlog {
			if scheduledCount() >= 2*maxWorkers {
				remaining = append(remaining, job)
				continue
			}

			if job.Action.Command == nil {
				job.Status = action.CommandStatus{Rc: 0, Message: "skipped"}
				r.notify(listener.StatusSkipped, job)
				if err := r.sch.JobFinished(job); err != nil {
					return nil, err
				}
				continue
			}

			if !r.acquireChannel(job.Action) {
				r.deferred = append(r.deferred, job)
				continue
			}

			mu.Lock()
			scheduledSet[job.Name()] = true
			mu.Unlock()

			r.notify(listener.StatusRunning, job)

			if job.Action.SchedulingType == action.InProcess {
				// Handled inline rather than through results: that channel
				// is sized for the pooled goroutines below and only ever
				// drained once per dispatch pass, so a driver-goroutine
				// send here could block on a full buffer and deadlock the
				// very goroutine meant to drain it.
				job.Status = r.runCommand(ctx, job)
				mu.Lock()
				delete(scheduledSet, job.Name())
				mu.Unlock()
				if err := r.handleCompletion(job, &exitReasons); err != nil {
					return nil, err
				}
				if job.Status.Instruction == action.RestartBuild || !job.Status.Success() {
					exitRequested = true
				}
				continue
			}

			go func(j *scheduler.Job) {
				_ = sem.Acquire(context.Background(), 1)
				defer sem.Release(1)
				j.Status = r.runCommand(ctx, j)
				results <- j
			}(job)
		}
		r.backlog = remaining

		// 4. Await any completed job, with a short poll timeout.
		select {
		case job := <-results:
			mu.Lock()
			delete(scheduledSet, job.Name())
			mu.Unlock()
			if err := r.handleCompletion(job, &exitReasons); err != nil {
				return nil, err
			}
			if job.Status.Instruction == action.RestartBuild || !job.Status.Success() {
				exitRequested = true
			}
		case <-time.After(pollInterval):
		}

		// Drain any further already-ready results without blocking, so a
		// burst of finishes in one poll window is handled promptly.
	drain:
		for {
			select {
			case job := <-results:
				mu.Lock()
				delete(scheduledSet, job.Name())
				mu.Unlock()
				if err := r.handleCompletion(job, &exitReasons); err != nil {
					return nil, err
				}
				if job.Status.Instruction == action.RestartBuild || !job.Status.Success() {
					exitRequested = true
				}
			default:
				break drain
			}
		}

		// 5. Emit progress, then deliver everything queued this iteration —
		// Notify* only enqueues, and the driver is the only safe place to
		// invoke listener callbacks.
		r.dispatcher.NotifyRunner(fmt.Sprintf("progress %d/%d", r.finishedCount, r.totalCount))
		r.dispatcher.Drain()
	}
}

func (r *Runner) handleCompletion(job *scheduler.Job, exitReasons *[]*scheduler.Job) error {
	r.releaseChannel(job.Action)

	if len(job.Action.Outputs) > 0 && job.Status.Success() {
		r.sch.ObserveOutputFileMissing(job.Name(), job.Action.Outputs)
	}

	if err := r.sch.JobFinished(job); err != nil {
		return err
	}

	r.finishedCount++
	if job.Status.Success() {
		r.notify(listener.StatusFinished, job)
	} else {
		r.notify(listener.StatusFailed, job)
		*exitReasons = append(*exitReasons, job)
	}
	if job.Status.Instruction == action.RestartBuild {
		*exitReasons = append(*exitReasons, job)
	}
	return nil
}

// runCommand executes job's command, recovering a panic into the same
// CommandStatus a process crash would have produced, and wrapping the call
// in a tracing span when a tracer is configured.
func (r *Runner) runCommand(ctx context.Context, job *scheduler.Job) (status action.CommandStatus) {
	if r.tracer != nil {
		var span trace.Span
		ctx, span = r.tracer.Start(ctx, "bygg.job", trace.WithAttributes(
			attribute.String("job.name", job.Name()),
			attribute.String("job.scheduling_type", job.Action.SchedulingType.String()),
		))
		defer func() {
			if !status.Success() {
				span.SetStatus(codes.Error, status.Message)
			}
			span.End()
		}()
	}

	defer func() {
		if rec := recover(); rec != nil {
			status = action.CommandStatus{Rc: 1, Message: "exception", Output: fmt.Sprintf("%v", rec)}
		}
	}()

	return job.Action.Command(action.Context{
		Name:         job.Name(),
		Inputs:       job.Action.Inputs,
		Outputs:      job.Action.Outputs,
		Dependencies: job.Action.Dependencies,
	})
}

// acquireChannel attempts to occupy a's work channel, returning false if it
// is currently full (the caller should defer the job). An action with no
// work channel always succeeds.
func (r *Runner) acquireChannel(a *action.Action) bool {
	if a.WorkChannel == nil {
		return true
	}
	occ, ok := r.channelOccupancy[a.WorkChannel.Name]
	if !ok {
		occ = make(map[string]bool)
		r.channelOccupancy[a.WorkChannel.Name] = occ
	}
	if len(occ) >= a.WorkChannel.Width {
		return false
	}
	occ[a.Name] = true
	return true
}

func (r *Runner) releaseChannel(a *action.Action) {
	if a.WorkChannel == nil {
		return
	}
	if occ, ok := r.channelOccupancy[a.WorkChannel.Name]; ok {
		delete(occ, a.Name)
	}
}

func (r *Runner) notify(status listener.Status, job *scheduler.Job) {
	r.dispatcher.NotifyJob(listener.JobEvent{
		Status:   status,
		JobName:  job.Name(),
		Finished: r.finishedCount,
		Total:    r.totalCount,
	})
}
