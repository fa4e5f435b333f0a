package scheduler

import (
	"errors"

	"github.com/byggbuild/bygg/internal/action"
	"github.com/byggbuild/bygg/internal/cache"
	"github.com/byggbuild/bygg/internal/check"
	"github.com/byggbuild/bygg/internal/dag"
	"github.com/byggbuild/bygg/internal/digest"
)

// ErrRestartsExhausted is returned by the caller driving the restart-build
// protocol when a build keeps requesting restarts past a
// bounded retry count, guarding against a misbehaving Command looping
// forever.
var ErrRestartsExhausted = errors.New("scheduler: restart_build requested too many times")

// Status is the coarse state of a single build run.
type Status int

const (
	NotStarted Status = iota
	Running
	Finished
	Failed
)

func (s Status) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Running:
		return "running"
	case Finished:
		return "finished"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Scheduler drives a single build: it owns the run's DAG, the per-run job
// tables, and the Cache. It never touches the filesystem directly except
// through Digest; execution itself is the Runner's job.
type Scheduler struct {
	registry *action.Registry
	store    cache.Store
	memo     *digest.Memo

	graph      *dag.Graph
	dispatched map[string]bool
	failedJobs map[string]*Job
	finished   map[string]*Job

	alwaysMake  bool
	checkList   *check.List
	crossLevel  *check.CrossLevelChecker
	checkOn     bool

	entry   string
	started bool
}

// New creates a Scheduler over registry, persisting digests through store.
// memo may be nil, in which case every file digest hits the filesystem
// directly.
func New(registry *action.Registry, store cache.Store, memo *digest.Memo) *Scheduler {
	return &Scheduler{
		registry: registry,
		store:    store,
		memo:     memo,
	}
}

// PrepareRun resets all per-run state, builds the DAG rooted at entry,
// populates every reachable action's DependencyFiles, and — if checkEnabled
// — runs the same_output_files check and arms the cross-level checker for
// the rest of the run.
func (s *Scheduler) PrepareRun(entry string, checkEnabled bool) error {
	graph, err := dag.BuildFrom(s.registry, entry)
	if err != nil {
		return err
	}

	s.graph = graph
	s.dispatched = make(map[string]bool)
	s.failedJobs = make(map[string]*Job)
	s.finished = make(map[string]*Job)
	s.entry = entry
	s.checkOn = checkEnabled

	if err := s.registry.PrepareDependencyFiles(entry); err != nil {
		return err
	}

	if checkEnabled {
		s.checkList = check.NewList()
		s.crossLevel = check.NewCrossLevelChecker(s.checkList)
		check.CheckSameOutputFiles(s.registry, graph.All(), s.checkList)
	} else {
		s.checkList = check.NewList()
		s.crossLevel = nil
	}
	return nil
}

// StartRun prepares the run and loads the Cache, marking the run started.
func (s *Scheduler) StartRun(entry string, alwaysMake bool, checkEnabled bool) error {
	if err := s.PrepareRun(entry, checkEnabled); err != nil {
		return err
	}
	if err := s.store.Load(); err != nil {
		return err
	}
	s.alwaysMake = alwaysMake
	s.started = true
	return nil
}

// GetReadyJobs drives the dirty/clean decision for every currently-ready
// node, silently skipping clean ones (cascading through their dependents in
// the same call) and returning Job wrappers for the dirty ones, up to
// batch jobs. batch <= 0 means unlimited.
func (s *Scheduler) GetReadyJobs(batch int) ([]*Job, error) {
	var result []*Job

	for {
		candidates := s.graph.Ready()
		progressed := false

		for _, name := range candidates {
			if s.dispatched[name] {
				continue
			}

			a, err := s.registry.MustGet(name)
			if err != nil {
				return nil, err
			}

			dr, err := evaluateDirty(a, s.store, s.memo, s.alwaysMake)
			if err != nil {
				return nil, err
			}

			if !dr.dirty {
				s.graph.Remove(name)
				progressed = true
				continue
			}

			if s.checkOn && s.crossLevel != nil {
				s.crossLevel.Observe(name, a.Inputs, a.DependencyFiles(), a.Outputs)
			}

			job := &Job{Action: a}
			s.dispatched[name] = true
			result = append(result, job)
			progressed = true

			if batch > 0 && len(result) >= batch {
				return result, nil
			}
		}

		if !progressed {
			break
		}
	}

	return result, nil
}

// JobFinished post-processes a completed Job: on success it removes the
// action from the graph and records fresh digests; on failure it leaves the
// action in the graph (so remaining work is still visible) and clears any
// stored digest so a stale success is never reused.
//
// A dynamic dependency is evaluated here, not carried over from whichever
// dirtiness-check path happened to run: evaluateDirty can return dirty
// before ever reaching its dynamic-dependency step (no cache entry yet,
// always_make, a changed output), and relying on a value only ever
// populated along one path left first-successful-builds with no recorded
// dynamic digest, forcing every following unchanged build to re-run.
func (s *Scheduler) JobFinished(job *Job) error {
	name := job.Name()
	delete(s.dispatched, name)

	if !job.Status.Success() {
		s.store.Remove(name)
		s.failedJobs[name] = job
		return nil
	}

	outDigest, _, err := digest.DependencyDigest(s.memo, job.Action.Outputs)
	if err != nil {
		return err
	}
	inDigest, _, err := digest.DependencyDigest(s.memo, job.Action.DependencyFiles())
	if err != nil {
		return err
	}

	entry := cache.Entry{InputsDigest: inDigest, OutputsDigest: outDigest}
	if job.Action.DynamicDependency != nil {
		if value, present := job.Action.DynamicDependency(); present {
			entry.HasDynamic = true
			entry.DynamicDigest = digest.DigestOfList([]string{value})
		}
	}
	s.store.Set(name, entry)

	s.graph.Remove(name)
	s.finished[name] = job
	return nil
}

// RunStatus reports the run's coarse state.
func (s *Scheduler) RunStatus() Status {
	if !s.started {
		return NotStarted
	}
	if len(s.failedJobs) > 0 {
		return Failed
	}
	if s.graph.Len() == 0 && len(s.dispatched) == 0 {
		return Finished
	}
	return Running
}

// Shutdown flushes the Cache. Callers MUST invoke this on every exit path —
// success, failure, or interrupt.
func (s *Scheduler) Shutdown() error {
	return s.store.Save()
}

// FailedJobs returns the jobs that finished with a non-success status this
// run.
func (s *Scheduler) FailedJobs() map[string]*Job {
	return s.failedJobs
}

// FinishedJobs returns the jobs that completed successfully this run.
func (s *Scheduler) FinishedJobs() map[string]*Job {
	return s.finished
}

// Remaining enumerates the action names still in the graph (not yet
// finished or skipped).
func (s *Scheduler) Remaining() []string {
	return s.graph.All()
}

// Diagnostics returns every check diagnostic recorded so far this run.
func (s *Scheduler) Diagnostics() []check.Diagnostic {
	if s.checkList == nil {
		return nil
	}
	return s.checkList.All()
}

// CheckFailed reports whether any recorded diagnostic has error severity —
// the condition under which checks alone fail an otherwise successful
// build.
func (s *Scheduler) CheckFailed() bool {
	return s.checkList != nil && s.checkList.HasError()
}

// ObserveOutputFileMissing lets the Runner feed the output_file_missing
// check into the same diagnostic list the Scheduler owns.
func (s *Scheduler) ObserveOutputFileMissing(name string, outputs []string) {
	if s.checkList == nil {
		return
	}
	check.CheckOutputFileMissing(name, outputs, s.checkList)
}
