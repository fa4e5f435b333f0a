// Copyright (C) 2024 The Bygg Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package action declares the Action type and its in-memory registry. An
// Action is a named unit of work: a set of declared inputs and outputs, a
// set of dependencies on other actions, and an optional command to run.
// Actions are read-only once registered; the Scheduler and Runner packages
// read them by name through the Registry, never mutate them, and never hold
// a back-reference from an Action to its registry.
package action

import "sort"

// SchedulingType selects where a Command runs.
type SchedulingType int

const (
	// InProcess runs the command synchronously on the driver goroutine.
	// Intended for trivial work that would cost more to dispatch to the
	// worker pool than to simply run; MUST NOT be used for long-running
	// commands, since it blocks the entire build while it runs.
	InProcess SchedulingType = iota
	// ProcessPool dispatches the command to the Runner's worker pool.
	ProcessPool
)

func (t SchedulingType) String() string {
	if t == InProcess {
		return "in_process"
	}
	return "process_pool"
}

// RunnerInstruction is an out-of-band signal a Command can attach to a
// successful CommandStatus to influence the Runner's control flow.
type RunnerInstruction int

const (
	// NoInstruction is the zero value: no special handling.
	NoInstruction RunnerInstruction = iota
	// RestartBuild aborts the current build pass and asks the caller to
	// re-enter the Scheduler from scratch. Only meaningful on a
	// CommandStatus with Rc == 0.
	RestartBuild
	// ExitJobFailed forces the job to be treated as failed regardless of
	// Rc, stopping backlog replenishment the same way a non-zero Rc would.
	ExitJobFailed
)

// CommandStatus is the result of running an Action's Command.
type CommandStatus struct {
	// Rc is the command's return code; 0 is success.
	Rc int
	// Message is a short human-readable summary, set on failure or by
	// special-cased statuses like "skipped".
	Message string
	// Output is the command's captured output, if any, shown to the user
	// when a build fails.
	Output string
	// Instruction carries an out-of-band signal to the Runner.
	Instruction RunnerInstruction
}

// Success reports whether the status represents a successful run not
// overridden by ExitJobFailed.
func (s CommandStatus) Success() bool {
	return s.Rc == 0 && s.Instruction != ExitJobFailed
}

// Context is passed to a Command when it runs.
type Context struct {
	Name         string
	Message      string
	Inputs       []string
	Outputs      []string
	Dependencies []string
}

// Command is the callable an Action runs. It MUST be a pure function of its
// Context: no captured mutable state, since it may run concurrently with
// other commands on the worker pool. Panics are recovered by the Runner and
// converted to CommandStatus{Rc: 1, Message: "exception"}.
type Command func(ctx Context) CommandStatus

// Action is a node of work: its attributes are fixed at registration time
// and never mutated afterward.
type Action struct {
	Name         string
	Inputs       []string
	Outputs      []string
	Dependencies []string

	// DynamicDependency, if set, is evaluated once per dirtiness check; its
	// return value (or the ok=false absent case) participates in the
	// action's digest the same way its declared Inputs do.
	DynamicDependency func() (string, bool)

	Command        Command
	SchedulingType SchedulingType
	WorkChannel    *WorkChannel
	IsEntrypoint   bool
	Environment    string

	// dependencyFiles is Inputs ∪ ⋃ outputs(d) for d in Dependencies,
	// computed once at graph-preparation time by Registry.PrepareDependencyFiles.
	dependencyFiles []string
}

// DependencyFiles returns the derived input set: the Action's own Inputs
// plus the Outputs of every direct dependency. Callers must have run
// Registry.PrepareDependencyFiles first; until then this returns nil.
func (a *Action) DependencyFiles() []string {
	return a.dependencyFiles
}

// IsPhony reports whether the action has no declared inputs, outputs, or
// dynamic dependency — such actions are always dirty.
func (a *Action) IsPhony() bool {
	return len(a.Inputs) == 0 && len(a.Outputs) == 0 && a.DynamicDependency == nil
}

// sortedCopy returns a sorted copy of ss, leaving ss untouched.
func sortedCopy(ss []string) []string {
	out := make([]string, len(ss))
	copy(out, ss)
	sort.Strings(out)
	return out
}

// WorkChannel is the declaration of a named, fixed-width semaphore shared by
// every Action tagged with the same WorkChannel reference. WorkChannel
// values only carry the declared Name and Width; the set of jobs currently
// occupying the channel is per-run state owned by the Runner — channels
// survive the current run only — not by this struct.
type WorkChannel struct {
	Name  string
	Width int
}
