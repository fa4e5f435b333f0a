// Copyright (C) 2024 The Bygg Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler drives a single build: it builds the run's dependency
// graph, decides which actions are dirty against the persisted cache,
// offers ready jobs to a Runner, and records consistency-check diagnostics
// along the way.
package scheduler

import "github.com/byggbuild/bygg/internal/action"

// Job is a per-run wrapper around an Action, augmented with its final
// CommandStatus once it has run. Jobs are ephemeral; Actions are
// registry-lived.
type Job struct {
	Action *action.Action
	Status action.CommandStatus
}

// Name is a convenience accessor for Job.Action.Name.
func (j *Job) Name() string {
	return j.Action.Name
}
