package check

import (
	"os"
	"sort"

	"github.com/byggbuild/bygg/internal/action"
)

// CheckSameOutputFiles implements the same_output_files rule: at
// prepare_run, any file declared as an output by two or more actions is an
// error. names is the set of action names reachable from the entrypoint.
func CheckSameOutputFiles(reg *action.Registry, names []string, list *List) {
	producers := make(map[string][]string)
	for _, name := range names {
		a, err := reg.MustGet(name)
		if err != nil {
			continue
		}
		for _, out := range a.Outputs {
			producers[out] = append(producers[out], name)
		}
	}

	var files []string
	for f := range producers {
		files = append(files, f)
	}
	sort.Strings(files)

	for _, f := range files {
		owners := producers[f]
		if len(owners) < 2 {
			continue
		}
		sort.Strings(owners)
		for _, name := range owners {
			list.Add(Diagnostic{
				Rule:     RuleSameOutputFiles,
				Action:   name,
				Text:     "output file " + f + " is also produced by another action",
				Severity: SeverityError,
			})
		}
	}
}

// CrossLevelChecker implements the check_inputs_outputs rule. As ready jobs
// are emitted, the Scheduler feeds each job's inputs and dependency files
// into Observe; if a later job's declared outputs intersect the accumulated
// set, a later action's output is consumed as an earlier action's input —
// an ordering violation reported as an error.
type CrossLevelChecker struct {
	seen map[string]struct{}
	list *List
}

func NewCrossLevelChecker(list *List) *CrossLevelChecker {
	return &CrossLevelChecker{seen: make(map[string]struct{}), list: list}
}

// Observe records the given job's outputs against prior accumulated
// inputs/dependency-files, reports violations, then folds the job's own
// inputs and dependency files into the accumulated set.
func (c *CrossLevelChecker) Observe(name string, inputs, dependencyFiles, outputs []string) {
	for _, out := range outputs {
		if _, ok := c.seen[out]; ok {
			c.list.Add(Diagnostic{
				Rule:     RuleCheckInputsOutputs,
				Action:   name,
				Text:     "output file " + out + " was already consumed as an input by an earlier action",
				Severity: SeverityError,
			})
		}
	}
	for _, in := range inputs {
		c.seen[in] = struct{}{}
	}
	for _, f := range dependencyFiles {
		c.seen[f] = struct{}{}
	}
}

// CheckOutputFileMissing implements the output_file_missing rule: performed
// by the Runner after a successful job, verifying every declared output
// exists on disk.
func CheckOutputFileMissing(name string, outputs []string, list *List) {
	for _, out := range outputs {
		if _, err := os.Stat(out); err != nil {
			list.Add(Diagnostic{
				Rule:     RuleOutputFileMissing,
				Action:   name,
				Text:     "declared output " + out + " does not exist after the job finished",
				Severity: SeverityError,
			})
		}
	}
}
