package action

import (
	"fmt"
	"sort"
)

// ErrDuplicateName is returned by Register when an Action name is already
// registered.
type ErrDuplicateName struct{ Name string }

func (e *ErrDuplicateName) Error() string {
	return fmt.Sprintf("action: duplicate name %q", e.Name)
}

// ErrNotFound is returned when a named action doesn't exist in the
// registry — raised during graph construction.
type ErrNotFound struct{ Name string }

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("action: not found: %q", e.Name)
}

// Registry is the single in-memory table of declared actions. It is the
// exclusive owner of every Action it holds; Actions never reference the
// Registry back.
type Registry struct {
	byName map[string]*Action
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Action)}
}

// Options configures a new Action for Register.
type Options struct {
	Name              string
	Inputs            []string
	Outputs           []string
	Dependencies      []string
	DynamicDependency func() (string, bool)
	Command           Command
	SchedulingType    SchedulingType
	WorkChannel       *WorkChannel
	IsEntrypoint      bool
	Environment       string
}

// Register declares a new Action. The name must be unique within the
// registry.
func (r *Registry) Register(opts Options) (*Action, error) {
	if _, exists := r.byName[opts.Name]; exists {
		return nil, &ErrDuplicateName{Name: opts.Name}
	}
	a := &Action{
		Name:              opts.Name,
		Inputs:            sortedCopy(opts.Inputs),
		Outputs:           sortedCopy(opts.Outputs),
		Dependencies:      sortedCopy(opts.Dependencies),
		DynamicDependency: opts.DynamicDependency,
		Command:           opts.Command,
		SchedulingType:    opts.SchedulingType,
		WorkChannel:       opts.WorkChannel,
		IsEntrypoint:      opts.IsEntrypoint,
		Environment:       opts.Environment,
	}
	r.byName[a.Name] = a
	return a, nil
}

// Get looks up an Action by name.
func (r *Registry) Get(name string) (*Action, bool) {
	a, ok := r.byName[name]
	return a, ok
}

// MustGet looks up an Action by name, returning ErrNotFound on a miss.
func (r *Registry) MustGet(name string) (*Action, error) {
	a, ok := r.byName[name]
	if !ok {
		return nil, &ErrNotFound{Name: name}
	}
	return a, nil
}

// All returns every registered action name, sorted for determinism.
func (r *Registry) All() []string {
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Entrypoints returns the names of every action registered with
// IsEntrypoint set, sorted for determinism.
func (r *Registry) Entrypoints() []string {
	var names []string
	for n, a := range r.byName {
		if a.IsEntrypoint {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

// PrepareDependencyFiles computes DependencyFiles for every action reachable
// from entry: Inputs ∪ ⋃ outputs(d) for d in Dependencies. It must be called
// after all relevant actions are registered and before a build consults
// DependencyFiles.
func (r *Registry) PrepareDependencyFiles(entry string) error {
	visited := make(map[string]bool)
	var visit func(name string) error
	visit = func(name string) error {
		if visited[name] {
			return nil
		}
		visited[name] = true

		a, err := r.MustGet(name)
		if err != nil {
			return err
		}

		seen := make(map[string]bool, len(a.Inputs))
		files := make([]string, 0, len(a.Inputs))
		for _, in := range a.Inputs {
			if !seen[in] {
				seen[in] = true
				files = append(files, in)
			}
		}
		for _, depName := range a.Dependencies {
			dep, err := r.MustGet(depName)
			if err != nil {
				return err
			}
			for _, out := range dep.Outputs {
				if !seen[out] {
					seen[out] = true
					files = append(files, out)
				}
			}
			if err := visit(depName); err != nil {
				return err
			}
		}
		sort.Strings(files)
		a.dependencyFiles = files
		return nil
	}
	return visit(entry)
}

// IOPair is one (input, output) mapping expanded by ActionSet into its own
// Action.
type IOPair struct {
	Input  string
	Output string
}

// SetOptions configures ActionSet.
type SetOptions struct {
	// AggregatorName is the name of the synthetic action depending on every
	// expanded per-pair action.
	AggregatorName string
	Pairs          []IOPair
	// Command builds the per-pair Command given the pair being expanded.
	Command        func(pair IOPair) Command
	SchedulingType  SchedulingType
	WorkChannel     *WorkChannel
	Environment     string
	IsEntrypoint    bool
	NamePrefix      string
}

// ActionSet expands a list of (input, output) pairs into one Action per
// pair plus a phony aggregator Action depending on all of them; the
// aggregator inherits opts.IsEntrypoint.
func (r *Registry) ActionSet(opts SetOptions) (*Action, []*Action, error) {
	members := make([]*Action, 0, len(opts.Pairs))
	depNames := make([]string, 0, len(opts.Pairs))

	for i, pair := range opts.Pairs {
		name := fmt.Sprintf("%s#%d", opts.NamePrefix, i)
		var cmd Command
		if opts.Command != nil {
			cmd = opts.Command(pair)
		}
		a, err := r.Register(Options{
			Name:           name,
			Inputs:         []string{pair.Input},
			Outputs:        []string{pair.Output},
			Command:        cmd,
			SchedulingType: opts.SchedulingType,
			WorkChannel:    opts.WorkChannel,
			Environment:    opts.Environment,
		})
		if err != nil {
			return nil, nil, err
		}
		members = append(members, a)
		depNames = append(depNames, name)
	}

	aggregator, err := r.Register(Options{
		Name:         opts.AggregatorName,
		Dependencies: depNames,
		IsEntrypoint: opts.IsEntrypoint,
		Environment:  opts.Environment,
	})
	if err != nil {
		return nil, nil, err
	}
	return aggregator, members, nil
}
