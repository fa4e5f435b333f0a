package scheduler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/byggbuild/bygg/internal/action"
	"github.com/byggbuild/bygg/internal/cache"
	"github.com/byggbuild/bygg/internal/digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func ok() action.CommandStatus { return action.CommandStatus{Rc: 0} }

func TestLinearChainOrder(t *testing.T) {
	dir := t.TempDir()
	reg := action.NewRegistry()

	var order []string
	mk := func(name string, deps []string) {
		_, err := reg.Register(action.Options{
			Name:         name,
			Dependencies: deps,
			Command: func(ctx action.Context) action.CommandStatus {
				order = append(order, ctx.Name)
				return ok()
			},
		})
		require.NoError(t, err)
	}
	mk("d", nil)
	mk("c", []string{"d"})
	mk("b", []string{"c"})
	mk("a", []string{"b"})

	store := cache.NewFileStore(filepath.Join(dir, "cache.db"))
	sch := New(reg, store, digest.NewMemo(64))
	require.NoError(t, sch.StartRun("a", false, false))

	for sch.RunStatus() != Finished && sch.RunStatus() != Failed {
		jobs, err := sch.GetReadyJobs(0)
		require.NoError(t, err)
		if len(jobs) == 0 {
			break
		}
		for _, j := range jobs {
			j.Status = j.Action.Command(action.Context{Name: j.Name()})
			require.NoError(t, sch.JobFinished(j))
		}
	}

	assert.Equal(t, Finished, sch.RunStatus())
	assert.Equal(t, []string{"d", "c", "b", "a"}, order)
	assert.Len(t, sch.FinishedJobs(), 4)
}

func TestDiamondAllFourFinish(t *testing.T) {
	dir := t.TempDir()
	reg := action.NewRegistry()
	mk := func(name string, deps []string) {
		_, err := reg.Register(action.Options{Name: name, Dependencies: deps, Command: func(action.Context) action.CommandStatus { return ok() }})
		require.NoError(t, err)
	}
	mk("d", nil)
	mk("b", []string{"d"})
	mk("c", []string{"d"})
	mk("a", []string{"b", "c"})

	store := cache.NewFileStore(filepath.Join(dir, "cache.db"))
	sch := New(reg, store, nil)
	require.NoError(t, sch.StartRun("a", false, false))

	for sch.RunStatus() == Running || sch.RunStatus() == NotStarted {
		jobs, err := sch.GetReadyJobs(0)
		require.NoError(t, err)
		if len(jobs) == 0 {
			if sch.RunStatus() == Finished {
				break
			}
			continue
		}
		for _, j := range jobs {
			j.Status = ok()
			require.NoError(t, sch.JobFinished(j))
		}
	}

	assert.Equal(t, Finished, sch.RunStatus())
	assert.Len(t, sch.FinishedJobs(), 4)
}

func TestFailingSiblingStopsParent(t *testing.T) {
	dir := t.TempDir()
	reg := action.NewRegistry()
	mk := func(name string, deps []string, status action.CommandStatus) {
		_, err := reg.Register(action.Options{Name: name, Dependencies: deps, Command: func(action.Context) action.CommandStatus { return status }})
		require.NoError(t, err)
	}
	mk("d", nil, ok())
	mk("b", []string{"d"}, ok())
	mk("c", []string{"d"}, action.CommandStatus{Rc: 1})
	mk("a", []string{"b", "c"}, ok())

	store := cache.NewFileStore(filepath.Join(dir, "cache.db"))
	sch := New(reg, store, nil)
	require.NoError(t, sch.StartRun("a", false, false))

	ran := map[string]bool{}
	for i := 0; i < 10; i++ {
		jobs, err := sch.GetReadyJobs(0)
		require.NoError(t, err)
		if len(jobs) == 0 {
			break
		}
		for _, j := range jobs {
			j.Status = j.Action.Command(action.Context{})
			ran[j.Name()] = true
			require.NoError(t, sch.JobFinished(j))
		}
		if sch.RunStatus() == Failed {
			break
		}
	}

	assert.Equal(t, Failed, sch.RunStatus())
	assert.True(t, ran["d"])
	assert.True(t, ran["b"])
	assert.True(t, ran["c"])
	assert.False(t, ran["a"], "a must never run once its sibling failed")
	remaining := sch.Remaining()
	assert.Contains(t, remaining, "a")
	assert.Contains(t, remaining, "c")
}

func TestCacheHitSkipsSecondBuild(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "f.txt")
	g := filepath.Join(dir, "g.txt")
	mustWrite(t, f, "hello")

	reg := action.NewRegistry()
	runs := 0
	_, err := reg.Register(action.Options{
		Name:    "x",
		Inputs:  []string{f},
		Outputs: []string{g},
		Command: func(action.Context) action.CommandStatus {
			runs++
			mustWrite(t, g, "built")
			return ok()
		},
	})
	require.NoError(t, err)

	cachePath := filepath.Join(dir, "cache.db")

	build := func() {
		store := cache.NewFileStore(cachePath)
		sch := New(reg, store, nil)
		require.NoError(t, sch.StartRun("x", false, false))
		for sch.RunStatus() != Finished {
			jobs, err := sch.GetReadyJobs(0)
			require.NoError(t, err)
			if len(jobs) == 0 {
				break
			}
			for _, j := range jobs {
				j.Status = j.Action.Command(action.Context{})
				require.NoError(t, sch.JobFinished(j))
			}
		}
		require.NoError(t, sch.Shutdown())
	}

	build()
	assert.Equal(t, 1, runs)

	build()
	assert.Equal(t, 1, runs, "unchanged inputs must not re-run the command")

	mustWrite(t, f, "hello, changed")
	build()
	assert.Equal(t, 2, runs, "changed input content must re-run the command")
}

func TestDynamicDependencyChangeTriggersRerun(t *testing.T) {
	dir := t.TempDir()
	reg := action.NewRegistry()
	value := "v1"
	runs := 0
	_, err := reg.Register(action.Options{
		Name:              "y",
		DynamicDependency: func() (string, bool) { return value, true },
		Command:           func(action.Context) action.CommandStatus { runs++; return ok() },
	})
	require.NoError(t, err)

	cachePath := filepath.Join(dir, "cache.db")
	build := func() {
		store := cache.NewFileStore(cachePath)
		sch := New(reg, store, nil)
		require.NoError(t, sch.StartRun("y", false, false))
		jobs, err := sch.GetReadyJobs(0)
		require.NoError(t, err)
		for _, j := range jobs {
			j.Status = j.Action.Command(action.Context{})
			require.NoError(t, sch.JobFinished(j))
		}
		require.NoError(t, sch.Shutdown())
	}

	build()
	assert.Equal(t, 1, runs)
	build()
	assert.Equal(t, 1, runs, "an unchanged dynamic dependency must not re-run right after the first build")

	value = "v2"
	build()
	assert.Equal(t, 2, runs, "changed dynamic dependency must re-run")
	build()
	assert.Equal(t, 2, runs, "unchanged dynamic dependency must not re-run")
}

func TestMultiProducerCheckFailsBuild(t *testing.T) {
	reg := action.NewRegistry()
	_, err := reg.Register(action.Options{Name: "a", Outputs: []string{"shared.txt"}, IsEntrypoint: true})
	require.NoError(t, err)
	_, err = reg.Register(action.Options{Name: "root", Dependencies: []string{"a", "b"}})
	require.NoError(t, err)
	_, err = reg.Register(action.Options{Name: "b", Outputs: []string{"shared.txt"}})
	require.NoError(t, err)

	store := cache.NewFileStore(filepath.Join(t.TempDir(), "cache.db"))
	sch := New(reg, store, nil)
	require.NoError(t, sch.StartRun("root", false, true))

	for sch.RunStatus() == Running || sch.RunStatus() == NotStarted {
		jobs, err := sch.GetReadyJobs(0)
		require.NoError(t, err)
		if len(jobs) == 0 {
			break
		}
		for _, j := range jobs {
			j.Status = ok()
			require.NoError(t, sch.JobFinished(j))
		}
	}

	assert.True(t, sch.CheckFailed())
	diags := sch.Diagnostics()
	require.NotEmpty(t, diags)
}
