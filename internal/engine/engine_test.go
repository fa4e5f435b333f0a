package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/byggbuild/bygg/internal/action"
	"github.com/byggbuild/bygg/internal/config"
	"github.com/byggbuild/bygg/internal/listener"
	"github.com/byggbuild/bygg/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(dir string) *config.Config {
	return &config.Config{
		CacheDir:   dir,
		CachePath:  filepath.Join(dir, "cache.db"),
		MaxWorkers: 2,
		LogFormat:  "text",
	}
}

func copyCommand(t *testing.T, from, to string, runs *int32) action.Command {
	return func(ctx action.Context) action.CommandStatus {
		atomic.AddInt32(runs, 1)
		b, err := os.ReadFile(from)
		if err != nil {
			return action.CommandStatus{Rc: 1, Message: err.Error()}
		}
		if err := os.WriteFile(to, b, 0o644); err != nil {
			return action.CommandStatus{Rc: 1, Message: err.Error()}
		}
		return action.CommandStatus{Rc: 0}
	}
}

func TestEngineBuildEndToEnd(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	mid := filepath.Join(dir, "mid.txt")
	out := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o644))

	e := New(testConfig(dir), nil)

	var runsCompile, runsLink int32
	_, err := e.RegisterAction(action.Options{
		Name:    "compile",
		Inputs:  []string{src},
		Outputs: []string{mid},
		Command: copyCommand(t, src, mid, &runsCompile),
	})
	require.NoError(t, err)

	_, err = e.RegisterAction(action.Options{
		Name:         "link",
		Outputs:      []string{out},
		Dependencies: []string{"compile"},
		Command:      copyCommand(t, mid, out, &runsLink),
		IsEntrypoint: true,
	})
	require.NoError(t, err)

	res, err := e.Build(context.Background(), "link", BuildOptions{})
	require.NoError(t, err)

	assert.Equal(t, scheduler.Finished, res.Status)
	assert.ElementsMatch(t, []string{"compile", "link"}, res.FinishedJobs)
	assert.Empty(t, res.FailedJobs)
	assert.NotEmpty(t, res.RunID)

	content, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))
}

func TestEngineCacheHitSkipsSecondBuild(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	out := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(src, []byte("v1"), 0o644))

	e := New(testConfig(dir), nil)

	var runs int32
	_, err := e.RegisterAction(action.Options{
		Name:         "build-out",
		Inputs:       []string{src},
		Outputs:      []string{out},
		Command:      copyCommand(t, src, out, &runs),
		IsEntrypoint: true,
	})
	require.NoError(t, err)

	_, err = e.Build(context.Background(), "build-out", BuildOptions{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&runs))

	res, err := e.Build(context.Background(), "build-out", BuildOptions{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&runs), "unchanged input must not re-run the command")
	assert.Empty(t, res.FinishedJobs)
}

func TestEngineClean(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	out := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0o644))

	e := New(testConfig(dir), nil)
	var runs int32
	_, err := e.RegisterAction(action.Options{
		Name:         "build-out",
		Inputs:       []string{src},
		Outputs:      []string{out},
		Command:      copyCommand(t, src, out, &runs),
		IsEntrypoint: true,
	})
	require.NoError(t, err)

	_, err = e.Build(context.Background(), "build-out", BuildOptions{})
	require.NoError(t, err)
	_, statErr := os.Stat(out)
	require.NoError(t, statErr)

	require.NoError(t, e.Clean(context.Background(), "build-out"))
	_, statErr = os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestEngineCheckFailureMarksResultFailed(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "shared.txt")

	e := New(testConfig(dir), nil)

	write := func() action.Command {
		return func(ctx action.Context) action.CommandStatus {
			_ = os.WriteFile(out, []byte("x"), 0o644)
			return action.CommandStatus{Rc: 0}
		}
	}

	_, err := e.RegisterAction(action.Options{Name: "a", Outputs: []string{out}, Command: write()})
	require.NoError(t, err)
	_, err = e.RegisterAction(action.Options{Name: "b", Outputs: []string{out}, Command: write()})
	require.NoError(t, err)
	_, err = e.RegisterAction(action.Options{
		Name:         "root",
		Dependencies: []string{"a", "b"},
		IsEntrypoint: true,
	})
	require.NoError(t, err)

	res, err := e.Build(context.Background(), "root", BuildOptions{CheckEnabled: true})
	require.NoError(t, err)

	assert.Equal(t, scheduler.Failed, res.Status)
	require.NotEmpty(t, res.Diagnostics)
}

func TestEngineRestartBuildBounded(t *testing.T) {
	dir := t.TempDir()
	e := New(testConfig(dir), nil)

	_, err := e.RegisterAction(action.Options{
		Name: "loopy",
		Command: func(ctx action.Context) action.CommandStatus {
			return action.CommandStatus{Rc: 0, Instruction: action.RestartBuild}
		},
		IsEntrypoint: true,
	})
	require.NoError(t, err)

	_, err = e.Build(context.Background(), "loopy", BuildOptions{MaxRestarts: 2})
	require.Error(t, err)
	assert.ErrorIs(t, err, scheduler.ErrRestartsExhausted)
}

type recordingListener struct {
	mu     sync.Mutex
	events []listener.JobEvent
}

func (r *recordingListener) OnJobStatus(e listener.JobEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingListener) OnRunnerStatus(string) {}

func TestEngineSubscribeReceivesJobEvents(t *testing.T) {
	dir := t.TempDir()
	e := New(testConfig(dir), nil)
	rec := &recordingListener{}
	e.Subscribe(rec)

	_, err := e.RegisterAction(action.Options{
		Name: "solo",
		Command: func(ctx action.Context) action.CommandStatus {
			return action.CommandStatus{Rc: 0}
		},
		IsEntrypoint: true,
	})
	require.NoError(t, err)

	_, err = e.Build(context.Background(), "solo", BuildOptions{})
	require.NoError(t, err)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	var sawFinished bool
	for _, ev := range rec.events {
		if ev.JobName == "solo" && ev.Status == listener.StatusFinished {
			sawFinished = true
		}
	}
	assert.True(t, sawFinished)
}
