package build

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner stands in for the compiler subprocess.
type fakeRunner struct {
	delay        time.Duration
	exitCode     int
	output       string
	artifact     string
	finishOnKill bool
	started      chan struct{}
	startedOnce  sync.Once
	invoked      bool
}

func (f *fakeRunner) Preflight(context.Context, string) (string, error) {
	return "fake-compiler 6.0.0", nil
}

func (f *fakeRunner) Run(ctx context.Context, dir, compiler string, args []string) RunResult {
	f.invoked = true
	if f.started != nil {
		f.startedOnce.Do(func() { close(f.started) })
	}
	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		if !f.finishOnKill {
			return RunResult{ExitCode: -1, Output: f.output, Err: ctx.Err()}
		}
		// Simulates a process that completes in the same instant the
		// kill arrives.
	}
	if f.exitCode == 0 && f.artifact != "" {
		if err := os.MkdirAll(filepath.Dir(f.artifact), 0755); err != nil {
			return RunResult{ExitCode: -1, Err: err}
		}
		if err := os.WriteFile(f.artifact, []byte("binary"), 0755); err != nil {
			return RunResult{ExitCode: -1, Err: err}
		}
	}
	return RunResult{ExitCode: f.exitCode, Output: f.output}
}

const validEntry = `"""Demo tool."""
import os
import sys


def main():
    return 0


if __name__ == "__main__":
    sys.exit(main())
`

// validProject builds a tree that passes every error-severity check.
func validProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "main.py"), []byte(validEntry), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "requirements.txt"), []byte("requests>=2.31.0\n"), 0644))
	return root
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.Compiler = "fake-compiler"
	opts.Timeout = 5 * time.Second
	return opts
}

// artifactPath mirrors the orchestrator's output layout for the default
// src/main.py entry.
func artifactPath(root string) string {
	return filepath.Join(root, "output", "main")
}

func startBuild(t *testing.T, opts Options, runner Runner, root string) (*Orchestrator, *Job) {
	t.Helper()
	orch, err := New(opts, nil, runner, nil)
	require.NoError(t, err)
	job, err := orch.Start(Request{Root: root})
	require.NoError(t, err)
	return orch, job
}

func TestBuildSucceeds(t *testing.T) {
	root := validProject(t)
	runner := &fakeRunner{artifact: artifactPath(root), output: "built ok\n"}

	orch, job := startBuild(t, testOptions(), runner, root)
	<-job.Done()

	assert.Equal(t, StateSucceeded, job.State())
	assert.Equal(t, 0, job.ExitCode)
	assert.Equal(t, artifactPath(root), job.OutputPath)
	assert.FileExists(t, job.OutputPath)
	assert.Contains(t, job.Log, "built ok")
	assert.Contains(t, job.Log, "command: fake-compiler")

	require.NoError(t, orch.Acknowledge())
	assert.Nil(t, orch.Current())
}

func TestSingleFlight(t *testing.T) {
	root := validProject(t)
	runner := &fakeRunner{
		delay:    time.Second,
		artifact: artifactPath(root),
		started:  make(chan struct{}),
	}

	orch, job := startBuild(t, testOptions(), runner, root)
	<-runner.started

	// A second request while one is building fails fast and leaves the
	// running job untouched.
	_, err := orch.Start(Request{Root: root})
	require.ErrorIs(t, err, ErrBuildInFlight)
	assert.Equal(t, StateBuilding, job.State())

	<-job.Done()
	require.Equal(t, StateSucceeded, job.State())

	// Terminal but unacknowledged still rejects.
	_, err = orch.Start(Request{Root: root})
	require.ErrorIs(t, err, ErrBuildInFlight)

	require.NoError(t, orch.Acknowledge())
	job2, err := orch.Start(Request{Root: root})
	require.NoError(t, err)
	<-job2.Done()
	assert.NotEqual(t, job.ID, job2.ID)
}

func TestTimeoutTransitionsToTimedOut(t *testing.T) {
	root := validProject(t)
	runner := &fakeRunner{delay: 10 * time.Second, artifact: artifactPath(root)}

	opts := testOptions()
	opts.Timeout = 50 * time.Millisecond
	_, job := startBuild(t, opts, runner, root)
	<-job.Done()

	assert.Equal(t, StateTimedOut, job.State())
	assert.Equal(t, -1, job.ExitCode)
	assert.Contains(t, job.Err, "timeout")
	assert.NoFileExists(t, artifactPath(root))
}

func TestCancelDuringBuild(t *testing.T) {
	root := validProject(t)
	runner := &fakeRunner{
		delay:    10 * time.Second,
		artifact: artifactPath(root),
		started:  make(chan struct{}),
	}

	orch, job := startBuild(t, testOptions(), runner, root)
	<-runner.started
	orch.Cancel()
	<-job.Done()

	assert.Equal(t, StateCancelled, job.State())
}

func TestCancelWinsOverConcurrentFinish(t *testing.T) {
	root := validProject(t)
	// The fake completes successfully at the moment the kill lands, the
	// way a real process can finish before the signal is delivered.
	runner := &fakeRunner{
		delay:        10 * time.Second,
		exitCode:     0,
		artifact:     artifactPath(root),
		finishOnKill: true,
		started:      make(chan struct{}),
	}

	orch, job := startBuild(t, testOptions(), runner, root)
	<-runner.started
	orch.Cancel()
	<-job.Done()

	assert.Equal(t, StateCancelled, job.State())
	// The ambiguous artifact is discarded.
	assert.NoFileExists(t, artifactPath(root))
}

func TestValidationGateBlocks(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "main.py"), []byte(validEntry), 0644))
	// No requirements.txt: error-severity finding, gate must block.

	runner := &fakeRunner{artifact: artifactPath(root)}
	_, job := startBuild(t, testOptions(), runner, root)
	<-job.Done()

	assert.Equal(t, StateFailed, job.State())
	assert.Contains(t, job.Err, "validation failed")
	assert.False(t, runner.invoked, "compiler must not run when the gate blocks")
	require.NotNil(t, job.Validation)
	assert.False(t, job.Validation.Valid)
}

func TestValidationGateOverride(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "main.py"), []byte(validEntry), 0644))

	runner := &fakeRunner{artifact: artifactPath(root)}
	opts := testOptions()
	opts.OverrideGate = true
	_, job := startBuild(t, opts, runner, root)
	<-job.Done()

	assert.Equal(t, StateSucceeded, job.State())
	assert.Contains(t, job.Warnings, "validation gate overridden")
}

func TestBackupOfPreviousArtifact(t *testing.T) {
	root := validProject(t)
	previous := artifactPath(root)
	require.NoError(t, os.MkdirAll(filepath.Dir(previous), 0755))
	require.NoError(t, os.WriteFile(previous, []byte("old binary"), 0755))

	runner := &fakeRunner{artifact: previous}
	_, job := startBuild(t, testOptions(), runner, root)
	<-job.Done()

	require.Equal(t, StateSucceeded, job.State())
	require.NotEmpty(t, job.BackupPath)
	assert.True(t, strings.HasPrefix(filepath.Base(job.BackupPath), "main.bak_"))

	backed, err := os.ReadFile(job.BackupPath)
	require.NoError(t, err)
	assert.Equal(t, "old binary", string(backed))

	fresh, err := os.ReadFile(previous)
	require.NoError(t, err)
	assert.Equal(t, "binary", string(fresh))
}

func TestCompilerFailure(t *testing.T) {
	root := validProject(t)
	runner := &fakeRunner{exitCode: 1, output: "ImportError: no module named missing\n"}

	_, job := startBuild(t, testOptions(), runner, root)
	<-job.Done()

	assert.Equal(t, StateFailed, job.State())
	assert.Equal(t, 1, job.ExitCode)
	assert.Contains(t, job.Err, "status 1")
	assert.Contains(t, job.Log, "ImportError")
}

func TestEntrySyntaxErrorFailsBuild(t *testing.T) {
	root := validProject(t)
	broken := "def main(:\n    pass\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "main.py"), []byte(broken), 0644))

	runner := &fakeRunner{artifact: artifactPath(root)}
	opts := testOptions()
	opts.AutoValidate = false
	_, job := startBuild(t, opts, runner, root)
	<-job.Done()

	assert.Equal(t, StateFailed, job.State())
	assert.Contains(t, job.Err, "syntax errors")
	assert.False(t, runner.invoked)
}

func TestAcknowledgeRequiresTerminal(t *testing.T) {
	root := validProject(t)
	runner := &fakeRunner{
		delay:    time.Second,
		artifact: artifactPath(root),
		started:  make(chan struct{}),
	}

	orch, job := startBuild(t, testOptions(), runner, root)
	<-runner.started
	require.ErrorIs(t, orch.Acknowledge(), ErrNotAcknowledged)
	<-job.Done()
	require.NoError(t, orch.Acknowledge())
	require.ErrorIs(t, orch.Acknowledge(), ErrNotAcknowledged)
}

func TestMissingEntryRejected(t *testing.T) {
	orch, err := New(testOptions(), nil, &fakeRunner{}, nil)
	require.NoError(t, err)

	_, err = orch.Start(Request{Root: t.TempDir()})
	assert.ErrorIs(t, err, ErrNoEntry)

	_, err = orch.Start(Request{Root: t.TempDir(), Entry: "nope.py"})
	assert.ErrorIs(t, err, ErrNoEntry)
}

func TestEventsEmitStateProgression(t *testing.T) {
	root := validProject(t)
	runner := &fakeRunner{artifact: artifactPath(root)}

	orch, err := New(testOptions(), nil, runner, nil)
	require.NoError(t, err)
	job, err := orch.Start(Request{Root: root})
	require.NoError(t, err)
	<-job.Done()

	var states []State
drain:
	for {
		select {
		case ev := <-orch.Events():
			states = append(states, ev.State)
		default:
			break drain
		}
	}
	assert.Equal(t, []State{
		StateValidating, StateAnalyzing, StateOptimizing, StateBuilding, StateSucceeded,
	}, states)
}
