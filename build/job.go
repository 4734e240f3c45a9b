// Package build orchestrates validated, dependency-aware native packaging
// of Python projects. It gates an external compiler behind structural
// validation, derives its argument list from the project's dependency
// graph, and supervises the compilation subprocess with timeout,
// cancellation, and single-flight concurrency control.
package build

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pycraftlabs/pybundle/deps"
	"github.com/pycraftlabs/pybundle/validate"
)

// State is a build job lifecycle stage.
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateAnalyzing  State = "analyzing"
	StateOptimizing State = "optimizing"
	StateBuilding   State = "building"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"
	StateTimedOut   State = "timed-out"
)

// Terminal reports whether the state ends a job's lifecycle.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCancelled, StateTimedOut:
		return true
	}
	return false
}

// Job is one build request moving through the state machine. At most one
// Job per Orchestrator may be non-terminal at a time. A Job is retained
// read-only after completion for reporting; read its fields only after
// Done() is closed (the orchestrator's worker writes them before closing).
type Job struct {
	ID string
	// Root is the project directory.
	Root string
	// Entry is the designated entry source file.
	Entry string
	// OutputDir receives the compiled artifact.
	OutputDir string
	Format    Format

	// Args is the optimized compiler argument list.
	Args []string
	// OutputPath is the expected artifact location.
	OutputPath string
	// BackupPath is set when a pre-existing output was renamed aside.
	BackupPath string

	// Validation is the gating structural report (nil when auto-validate
	// is disabled).
	Validation *validate.Report
	// Deps is the analyzed dependency set.
	Deps *deps.Set
	// Warnings collects non-blocking conditions: unresolved dependencies,
	// advisory hits, skipped stages.
	Warnings []string

	// ExitCode is the compiler's exit status (-1 before it runs or when
	// it was terminated).
	ExitCode int
	// Log is the captured compiler stdout+stderr plus pipeline notes.
	Log string
	// Err is the failure description for non-succeeded terminal states.
	Err string

	StartedAt  time.Time
	FinishedAt time.Time

	mu    sync.Mutex
	state State
	done  chan struct{}
}

func newJob(root, entry, outputDir string, format Format) *Job {
	return &Job{
		ID:        uuid.NewString(),
		Root:      root,
		Entry:     entry,
		OutputDir: outputDir,
		Format:    format,
		ExitCode:  -1,
		state:     StateIdle,
		done:      make(chan struct{}),
	}
}

// State returns the job's current lifecycle state.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// Done is closed when the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Elapsed is the wall-clock duration of the job so far, or its final
// duration once terminal.
func (j *Job) Elapsed() time.Duration {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.FinishedAt.IsZero() {
		if j.StartedAt.IsZero() {
			return 0
		}
		return time.Since(j.StartedAt)
	}
	return j.FinishedAt.Sub(j.StartedAt)
}

// setState transitions the job, closing done on the first terminal state.
func (j *Job) setState(s State) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return
	}
	j.state = s
	if s.Terminal() {
		j.FinishedAt = time.Now()
		close(j.done)
	}
}
