package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pycraftlabs/pybundle/deps"
	"github.com/pycraftlabs/pybundle/pyscan"
	"github.com/pycraftlabs/pybundle/validate"
)

var (
	// ErrBuildInFlight is returned when a build is requested while
	// another job is still non-terminal.
	ErrBuildInFlight = errors.New("a build is already in flight")
	// ErrValidationBlocked means the structural gate failed and the
	// override was not set.
	ErrValidationBlocked = errors.New("structural validation failed")
	// ErrNoEntry means no entry source file was given or discoverable.
	ErrNoEntry = errors.New("no entry point found")
	// ErrNotAcknowledged means Acknowledge was called with no terminal
	// job to clear.
	ErrNotAcknowledged = errors.New("no terminal build to acknowledge")
)

// Event is a state machine notification emitted as a job progresses.
type Event struct {
	JobID   string
	State   State
	Message string
	Time    time.Time
}

// Request describes one build. Entry may be empty, in which case the
// standard entry candidates under Root are tried in order.
type Request struct {
	Root  string
	Entry string
}

// Orchestrator drives build jobs through the pipeline
// validating -> analyzing -> optimizing -> building. It admits one job at
// a time; a finished job must be acknowledged before the next is accepted.
type Orchestrator struct {
	opts      Options
	validator *validate.Validator
	probe     deps.EnvironmentProbe
	runner    Runner
	logger    *slog.Logger

	events chan Event

	mu        sync.Mutex
	current   *Job
	cancelRun context.CancelFunc
	cancelled bool
}

// New validates opts and constructs an orchestrator. probe may be nil to
// skip environment version lookups; runner defaults to ExecRunner.
func New(opts Options, probe deps.EnvironmentProbe, runner Runner, logger *slog.Logger) (*Orchestrator, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("build options: %w", err)
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		opts:      opts,
		validator: validate.NewValidator(),
		probe:     probe,
		runner:    runner,
		logger:    logger,
		events:    make(chan Event, 64),
	}, nil
}

// Events exposes state transition notifications. The channel is buffered;
// slow consumers lose events rather than stalling the pipeline.
func (o *Orchestrator) Events() <-chan Event {
	return o.events
}

// Current returns the admitted job, terminal or not, or nil.
func (o *Orchestrator) Current() *Job {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

// Start admits a build job and runs its pipeline on a dedicated
// goroutine. It fails fast with ErrBuildInFlight when another job is
// non-terminal or unacknowledged, leaving that job untouched.
func (o *Orchestrator) Start(req Request) (*Job, error) {
	entry, err := o.resolveEntry(req)
	if err != nil {
		return nil, err
	}

	outputDir := o.opts.OutputDir
	if !filepath.IsAbs(outputDir) {
		outputDir = filepath.Join(req.Root, outputDir)
	}

	o.mu.Lock()
	if o.current != nil {
		o.mu.Unlock()
		return nil, ErrBuildInFlight
	}
	job := newJob(req.Root, entry, outputDir, o.opts.OutputFormat)
	job.StartedAt = time.Now()
	runCtx, cancel := context.WithCancel(context.Background())
	o.current = job
	o.cancelRun = cancel
	o.cancelled = false
	o.mu.Unlock()

	o.logger.Info("build admitted", "job", job.ID, "entry", entry, "format", job.Format)
	go o.run(runCtx, job)
	return job, nil
}

// Cancel requests termination of the in-flight job. It is a no-op when
// nothing is running. Cancellation wins over a concurrently finishing
// compiler: once requested, the job ends Cancelled.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil || o.current.State().Terminal() {
		return
	}
	o.cancelled = true
	if o.cancelRun != nil {
		o.cancelRun()
	}
	o.logger.Info("build cancellation requested", "job", o.current.ID)
}

// Acknowledge clears a terminal job, returning the orchestrator to idle.
func (o *Orchestrator) Acknowledge() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.current == nil || !o.current.State().Terminal() {
		return ErrNotAcknowledged
	}
	o.current = nil
	o.cancelRun = nil
	o.cancelled = false
	return nil
}

func (o *Orchestrator) resolveEntry(req Request) (string, error) {
	if req.Entry != "" {
		entry := req.Entry
		if !filepath.IsAbs(entry) {
			entry = filepath.Join(req.Root, entry)
		}
		if info, err := os.Stat(entry); err != nil || info.IsDir() {
			return "", fmt.Errorf("%w: %s", ErrNoEntry, req.Entry)
		}
		return entry, nil
	}
	for _, candidate := range validate.EntryCandidates {
		path := filepath.Join(req.Root, candidate)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: tried %s", ErrNoEntry, strings.Join(validate.EntryCandidates, ", "))
}

func (o *Orchestrator) isCancelled() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cancelled
}

// run executes the pipeline. Every stage boundary checks the cancellation
// flag so a cancel lands even between stages.
func (o *Orchestrator) run(ctx context.Context, job *Job) {
	var log strings.Builder

	// finish flushes the captured log before the terminal transition so
	// the job is fully populated by the time Done() closes.
	finish := func(state State, message string) {
		job.Log += log.String()
		o.transition(job, state, message)
	}
	fail := func(state State, err error) {
		job.Err = err.Error()
		finish(state, err.Error())
		o.logger.Error("build ended", "job", job.ID, "state", state, "error", err)
	}

	version, err := o.runner.Preflight(ctx, o.opts.Compiler)
	if err != nil {
		fail(StateFailed, err)
		return
	}
	fmt.Fprintf(&log, "compiler: %s\n", version)

	// Stage 1: structural gate.
	o.transition(job, StateValidating, "")
	if o.opts.AutoValidate {
		report, err := o.validator.Validate(ctx, job.Root)
		if err != nil {
			fail(StateFailed, fmt.Errorf("validate project: %w", err))
			return
		}
		job.Validation = report
		if !report.Valid {
			if !o.opts.OverrideGate {
				fail(StateFailed, fmt.Errorf("%w: score %d%%, %d error finding(s)",
					ErrValidationBlocked, report.Score, len(report.BySeverity(validate.SeverityError))))
				return
			}
			job.Warnings = append(job.Warnings, "validation gate overridden")
			o.logger.Warn("validation gate overridden", "job", job.ID, "score", report.Score)
		}
	} else {
		job.Warnings = append(job.Warnings, "structural validation skipped")
	}
	if o.isCancelled() {
		finish(StateCancelled, "cancelled before analysis")
		return
	}

	// Stage 2: dependency analysis.
	o.transition(job, StateAnalyzing, "")
	scanner, err := pyscan.NewScanner(pyscan.ScannerConfig{Root: job.Root, Exclude: o.opts.Exclude})
	if err != nil {
		fail(StateFailed, fmt.Errorf("scan sources: %w", err))
		return
	}
	files, err := scanner.Scan(ctx)
	if err != nil {
		fail(StateFailed, fmt.Errorf("scan sources: %w", err))
		return
	}
	set := deps.NewAnalyzer(job.Root, o.probe, o.logger).Analyze(ctx, job.Root, files)
	job.Deps = set
	if entryHasSyntaxError(set, job) {
		fail(StateFailed, fmt.Errorf("entry point %s has syntax errors", job.Entry))
		return
	}
	for _, pkg := range set.Missing() {
		job.Warnings = append(job.Warnings, fmt.Sprintf("no version resolved for %s", pkg))
	}
	job.Warnings = append(job.Warnings, deps.CheckAdvisories(set)...)
	if o.isCancelled() {
		finish(StateCancelled, "cancelled before argument optimization")
		return
	}

	// Stage 3: argument optimization.
	o.transition(job, StateOptimizing, "")
	job.Args = OptimizeArgs(job, set)
	preview := PreviewCommand(o.opts.Compiler, job.Args)
	fmt.Fprintf(&log, "command: %s\n", preview)
	o.logger.Info("compiler arguments optimized", "job", job.ID, "command", preview)
	if o.isCancelled() {
		finish(StateCancelled, "cancelled before build")
		return
	}

	// Stage 4: supervised compilation.
	o.transition(job, StateBuilding, "")
	job.OutputPath = o.outputPath(job)
	backup, err := backupExisting(job.OutputPath, time.Now())
	if err != nil {
		fail(StateFailed, err)
		return
	}
	if backup != "" {
		job.BackupPath = backup
		fmt.Fprintf(&log, "previous output moved to %s\n", backup)
	}

	buildCtx, cancelBuild := context.WithTimeout(ctx, o.opts.Timeout)
	defer cancelBuild()
	res := o.runner.Run(buildCtx, job.Root, o.opts.Compiler, job.Args)
	job.ExitCode = res.ExitCode
	log.WriteString(res.Output)

	switch {
	case o.isCancelled():
		o.removePartialOutput(job)
		finish(StateCancelled, "build cancelled")
	case errors.Is(buildCtx.Err(), context.DeadlineExceeded):
		o.removePartialOutput(job)
		job.Err = fmt.Sprintf("build exceeded %s timeout", o.opts.Timeout)
		finish(StateTimedOut, job.Err)
	case res.Err != nil:
		fail(StateFailed, res.Err)
	case res.ExitCode != 0:
		fail(StateFailed, fmt.Errorf("compiler exited with status %d", res.ExitCode))
	case !exists(job.OutputPath):
		fail(StateFailed, fmt.Errorf("compiler succeeded but artifact %s missing", job.OutputPath))
	default:
		finish(StateSucceeded, job.OutputPath)
		o.logger.Info("build succeeded", "job", job.ID,
			"output", job.OutputPath, "elapsed", job.Elapsed())
	}
}

// transition moves the job forward, except when it already reached a
// terminal state (a concurrent cancel may have won the race).
func (o *Orchestrator) transition(job *Job, state State, message string) {
	job.setState(state)
	state = job.State()
	select {
	case o.events <- Event{JobID: job.ID, State: state, Message: message, Time: time.Now()}:
	default:
	}
	o.logger.Debug("build state", "job", job.ID, "state", state)
}

// outputPath is where the compiler drops the artifact for this job.
func (o *Orchestrator) outputPath(job *Job) string {
	stem := strings.TrimSuffix(filepath.Base(job.Entry), filepath.Ext(job.Entry))
	return filepath.Join(job.OutputDir, stem+job.Format.extension())
}

// removePartialOutput discards whatever the interrupted compiler left
// behind. The pre-build backup, if any, stays put.
func (o *Orchestrator) removePartialOutput(job *Job) {
	if job.OutputPath == "" {
		return
	}
	if err := os.RemoveAll(job.OutputPath); err != nil {
		o.logger.Warn("remove partial output", "path", job.OutputPath, "error", err)
	}
}

func entryHasSyntaxError(set *deps.Set, job *Job) bool {
	rel, err := filepath.Rel(job.Root, job.Entry)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, bad := range set.SyntaxErrors {
		if filepath.ToSlash(bad) == rel {
			return true
		}
	}
	return false
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
