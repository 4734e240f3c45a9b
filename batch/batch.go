// Package batch compiles several entry scripts in one run, bounding
// concurrency with a worker pool. Each entry gets its own orchestrator so
// single-flight admission stays per-target.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/pycraftlabs/pybundle/build"
	"github.com/pycraftlabs/pybundle/deps"
)

// Result is the outcome of one entry in a batch run.
type Result struct {
	Entry   string
	State   build.State
	Report  *build.Report
	Err     error
	Elapsed time.Duration
}

// Summary aggregates a finished batch.
type Summary struct {
	Results   []Result
	Succeeded int
	Failed    int
	Elapsed   time.Duration
}

// Runner fans entry scripts out to parallel builds.
type Runner struct {
	opts    build.Options
	probe   deps.EnvironmentProbe
	exec    build.Runner
	logger  *slog.Logger
	workers int
}

// NewRunner configures a batch runner. workers <= 0 defaults to 2, the
// sweet spot for compiler processes that are already multi-core hungry.
func NewRunner(opts build.Options, probe deps.EnvironmentProbe, exec build.Runner, logger *slog.Logger, workers int) (*Runner, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("batch options: %w", err)
	}
	if workers <= 0 {
		workers = 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{opts: opts, probe: probe, exec: exec, logger: logger, workers: workers}, nil
}

// Run builds every entry under root. It always drains the whole batch;
// individual failures are recorded, not fatal. Cancelling ctx stops
// admitting new entries and cancels in-flight builds.
func (r *Runner) Run(ctx context.Context, root string, entries []string) (*Summary, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("no entries to build")
	}
	start := time.Now()

	jobs := make(chan string)
	results := make(chan Result, len(entries))

	var wg sync.WaitGroup
	for i := 0; i < r.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for entry := range jobs {
				results <- r.buildOne(ctx, root, entry)
			}
		}()
	}

	for _, entry := range entries {
		select {
		case jobs <- entry:
		case <-ctx.Done():
			results <- Result{Entry: entry, State: build.StateCancelled, Err: ctx.Err()}
		}
	}
	close(jobs)
	wg.Wait()
	close(results)

	summary := &Summary{Elapsed: time.Since(start)}
	for res := range results {
		summary.Results = append(summary.Results, res)
		if res.State == build.StateSucceeded {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}
	sort.Slice(summary.Results, func(i, j int) bool {
		return summary.Results[i].Entry < summary.Results[j].Entry
	})
	r.logger.Info("batch finished",
		"entries", len(entries), "succeeded", summary.Succeeded,
		"failed", summary.Failed, "elapsed", summary.Elapsed)
	return summary, nil
}

func (r *Runner) buildOne(ctx context.Context, root, entry string) Result {
	orch, err := build.New(r.opts, r.probe, r.exec, r.logger.With("entry", entry))
	if err != nil {
		return Result{Entry: entry, State: build.StateFailed, Err: err}
	}

	job, err := orch.Start(build.Request{Root: root, Entry: entry})
	if err != nil {
		return Result{Entry: entry, State: build.StateFailed, Err: err}
	}

	select {
	case <-job.Done():
	case <-ctx.Done():
		orch.Cancel()
		<-job.Done()
	}

	res := Result{
		Entry:   entry,
		State:   job.State(),
		Report:  build.NewReport(job, r.opts.Compiler),
		Elapsed: job.Elapsed(),
	}
	if job.Err != "" {
		res.Err = fmt.Errorf("%s", job.Err)
	}
	return res
}
