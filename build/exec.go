package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrCompilerNotFound means the packaging executable is not installed or
// not on PATH.
var ErrCompilerNotFound = errors.New("compiler executable not found")

// RunResult captures a supervised subprocess outcome. Err is set for
// spawn failures and abnormal termination; a nonzero exit status is
// reported through ExitCode with Err nil.
type RunResult struct {
	ExitCode int
	Output   string
	Err      error
}

// Runner abstracts the compiler subprocess so the orchestrator can be
// exercised without a Python toolchain installed.
type Runner interface {
	// Preflight verifies the compiler is invocable and returns its
	// version banner.
	Preflight(ctx context.Context, compiler string) (string, error)
	// Run executes the compiler in dir. Cancelling ctx terminates the
	// process.
	Run(ctx context.Context, dir, compiler string, args []string) RunResult
}

// ExecRunner runs the real compiler through os/exec.
type ExecRunner struct{}

func (ExecRunner) Preflight(ctx context.Context, compiler string) (string, error) {
	if _, err := exec.LookPath(compiler); err != nil {
		return "", fmt.Errorf("%w: %s", ErrCompilerNotFound, compiler)
	}
	out, err := exec.CommandContext(ctx, compiler, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("probe %s version: %w", compiler, err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (ExecRunner) Run(ctx context.Context, dir, compiler string, args []string) RunResult {
	cmd := exec.CommandContext(ctx, compiler, args...)
	cmd.Dir = dir

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	res := RunResult{ExitCode: 0, Output: buf.String()}
	if err == nil {
		return res
	}

	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		res.ExitCode = -1
		res.Err = fmt.Errorf("run %s: %w", compiler, err)
	}
	return res
}
