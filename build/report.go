package build

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pycraftlabs/pybundle/deps"
	"github.com/pycraftlabs/pybundle/validate"
)

// Report is the immutable summary of a finished job, suitable for JSON
// output or human display.
type Report struct {
	JobID      string           `json:"job_id"`
	Entry      string           `json:"entry"`
	Format     Format           `json:"format"`
	State      State            `json:"state"`
	Args       []string         `json:"args,omitempty"`
	Command    string           `json:"command,omitempty"`
	ExitCode   int              `json:"exit_code"`
	OutputPath string           `json:"output_path,omitempty"`
	BackupPath string           `json:"backup_path,omitempty"`
	Elapsed    time.Duration    `json:"elapsed_ns"`
	Error      string           `json:"error,omitempty"`
	Warnings   []string         `json:"warnings,omitempty"`
	Validation *validate.Report `json:"validation,omitempty"`
	Deps       *deps.Set        `json:"dependencies,omitempty"`
	Log        string           `json:"log,omitempty"`
}

// NewReport snapshots a terminal job. Call only after Done() is closed.
func NewReport(job *Job, compiler string) *Report {
	r := &Report{
		JobID:      job.ID,
		Entry:      job.Entry,
		Format:     job.Format,
		State:      job.State(),
		Args:       job.Args,
		ExitCode:   job.ExitCode,
		OutputPath: job.OutputPath,
		BackupPath: job.BackupPath,
		Elapsed:    job.Elapsed(),
		Error:      job.Err,
		Warnings:   job.Warnings,
		Validation: job.Validation,
		Deps:       job.Deps,
		Log:        job.Log,
	}
	if len(job.Args) > 0 {
		r.Command = PreviewCommand(compiler, job.Args)
	}
	return r
}

// JSON renders the report as indented JSON.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Text renders a terse human summary; the full compiler log is omitted
// except on failure.
func (r *Report) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Build %s\n", r.State)
	fmt.Fprintf(&b, "Entry:   %s\n", r.Entry)
	fmt.Fprintf(&b, "Format:  %s\n", r.Format)
	fmt.Fprintf(&b, "Elapsed: %s\n", r.Elapsed.Round(time.Millisecond))
	if r.Command != "" {
		fmt.Fprintf(&b, "Command: %s\n", r.Command)
	}
	if r.OutputPath != "" && r.State == StateSucceeded {
		fmt.Fprintf(&b, "Output:  %s\n", r.OutputPath)
	}
	if r.BackupPath != "" {
		fmt.Fprintf(&b, "Backup:  %s\n", r.BackupPath)
	}
	if r.Error != "" {
		fmt.Fprintf(&b, "Error:   %s\n", r.Error)
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "Warning: %s\n", w)
	}
	if r.State != StateSucceeded && r.Log != "" {
		fmt.Fprintf(&b, "\n%s", r.Log)
	}
	return b.String()
}
