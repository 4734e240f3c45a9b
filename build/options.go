package build

import (
	"fmt"
	"time"
)

// Format selects the artifact flavor the compiler should emit.
type Format string

const (
	// FormatExe is a windowed-capable Windows executable (.exe).
	FormatExe Format = "exe"
	// FormatApp is a macOS application bundle (.app).
	FormatApp Format = "app"
	// FormatBinary is a bare POSIX executable with no extension.
	FormatBinary Format = "binary"
)

// ParseFormat validates a format string from config or CLI flags.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatExe, FormatApp, FormatBinary:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown output format %q (want exe, app, or binary)", s)
}

// extension returns the artifact filename suffix for the format.
func (f Format) extension() string {
	switch f {
	case FormatExe:
		return ".exe"
	case FormatApp:
		return ".app"
	}
	return ""
}

// Options configures an Orchestrator. The zero value is not usable; start
// from DefaultOptions.
type Options struct {
	// AutoValidate runs structural validation before every build and
	// blocks compilation on error-severity findings.
	AutoValidate bool
	// OverrideGate proceeds past a failed validation gate. The findings
	// are still recorded on the job.
	OverrideGate bool
	// Timeout bounds the compiler subprocess. Expiry terminates the
	// process and the job ends TimedOut.
	Timeout time.Duration
	// OutputFormat selects the artifact flavor.
	OutputFormat Format
	// OutputDir receives compiled artifacts. Relative paths resolve
	// against the project root.
	OutputDir string
	// Compiler is the packaging executable to invoke.
	Compiler string
	// Exclude holds glob patterns skipped during source scanning.
	Exclude []string
}

// DefaultOptions mirrors the tool's stock configuration.
func DefaultOptions() Options {
	return Options{
		AutoValidate: true,
		Timeout:      5 * time.Minute,
		OutputFormat: FormatBinary,
		OutputDir:    "output",
		Compiler:     "pyinstaller",
	}
}

// Validate reports the first configuration problem.
func (o Options) Validate() error {
	if _, err := ParseFormat(string(o.OutputFormat)); err != nil {
		return err
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", o.Timeout)
	}
	if o.Compiler == "" {
		return fmt.Errorf("compiler executable not set")
	}
	if o.OutputDir == "" {
		return fmt.Errorf("output directory not set")
	}
	return nil
}
