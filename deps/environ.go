package deps

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

// EnvironmentProbe looks up installed package versions. Implementations
// must treat lookup failure as recoverable: version hints are optional.
type EnvironmentProbe interface {
	// Versions returns normalized package name → installed version.
	Versions(ctx context.Context) (map[string]string, error)
}

// PipProbe queries the active Python environment through pip. One
// invocation lists everything; per-package lookups would be far too slow on
// real environments.
type PipProbe struct {
	// Python is the interpreter to invoke. Defaults to "python3".
	Python string
	// Timeout bounds the pip invocation.
	Timeout time.Duration
}

// Versions runs `pip list --format=freeze` and parses the name==version
// lines. Editable installs and direct URLs are skipped.
func (p *PipProbe) Versions(ctx context.Context) (map[string]string, error) {
	python := p.Python
	if python == "" {
		python = "python3"
	}
	timeout := p.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, python, "-m", "pip", "list", "--format=freeze")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pip list: %w", err)
	}

	versions := make(map[string]string)
	for _, line := range strings.Split(stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		name, version, ok := strings.Cut(line, "==")
		if !ok || name == "" {
			continue
		}
		versions[NormalizePackageName(name)] = strings.TrimSpace(version)
	}
	return versions, nil
}

// StaticProbe serves a fixed version table. Used in tests and for offline
// operation with a pre-captured environment snapshot.
type StaticProbe map[string]string

// Versions returns the fixed table.
func (p StaticProbe) Versions(context.Context) (map[string]string, error) {
	out := make(map[string]string, len(p))
	for name, version := range p {
		out[NormalizePackageName(name)] = version
	}
	return out, nil
}

// ValidVersion reports whether a hint parses as a semantic version. Hints
// that do not parse are never attached to a dependency.
func ValidVersion(version string) bool {
	_, err := semver.NewVersion(version)
	return err == nil
}
