package deps

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"

	"github.com/pycraftlabs/pybundle/pyscan"
)

// Set is the aggregated, deduplicated classification result for a project.
// Repeated imports of the same module collapse to one entry.
type Set struct {
	// Root is the scanned project root.
	Root string `json:"root"`
	// Files is the number of source files scanned.
	Files int `json:"files"`
	// SyntaxErrors lists files that failed to parse, by relative path.
	SyntaxErrors []string `json:"syntax_errors,omitempty"`
	// Entries maps module key → classified dependency.
	Entries map[string]Dependency `json:"entries"`
}

// ByClass returns the entries with the given classification, sorted by
// module name for deterministic output.
func (s *Set) ByClass(class Classification) []Dependency {
	var out []Dependency
	for _, d := range s.Entries {
		if d.Class == class {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Module < out[j].Module })
	return out
}

// External is shorthand for ByClass(ClassExternal).
func (s *Set) External() []Dependency { return s.ByClass(ClassExternal) }

// Missing returns external packages with no version hint, meaning they were
// not located in any known environment or pin source. These surface as
// warnings, never build blockers.
func (s *Set) Missing() []string {
	var missing []string
	for _, d := range s.External() {
		if d.Version == "" {
			missing = append(missing, d.Package)
		}
	}
	return missing
}

// Counts returns per-classification entry counts.
func (s *Set) Counts() map[Classification]int {
	counts := make(map[Classification]int, 3)
	for _, d := range s.Entries {
		counts[d.Class]++
	}
	return counts
}

// JSON renders the set as indented JSON.
func (s *Set) JSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// Analyzer turns scan output into a dependency set. Construction is pure
// aggregation; version hints are attached afterwards from the environment
// probe and project pin files when available.
type Analyzer struct {
	classifier *Classifier
	probe      EnvironmentProbe
	logger     *slog.Logger
}

// NewAnalyzer creates an analyzer for the given project root. probe may be
// nil, in which case no installed-environment hints are attached.
func NewAnalyzer(root string, probe EnvironmentProbe, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		classifier: NewClassifier(root),
		probe:      probe,
		logger:     logger,
	}
}

// Analyze classifies every import in files and aggregates the result.
// Scanning the same unchanged tree twice yields an identical Set.
func (a *Analyzer) Analyze(ctx context.Context, root string, files []*pyscan.SourceFile) *Set {
	set := &Set{
		Root:    root,
		Files:   len(files),
		Entries: make(map[string]Dependency),
	}

	for _, sf := range files {
		if sf.Status == pyscan.ParseSyntaxError {
			set.SyntaxErrors = append(set.SyntaxErrors, sf.RelPath)
		}
		for _, stmt := range sf.Imports {
			dep := a.classifier.Classify(stmt)
			key := dep.Module
			if existing, ok := set.Entries[key]; ok {
				// A statically resolved sighting upgrades a low-confidence one.
				if existing.LowConfidence && !dep.LowConfidence {
					set.Entries[key] = dep
				}
				continue
			}
			set.Entries[key] = dep
		}
	}
	sort.Strings(set.SyntaxErrors)

	a.attachVersionHints(ctx, set)
	return set
}

// attachVersionHints fills in Version for external entries from project pin
// files first, then the installed environment. Probe failure is logged and
// ignored: absence of a hint is not an error.
func (a *Analyzer) attachVersionHints(ctx context.Context, set *Set) {
	pins := ReadPins(set.Root)

	var installed map[string]string
	if a.probe != nil {
		var err error
		installed, err = a.probe.Versions(ctx)
		if err != nil {
			a.logger.Debug("Environment probe failed, skipping version hints", "error", err)
		}
	}

	for key, dep := range set.Entries {
		if dep.Class != ClassExternal || dep.Package == "" {
			continue
		}
		name := NormalizePackageName(dep.Package)
		if v, ok := pins[name]; ok && ValidVersion(v) {
			dep.Version = v
		} else if v, ok := installed[name]; ok && ValidVersion(v) {
			dep.Version = v
		}
		set.Entries[key] = dep
	}
}

// NormalizePackageName lowers case and folds underscores to hyphens, the
// comparison form used by Python packaging tools.
func NormalizePackageName(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), "_", "-")
}
