// Package manifest turns a dependency set into a pinned/unpinned
// requirements manifest plus heuristic recommendations.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pycraftlabs/pybundle/deps"
)

// Recommendation is a heuristic suggestion derived from what the project is
// missing, not from what is wrong with it.
type Recommendation struct {
	Package   string `json:"package"`
	Rationale string `json:"rationale"`
}

// rule suggests a package when no member of its category is present.
type rule struct {
	category  string
	members   []string
	suggested string
	rationale string
}

// ruleTable is the fixed recommendation table. Each rule fires when the
// project declares none of the category's members.
var ruleTable = []rule{
	{
		category:  "test framework",
		members:   []string{"pytest", "nose2", "hypothesis", "unittest2", "tox"},
		suggested: "pytest",
		rationale: "no test framework detected among dependencies",
	},
	{
		category:  "code formatter",
		members:   []string{"black", "autopep8", "yapf", "ruff"},
		suggested: "black",
		rationale: "no code formatter detected",
	},
	{
		category:  "linter",
		members:   []string{"flake8", "pylint", "ruff"},
		suggested: "flake8",
		rationale: "no linter detected",
	},
}

// Synthesizer produces requirements manifests and recommendations. It never
// fails: an empty dependency set yields an empty manifest plus the generic
// recommendations.
type Synthesizer struct{}

// NewSynthesizer creates a Synthesizer.
func NewSynthesizer() *Synthesizer {
	return &Synthesizer{}
}

// Render produces requirements.txt content from the set's external
// dependencies, one specifier per line, version-pinned when a hint exists.
func (s *Synthesizer) Render(set *deps.Set) string {
	var b strings.Builder
	b.WriteString("# Auto-generated requirements\n")
	b.WriteString(fmt.Sprintf("# Project: %s\n\n", filepath.Base(set.Root)))

	for _, dep := range set.External() {
		if dep.LowConfidence {
			// Best-effort dynamic imports are annotated, not pinned.
			b.WriteString(fmt.Sprintf("# unverified dynamic import: %s\n", dep.Package))
			continue
		}
		if dep.Version != "" {
			b.WriteString(fmt.Sprintf("%s>=%s\n", dep.Package, dep.Version))
		} else {
			b.WriteString(dep.Package + "\n")
		}
	}
	return b.String()
}

// WriteFile renders the manifest and writes it to path, creating parent
// directories as needed.
func (s *Synthesizer) WriteFile(set *deps.Set, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create manifest directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(s.Render(set)), 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Recommend applies the rule table to the set's declared dependencies.
func (s *Synthesizer) Recommend(set *deps.Set) []Recommendation {
	declared := make(map[string]bool)
	for _, dep := range set.External() {
		declared[deps.NormalizePackageName(dep.Package)] = true
	}
	for _, dep := range set.ByClass(deps.ClassInternal) {
		declared[deps.NormalizePackageName(dep.Module)] = true
	}

	var recs []Recommendation
	for _, r := range ruleTable {
		found := false
		for _, member := range r.members {
			if declared[member] {
				found = true
				break
			}
		}
		if !found {
			recs = append(recs, Recommendation{
				Package:   r.suggested,
				Rationale: fmt.Sprintf("%s; consider adding %s", r.rationale, r.suggested),
			})
		}
	}

	// The requests/urllib3 pairing from the upstream rulebook: requests
	// vendors urllib3, and packaged builds want the floor pinned explicitly.
	if declared["requests"] && !declared["urllib3"] {
		recs = append(recs, Recommendation{
			Package:   "urllib3",
			Rationale: "requests depends on urllib3; pin it explicitly to receive security updates",
		})
	}

	return recs
}
