// Package validate applies a weighted structural rubric to a Python project
// tree and renders scored validation reports. Findings carry fix-action
// identifiers that Fix can apply idempotently.
package validate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pycraftlabs/pybundle/pyscan"
)

// ErrNotFound is returned when the validation root does not exist.
var ErrNotFound = errors.New("path not found")

// Severity ranks a finding. Absence of optional items never produces an
// error; only required structure and a broken entry file do.
type Severity string

const (
	SeverityError          Severity = "error"
	SeverityWarning        Severity = "warning"
	SeverityRecommendation Severity = "recommendation"
)

// Finding is one failed rubric check.
type Finding struct {
	Check    string   `json:"check"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	// FixAction identifies an auto-remediation, empty when the finding is
	// not mechanically fixable.
	FixAction string `json:"fix_action,omitempty"`
}

// EntryCandidates are the paths tried, in order, when locating the
// program's entry file.
var EntryCandidates = []string{
	filepath.Join("src", "main.py"),
	"main.py",
}

// check is one weighted rubric entry. run returns nil on pass or the
// finding on failure.
type check struct {
	name   string
	weight int
	run    func(rc *rubricContext) *Finding
}

// rubricContext carries per-validation state shared between checks.
type rubricContext struct {
	ctx   context.Context
	root  string
	entry string // resolved entry path, empty when missing
	info  *pyscan.EntryInfo
}

// Validator evaluates the fixed rubric over a project root.
type Validator struct {
	checks []check
}

// NewValidator creates a validator with the standard rubric.
func NewValidator() *Validator {
	return &Validator{checks: standardRubric()}
}

// Validate runs every rubric check in order and aggregates the result.
// A missing root is the only fatal error.
func (v *Validator) Validate(ctx context.Context, root string) (*Report, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, root)
	}

	rc := &rubricContext{ctx: ctx, root: root}
	rc.entry = resolveEntry(root)
	if rc.entry != "" {
		// Entry inspection failure (unreadable file) is treated like a
		// missing entry by the shape checks below.
		rc.info, _ = pyscan.InspectEntry(ctx, rc.entry)
	}

	report := &Report{Root: root, Valid: true}
	totalWeight := 0
	passedWeight := 0

	for _, c := range v.checks {
		totalWeight += c.weight
		report.TotalChecks++
		if finding := c.run(rc); finding != nil {
			finding.Check = c.name
			report.Findings = append(report.Findings, *finding)
			if finding.Severity == SeverityError {
				report.Valid = false
			}
			continue
		}
		passedWeight += c.weight
		report.PassedChecks++
	}

	if totalWeight > 0 {
		report.Score = 100 * passedWeight / totalWeight
	}
	return report, nil
}

// resolveEntry returns the first existing entry candidate, or "".
func resolveEntry(root string) string {
	for _, candidate := range EntryCandidates {
		path := filepath.Join(root, candidate)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func anyExists(root string, names ...string) bool {
	for _, name := range names {
		if exists(filepath.Join(root, name)) {
			return true
		}
	}
	return false
}

// standardRubric is the fixed, ordered check list. Weights are relative;
// the score normalizes over their sum.
func standardRubric() []check {
	return []check{
		{
			name:   "source-directory",
			weight: 10,
			run: func(rc *rubricContext) *Finding {
				if exists(filepath.Join(rc.root, "src")) {
					return nil
				}
				return &Finding{
					Severity:  SeverityError,
					Message:   "expected top-level source directory src/ is missing",
					FixAction: "create-dir:src",
				}
			},
		},
		{
			name:   "entry-point",
			weight: 15,
			run: func(rc *rubricContext) *Finding {
				if rc.entry != "" {
					return nil
				}
				return &Finding{
					Severity:  SeverityError,
					Message:   "no entry file found (tried src/main.py, main.py)",
					FixAction: "create-entry",
				}
			},
		},
		{
			name:   "entry-parses",
			weight: 10,
			run: func(rc *rubricContext) *Finding {
				if rc.entry == "" || rc.info == nil {
					return &Finding{
						Severity: SeverityError,
						Message:  "entry file cannot be parsed: file missing or unreadable",
					}
				}
				if rc.info.Status == pyscan.ParseSyntaxError {
					msg := "entry file has a syntax error"
					if rc.info.Syntax != nil {
						msg = fmt.Sprintf("entry file has a syntax error at line %d, column %d",
							rc.info.Syntax.Line, rc.info.Syntax.Column)
					}
					return &Finding{Severity: SeverityError, Message: msg}
				}
				return nil
			},
		},
		{
			name:   "dependency-manifest",
			weight: 10,
			run: func(rc *rubricContext) *Finding {
				if anyExists(rc.root, "requirements.txt", "pyproject.toml") {
					return nil
				}
				return &Finding{
					Severity:  SeverityError,
					Message:   "no dependency manifest found (requirements.txt or pyproject.toml)",
					FixAction: "create-manifest",
				}
			},
		},
		{
			name:   "readme",
			weight: 5,
			run: func(rc *rubricContext) *Finding {
				if anyExists(rc.root, "README.md", "README.rst", "README") {
					return nil
				}
				return &Finding{
					Severity:  SeverityWarning,
					Message:   "no README found",
					FixAction: "create-readme",
				}
			},
		},
		{
			name:   "tests-directory",
			weight: 8,
			run: func(rc *rubricContext) *Finding {
				if exists(filepath.Join(rc.root, "tests")) {
					return nil
				}
				return &Finding{
					Severity:  SeverityWarning,
					Message:   "no tests/ directory",
					FixAction: "create-dir:tests",
				}
			},
		},
		{
			name:   "docs-directory",
			weight: 4,
			run: func(rc *rubricContext) *Finding {
				if exists(filepath.Join(rc.root, "docs")) {
					return nil
				}
				return &Finding{
					Severity:  SeverityRecommendation,
					Message:   "no docs/ directory",
					FixAction: "create-dir:docs",
				}
			},
		},
		{
			name:   "gitignore",
			weight: 4,
			run: func(rc *rubricContext) *Finding {
				if exists(filepath.Join(rc.root, ".gitignore")) {
					return nil
				}
				return &Finding{
					Severity:  SeverityWarning,
					Message:   "no .gitignore",
					FixAction: "create-gitignore",
				}
			},
		},
		{
			name:   "license",
			weight: 3,
			run: func(rc *rubricContext) *Finding {
				if anyExists(rc.root, "LICENSE", "LICENSE.md", "LICENSE.txt", "COPYING") {
					return nil
				}
				return &Finding{
					Severity: SeverityRecommendation,
					Message:  "no license file",
				}
			},
		},
		{
			name:   "packaging-metadata",
			weight: 3,
			run: func(rc *rubricContext) *Finding {
				if anyExists(rc.root, "pyproject.toml", "setup.py", "setup.cfg") {
					return nil
				}
				return &Finding{
					Severity: SeverityRecommendation,
					Message:  "no packaging metadata (pyproject.toml or setup.py)",
				}
			},
		},
		{
			name:   "entry-main-function",
			weight: 8,
			run: func(rc *rubricContext) *Finding {
				if rc.info != nil && rc.info.HasMainFunc {
					return nil
				}
				return &Finding{
					Severity: SeverityWarning,
					Message:  "entry file does not define a main() function",
				}
			},
		},
		{
			name:   "entry-main-guard",
			weight: 8,
			run: func(rc *rubricContext) *Finding {
				if rc.info != nil && rc.info.HasMainGuard {
					return nil
				}
				return &Finding{
					Severity: SeverityWarning,
					Message:  `entry file has no if __name__ == "__main__": guard`,
				}
			},
		},
		{
			name:   "entry-docstring",
			weight: 3,
			run: func(rc *rubricContext) *Finding {
				if rc.info != nil && rc.info.HasDocstring {
					return nil
				}
				return &Finding{
					Severity: SeverityRecommendation,
					Message:  "entry file has no module docstring",
				}
			},
		},
		{
			name:   "package-marker",
			weight: 2,
			run: func(rc *rubricContext) *Finding {
				if !exists(filepath.Join(rc.root, "src")) {
					// Covered by source-directory; no double penalty.
					return nil
				}
				if exists(filepath.Join(rc.root, "src", "__init__.py")) {
					return nil
				}
				return &Finding{
					Severity:  SeverityRecommendation,
					Message:   "src/ has no __init__.py package marker",
					FixAction: "create-init:src",
				}
			},
		},
	}
}
