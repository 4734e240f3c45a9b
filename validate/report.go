package validate

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Report aggregates rubric findings plus the weighted score in [0,100].
// Valid is true iff no error-severity finding exists, independent of score.
type Report struct {
	Root         string    `json:"root"`
	Valid        bool      `json:"valid"`
	Score        int       `json:"score"`
	PassedChecks int       `json:"passed_checks"`
	TotalChecks  int       `json:"total_checks"`
	Findings     []Finding `json:"findings,omitempty"`
}

// BySeverity returns findings with the given severity, in rubric order.
func (r *Report) BySeverity(sev Severity) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Severity == sev {
			out = append(out, f)
		}
	}
	return out
}

// JSON renders the report as indented JSON.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Text renders a human-readable report.
func (r *Report) Text() string {
	var b strings.Builder

	status := "VALID"
	if !r.Valid {
		status = "INVALID"
	}
	fmt.Fprintf(&b, "Project structure validation\n")
	fmt.Fprintf(&b, "Path:   %s\n", r.Root)
	fmt.Fprintf(&b, "Status: %s\n", status)
	fmt.Fprintf(&b, "Score:  %d%% (%d/%d checks passed)\n", r.Score, r.PassedChecks, r.TotalChecks)

	writeSection := func(title string, findings []Finding) {
		fmt.Fprintf(&b, "\n%s:\n", title)
		if len(findings) == 0 {
			b.WriteString("  none\n")
			return
		}
		for _, f := range findings {
			fmt.Fprintf(&b, "  - [%s] %s\n", f.Check, f.Message)
		}
	}

	writeSection("Errors", r.BySeverity(SeverityError))
	writeSection("Warnings", r.BySeverity(SeverityWarning))
	writeSection("Recommendations", r.BySeverity(SeverityRecommendation))

	return b.String()
}
