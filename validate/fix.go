package validate

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pycraftlabs/pybundle/scaffold"
)

// Fix applies every finding's fix action against root and returns the list
// of applied action identifiers. Remediation is idempotent: actions check
// for existing content first and never delete or overwrite anything, so
// re-running on an already-fixed project changes nothing.
func Fix(root string, report *Report) ([]string, error) {
	var applied []string
	for _, finding := range report.Findings {
		if finding.FixAction == "" {
			continue
		}
		if err := applyFix(root, finding.FixAction); err != nil {
			return applied, fmt.Errorf("apply fix %s: %w", finding.FixAction, err)
		}
		applied = append(applied, finding.FixAction)
	}
	return applied, nil
}

// applyFix dispatches one fix action identifier.
func applyFix(root, action string) error {
	switch {
	case strings.HasPrefix(action, "create-dir:"):
		dir := strings.TrimPrefix(action, "create-dir:")
		if err := scaffold.EnsureDir(filepath.Join(root, dir)); err != nil {
			return err
		}
		// A marker file keeps the otherwise-empty directory visible to
		// version control.
		return scaffold.WriteIfMissing(filepath.Join(root, dir, ".gitkeep"), "")

	case strings.HasPrefix(action, "create-init:"):
		dir := strings.TrimPrefix(action, "create-init:")
		return scaffold.WriteIfMissing(filepath.Join(root, dir, "__init__.py"), "")

	case action == "create-entry":
		if err := scaffold.EnsureDir(filepath.Join(root, "src")); err != nil {
			return err
		}
		return scaffold.WriteIfMissing(filepath.Join(root, "src", "main.py"), scaffold.EntryStub)

	case action == "create-manifest":
		return scaffold.WriteIfMissing(filepath.Join(root, "requirements.txt"), scaffold.ManifestStub)

	case action == "create-readme":
		readme := fmt.Sprintf(scaffold.ReadmeTemplate, filepath.Base(root))
		return scaffold.WriteIfMissing(filepath.Join(root, "README.md"), readme)

	case action == "create-gitignore":
		return scaffold.WriteIfMissing(filepath.Join(root, ".gitignore"), scaffold.GitignoreStub)

	default:
		return fmt.Errorf("unknown fix action: %s", action)
	}
}
