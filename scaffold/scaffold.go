// Package scaffold generates a conventional Python project skeleton. All
// operations are idempotent and never overwrite existing content, which lets
// the validator's fix actions reuse them safely on partially built trees.
package scaffold

import (
	"fmt"
	"os"
	"path/filepath"
)

// StandardDirs are the directories a generated project starts with.
var StandardDirs = []string{"src", "tests", "docs", "config", "resources"}

// EntryStub is the generated src/main.py: a module docstring, a main()
// function, and the __main__ guard, which is the exact shape the validator
// checks for.
const EntryStub = `"""Application entry point."""

import logging
import sys

logging.basicConfig(
    level=logging.INFO,
    format="%(asctime)s - %(name)s - %(levelname)s - %(message)s",
)
logger = logging.getLogger(__name__)


def main() -> int:
    """Run the application."""
    logger.info("starting")
    print("Hello, World!")
    return 0


if __name__ == "__main__":
    sys.exit(main())
`

// ManifestStub is the generated requirements.txt.
const ManifestStub = `# Project dependencies
# Add runtime dependencies here, one specifier per line.

# Development dependencies
pytest>=6.0.0
black>=21.0.0
flake8>=3.8.0
`

// GitignoreStub covers the Python byte-code, packaging, and virtualenv
// artifacts that must never reach version control.
const GitignoreStub = `__pycache__/
*.py[cod]
*.egg-info/
build/
dist/
output/
.venv/
venv/
env/
.pytest_cache/
.mypy_cache/
.coverage
*.spec
.DS_Store
`

// ReadmeTemplate is the generated README.md; %s is the project name.
const ReadmeTemplate = `# %s

## Installation

` + "```bash\npip install -r requirements.txt\n```" + `

## Usage

` + "```bash\npython src/main.py\n```" + `

## Testing

` + "```bash\npytest tests/\n```" + `
`

// CreateProject lays out a new project named name under parent. Existing
// files and directories are left untouched; re-running on a complete
// project is a no-op.
func CreateProject(parent, name string) (string, error) {
	root := filepath.Join(parent, name)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("create project directory: %w", err)
	}

	for _, dir := range StandardDirs {
		if err := EnsureDir(filepath.Join(root, dir)); err != nil {
			return "", err
		}
		if err := WriteIfMissing(filepath.Join(root, dir, "__init__.py"), ""); err != nil {
			return "", err
		}
	}

	files := map[string]string{
		filepath.Join(root, "src", "main.py"):    EntryStub,
		filepath.Join(root, "requirements.txt"):  ManifestStub,
		filepath.Join(root, ".gitignore"):        GitignoreStub,
		filepath.Join(root, "README.md"):         fmt.Sprintf(ReadmeTemplate, name),
	}
	for path, content := range files {
		if err := WriteIfMissing(path, content); err != nil {
			return "", err
		}
	}

	return root, nil
}

// EnsureDir creates a directory (and parents) if missing.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	return nil
}

// WriteIfMissing writes content to path only when the file does not already
// exist. Existing content is never touched.
func WriteIfMissing(path, content string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
