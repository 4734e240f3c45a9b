package deps

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pycraftlabs/pybundle/pyscan"
)

// Classification tags a module as standard library, project-internal, or an
// external package.
type Classification string

const (
	ClassStdlib   Classification = "stdlib"
	ClassInternal Classification = "internal"
	ClassExternal Classification = "external"
)

// Dependency is one classified module.
type Dependency struct {
	// Module is the import path as written (root segment for absolute
	// imports, dotted form for relative imports).
	Module string `json:"module"`
	Class  Classification `json:"class"`
	// Package is the distribution name for external dependencies.
	Package string `json:"package,omitempty"`
	// Version is a hint from the installed environment or project pins.
	// Absence is not an error.
	Version string `json:"version,omitempty"`
	// LowConfidence carries over from dynamic imports whose path could not
	// be statically resolved.
	LowConfidence bool `json:"low_confidence,omitempty"`
}

// Classifier resolves import statements to classifications against a single
// project root. It holds no mutable state and is safe for concurrent use.
type Classifier struct {
	root string
}

// NewClassifier creates a classifier for the given project root.
func NewClassifier(root string) *Classifier {
	return &Classifier{root: root}
}

// Classify resolves one import statement. Order: standard-library registry,
// then path mapping inside the project root, then external. Every statement
// yields exactly one classification.
func (c *Classifier) Classify(stmt pyscan.ImportStatement) Dependency {
	if stmt.Kind == pyscan.KindDynamic && stmt.LowConfidence {
		// String-built module path. Worse to drop than to over-report.
		return Dependency{
			Module:        stmt.Module,
			Class:         ClassExternal,
			Package:       stmt.Module,
			LowConfidence: true,
		}
	}

	if strings.HasPrefix(stmt.Module, ".") {
		return c.classifyRelative(stmt)
	}

	root := rootSegment(stmt.Module)

	if IsStdlib(root) {
		return Dependency{Module: root, Class: ClassStdlib}
	}

	if c.resolvesInProject(root) {
		return Dependency{Module: root, Class: ClassInternal}
	}

	return Dependency{
		Module:  root,
		Class:   ClassExternal,
		Package: DistributionName(stmt.Module),
	}
}

// classifyRelative resolves "from .foo import x" style imports against the
// importing file's directory. A relative import that resolves inside the
// root is internal; one that does not resolve anywhere is recorded external
// with low confidence rather than silently dropped.
func (c *Classifier) classifyRelative(stmt pyscan.ImportStatement) Dependency {
	dots := 0
	for dots < len(stmt.Module) && stmt.Module[dots] == '.' {
		dots++
	}
	remainder := stmt.Module[dots:]

	// One dot anchors at the importing file's package; each extra dot
	// climbs one level.
	dir := filepath.Dir(filepath.Join(c.root, stmt.File))
	for i := 1; i < dots; i++ {
		dir = filepath.Dir(dir)
	}

	target := dir
	if remainder != "" {
		target = filepath.Join(dir, filepath.FromSlash(strings.ReplaceAll(remainder, ".", "/")))
	}

	if within(c.root, target) && pathExistsAsModule(target) {
		return Dependency{Module: stmt.Module, Class: ClassInternal}
	}

	return Dependency{
		Module:        stmt.Module,
		Class:         ClassExternal,
		Package:       stmt.Module,
		LowConfidence: true,
	}
}

// resolvesInProject checks whether a top-level module name maps to a file or
// package inside the project root, including the conventional src/ layout.
func (c *Classifier) resolvesInProject(module string) bool {
	for _, base := range []string{c.root, filepath.Join(c.root, "src")} {
		if pathExistsAsModule(filepath.Join(base, module)) {
			return true
		}
	}
	// Bare directory names like "src", "tests", "config" are importable
	// from scripts run at the project root.
	if info, err := os.Stat(filepath.Join(c.root, module)); err == nil && info.IsDir() {
		return true
	}
	return false
}

// pathExistsAsModule checks the two spellings of a Python module on disk:
// a .py file or a package directory with __init__.py.
func pathExistsAsModule(path string) bool {
	if _, err := os.Stat(path + ".py"); err == nil {
		return true
	}
	if _, err := os.Stat(filepath.Join(path, "__init__.py")); err == nil {
		return true
	}
	return false
}

// within reports whether target is inside root after cleaning.
func within(root, target string) bool {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}

// rootSegment returns the first component of a dotted module path.
func rootSegment(module string) string {
	if idx := strings.Index(module, "."); idx > 0 {
		return module[:idx]
	}
	return module
}
