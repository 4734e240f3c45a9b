package build

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	shellquote "github.com/kballard/go-shellquote"

	"github.com/pycraftlabs/pybundle/deps"
)

// guiModules are import roots that indicate a windowed application.
var guiModules = map[string]bool{
	"tkinter":      true,
	"PyQt5":        true,
	"PyQt6":        true,
	"PySide2":      true,
	"PySide6":      true,
	"wx":           true,
	"kivy":         true,
	"ttkbootstrap": true,
	"customtkinter": true,
}

// dataModules are import roots whose users typically ship bundled data
// files alongside the binary.
var dataModules = map[string]bool{
	"pandas":     true,
	"numpy":      true,
	"matplotlib": true,
	"seaborn":    true,
	"scipy":      true,
}

// heavyStdlib are standard library packages the compiler bundles eagerly.
// Excluding the unused ones shrinks the artifact considerably.
var heavyStdlib = []string{
	"tkinter",
	"unittest",
	"pydoc",
	"doctest",
	"xmlrpc",
	"lib2to3",
}

// OptimizeArgs derives the compiler argument list from the analyzed
// dependency set. Arguments are positional argv entries, never joined
// through a shell; use PreviewCommand for display.
func OptimizeArgs(job *Job, set *deps.Set) []string {
	args := []string{"--onefile", "--noconfirm"}

	windowed := job.Format == FormatApp
	if !windowed {
		for mod := range set.Entries {
			if guiModules[mod] {
				windowed = true
				break
			}
		}
	}
	switch {
	case windowed:
		args = append(args, "--windowed")
	case job.Format == FormatExe:
		args = append(args, "--noconsole")
	}

	args = append(args, "--distpath", job.OutputDir)

	// Hidden imports cover modules the compiler's static walk misses,
	// including dynamic imports we resolved to a literal name. Low
	// confidence entries carry unresolved expression text or leading-dot
	// relative paths, neither of which is a module name the compiler can
	// use.
	var hidden []string
	for _, dep := range set.External() {
		if dep.LowConfidence || !validModuleName(dep.Module) {
			continue
		}
		hidden = append(hidden, dep.Module)
	}
	sort.Strings(hidden)
	for _, mod := range hidden {
		args = append(args, "--hidden-import", mod)
	}

	if hasDataDeps(set) {
		if res := filepath.Join(job.Root, "resources"); dirExists(res) {
			args = append(args, "--add-data", "resources"+string(os.PathListSeparator)+"resources")
		}
	}

	for _, mod := range heavyStdlib {
		if _, used := set.Entries[mod]; !used {
			args = append(args, "--exclude-module", mod)
		}
	}

	args = append(args, "--strip", job.Entry)
	return args
}

// PreviewCommand renders an argv for logging, shell-quoted so a reader
// can copy it into a terminal verbatim.
func PreviewCommand(compiler string, args []string) string {
	return shellquote.Join(append([]string{compiler}, args...)...)
}

func hasDataDeps(set *deps.Set) bool {
	for mod := range set.Entries {
		if dataModules[mod] {
			return true
		}
	}
	return false
}

// validModuleName reports whether s is a dotted Python identifier path.
func validModuleName(s string) bool {
	if s == "" {
		return false
	}
	for _, part := range strings.Split(s, ".") {
		if part == "" {
			return false
		}
		for i, r := range part {
			switch {
			case r == '_' || unicode.IsLetter(r):
			case i > 0 && unicode.IsDigit(r):
			default:
				return false
			}
		}
	}
	return true
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
