package deps

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
)

// ReadPins collects version pins from the project's own dependency
// declarations: requirements.txt, setup.py install_requires, and
// pyproject.toml [project] dependencies. Later sources do not overwrite
// earlier ones; requirements.txt is considered the most authoritative.
// Every error is recoverable; a project with no pin files yields an empty
// map.
func ReadPins(root string) map[string]string {
	pins := make(map[string]string)

	mergePins(pins, readRequirements(filepath.Join(root, "requirements.txt")))
	mergePins(pins, readSetupPy(filepath.Join(root, "setup.py")))
	mergePins(pins, readPyproject(filepath.Join(root, "pyproject.toml")))

	return pins
}

func mergePins(dst, src map[string]string) {
	for name, version := range src {
		if _, exists := dst[name]; !exists {
			dst[name] = version
		}
	}
}

// readRequirements parses a requirements.txt file, one specifier per line.
func readRequirements(path string) map[string]string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	pins := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if name, version, ok := ParseSpecifier(scanner.Text()); ok {
			pins[NormalizePackageName(name)] = version
		}
	}
	return pins
}

var installRequiresRe = regexp.MustCompile(`(?s)install_requires\s*=\s*\[(.*?)\]`)
var quotedRe = regexp.MustCompile(`["']([^"']+)["']`)

// readSetupPy extracts install_requires entries with a text-level match.
// setup.py is arbitrary code; executing it is out of the question, so this
// is deliberately best-effort.
func readSetupPy(path string) map[string]string {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	match := installRequiresRe.FindSubmatch(content)
	if match == nil {
		return nil
	}

	pins := make(map[string]string)
	for _, quoted := range quotedRe.FindAllStringSubmatch(string(match[1]), -1) {
		if name, version, ok := ParseSpecifier(quoted[1]); ok {
			pins[NormalizePackageName(name)] = version
		}
	}
	return pins
}

// pyprojectFile models the subset of pyproject.toml we read.
type pyprojectFile struct {
	Project struct {
		Dependencies []string `toml:"dependencies"`
	} `toml:"project"`
}

// readPyproject reads [project] dependencies from pyproject.toml.
func readPyproject(path string) map[string]string {
	var file pyprojectFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil
	}

	pins := make(map[string]string)
	for _, spec := range file.Project.Dependencies {
		if name, version, ok := ParseSpecifier(spec); ok {
			pins[NormalizePackageName(name)] = version
		}
	}
	return pins
}

// ParseSpecifier splits a PEP 508 style requirement line into name and
// version. Comments and environment markers are stripped; an unpinned
// specifier yields an empty version. Returns ok=false for blank lines.
func ParseSpecifier(line string) (name, version string, ok bool) {
	line = strings.TrimSpace(line)
	if idx := strings.Index(line, "#"); idx >= 0 {
		line = strings.TrimSpace(line[:idx])
	}
	if idx := strings.Index(line, ";"); idx >= 0 {
		line = strings.TrimSpace(line[:idx])
	}
	if line == "" || strings.HasPrefix(line, "-") {
		return "", "", false
	}

	for _, op := range []string{"==", ">=", "<=", "~=", "!=", ">", "<"} {
		if n, v, found := strings.Cut(line, op); found {
			// A trailing ",<2.0" style upper bound is dropped; the lower
			// bound is the useful hint.
			if idx := strings.Index(v, ","); idx >= 0 {
				v = v[:idx]
			}
			return strings.TrimSpace(trimExtras(n)), strings.TrimSpace(v), true
		}
	}
	return trimExtras(line), "", true
}

// trimExtras drops a "[extra1,extra2]" suffix from a requirement name.
func trimExtras(name string) string {
	if idx := strings.Index(name, "["); idx >= 0 {
		return strings.TrimSpace(name[:idx])
	}
	return strings.TrimSpace(name)
}
