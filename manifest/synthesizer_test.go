package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pycraftlabs/pybundle/deps"
)

func setOf(entries ...deps.Dependency) *deps.Set {
	set := &deps.Set{Root: "/proj/demo", Entries: make(map[string]deps.Dependency)}
	for _, dep := range entries {
		set.Entries[dep.Module] = dep
	}
	return set
}

func TestRenderPinsKnownVersions(t *testing.T) {
	set := setOf(
		deps.Dependency{Module: "requests", Class: deps.ClassExternal, Package: "requests", Version: "2.31.0"},
		deps.Dependency{Module: "flask", Class: deps.ClassExternal, Package: "flask"},
		deps.Dependency{Module: "os", Class: deps.ClassStdlib},
		deps.Dependency{Module: "utils", Class: deps.ClassInternal},
	)

	out := NewSynthesizer().Render(set)

	if !strings.Contains(out, "requests>=2.31.0\n") {
		t.Errorf("missing pinned requests:\n%s", out)
	}
	if !strings.Contains(out, "flask\n") {
		t.Errorf("missing unpinned flask:\n%s", out)
	}
	if strings.Contains(out, "\nos\n") {
		t.Errorf("stdlib module leaked into manifest:\n%s", out)
	}
	if strings.Contains(out, "utils") {
		t.Errorf("internal module leaked into manifest:\n%s", out)
	}
}

func TestRenderAnnotatesLowConfidence(t *testing.T) {
	set := setOf(
		deps.Dependency{Module: `name + "_plugin"`, Class: deps.ClassExternal, Package: `name + "_plugin"`, LowConfidence: true},
	)

	out := NewSynthesizer().Render(set)

	if !strings.Contains(out, "# unverified dynamic import:") {
		t.Errorf("low-confidence entry not annotated:\n%s", out)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	last := lines[len(lines)-1]
	if !strings.HasPrefix(last, "#") {
		t.Errorf("low-confidence entry emitted as installable line: %q", last)
	}
}

func TestRenderDeterministicOrder(t *testing.T) {
	set := setOf(
		deps.Dependency{Module: "zlib_ng", Class: deps.ClassExternal, Package: "zlib-ng"},
		deps.Dependency{Module: "aiohttp", Class: deps.ClassExternal, Package: "aiohttp"},
		deps.Dependency{Module: "numpy", Class: deps.ClassExternal, Package: "numpy"},
	)

	synth := NewSynthesizer()
	first := synth.Render(set)
	second := synth.Render(set)
	if first != second {
		t.Error("render output not deterministic")
	}
	if strings.Index(first, "aiohttp") > strings.Index(first, "numpy") {
		t.Errorf("entries not sorted:\n%s", first)
	}
}

func TestWriteFile(t *testing.T) {
	set := setOf(
		deps.Dependency{Module: "requests", Class: deps.ClassExternal, Package: "requests", Version: "2.31.0"},
	)
	path := filepath.Join(t.TempDir(), "nested", "requirements.txt")

	if err := NewSynthesizer().WriteFile(set, path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !strings.Contains(string(content), "requests>=2.31.0") {
		t.Errorf("written manifest missing requests:\n%s", content)
	}
}

func TestRecommend(t *testing.T) {
	set := setOf(
		deps.Dependency{Module: "requests", Class: deps.ClassExternal, Package: "requests"},
		deps.Dependency{Module: "pytest", Class: deps.ClassExternal, Package: "pytest"},
	)

	recs := NewSynthesizer().Recommend(set)
	byPkg := make(map[string]string)
	for _, r := range recs {
		byPkg[r.Package] = r.Rationale
	}

	if _, ok := byPkg["pytest"]; ok {
		t.Error("pytest recommended although already declared")
	}
	if _, ok := byPkg["black"]; !ok {
		t.Error("formatter recommendation missing")
	}
	if _, ok := byPkg["flake8"]; !ok {
		t.Error("linter recommendation missing")
	}
	if _, ok := byPkg["urllib3"]; !ok {
		t.Error("urllib3 pairing recommendation missing for requests user")
	}
}

func TestRecommendSatisfiedPairing(t *testing.T) {
	set := setOf(
		deps.Dependency{Module: "requests", Class: deps.ClassExternal, Package: "requests"},
		deps.Dependency{Module: "urllib3", Class: deps.ClassExternal, Package: "urllib3"},
	)

	for _, r := range NewSynthesizer().Recommend(set) {
		if r.Package == "urllib3" {
			t.Error("urllib3 recommended although already declared")
		}
	}
}
