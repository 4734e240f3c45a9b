package pyscan

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}
	return root
}

func scanRelPaths(t *testing.T, s *Scanner) map[string]*SourceFile {
	t.Helper()
	files, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	out := make(map[string]*SourceFile, len(files))
	for _, f := range files {
		out[filepath.ToSlash(f.RelPath)] = f
	}
	return out
}

func TestScanFindsOnlyPythonFiles(t *testing.T) {
	root := writeTree(t, map[string]string{
		"src/main.py":      "import os\n",
		"src/util.py":      "import json\n",
		"README.md":        "# hi\n",
		"data/config.yaml": "a: 1\n",
	})

	s, err := NewScanner(ScannerConfig{Root: root})
	if err != nil {
		t.Fatalf("NewScanner: %v", err)
	}
	got := scanRelPaths(t, s)

	if len(got) != 2 {
		t.Fatalf("scanned %d files, want 2: %v", len(got), got)
	}
	if got["src/main.py"] == nil || got["src/util.py"] == nil {
		t.Errorf("missing expected files: %v", got)
	}
}

func TestScanSkipsEnvironmentDirs(t *testing.T) {
	root := writeTree(t, map[string]string{
		"main.py":                      "import os\n",
		"venv/lib/site.py":             "import sys\n",
		".venv/lib/site.py":            "import sys\n",
		"__pycache__/main.cpython.py":  "import sys\n",
		"build/artifact.py":            "import sys\n",
		"node_modules/thing/setup.py":  "import sys\n",
		"src/__pycache__/util.old.py":  "import sys\n",
		"src/app.py":                   "import json\n",
	})

	s, err := NewScanner(ScannerConfig{Root: root})
	if err != nil {
		t.Fatalf("NewScanner: %v", err)
	}
	got := scanRelPaths(t, s)

	if len(got) != 2 {
		t.Fatalf("scanned %d files, want 2: %v", len(got), got)
	}
	if got["main.py"] == nil || got["src/app.py"] == nil {
		t.Errorf("missing expected files: %v", got)
	}
}

func TestScanHonorsExcludeGlobs(t *testing.T) {
	root := writeTree(t, map[string]string{
		"main.py":               "import os\n",
		"experiments/trial.py":  "import os\n",
		"src/report_draft.py":   "import os\n",
		"src/report.py":         "import os\n",
	})

	s, err := NewScanner(ScannerConfig{
		Root:    root,
		Exclude: []string{"experiments/**", "**/*_draft.py"},
	})
	if err != nil {
		t.Fatalf("NewScanner: %v", err)
	}
	got := scanRelPaths(t, s)

	if len(got) != 2 {
		t.Fatalf("scanned %d files, want 2: %v", len(got), got)
	}
	if got["experiments/trial.py"] != nil {
		t.Error("excluded directory was scanned")
	}
	if got["src/report_draft.py"] != nil {
		t.Error("excluded pattern was scanned")
	}
}

func TestScanMissingRoot(t *testing.T) {
	s, err := NewScanner(ScannerConfig{Root: filepath.Join(t.TempDir(), "nope")})
	if err != nil {
		t.Fatalf("NewScanner: %v", err)
	}
	if _, err := s.Scan(context.Background()); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestScanIdempotentWithCache(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.py": "import os\nimport requests\n",
		"b.py": "from pathlib import Path\n",
	})

	s, err := NewScanner(ScannerConfig{Root: root, CacheSize: 16})
	if err != nil {
		t.Fatalf("NewScanner: %v", err)
	}

	first := scanRelPaths(t, s)
	second := scanRelPaths(t, s)

	if len(first) != len(second) {
		t.Fatalf("scan sizes differ: %d vs %d", len(first), len(second))
	}
	for rel, f := range first {
		g := second[rel]
		if g == nil {
			t.Fatalf("file %s missing from second scan", rel)
		}
		if f.Hash != g.Hash {
			t.Errorf("%s hash differs across scans", rel)
		}
		if len(f.Imports) != len(g.Imports) {
			t.Errorf("%s import count differs: %d vs %d", rel, len(f.Imports), len(g.Imports))
		}
	}
}

func TestScanCacheRestampsFileProvenance(t *testing.T) {
	// Byte-identical files share a cache entry; each retrieval must carry
	// its own path so relative imports resolve against the right directory.
	src := "from .helper import thing\n"
	root := writeTree(t, map[string]string{
		"pkg_a/mod.py":    src,
		"pkg_a/helper.py": "thing = 1\n",
		"pkg_b/mod.py":    src,
	})

	s, err := NewScanner(ScannerConfig{Root: root, CacheSize: 64})
	if err != nil {
		t.Fatalf("NewScanner: %v", err)
	}
	got := scanRelPaths(t, s)

	for _, rel := range []string{"pkg_a/mod.py", "pkg_b/mod.py"} {
		f := got[rel]
		if f == nil {
			t.Fatalf("file %s missing from scan", rel)
		}
		if len(f.Imports) != 1 {
			t.Fatalf("%s: %d imports, want 1", rel, len(f.Imports))
		}
		if want := filepath.FromSlash(rel); f.Imports[0].File != want {
			t.Errorf("%s: import File = %q, want %q", rel, f.Imports[0].File, want)
		}
	}
}

func TestScanCancellation(t *testing.T) {
	root := writeTree(t, map[string]string{"a.py": "import os\n"})

	s, err := NewScanner(ScannerConfig{Root: root})
	if err != nil {
		t.Fatalf("NewScanner: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Scan(ctx); err == nil {
		t.Fatal("expected context error from cancelled scan")
	}
}
