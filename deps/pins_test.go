package deps

import (
	"testing"
)

func TestParseSpecifier(t *testing.T) {
	tests := []struct {
		line    string
		name    string
		version string
		ok      bool
	}{
		{"requests==2.31.0", "requests", "2.31.0", true},
		{"numpy>=1.24.0", "numpy", "1.24.0", true},
		{"pandas~=2.0.1", "pandas", "2.0.1", true},
		{"flask", "flask", "", true},
		{"uvicorn[standard]==0.23.0", "uvicorn", "0.23.0", true},
		{"requests>=2.25.0,<3.0.0", "requests", "2.25.0", true},
		{"pywin32>=306; sys_platform == 'win32'", "pywin32", "306", true},
		{"requests==2.31.0  # pinned for CVE", "requests", "2.31.0", true},
		{"# just a comment", "", "", false},
		{"", "", "", false},
		{"-r base.txt", "", "", false},
	}

	for _, tt := range tests {
		name, version, ok := ParseSpecifier(tt.line)
		if ok != tt.ok {
			t.Errorf("ParseSpecifier(%q) ok = %v, want %v", tt.line, ok, tt.ok)
			continue
		}
		if name != tt.name || version != tt.version {
			t.Errorf("ParseSpecifier(%q) = (%q, %q), want (%q, %q)",
				tt.line, name, version, tt.name, tt.version)
		}
	}
}

func TestReadPinsRequirements(t *testing.T) {
	root := projectTree(t, map[string]string{
		"requirements.txt": `# app dependencies
requests==2.31.0
numpy>=1.24.0
flask
`,
	})

	pins := ReadPins(root)
	if pins["requests"] != "2.31.0" {
		t.Errorf("requests = %q, want 2.31.0", pins["requests"])
	}
	if pins["numpy"] != "1.24.0" {
		t.Errorf("numpy = %q, want 1.24.0", pins["numpy"])
	}
	if v, ok := pins["flask"]; !ok || v != "" {
		t.Errorf("flask = (%q, %v), want unpinned entry", v, ok)
	}
}

func TestReadPinsSetupPy(t *testing.T) {
	root := projectTree(t, map[string]string{
		"setup.py": `from setuptools import setup

setup(
    name="demo",
    install_requires=[
        "requests>=2.25.0",
        "click==8.1.0",
    ],
)
`,
	})

	pins := ReadPins(root)
	if pins["requests"] != "2.25.0" {
		t.Errorf("requests = %q, want 2.25.0", pins["requests"])
	}
	if pins["click"] != "8.1.0" {
		t.Errorf("click = %q, want 8.1.0", pins["click"])
	}
}

func TestReadPinsPyproject(t *testing.T) {
	root := projectTree(t, map[string]string{
		"pyproject.toml": `[project]
name = "demo"
dependencies = [
    "httpx>=0.24.0",
    "PyYAML==6.0.1",
]
`,
	})

	pins := ReadPins(root)
	if pins["httpx"] != "0.24.0" {
		t.Errorf("httpx = %q, want 0.24.0", pins["httpx"])
	}
	if pins["pyyaml"] != "6.0.1" {
		t.Errorf("pyyaml = %q, want 6.0.1 under normalized name", pins["pyyaml"])
	}
}

func TestReadPinsRequirementsWins(t *testing.T) {
	root := projectTree(t, map[string]string{
		"requirements.txt": "requests==2.31.0\n",
		"setup.py":         `setup(install_requires=["requests>=2.20.0"])`,
	})

	pins := ReadPins(root)
	if pins["requests"] != "2.31.0" {
		t.Errorf("requests = %q, want requirements.txt to win", pins["requests"])
	}
}

func TestReadPinsEmptyProject(t *testing.T) {
	pins := ReadPins(t.TempDir())
	if len(pins) != 0 {
		t.Errorf("pins = %v, want empty", pins)
	}
}

func TestValidVersion(t *testing.T) {
	for _, good := range []string{"2.31.0", "1.0.0", "0.23.0"} {
		if !ValidVersion(good) {
			t.Errorf("ValidVersion(%q) = false, want true", good)
		}
	}
	for _, bad := range []string{"not-a-version", ""} {
		if ValidVersion(bad) {
			t.Errorf("ValidVersion(%q) = true, want false", bad)
		}
	}
}
