package deps

import (
	"strings"
	"testing"
)

func TestCheckAdvisories(t *testing.T) {
	set := &Set{Entries: map[string]Dependency{
		"urllib3":  {Module: "urllib3", Class: ClassExternal, Package: "urllib3", Version: "1.24.0"},
		"requests": {Module: "requests", Class: ClassExternal, Package: "requests", Version: "2.31.0"},
		"flask":    {Module: "flask", Class: ClassExternal, Package: "flask"},
	}}

	issues := CheckAdvisories(set)
	if len(issues) != 1 {
		t.Fatalf("issues = %v, want exactly the urllib3 hit", issues)
	}
	if !strings.Contains(issues[0], "urllib3 1.24.0") {
		t.Errorf("issue = %q, want urllib3 1.24.0 mention", issues[0])
	}
}

func TestCheckAdvisoriesSkipsUnparseable(t *testing.T) {
	set := &Set{Entries: map[string]Dependency{
		"pillow": {Module: "PIL", Class: ClassExternal, Package: "pillow", Version: "not-a-version"},
	}}

	if issues := CheckAdvisories(set); len(issues) != 0 {
		t.Errorf("issues = %v, want none for unparseable version", issues)
	}
}
