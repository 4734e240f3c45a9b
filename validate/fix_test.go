package validate

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFixRepairsEmptyProject(t *testing.T) {
	root := t.TempDir()
	report := validateRoot(t, root)
	if report.Valid {
		t.Fatal("empty project unexpectedly valid")
	}

	applied, err := Fix(root, report)
	if err != nil {
		t.Fatalf("Fix: %v", err)
	}
	if len(applied) == 0 {
		t.Fatal("no fixes applied")
	}

	after := validateRoot(t, root)
	if !after.Valid {
		t.Errorf("project still invalid after fixes: %+v", after.BySeverity(SeverityError))
	}

	for _, path := range []string{"src/main.py", "requirements.txt", "README.md", ".gitignore"} {
		if _, err := os.Stat(filepath.Join(root, path)); err != nil {
			t.Errorf("expected %s after fixes: %v", path, err)
		}
	}
}

func TestFixIdempotent(t *testing.T) {
	root := t.TempDir()

	report := validateRoot(t, root)
	if _, err := Fix(root, report); err != nil {
		t.Fatalf("first Fix: %v", err)
	}

	// User edits the generated entry; a second remediation pass must not
	// clobber it.
	entry := filepath.Join(root, "src", "main.py")
	custom := goodEntry + "\n# hand edited\n"
	if err := os.WriteFile(entry, []byte(custom), 0644); err != nil {
		t.Fatal(err)
	}

	report = validateRoot(t, root)
	if _, err := Fix(root, report); err != nil {
		t.Fatalf("second Fix: %v", err)
	}

	content, err := os.ReadFile(entry)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != custom {
		t.Error("second fix pass overwrote hand-edited entry file")
	}

	// Third pass applies nothing new that changes validity.
	report = validateRoot(t, root)
	if !report.Valid {
		t.Errorf("repaired project regressed: %+v", report.BySeverity(SeverityError))
	}
}

func TestFixNeverTouchesUnrelatedFindings(t *testing.T) {
	// A syntax error has no automated fix; Fix must leave the file alone
	// and report the remaining invalidity honestly.
	root := writeProject(t, map[string]string{
		"src/main.py":      "def broken(:\n    pass\n",
		"requirements.txt": "",
	})

	before, err := os.ReadFile(filepath.Join(root, "src", "main.py"))
	if err != nil {
		t.Fatal(err)
	}

	report := validateRoot(t, root)
	if _, err := Fix(root, report); err != nil {
		t.Fatalf("Fix: %v", err)
	}

	after, err := os.ReadFile(filepath.Join(root, "src", "main.py"))
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Error("fix pass modified a file it has no action for")
	}

	if validateRoot(t, root).Valid {
		t.Error("project with syntax error reported valid after fixes")
	}
}

func TestFixUnknownAction(t *testing.T) {
	report := &Report{Findings: []Finding{{Check: "bogus", FixAction: "explode"}}}
	if _, err := Fix(t.TempDir(), report); err == nil {
		t.Fatal("expected error for unknown fix action")
	}
}

func TestReportJSONRoundTrip(t *testing.T) {
	report := validateRoot(t, t.TempDir())
	data, err := report.JSON()
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("empty JSON output")
	}
	if report.Text() == "" {
		t.Fatal("empty text output")
	}
}
