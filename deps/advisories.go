package deps

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// advisory is a known-bad version range for a published package.
type advisory struct {
	pkg        string
	constraint string
	note       string
}

// knownAdvisories is a small fixed table. It is not a CVE database; it
// catches the handful of floors that bite packaged applications most often.
var knownAdvisories = []advisory{
	{"urllib3", "< 1.26.0", "versions before 1.26.0 have known vulnerabilities"},
	{"requests", "< 2.25.0", "versions before 2.25.0 have known vulnerabilities"},
	{"cryptography", "< 3.3.0", "versions before 3.3.0 have known vulnerabilities"},
	{"pyyaml", "< 5.4.0", "versions before 5.4 allow arbitrary code execution via full_load"},
	{"pillow", "< 9.0.0", "versions before 9.0 have image parsing vulnerabilities"},
}

// CheckAdvisories returns a human-readable note for every external entry
// whose version hint falls inside a known-bad range. Entries without a
// parseable version are skipped: no hint means nothing to compare.
func CheckAdvisories(set *Set) []string {
	var issues []string
	for _, dep := range set.External() {
		if dep.Version == "" {
			continue
		}
		v, err := semver.NewVersion(dep.Version)
		if err != nil {
			continue
		}
		name := NormalizePackageName(dep.Package)
		for _, adv := range knownAdvisories {
			if adv.pkg != name {
				continue
			}
			c, err := semver.NewConstraint(adv.constraint)
			if err != nil {
				continue
			}
			if c.Check(v) {
				issues = append(issues, fmt.Sprintf("%s %s: %s", dep.Package, dep.Version, adv.note))
			}
		}
	}
	return issues
}
