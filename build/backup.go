package build

import (
	"fmt"
	"os"
	"time"
)

const backupStamp = "20060102_150405"

// backupExisting moves an existing artifact aside before the compiler
// overwrites it, so a failed build never destroys the last good output.
// It returns the backup path, or "" when nothing existed.
func backupExisting(outputPath string, now time.Time) (string, error) {
	if _, err := os.Stat(outputPath); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("stat output %s: %w", outputPath, err)
	}
	backup := fmt.Sprintf("%s.bak_%s", outputPath, now.Format(backupStamp))
	if err := os.Rename(outputPath, backup); err != nil {
		return "", fmt.Errorf("back up previous output: %w", err)
	}
	return backup, nil
}
