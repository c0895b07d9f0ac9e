/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: utils.go
Description: Log file retention for the argv fuzzer. Every session opens a
new timestamped log file, so old ones are pruned once a limit is exceeded.
*/

package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// CleanupOldLogs removes the oldest session log files in logDir so that at
// most maxFiles remain. It returns the paths it removed.
func CleanupOldLogs(logDir string, maxFiles int) ([]string, error) {
	if logDir == "" || maxFiles <= 0 {
		return nil, nil
	}

	pattern := filepath.Join(logDir, strings.Replace(logFilePattern, "%s", "*", 1))
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to glob log files: %w", err)
	}
	if len(files) <= maxFiles {
		return nil, nil
	}

	// File names embed a sortable timestamp, so name order is age order.
	sort.Strings(files)

	removed := make([]string, 0, len(files)-maxFiles)
	for _, file := range files[:len(files)-maxFiles] {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("failed to remove old log file %s: %w", file, err)
		}
		removed = append(removed, file)
	}
	return removed, nil
}
