package models

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// RunNameLayout is the second-resolution timestamp prefix of every run
// directory name.
const RunNameLayout = "2006_01_02_15_04_05"

type RunInfo struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Tag       string    `json:"tag,omitempty"`
	StartTime time.Time `json:"start_time"`
}

// FormatRunName derives the run directory name from a start time and an
// optional tag.
func FormatRunName(t time.Time, tag string) string {
	name := t.Format(RunNameLayout)
	if tag != "" {
		name += "_" + tag
	}
	return name
}

// ParseRunName splits a run directory name back into its start time and
// tag.
func ParseRunName(name string) (time.Time, string, error) {
	if len(name) < len(RunNameLayout) {
		return time.Time{}, "", fmt.Errorf("invalid run name: %s", name)
	}
	t, err := time.Parse(RunNameLayout, name[:len(RunNameLayout)])
	if err != nil {
		return time.Time{}, "", fmt.Errorf("invalid run name %s: %w", name, err)
	}
	tag := strings.TrimPrefix(name[len(RunNameLayout):], "_")
	return t, tag, nil
}

// ListRuns scans root for run directories and returns them ordered by
// start time. Entries that do not parse as run names are skipped.
func ListRuns(root string) ([]RunInfo, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read runs root %s: %w", root, err)
	}

	var runs []RunInfo
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		start, tag, err := ParseRunName(e.Name())
		if err != nil {
			continue
		}
		runs = append(runs, RunInfo{
			Name:      e.Name(),
			Path:      filepath.Join(root, e.Name()),
			Tag:       tag,
			StartTime: start,
		})
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartTime.Before(runs[j].StartTime) })
	return runs, nil
}
