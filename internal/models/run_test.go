package models

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatRunName(t *testing.T) {
	ts := time.Date(2024, 3, 9, 17, 30, 5, 0, time.UTC)

	assert.Equal(t, "2024_03_09_17_30_05", FormatRunName(ts, ""))
	assert.Equal(t, "2024_03_09_17_30_05_run1", FormatRunName(ts, "run1"))
}

func TestParseRunName(t *testing.T) {
	ts, tag, err := ParseRunName("2024_03_09_17_30_05_run1")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 9, 17, 30, 5, 0, time.UTC), ts)
	assert.Equal(t, "run1", tag)

	_, tag, err = ParseRunName("2024_03_09_17_30_05")
	require.NoError(t, err)
	assert.Empty(t, tag)

	_, _, err = ParseRunName("not-a-run")
	assert.Error(t, err)
}

func TestListRuns(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{
		"2024_03_09_17_30_05_b",
		"2024_03_08_10_00_00_a",
		"notes",
	} {
		require.NoError(t, os.Mkdir(filepath.Join(root, name), 0755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "stray.txt"), nil, 0644))

	runs, err := ListRuns(root)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "a", runs[0].Tag)
	assert.Equal(t, "b", runs[1].Tag)
}
