package params

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderSorted(t *testing.T) {
	bag := Bag{
		"lr":         0.01,
		"batch_size": 4,
		"optim":      "Adam",
	}

	lines := Render(bag)
	assert.Equal(t, []string{"batch_size: 4", "lr: 0.01", "optim: Adam"}, lines)
}

func TestWriteLoadRoundTrip(t *testing.T) {
	bag := Bag{
		"batch_size": 4,
		"lr":         0.01,
		"multi_gpu":  false,
		"overfit":    true,
		"optim":      "Adam",
		"trainer":    "trainers/trainer_base",
		"milestones": []any{10, 20, 30},
	}

	dir := t.TempDir()
	path := filepath.Join(dir, HyperparamsFile)
	require.NoError(t, Write(path, bag, "2024_01_02_03_04_05_tagged"))

	loaded, err := Load(path)
	require.NoError(t, err)

	for k, v := range bag {
		assert.Equal(t, v, loaded[k], "key %s", k)
	}
	assert.Equal(t, "2024_01_02_03_04_05_tagged", loaded["exp_name"])
}

func TestLoadFromDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Write(filepath.Join(dir, HyperparamsFile), Bag{"seed": 42}, "run"))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 42, loaded["seed"])
}

func TestLoadInvalidPath(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestLoadValueWithColons(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, HyperparamsFile)
	require.NoError(t, os.WriteFile(path, []byte("device: cuda:0\nuri: http://host:5000/x\n"), 0644))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "cuda:0", loaded["device"])
	assert.Equal(t, "http://host:5000/x", loaded["uri"])
}

func TestLoadDuplicateKeysLastWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, HyperparamsFile)
	require.NoError(t, os.WriteFile(path, []byte("seed: 1\nseed: 2\n"), 0644))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded["seed"])
}

func TestParseLiteral(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"42", 42},
		{"-7", -7},
		{"0.5", 0.5},
		{"1e-3", 0.001},
		{"true", true},
		{"False", false},
		{"None", nil},
		{"(1, 2.5, cpu)", []any{1, 2.5, "cpu"}},
		{"[3, 4]", []any{3, 4}},
		{"'quoted'", "quoted"},
		{"plain text", "plain text"},
		// Untagged run names look like digit-separated numbers but must
		// stay strings.
		{"2024_01_02_03_04_05", "2024_01_02_03_04_05"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLiteral(tt.in), "input %q", tt.in)
	}
}

// A string that happens to look like another literal comes back as that
// literal. Known limitation of the text format, not a bug.
func TestNumericLookingStringConverts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, HyperparamsFile)
	require.NoError(t, Write(path, Bag{"fold": "3"}, "run"))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded["fold"])
}

func TestCuratedSubsets(t *testing.T) {
	bag := Bag{
		"batch_size": 4,
		"lr":         0.01,
		"optim":      "Adam",
		"dataset":    "data/eremus",
		"fold":       "0",
		"model":      "ra_cnn",
		"subject":    1,
		"unrelated":  "x",
	}

	curated := Curated(bag)
	assert.Equal(t, Bag{"batch_size": 4, "lr": 0.01, "optim": "Adam"}, curated)

	others := Others(bag)
	assert.Equal(t, "eremus", others["dataset_name"])
	assert.Equal(t, "ra_cnn", others["model"])
	assert.NotContains(t, others, "unrelated")
}
