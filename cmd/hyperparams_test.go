package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imishinist/exptrack/internal/params"
)

func TestLoadBagDispatchesOnExtension(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "bag.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"parameters": {"batch_size": 4, "lr": 0.01}}`), 0644))

	yamlPath := filepath.Join(dir, "bag.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("parameters:\n  optim: Adam\n"), 0644))

	txtPath := filepath.Join(dir, params.HyperparamsFile)
	require.NoError(t, params.Write(txtPath, params.Bag{"seed": 42}, "run"))

	bag, err := loadBag(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, 4, bag["batch_size"])
	assert.Equal(t, 0.01, bag["lr"])

	bag, err = loadBag(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "Adam", bag["optim"])

	bag, err = loadBag(txtPath)
	require.NoError(t, err)
	assert.Equal(t, 42, bag["seed"])
}

func TestLoadBagInvalidPath(t *testing.T) {
	_, err := loadBag(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
