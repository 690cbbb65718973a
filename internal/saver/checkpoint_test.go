package saver

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imishinist/exptrack/internal/tensor"
)

func newTestSaver(t *testing.T) *Saver {
	t.Helper()
	s, err := New(t.TempDir(), testBag(), Options{})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestSaveModelWritesEpochStampedFile(t *testing.T) {
	s := newTestSaver(t)

	w, err := tensor.New([]float64{1, 2, 3}, 3)
	require.NoError(t, err)
	require.NoError(t, s.SaveModel(fakeNet{w: w}, "net", 12))

	assert.FileExists(t, filepath.Join(s.CheckpointPath(), "net_00012.pth"))
}

func TestSaveModelCopiesToHost(t *testing.T) {
	s := newTestSaver(t)

	w := tensor.Zeros(2)
	w.Device = tensor.CUDA
	require.NoError(t, s.SaveModel(fakeNet{w: w}, "net", 0))

	ck, err := LoadCheckpoint(filepath.Join(s.CheckpointPath(), "net_00000.pth"))
	require.NoError(t, err)
	assert.Equal(t, tensor.CPU, ck.State["w"].Device)
}

func TestLoadCheckpointFromFile(t *testing.T) {
	s := newTestSaver(t)

	w, err := tensor.New([]float64{0.5, -0.5}, 2)
	require.NoError(t, err)
	require.NoError(t, s.SaveModel(fakeNet{w: w}, "net", 3))

	ck, err := LoadCheckpoint(filepath.Join(s.CheckpointPath(), "net_00003.pth"))
	require.NoError(t, err)
	assert.Equal(t, "net", ck.Name)
	assert.Equal(t, 3, ck.Epoch)
	assert.Equal(t, []float64{0.5, -0.5}, ck.State["w"].Data)
}

// A run directory keeps its checkpoints inside ckpt/, so loading the
// run directory itself must search the nested subdirectory and pick the
// most recently modified file.
func TestLoadCheckpointNestedNewest(t *testing.T) {
	s := newTestSaver(t)

	require.NoError(t, s.SaveModel(fakeNet{w: tensor.Zeros(1)}, "net", 1))
	newer, err := tensor.New([]float64{9}, 1)
	require.NoError(t, err)
	require.NoError(t, s.SaveModel(fakeNet{w: newer}, "net", 2))

	// Force distinct modification times regardless of filesystem
	// resolution.
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(s.CheckpointPath(), "net_00001.pth"), old, old))

	ck, err := LoadCheckpoint(s.Path())
	require.NoError(t, err)
	assert.Equal(t, 2, ck.Epoch)
	assert.Equal(t, []float64{9}, ck.State["w"].Data)
}

func TestLoadCheckpointPrefersDirectFiles(t *testing.T) {
	s := newTestSaver(t)

	require.NoError(t, s.SaveModel(fakeNet{w: tensor.Zeros(1)}, "nested", 1))
	require.NoError(t, s.SaveData(Checkpoint{Name: "direct", Epoch: 5}, "direct"))

	ck, err := LoadCheckpoint(s.Path())
	require.NoError(t, err)
	assert.Equal(t, "direct", ck.Name)
}

func TestLoadCheckpointInvalidPath(t *testing.T) {
	_, err := LoadCheckpoint(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestLoadCheckpointEmptyDirectory(t *testing.T) {
	_, err := LoadCheckpoint(t.TempDir())
	assert.ErrorIs(t, err, ErrNoCheckpoint)
}

func TestSaveDataRoundTrip(t *testing.T) {
	s := newTestSaver(t)

	history := map[string]float64{"best_acc": 0.92}
	require.NoError(t, s.SaveData(history, "history"))

	var loaded map[string]float64
	require.NoError(t, LoadData(filepath.Join(s.Path(), "history.pth"), &loaded))
	assert.Equal(t, history, loaded)
}

func TestLoadHyperparamsFromRunDirectory(t *testing.T) {
	s := newTestSaver(t)

	bag, err := LoadHyperparams(s.Path())
	require.NoError(t, err)
	assert.Equal(t, 0.01, bag["lr"])
	assert.Equal(t, s.RunName(), bag["exp_name"])
}
