package saver

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/imishinist/exptrack/internal/params"
	"github.com/imishinist/exptrack/internal/tensor"
)

// CheckpointExt is the extension of serialized snapshots.
const CheckpointExt = ".pth"

// Module is anything whose parameters can be checkpointed.
type Module interface {
	StateDict() map[string]*tensor.Tensor
}

// GraphSummarizer lets a module describe its own computation graph for
// AddGraph. Modules without it get a parameter-shape listing.
type GraphSummarizer interface {
	GraphSummary() string
}

// Checkpoint is one epoch-stamped parameter snapshot.
type Checkpoint struct {
	Name  string
	Epoch int
	State map[string]*tensor.Tensor
}

// SaveData serializes an arbitrary value under the run root as
// <name>.pth. Read it back with LoadData using the same concrete type.
func (s *Saver) SaveData(data any, name string) error {
	return writeGob(filepath.Join(s.path, name+CheckpointExt), data)
}

// LoadData deserializes a file written by SaveData into out, which must
// be a pointer to the value's concrete type.
func LoadData(path string, out any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("invalid data path %s: %w", path, err)
	}
	defer f.Close()

	if err := gob.NewDecoder(f).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// SaveModel snapshots the module's parameters into the checkpoint
// directory. Every tensor is copied to host memory first so the
// snapshot never aliases live training state.
func (s *Saver) SaveModel(m Module, name string, epoch int) error {
	state := m.StateDict()
	host := make(map[string]*tensor.Tensor, len(state))
	for k, v := range state {
		host[k] = v.CPU()
	}

	ck := Checkpoint{Name: name, Epoch: epoch, State: host}
	path := filepath.Join(s.ckptPath, fmt.Sprintf("%s_%05d%s", name, epoch, CheckpointExt))
	return writeGob(path, ck)
}

// LoadCheckpoint restores a checkpoint from a file, or from the most
// recently modified checkpoint in a directory. A directory without
// checkpoint files is retried through its nested ckpt subdirectory.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("invalid checkpoint path %s: %w", path, err)
	}

	if info.IsDir() {
		path, err = newestCheckpoint(path)
		if err != nil {
			return nil, err
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint: %w", err)
	}
	defer f.Close()

	var ck Checkpoint
	if err := gob.NewDecoder(f).Decode(&ck); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint %s: %w", path, err)
	}
	return &ck, nil
}

// LoadHyperparams restores a hyperparameter bag from a metadata file or
// from the run directory containing one.
func LoadHyperparams(path string) (params.Bag, error) {
	return params.Load(path)
}

// newestCheckpoint picks the most recently modified checkpoint file in
// dir, falling back to dir/ckpt.
func newestCheckpoint(dir string) (string, error) {
	files, err := checkpointFiles(dir)
	if err != nil {
		return "", err
	}
	if len(files) == 0 {
		files, err = checkpointFiles(filepath.Join(dir, checkpointDir))
		if err != nil && !os.IsNotExist(err) {
			return "", err
		}
		if len(files) == 0 {
			return "", fmt.Errorf("%w in %s", ErrNoCheckpoint, dir)
		}
	}

	type candidate struct {
		path  string
		mtime int64
	}
	cands := make([]candidate, 0, len(files))
	for _, p := range files {
		st, err := os.Stat(p)
		if err != nil {
			continue
		}
		cands = append(cands, candidate{path: p, mtime: st.ModTime().UnixNano()})
	}
	if len(cands) == 0 {
		return "", fmt.Errorf("%w in %s", ErrNoCheckpoint, dir)
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].mtime < cands[j].mtime })
	return cands[len(cands)-1].path, nil
}

func checkpointFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == CheckpointExt {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

func writeGob(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(v); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return nil
}

// graphSummary describes a module for graph recording: its own summary
// when it has one, otherwise the sorted parameter shapes plus the
// sample input shape.
func graphSummary(m Module, sample *tensor.Tensor) string {
	if gs, ok := m.(GraphSummarizer); ok {
		return gs.GraphSummary()
	}

	state := m.StateDict()
	names := make([]string, 0, len(state))
	for k := range state {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	if sample != nil {
		fmt.Fprintf(&b, "input: %v\n", sample.Shape)
	}
	for _, k := range names {
		fmt.Fprintf(&b, "%s: %v\n", k, state[k].Shape)
	}
	return b.String()
}
