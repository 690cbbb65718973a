// Package saver owns one experiment's on-disk artifact tree and relays
// dumped data to the attached logging sinks.
package saver

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/imishinist/exptrack/internal/config"
	"github.com/imishinist/exptrack/internal/models"
	"github.com/imishinist/exptrack/internal/params"
	"github.com/imishinist/exptrack/internal/sink"
	"github.com/imishinist/exptrack/internal/tensor"
)

var (
	// ErrNoCloudSink is returned by LogConfusionMatrix when no attached
	// sink can record confusion matrices.
	ErrNoCloudSink = errors.New("confusion matrices require the cloud sink")

	// ErrNoCheckpoint is returned when a checkpoint directory holds no
	// checkpoint files.
	ErrNoCheckpoint = errors.New("no checkpoint file found")
)

const (
	commandFile   = "command.txt"
	checkpointDir = "ckpt"
	outputDir     = "output"

	gridColumns  = 8
	gridPadValue = 1.0
	videoFPS     = 5
)

// Options configures a Saver. Sink availability is decided by the
// caller once, up front: there is no ambient probing at dump time.
type Options struct {
	// SubDirs are the output splits. Defaults to train and test.
	SubDirs []string
	// Tag is appended to the run directory name and becomes the cloud
	// run's display name.
	Tag string
	// Local attaches the local event-log sink.
	Local bool
	// Cloud holds the tracking-server config. The cloud sink is only
	// attached when this is set and the bag carries the three gating
	// keys.
	Cloud *config.Config
	// ModelSourceDir is where <model>.go source files live for code
	// upload. Defaults to "models".
	ModelSourceDir string
	// Sinks are attached as-is, in addition to any configured above.
	Sinks []sink.Sink

	Logger *zap.SugaredLogger
}

// Saver creates the run directory tree at construction and thereafter
// writes every dumped artifact locally while forwarding it to each
// attached sink. Not safe for concurrent use.
type Saver struct {
	path     string
	ckptPath string
	runName  string
	bag      params.Bag
	outputs  map[string]string
	sinks    []sink.Sink
	log      *zap.SugaredLogger
}

// New creates the run directory under baseDir, attaches the configured
// sinks and persists the run metadata.
func New(baseDir string, bag params.Bag, opts Options) (*Saver, error) {
	if len(opts.SubDirs) == 0 {
		opts.SubDirs = []string{"train", "test"}
	}
	if opts.ModelSourceDir == "" {
		opts.ModelSourceDir = "models"
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	runName := models.FormatRunName(time.Now(), opts.Tag)
	s := &Saver{
		path:    filepath.Join(baseDir, runName),
		runName: runName,
		bag:     bag,
		outputs: make(map[string]string, len(opts.SubDirs)),
		log:     logger,
	}
	s.ckptPath = filepath.Join(s.path, checkpointDir)

	if err := os.MkdirAll(s.path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory %s: %w", s.path, err)
	}
	if err := os.MkdirAll(s.ckptPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(s.path, outputDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	// Split directories must not pre-exist: a collision means two runs
	// landed in the same directory.
	for _, sub := range opts.SubDirs {
		dir := filepath.Join(s.path, outputDir, sub)
		if err := os.Mkdir(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create split directory %s: %w", dir, err)
		}
		s.outputs[sub] = dir
	}

	if err := s.attachSinks(opts); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.writeMetadata(opts); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Saver) attachSinks(opts Options) error {
	s.sinks = append(s.sinks, opts.Sinks...)

	if opts.Local {
		local, err := sink.NewLocal(s.path, s.log)
		if err != nil {
			return fmt.Errorf("failed to attach local sink: %w", err)
		}
		s.sinks = append(s.sinks, local)
		s.log.Infow("using local event log", "run", s.runName)
	}

	keyPath, hasKey := s.bag[params.KeyAPIKeyPath].(string)
	workspace, hasWorkspace := s.bag[params.KeyWorkspace].(string)
	project, hasProject := s.bag[params.KeyProject].(string)
	if opts.Cloud != nil && hasKey && hasWorkspace && hasProject {
		apiKey, err := os.ReadFile(keyPath)
		if err != nil {
			return fmt.Errorf("failed to read API key file: %w", err)
		}
		cloud, err := sink.NewCloud(opts.Cloud, sink.CloudOptions{
			APIKey:    strings.TrimSpace(string(apiKey)),
			Workspace: strings.TrimSpace(workspace),
			Project:   strings.TrimSpace(project),
			Tag:       opts.Tag,
		}, s.log)
		if err != nil {
			return fmt.Errorf("failed to attach cloud sink: %w", err)
		}
		s.sinks = append(s.sinks, cloud)
		s.log.Infow("using cloud tracking", "workspace", workspace, "project", project)
	}

	if len(s.sinks) == 0 {
		s.log.Warn("no logger attached, keeping local files only")
		return nil
	}
	if opts.Tag != "" {
		s.forEachSink("set display name", func(sk sink.Sink) error {
			return sk.SetDisplayName(opts.Tag)
		})
	}
	return nil
}

func (s *Saver) writeMetadata(opts Options) error {
	if err := params.Write(filepath.Join(s.path, params.HyperparamsFile), s.bag, s.runName); err != nil {
		return err
	}

	// The curated subsets go to the sinks as structured records; the
	// full bag only exists in hyperparams.txt.
	s.forEachSink("record parameters", func(sk sink.Sink) error {
		return sk.RecordParameters(params.Curated(s.bag))
	})
	others := params.Others(s.bag)
	s.forEachSink("record run info", func(sk sink.Sink) error {
		for _, line := range params.Render(others) {
			key, value, _ := strings.Cut(line, ": ")
			if err := sk.RecordOther(key, value); err != nil {
				return err
			}
		}
		return nil
	})

	command := strings.Join(os.Args, " ")
	if err := os.WriteFile(filepath.Join(s.path, commandFile), []byte(command+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write command file: %w", err)
	}
	s.forEachSink("record command", func(sk sink.Sink) error {
		return sk.RecordOther("command", command)
	})

	s.snapshotVCS()

	if s.hasCloudSink() {
		if err := s.uploadModelSource(opts.ModelSourceDir); err != nil {
			return err
		}
	}
	return nil
}

// uploadModelSource reads the model's source file next to the training
// code and attaches it to the run.
func (s *Saver) uploadModelSource(sourceDir string) error {
	model, ok := s.bag["model"].(string)
	if !ok || model == "" {
		return nil
	}
	filename := model + ".go"
	code, err := os.ReadFile(filepath.Join(sourceDir, filename))
	if err != nil {
		return fmt.Errorf("failed to read model source: %w", err)
	}
	s.forEachSink("upload code", func(sk sink.Sink) error {
		return sk.UploadCode(string(code), filename)
	})
	return nil
}

// Path returns the run directory.
func (s *Saver) Path() string { return s.path }

// CheckpointPath returns the checkpoint directory.
func (s *Saver) CheckpointPath() string { return s.ckptPath }

// RunName returns the timestamped run name.
func (s *Saver) RunName() string { return s.runName }

// OutputPath returns the output directory of a declared split.
func (s *Saver) OutputPath(split string) (string, error) {
	dir, ok := s.outputs[split]
	if !ok {
		return "", fmt.Errorf("undeclared split %q", split)
	}
	return dir, nil
}

// forEachSink forwards one record to every attached sink. A failing
// sink is logged and skipped so the remaining sinks still receive the
// record.
func (s *Saver) forEachSink(what string, fn func(sink.Sink) error) {
	for _, sk := range s.sinks {
		if err := fn(sk); err != nil {
			s.log.Warnw("sink error", "op", what, "error", err)
		}
	}
}

func (s *Saver) hasCloudSink() bool {
	for _, sk := range s.sinks {
		if _, ok := sk.(sink.ConfusionMatrixRecorder); ok {
			return true
		}
	}
	return false
}

// AddGraph records the model graph on sinks that support it. Sinks
// without graph support are skipped silently.
func (s *Saver) AddGraph(m Module, sample *tensor.Tensor) {
	summary := graphSummary(m, sample)
	for _, sk := range s.sinks {
		if gr, ok := sk.(sink.GraphRecorder); ok {
			if err := gr.RecordGraph(summary); err != nil {
				s.log.Warnw("sink error", "op", "record graph", "error", err)
			}
		}
	}
}

// DumpBatchImage arranges an image batch into a grid, writes it under
// the split's output directory and forwards it to every sink.
func (s *Saver) DumpBatchImage(img *tensor.Tensor, epoch int, split, name string) error {
	dir, err := s.OutputPath(split)
	if err != nil {
		return err
	}
	if img.Dims() != 4 {
		return fmt.Errorf("shape %v differs from BxCxHxW format", img.Shape)
	}
	if min, max := img.MinMax(); min < 0 || max > 1 {
		return fmt.Errorf("image values must be between 0 and 1, got [%g, %g]", min, max)
	}

	grid, err := tensor.ImageGrid(img.CPU(), gridColumns, gridPadValue)
	if err != nil {
		return err
	}
	out := filepath.Join(dir, fmt.Sprintf("%05d_%s.jpg", epoch, name))
	if err := tensor.EncodeJPEG(grid, out); err != nil {
		return err
	}

	key := split + "/" + name
	s.forEachSink("record image", func(sk sink.Sink) error {
		return sk.RecordImage(key, grid, epoch)
	})
	return nil
}

// DumpBatchVideo writes a video batch as a frame grid and forwards the
// frames to sinks that play video.
func (s *Saver) DumpBatchVideo(video *tensor.Tensor, epoch int, split, name string) error {
	dir, err := s.OutputPath(split)
	if err != nil {
		return err
	}
	if video.Dims() != 5 {
		return fmt.Errorf("shape %v differs from BxTxCxHxW format", video.Shape)
	}
	if min, max := video.MinMax(); min < 0 || max > 1 {
		return fmt.Errorf("video values must be between 0 and 1, got [%g, %g]", min, max)
	}

	grid, err := tensor.VideoGrid(video.CPU(), gridPadValue)
	if err != nil {
		return err
	}
	out := filepath.Join(dir, fmt.Sprintf("%05d_%s.jpg", epoch, name))
	if err := tensor.EncodeJPEG(grid, out); err != nil {
		return err
	}

	frames, err := tensor.Frames(video, gridColumns, gridPadValue)
	if err != nil {
		return err
	}
	s.forEachSink("record video", func(sk sink.Sink) error {
		return sk.RecordVideo(name, frames, epoch, videoFPS)
	})
	return nil
}

// Line is the input of DumpLine: Y values with optional explicit X
// coordinates and nominal X labels. A nil X plots Y against its
// indices.
type Line struct {
	X      []float64
	Y      []float64
	Labels []string
}

// DumpLine plots a line figure, saves it under the split's output
// directory when a name is given, and forwards the figure to every
// sink.
func (s *Saver) DumpLine(line Line, step int, split, name string) error {
	if line.X != nil && len(line.X) != len(line.Y) {
		return fmt.Errorf("line x/y length mismatch: %d vs %d", len(line.X), len(line.Y))
	}

	pts := make(plotter.XYs, len(line.Y))
	for i, y := range line.Y {
		x := float64(i)
		if line.X != nil {
			x = line.X[i]
		}
		pts[i] = plotter.XY{X: x, Y: y}
	}

	fig := plot.New()
	l, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("failed to build line plot: %w", err)
	}
	fig.Add(l)
	if len(line.Labels) > 0 {
		fig.NominalX(line.Labels...)
	}

	key := split
	if name != "" {
		dir, err := s.OutputPath(split)
		if err != nil {
			return err
		}
		out := filepath.Join(dir, fmt.Sprintf("line_%08d_%s.jpg", step, strings.ReplaceAll(name, "/", "_")))
		if err := fig.Save(6*vg.Inch, 4*vg.Inch, out); err != nil {
			return fmt.Errorf("failed to save line figure: %w", err)
		}
		key = split + "/" + name
	}

	s.forEachSink("record figure", func(sk sink.Sink) error {
		return sk.RecordFigure(key, fig, step)
	})
	return nil
}

// DumpHistogram forwards the flattened tensor to sinks that record
// histograms.
func (s *Saver) DumpHistogram(t *tensor.Tensor, epoch int, desc string) {
	values := t.CPU().Flatten()
	s.forEachSink("record histogram", func(sk sink.Sink) error {
		return sk.RecordHistogram(desc, values, epoch)
	})
}

// DumpMetric forwards a scalar keyed by the tag segments joined with
// "/" at step epoch.
func (s *Saver) DumpMetric(value float64, epoch int, tags ...string) {
	key := strings.Join(tags, "/")
	s.forEachSink("record scalar", func(sk sink.Sink) error {
		return sk.RecordScalar(key, value, epoch)
	})
}

// LogConfusionMatrix records a confusion matrix on the cloud sink.
// Unlike the other dump operations this one fails loudly when the
// capable sink is missing, instead of dropping the matrix.
func (s *Saver) LogConfusionMatrix(matrix [][]float64, epoch int, split string) error {
	for i, row := range matrix {
		if len(row) != len(matrix) {
			return fmt.Errorf("confusion matrix must be square, row %d has %d columns for %d rows", i, len(row), len(matrix))
		}
	}

	title := fmt.Sprintf("Confusion Matrix, %s, Epoch %d", split, epoch)
	filename := fmt.Sprintf("%s-confusion-matrix-%03d.json", split, epoch)
	for _, sk := range s.sinks {
		if cm, ok := sk.(sink.ConfusionMatrixRecorder); ok {
			return cm.RecordConfusionMatrix(matrix, title, filename)
		}
	}
	return ErrNoCloudSink
}

// Close releases the attached sinks. Calling it again is a no-op.
func (s *Saver) Close() {
	s.forEachSink("close", func(sk sink.Sink) error {
		return sk.Close()
	})
	s.sinks = nil
}
