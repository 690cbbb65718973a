package sink

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"

	"github.com/imishinist/exptrack/internal/models"
	"github.com/imishinist/exptrack/internal/params"
	"github.com/imishinist/exptrack/internal/tensor"
)

const (
	// EventsFile is the local sink's append-only record log.
	EventsFile = "events.jsonl"
	// payloadDir holds rendered payloads referenced from the log.
	payloadDir = "log"

	histogramBins = 64
)

// Local mirrors every record into an events.jsonl log under the run
// directory, with rendered payloads stored alongside.
type Local struct {
	payload string
	file    *os.File
	enc     *json.Encoder
	log     *zap.SugaredLogger
}

var _ Sink = (*Local)(nil)
var _ GraphRecorder = (*Local)(nil)

// NewLocal opens a local sink rooted at the run directory.
func NewLocal(runDir string, logger *zap.SugaredLogger) (*Local, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	payload := filepath.Join(runDir, payloadDir)
	if err := os.MkdirAll(payload, 0755); err != nil {
		return nil, fmt.Errorf("failed to create payload dir: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(runDir, EventsFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}

	logger.Debugw("local event log opened", "dir", runDir)
	return &Local{
		payload: payload,
		file:    f,
		enc:     json.NewEncoder(f),
		log:     logger,
	}, nil
}

func (l *Local) write(ev models.Event) error {
	ev.Timestamp = time.Now()
	if err := l.enc.Encode(ev); err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

func (l *Local) RecordScalar(key string, value float64, step int) error {
	return l.write(models.Event{Type: models.EventScalar, Key: key, Value: value, Step: step})
}

func (l *Local) RecordImage(key string, img image.Image, step int) error {
	p := filepath.Join(l.payload, fmt.Sprintf("%s_%08d.jpg", sanitizeKey(key), step))
	if err := tensor.EncodeJPEG(img, p); err != nil {
		return err
	}
	return l.write(models.Event{Type: models.EventImage, Key: key, Step: step, Path: p})
}

func (l *Local) RecordFigure(key string, fig *plot.Plot, step int) error {
	p := filepath.Join(l.payload, fmt.Sprintf("%s_%08d.png", sanitizeKey(key), step))
	if err := fig.Save(6*vg.Inch, 4*vg.Inch, p); err != nil {
		return fmt.Errorf("failed to save figure: %w", err)
	}
	return l.write(models.Event{Type: models.EventFigure, Key: key, Step: step, Path: p})
}

func (l *Local) RecordVideo(key string, frames []image.Image, step, fps int) error {
	dir := filepath.Join(l.payload, fmt.Sprintf("%s_%08d", sanitizeKey(key), step))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create video dir: %w", err)
	}
	for i, frame := range frames {
		if err := tensor.EncodeJPEG(frame, filepath.Join(dir, fmt.Sprintf("frame_%05d.jpg", i))); err != nil {
			return err
		}
	}
	return l.write(models.Event{Type: models.EventVideo, Key: key, Step: step, Path: dir, FPS: fps})
}

func (l *Local) RecordHistogram(key string, values []float64, step int) error {
	hist := &models.Histogram{Counts: make([]int, histogramBins)}
	if len(values) > 0 {
		hist.Min = floats.Min(values)
		hist.Max = floats.Max(values)
		width := (hist.Max - hist.Min) / histogramBins
		for _, v := range values {
			bin := histogramBins - 1
			if width > 0 {
				bin = int((v - hist.Min) / width)
				if bin >= histogramBins {
					bin = histogramBins - 1
				}
			}
			hist.Counts[bin]++
		}
	}
	return l.write(models.Event{Type: models.EventHistogram, Key: key, Step: step, Histogram: hist})
}

func (l *Local) RecordOther(key string, value any) error {
	return l.write(models.Event{Type: models.EventOther, Key: key, Text: params.FormatValue(value)})
}

func (l *Local) RecordParameters(bag params.Bag) error {
	for _, line := range params.Render(bag) {
		if err := l.write(models.Event{Type: models.EventParam, Key: "hyperparams", Text: line}); err != nil {
			return err
		}
	}
	return nil
}

func (l *Local) RecordGraph(summary string) error {
	return l.write(models.Event{Type: models.EventGraph, Key: "model", Text: summary})
}

func (l *Local) SetDisplayName(name string) error {
	return l.write(models.Event{Type: models.EventOther, Key: "display_name", Text: name})
}

func (l *Local) UploadCode(code, filename string) error {
	p := filepath.Join(l.payload, sanitizeKey(filename))
	if err := os.WriteFile(p, []byte(code), 0644); err != nil {
		return fmt.Errorf("failed to store code: %w", err)
	}
	return l.write(models.Event{Type: models.EventOther, Key: "code", Path: p})
}

// Close flushes and releases the event log. Safe to call more than
// once.
func (l *Local) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	if err != nil {
		return fmt.Errorf("failed to close event log: %w", err)
	}
	l.log.Debug("local event log closed")
	return nil
}
