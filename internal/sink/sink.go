// Package sink defines the logging-sink capability interface and its
// two implementations: a local event-log sink writing under the run
// directory, and a cloud sink backed by an MLflow tracking server.
package sink

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"strings"

	"gonum.org/v1/plot"

	"github.com/imishinist/exptrack/internal/params"
)

// Sink receives a copy of everything dumped during a run. All methods
// are best-effort from the caller's point of view: one sink failing
// must not keep data from reaching the others.
type Sink interface {
	RecordScalar(key string, value float64, step int) error
	RecordImage(key string, img image.Image, step int) error
	RecordFigure(key string, fig *plot.Plot, step int) error
	RecordVideo(key string, frames []image.Image, step, fps int) error
	RecordHistogram(key string, values []float64, step int) error
	RecordOther(key string, value any) error
	RecordParameters(bag params.Bag) error
	SetDisplayName(name string) error
	UploadCode(code, filename string) error
	Close() error
}

// GraphRecorder is an optional capability: sinks that can store a model
// graph summary implement it.
type GraphRecorder interface {
	RecordGraph(summary string) error
}

// ConfusionMatrixRecorder is an optional capability implemented by the
// cloud sink only.
type ConfusionMatrixRecorder interface {
	RecordConfusionMatrix(matrix [][]float64, title, filename string) error
}

// sanitizeKey makes a record key usable as a file name component.
func sanitizeKey(key string) string {
	return strings.ReplaceAll(key, "/", "_")
}

func encodePNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}
	return nil
}
