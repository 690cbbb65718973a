package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/databricks/databricks-sdk-go"
	"github.com/databricks/databricks-sdk-go/service/ml"
	"go.uber.org/zap"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"

	"github.com/imishinist/exptrack/internal/config"
	"github.com/imishinist/exptrack/internal/params"
)

// CloudOptions carries the per-run settings of the cloud experiment
// sink, read from the hyperparameter bag at attach time.
type CloudOptions struct {
	// APIKey is the trimmed contents of the key file.
	APIKey    string
	Workspace string
	Project   string
	// Tag becomes the run's display name.
	Tag string
}

// Cloud relays records to an MLflow tracking server.
type Cloud struct {
	client      *databricks.WorkspaceClient
	config      *config.Config
	runID       string
	artifactURI string
	log         *zap.SugaredLogger
}

var _ Sink = (*Cloud)(nil)
var _ ConfusionMatrixRecorder = (*Cloud)(nil)

// NewCloud creates the tracking client, resolves (or creates) the
// experiment named after workspace/project, and starts a run.
func NewCloud(cfg *config.Config, opts CloudOptions, logger *zap.SugaredLogger) (*Cloud, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	var databricksConfig *databricks.Config
	if cfg.IsDatabricks() {
		databricksConfig = &databricks.Config{}
		if cfg.TrackingURI == "databricks" {
			if cfg.DatabricksHost != "" {
				databricksConfig.Host = cfg.DatabricksHost
			}
		} else if profile := cfg.GetDatabricksProfile(); profile != "" {
			databricksConfig.Profile = profile
		} else {
			databricksConfig.Host = cfg.TrackingURI
		}
		if opts.APIKey != "" {
			databricksConfig.Token = opts.APIKey
		}
		if databricksConfig.Host == "" && databricksConfig.Profile == "" {
			return nil, fmt.Errorf("Databricks host or profile is required for a Databricks tracking URI")
		}
	} else {
		token := opts.APIKey
		if token == "" {
			// Regular MLflow servers ignore the token but the SDK requires one.
			token = "anonymous"
		}
		databricksConfig = &databricks.Config{
			Host:  cfg.TrackingURI,
			Token: token,
		}
	}

	client, err := databricks.NewWorkspaceClient(databricksConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracking client: %w", err)
	}

	c := &Cloud{client: client, config: cfg, log: logger}

	ctx := context.Background()
	experimentID, err := c.ensureExperiment(ctx, opts.Workspace, opts.Project)
	if err != nil {
		return nil, err
	}

	runName := opts.Tag
	if runName == "" {
		runName = "run-" + time.Now().Format("2006-01-02-15-04-05")
	}
	resp, err := c.client.Experiments.CreateRun(ctx, ml.CreateRun{
		ExperimentId: experimentID,
		RunName:      runName,
		StartTime:    time.Now().UnixMilli(),
		Tags: []ml.RunTag{
			{Key: "mlflow.runName", Value: runName},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	c.runID = resp.Run.Info.RunId
	c.artifactURI = resp.Run.Info.ArtifactUri
	logger.Infow("tracking run created", "run_id", c.runID, "experiment", experimentID)

	return c, nil
}

func (c *Cloud) ensureExperiment(ctx context.Context, workspace, project string) (string, error) {
	name := path.Join("/", workspace, project)
	resp, err := c.client.Experiments.GetByName(ctx, ml.GetByNameRequest{ExperimentName: name})
	if err == nil && resp.Experiment != nil {
		return resp.Experiment.ExperimentId, nil
	}

	created, err := c.client.Experiments.CreateExperiment(ctx, ml.CreateExperiment{Name: name})
	if err != nil {
		return "", fmt.Errorf("failed to create experiment %s: %w", name, err)
	}
	return created.ExperimentId, nil
}

func (c *Cloud) RecordScalar(key string, value float64, step int) error {
	err := c.client.Experiments.LogMetric(context.Background(), ml.LogMetric{
		RunId:     c.runID,
		Key:       key,
		Value:     value,
		Timestamp: time.Now().UnixMilli(),
		Step:      int64(step),
	})
	if err != nil {
		return fmt.Errorf("failed to log metric %s: %w", key, err)
	}
	return nil
}

func (c *Cloud) RecordImage(key string, img image.Image, step int) error {
	var buf bytes.Buffer
	if err := encodePNG(&buf, img); err != nil {
		return err
	}
	name := fmt.Sprintf("images/%s_%08d.png", sanitizeKey(key), step)
	return c.uploadArtifact(context.Background(), buf.Bytes(), name)
}

func (c *Cloud) RecordFigure(key string, fig *plot.Plot, step int) error {
	wt, err := fig.WriterTo(6*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("failed to render figure: %w", err)
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return fmt.Errorf("failed to render figure: %w", err)
	}
	name := fmt.Sprintf("figures/%s_%08d.png", sanitizeKey(key), step)
	return c.uploadArtifact(context.Background(), buf.Bytes(), name)
}

// RecordVideo is not supported by the tracking server; videos stay
// local.
func (c *Cloud) RecordVideo(string, []image.Image, int, int) error { return nil }

// RecordHistogram is intentionally a no-op: uploading full histograms
// per epoch is too slow for the tracking backend.
func (c *Cloud) RecordHistogram(string, []float64, int) error { return nil }

func (c *Cloud) RecordOther(key string, value any) error {
	err := c.client.Experiments.SetTag(context.Background(), ml.SetTag{
		RunId: c.runID,
		Key:   key,
		Value: params.FormatValue(value),
	})
	if err != nil {
		return fmt.Errorf("failed to set tag %s: %w", key, err)
	}
	return nil
}

func (c *Cloud) RecordParameters(bag params.Bag) error {
	ctx := context.Background()
	for key, value := range bag {
		err := c.client.Experiments.LogParam(ctx, ml.LogParam{
			RunId: c.runID,
			Key:   key,
			Value: params.FormatValue(value),
		})
		if err != nil {
			return fmt.Errorf("failed to log parameter %s: %w", key, err)
		}
	}
	return nil
}

func (c *Cloud) SetDisplayName(name string) error {
	return c.RecordOther("mlflow.runName", name)
}

func (c *Cloud) UploadCode(code, filename string) error {
	return c.uploadArtifact(context.Background(), []byte(code), path.Join("code", filename))
}

// RecordConfusionMatrix uploads the matrix as a JSON artifact carrying
// its display title.
func (c *Cloud) RecordConfusionMatrix(matrix [][]float64, title, filename string) error {
	payload, err := json.Marshal(struct {
		Title  string      `json:"title"`
		Matrix [][]float64 `json:"matrix"`
	}{Title: title, Matrix: matrix})
	if err != nil {
		return fmt.Errorf("failed to encode confusion matrix: %w", err)
	}
	return c.uploadArtifact(context.Background(), payload, filename)
}

// Close marks the run finished.
func (c *Cloud) Close() error {
	if c.runID == "" {
		return nil
	}
	_, err := c.client.Experiments.UpdateRun(context.Background(), ml.UpdateRun{
		RunId:   c.runID,
		Status:  ml.UpdateRunStatusFinished,
		EndTime: time.Now().UnixMilli(),
	})
	c.log.Debugw("tracking run finished", "run_id", c.runID)
	c.runID = ""
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// uploadArtifact stores data under the run's artifact root. Supported
// schemes are mlflow-artifacts:/ and plain local paths.
func (c *Cloud) uploadArtifact(ctx context.Context, data []byte, artifactPath string) error {
	uri := c.artifactURI
	if uri == "" {
		resp, err := c.client.Experiments.GetRun(ctx, ml.GetRunRequest{RunId: c.runID})
		if err != nil {
			return fmt.Errorf("failed to get run: %w", err)
		}
		uri = resp.Run.Info.ArtifactUri
		c.artifactURI = uri
	}

	switch {
	case strings.HasPrefix(uri, "mlflow-artifacts:/"):
		return c.uploadToMLflowArtifacts(ctx, uri, data, artifactPath)
	case strings.HasPrefix(uri, "file://"), strings.HasPrefix(uri, "/"):
		return c.uploadToLocalFS(uri, data, artifactPath)
	default:
		return fmt.Errorf("unsupported artifact URI scheme: %s", uri)
	}
}

// uploadToMLflowArtifacts uploads using the MLflow Artifacts Service.
func (c *Cloud) uploadToMLflowArtifacts(ctx context.Context, artifactURI string, data []byte, artifactPath string) error {
	experimentID, runID, err := extractIDsFromArtifactURI(artifactURI)
	if err != nil {
		return fmt.Errorf("failed to extract IDs from artifact URI: %w", err)
	}

	baseURL := strings.TrimSuffix(c.config.TrackingURI, "/")
	url := fmt.Sprintf("%s/api/2.0/mlflow-artifacts/artifacts/%s/%s/artifacts/%s", baseURL, experimentID, runID, artifactPath)

	req, err := http.NewRequestWithContext(ctx, "PUT", url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.ContentLength = int64(len(data))
	if c.config.IsDatabricks() && c.client.Config != nil && c.client.Config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.client.Config.Token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload artifact: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("artifact upload failed with status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// uploadToLocalFS writes the artifact under a file-based artifact root.
func (c *Cloud) uploadToLocalFS(artifactURI string, data []byte, artifactPath string) error {
	localPath := filepath.Join(strings.TrimPrefix(artifactURI, "file://"), filepath.FromSlash(artifactPath))
	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", filepath.Dir(localPath), err)
	}
	if err := os.WriteFile(localPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write artifact %s: %w", localPath, err)
	}
	return nil
}

// extractIDsFromArtifactURI extracts experiment ID and run ID from an
// mlflow-artifacts URI such as mlflow-artifacts:/0/<run>/artifacts.
func extractIDsFromArtifactURI(artifactURI string) (string, string, error) {
	parts := strings.Split(strings.TrimPrefix(artifactURI, "mlflow-artifacts:"), "/")
	if parts[0] == "" && len(parts) > 3 {
		parts = parts[1:]
	}
	if len(parts) < 3 {
		return "", "", fmt.Errorf("invalid mlflow-artifacts URI format: %s", artifactURI)
	}
	return parts[0], parts[1], nil
}
