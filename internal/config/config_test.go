package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	cfg := &Config{TrackingURI: "http://localhost:5000", OutputRoot: "experiments"}
	assert.NoError(t, cfg.Validate())

	assert.Error(t, (&Config{OutputRoot: "experiments"}).Validate())
	assert.Error(t, (&Config{TrackingURI: "http://localhost:5000"}).Validate())
}

func TestIsDatabricks(t *testing.T) {
	tests := []struct {
		uri  string
		want bool
	}{
		{"databricks", true},
		{"databricks://staging", true},
		{"https://myws.cloud.databricks.com", true},
		{"https://adb-123.azuredatabricks.net/path", true},
		{"http://localhost:5000", false},
		{"https://mlflow.example.com", false},
	}
	for _, tt := range tests {
		cfg := &Config{TrackingURI: tt.uri}
		assert.Equal(t, tt.want, cfg.IsDatabricks(), "uri %s", tt.uri)
	}
}

func TestGetDatabricksProfile(t *testing.T) {
	assert.Equal(t, "staging", (&Config{TrackingURI: "databricks://staging"}).GetDatabricksProfile())
	assert.Equal(t, "staging", (&Config{TrackingURI: "databricks://staging/extra"}).GetDatabricksProfile())
	assert.Empty(t, (&Config{TrackingURI: "http://localhost:5000"}).GetDatabricksProfile())
}
