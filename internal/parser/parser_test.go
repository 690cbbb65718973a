package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imishinist/exptrack/internal/models"
)

func TestParseJSONBag(t *testing.T) {
	in := `{"parameters": {"batch_size": 4, "lr": 0.01, "optim": "Adam", "multi_gpu": false}}`

	bag, err := ParseJSONBag(strings.NewReader(in))
	require.NoError(t, err)

	// JSON decodes every number as float64; integral values come back
	// as ints.
	assert.Equal(t, 4, bag["batch_size"])
	assert.Equal(t, 0.01, bag["lr"])
	assert.Equal(t, "Adam", bag["optim"])
	assert.Equal(t, false, bag["multi_gpu"])
}

func TestParseYAMLBag(t *testing.T) {
	in := "parameters:\n  batch_size: 4\n  lr: 0.01\n  optim: Adam\n"

	bag, err := ParseYAMLBag(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 4, bag["batch_size"])
	assert.Equal(t, 0.01, bag["lr"])
	assert.Equal(t, "Adam", bag["optim"])
}

func TestParseJSONBagNormalizesSequences(t *testing.T) {
	in := `{"parameters": {"milestones": [10, 20], "betas": [0.9, 0.999]}}`

	bag, err := ParseJSONBag(strings.NewReader(in))
	require.NoError(t, err)

	// Integral elements inside sequences come back as ints too.
	assert.Equal(t, []any{10, 20}, bag["milestones"])
	assert.Equal(t, []any{0.9, 0.999}, bag["betas"])
}

func TestParseJSONBagInvalid(t *testing.T) {
	_, err := ParseJSONBag(strings.NewReader("{"))
	assert.Error(t, err)
}

func TestParseEvents(t *testing.T) {
	in := `{"type":"scalar","key":"train/loss","step":3,"value":0.5,"timestamp":"2024-03-09T17:30:05Z"}

{"type":"other","key":"command","text":"train --lr 0.01","timestamp":"2024-03-09T17:30:05Z"}
`

	events, err := ParseEvents(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, models.EventScalar, events[0].Type)
	assert.Equal(t, "train/loss", events[0].Key)
	assert.Equal(t, 3, events[0].Step)
	assert.Equal(t, 0.5, events[0].Value)
	assert.Equal(t, models.EventOther, events[1].Type)
}
