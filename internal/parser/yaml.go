package parser

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/imishinist/exptrack/internal/models"
	"github.com/imishinist/exptrack/internal/params"
)

func ParseYAMLBag(reader io.Reader) (params.Bag, error) {
	var data models.ParametersFile
	decoder := yaml.NewDecoder(reader)

	if err := decoder.Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to parse YAML parameters: %w", err)
	}

	return normalizeBag(data.Parameters), nil
}
