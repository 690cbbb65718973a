package models

// ParametersFile is the on-disk shape of a JSON/YAML hyperparameter
// bag. Values keep whatever scalar type the source format produced.
type ParametersFile struct {
	Parameters map[string]any `json:"parameters" yaml:"parameters"`
}
