package params

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// HyperparamsFile is the metadata file name written into every run directory.
const HyperparamsFile = "hyperparams.txt"

// Bag holds one experiment's hyperparameters. Values are limited to
// string, int, float64, bool and []any (tuple).
type Bag map[string]any

// Keys gating the cloud experiment sink. All three must be present in
// the bag for the sink to be attached.
const (
	KeyAPIKeyPath = "cometml_api_key_path"
	KeyWorkspace  = "cometml_workspace"
	KeyProject    = "cometml_project"
)

// CuratedHyperparams is the fixed set of options forwarded to the cloud
// sink as run parameters.
var CuratedHyperparams = []string{
	"batch_size",
	"trainer",
	"optim",
	"lr",
	"reduce_lr_every",
	"reduce_lr_factor",
	"weight_decay",
	"momentum",
	"epochs",
	"seed",
	"device",
	"multi_gpu",
	"overfit_batch",
}

// CuratedOthers is the fixed set of descriptive fields forwarded to the
// cloud sink as "other" values.
var CuratedOthers = []string{
	"dataset",
	"fold",
	"model",
	"subject",
}

// Curated extracts the recognized hyperparameter subset from bag.
// Missing keys are skipped.
func Curated(bag Bag) Bag {
	out := make(Bag, len(CuratedHyperparams))
	for _, k := range CuratedHyperparams {
		if v, ok := bag[k]; ok {
			out[k] = v
		}
	}
	return out
}

// Others extracts the descriptive subset from bag and derives
// dataset_name as the last path component of the dataset field.
func Others(bag Bag) Bag {
	out := make(Bag, len(CuratedOthers)+1)
	for _, k := range CuratedOthers {
		if v, ok := bag[k]; ok {
			out[k] = v
		}
	}
	if ds, ok := out["dataset"].(string); ok {
		out["dataset_name"] = path.Base(filepath.ToSlash(ds))
	}
	return out
}

// FormatValue renders a bag value with its textual representation.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "None"
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'g', -1, 64)
	case []any:
		elems := make([]string, len(x))
		for i, e := range x {
			elems[i] = FormatValue(e)
		}
		return "(" + strings.Join(elems, ", ") + ")"
	default:
		return fmt.Sprintf("%v", x)
	}
}

// Render returns the sorted "name: value" lines for bag.
func Render(bag Bag) []string {
	lines := make([]string, 0, len(bag))
	for k, v := range bag {
		lines = append(lines, fmt.Sprintf("%s: %s", k, FormatValue(v)))
	}
	sort.Strings(lines)
	return lines
}

// Write persists bag plus the derived exp_name field to path, one
// sorted "name: value" line each.
func Write(p string, bag Bag, runName string) error {
	full := make(Bag, len(bag)+1)
	for k, v := range bag {
		full[k] = v
	}
	full["exp_name"] = runName

	content := strings.Join(Render(full), "\n") + "\n"
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write hyperparams: %w", err)
	}
	return nil
}

// Load reads a hyperparameter file back into a Bag. If p is a
// directory, the hyperparams file inside it is used. Values go through
// ParseLiteral; later duplicate keys overwrite earlier ones.
func Load(p string) (Bag, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("invalid hyperparams path %s: %w", p, err)
	}
	if info.IsDir() {
		p = filepath.Join(p, HyperparamsFile)
	}

	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read hyperparams file: %w", err)
	}

	bag := make(Bag)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		// Split only on the first colon: values may contain colons.
		name, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		bag[name] = ParseLiteral(strings.TrimSpace(value))
	}
	return bag, nil
}

// ParseLiteral reconstructs a typed value from its textual form with an
// ordered sequence of parse attempts, falling back to the raw string.
func ParseLiteral(s string) any {
	// Underscored tokens such as run names would otherwise parse as
	// digit-separated numbers.
	if !strings.Contains(s, "_") {
		if i, err := strconv.Atoi(s); err == nil {
			return i
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	switch s {
	case "true", "True":
		return true
	case "false", "False":
		return false
	case "None", "none":
		return nil
	}
	if len(s) >= 2 {
		if (s[0] == '(' && s[len(s)-1] == ')') || (s[0] == '[' && s[len(s)-1] == ']') {
			return parseSequence(s[1 : len(s)-1])
		}
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func parseSequence(inner string) []any {
	out := []any{}
	for _, part := range strings.Split(inner, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, ParseLiteral(part))
	}
	return out
}
