package parser

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/imishinist/exptrack/internal/models"
	"github.com/imishinist/exptrack/internal/params"
)

func ParseJSONBag(reader io.Reader) (params.Bag, error) {
	var data models.ParametersFile
	decoder := json.NewDecoder(reader)

	if err := decoder.Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to parse JSON parameters: %w", err)
	}

	return normalizeBag(data.Parameters), nil
}

// ParseEvents reads a local-sink events.jsonl stream, one event per
// line. Blank lines are skipped.
func ParseEvents(reader io.Reader) ([]models.Event, error) {
	var events []models.Event

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev models.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("failed to parse event line: %w", err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read event log: %w", err)
	}
	return events, nil
}

// normalizeBag folds decoder-specific scalar types into the bag's
// value set. JSON in particular decodes every number as float64, also
// inside sequences.
func normalizeBag(in map[string]any) params.Bag {
	bag := make(params.Bag, len(in))
	for k, v := range in {
		bag[k] = normalizeValue(v)
	}
	return bag
}

func normalizeValue(v any) any {
	switch x := v.(type) {
	case float64:
		if x == float64(int(x)) {
			return int(x)
		}
		return x
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = normalizeValue(e)
		}
		return out
	default:
		return v
	}
}
