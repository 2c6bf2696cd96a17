// Package metadata decodes the experiment_metadata.json descriptor that
// genai-bench writes next to each run's result files.
package metadata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrMalformed is returned when a metadata file exists but is not a JSON object.
var ErrMalformed = errors.New("malformed experiment metadata")

// Field is one key field rendered the way jq -r prints it. Each field is
// decoded on its own, so a bad value never affects the other.
type Field struct {
	Text string
	// Null is set when the field is absent or JSON null.
	Null bool
	// Issue describes a value of an unexpected JSON type.
	Issue string
}

type ExperimentMetadata struct {
	APIBackend Field
	// FirstScenario is traffic_scenario[0].
	FirstScenario Field

	// Informational fields, decoded best effort; a type mismatch leaves the zero value.
	TrafficScenario      []string
	Model                string
	Task                 string
	ServerEngine         string
	NumConcurrency       []int
	ExperimentFolderName string
}

// Scenario returns the first traffic scenario, or "" when none is recorded.
func (m *ExperimentMetadata) Scenario() string {
	if m == nil || m.FirstScenario.Null {
		return ""
	}
	return m.FirstScenario.Text
}

func Read(path string) (*ExperimentMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading metadata: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*ExperimentMetadata, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &ExperimentMetadata{
		APIBackend:           scalar("api_backend", raw["api_backend"]),
		FirstScenario:        first("traffic_scenario", raw["traffic_scenario"]),
		TrafficScenario:      optional[[]string](raw, "traffic_scenario"),
		Model:                optional[string](raw, "model"),
		Task:                 optional[string](raw, "task"),
		ServerEngine:         optional[string](raw, "server_engine"),
		NumConcurrency:       optional[[]int](raw, "num_concurrency"),
		ExperimentFolderName: optional[string](raw, "experiment_folder_name"),
	}, nil
}

func isNull(msg json.RawMessage) bool {
	trimmed := bytes.TrimSpace(msg)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// scalar renders a string as-is and any other value as compact JSON.
func scalar(name string, msg json.RawMessage) Field {
	if isNull(msg) {
		return Field{Null: true}
	}
	var s string
	if err := json.Unmarshal(msg, &s); err == nil {
		return Field{Text: s}
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, msg); err != nil {
		return Field{Text: string(bytes.TrimSpace(msg)), Issue: name + " is not a string"}
	}
	return Field{Text: buf.String(), Issue: name + " is not a string"}
}

// first renders element 0 of an array. jq prints nothing when indexing a
// non-array, so that case yields empty text.
func first(name string, msg json.RawMessage) Field {
	if isNull(msg) {
		return Field{Null: true}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(msg, &items); err != nil {
		return Field{Issue: name + " is not an array"}
	}
	if len(items) == 0 {
		return Field{Null: true}
	}
	return scalar(name+"[0]", items[0])
}

func optional[T any](raw map[string]json.RawMessage, name string) T {
	var v T
	msg, ok := raw[name]
	if !ok {
		return v
	}
	if err := json.Unmarshal(msg, &v); err != nil {
		var zero T
		return zero
	}
	return v
}
