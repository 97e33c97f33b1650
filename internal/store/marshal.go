package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/stratalog/internal/config"
	"github.com/roach88/stratalog/internal/ir"
)

// timeLayout stores timestamps as sortable UTC text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

// marshalConfig stores the configuration a run was evaluated with as YAML,
// the same format config.Load reads.
func marshalConfig(cfg config.Config) (string, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	return string(data), nil
}

func unmarshalConfig(data string) (config.Config, error) {
	cfg, err := config.Parse([]byte(data))
	if err != nil {
		return config.Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// marshalVariables converts variable names to a JSON array.
// Uses json.Encoder with HTML escaping disabled so names round-trip verbatim.
func marshalVariables(vars []ir.Variable) (string, error) {
	names := make([]string, len(vars))
	for i, v := range vars {
		names[i] = string(v)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(names); err != nil {
		return "", fmt.Errorf("marshal variables: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

func unmarshalVariables(data string) ([]ir.Variable, error) {
	var names []string
	if err := json.Unmarshal([]byte(data), &names); err != nil {
		return nil, fmt.Errorf("unmarshal variables: %w", err)
	}
	vars := make([]ir.Variable, len(names))
	for i, n := range names {
		vars[i] = ir.Variable(n)
	}
	return vars, nil
}

func marshalTuple(t ir.Tuple) string { return string(ir.MarshalTuple(t)) }

func unmarshalTuple(data string) (ir.Tuple, error) {
	t, err := ir.UnmarshalTuple([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal tuple: %w", err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
