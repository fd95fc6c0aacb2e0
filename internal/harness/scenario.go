// Package harness runs YAML-defined operation scenarios against an
// in-memory database through the public client. Scenarios are the
// integration-test vehicle for nested reads and writes: each step runs one
// operation and asserts on its result or its error.
package harness

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines one test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is the CUE schema definition path, relative to the scenario
	// file location.
	Schema string `yaml:"schema"`

	// Setup contains raw SQL statements run before the steps, typically
	// CREATE TABLE and seed inserts.
	Setup []string `yaml:"setup,omitempty"`

	// Steps are the operations to run, in order.
	Steps []Step `yaml:"steps"`
}

// Step is one operation invocation with its expectations.
type Step struct {
	// Op is the operation kind: create, createMany, findUnique, findFirst,
	// findMany, update, updateMany, upsert, delete, deleteMany.
	Op string `yaml:"op"`

	// Table names the target table.
	Table string `yaml:"table"`

	// Input is the operation payload.
	Input map[string]any `yaml:"input,omitempty"`

	// Expect asserts a subset of the returned record's fields.
	Expect map[string]any `yaml:"expect,omitempty"`

	// ExpectRows asserts subsets of the returned rows, in order.
	ExpectRows []map[string]any `yaml:"expectRows,omitempty"`

	// ExpectCount asserts the row count of a *Many operation.
	ExpectCount *int64 `yaml:"expectCount,omitempty"`

	// ExpectNil asserts that no record was found.
	ExpectNil bool `yaml:"expectNil,omitempty"`

	// ExpectError asserts the error code (e.g. INVALID_ARGUMENT).
	ExpectError string `yaml:"expectError,omitempty"`
}

// LoadScenario reads and validates a scenario file. The schema path is
// resolved against the scenario file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("scenario %s: name is required", path)
	}
	if sc.Schema == "" {
		return nil, fmt.Errorf("scenario %s: schema is required", path)
	}
	if len(sc.Steps) == 0 {
		return nil, fmt.Errorf("scenario %s: at least one step is required", path)
	}
	for i, step := range sc.Steps {
		if step.Op == "" || step.Table == "" {
			return nil, fmt.Errorf("scenario %s: step %d needs op and table", path, i)
		}
	}

	if !filepath.IsAbs(sc.Schema) {
		sc.Schema = filepath.Join(filepath.Dir(path), sc.Schema)
	}
	return &sc, nil
}
