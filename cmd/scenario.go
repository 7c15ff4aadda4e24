package cmd

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario bundles the file paths and runtime options of one simulation run so
// a run can be kept in version control and replayed. Explicit CLI flags win
// over scenario values.
type Scenario struct {
	Config    string `yaml:"config"`
	Input     string `yaml:"input,omitempty"`
	Output    string `yaml:"output,omitempty"`
	LogLevel  string `yaml:"log_level,omitempty"`
	CacheSize int    `yaml:"cache_size,omitempty"`
}

// LoadScenario reads and validates a YAML scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if sc.Config == "" {
		return nil, fmt.Errorf("scenario %s: config path is required", path)
	}
	return &sc, nil
}
