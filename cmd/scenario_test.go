package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadScenario_FullDocument(t *testing.T) {
	path := writeScenario(t, `
config: models/plant.xml
input: overrides/day1.xml
output: results/day1.csv
log_level: debug
cache_size: 25
`)

	sc, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "models/plant.xml", sc.Config)
	assert.Equal(t, "overrides/day1.xml", sc.Input)
	assert.Equal(t, "results/day1.csv", sc.Output)
	assert.Equal(t, "debug", sc.LogLevel)
	assert.Equal(t, 25, sc.CacheSize)
}

func TestLoadScenario_ConfigOnly(t *testing.T) {
	sc, err := LoadScenario(writeScenario(t, "config: models/plant.xml\n"))
	require.NoError(t, err)
	assert.Equal(t, "models/plant.xml", sc.Config)
	assert.Empty(t, sc.Input)
	assert.Zero(t, sc.CacheSize)
}

func TestLoadScenario_MissingConfig_Fails(t *testing.T) {
	_, err := LoadScenario(writeScenario(t, "output: results/out.csv\n"))
	assert.Error(t, err)
}

func TestLoadScenario_BadYAML_Fails(t *testing.T) {
	_, err := LoadScenario(writeScenario(t, "config: [unterminated\n"))
	assert.Error(t, err)
}

func TestLoadScenario_MissingFile_Fails(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
