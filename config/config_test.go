package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arturpragacz/labelgraph/errors"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "labels.yaml", cfg.LabelsFile)
	assert.Equal(t, ":9190", cfg.HTTP.Addr)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, "labelgraph", cfg.NATS.SubjectPrefix)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "id", cfg.Areas.TieBreak)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeFile(t, "config.yaml", `
labels_file: /etc/labelgraph/labels.yaml
http:
  addr: ":8080"
logging:
  level: debug
  format: json
areas:
  tie_break: name
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/etc/labelgraph/labels.yaml", cfg.LabelsFile)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "name", cfg.Areas.TieBreak)
	// Untouched sections keep their defaults.
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "config.yaml", "logging:\n  level: warn\n")
	t.Setenv("LABELGRAPH_LOG_LEVEL", "error")
	t.Setenv("LABELGRAPH_NATS_URL", "nats://broker:4222")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "error", cfg.Logging.Level)
	assert.Equal(t, "nats://broker:4222", cfg.NATS.URL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, errors.ErrConfigNotFound)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", "logging: [not: a: map\n")
	_, err := Load(path)
	assert.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Default()
	cfg.LabelsFile = ""
	cfg.Logging.Level = "loud"
	cfg.Logging.Format = "xml"
	cfg.Areas.TieBreak = "random"

	err := cfg.Validate()
	require.Error(t, err)

	var diags *errors.Diagnostics
	require.ErrorAs(t, err, &diags)
	assert.Len(t, diags.Errors(), 4)
}

func TestValidateNATSURLScheme(t *testing.T) {
	cfg := Default()
	cfg.NATS.URL = "http://localhost:4222"

	err := cfg.Validate()
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}
