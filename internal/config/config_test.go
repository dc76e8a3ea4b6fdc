package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent_config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("PARLEY_MODEL", "llama3.2:3b")
	t.Setenv("PARLEY_BASE_URL", "http://stack:8321/v1/openai/v1")

	path := writeConfig(t, `
agent_config:
  model: ${PARLEY_MODEL}
  base_url: ${PARLEY_BASE_URL}
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "llama3.2:3b", cfg.Model)
	assert.Equal(t, "http://stack:8321/v1/openai/v1", cfg.BaseURL)
}

func TestLoadMissingEnvFails(t *testing.T) {
	path := writeConfig(t, `
agent_config:
  model: ${PARLEY_NO_SUCH_VAR}
  instructions: ${PARLEY_ANOTHER_MISSING}
`)

	_, err := Load(path)
	require.ErrorIs(t, err, ErrMissingEnv)
	// both misses reported at once
	assert.Contains(t, err.Error(), "PARLEY_NO_SUCH_VAR")
	assert.Contains(t, err.Error(), "PARLEY_ANOTHER_MISSING")

	// deterministic across repeated loads
	_, err2 := Load(path)
	require.Error(t, err2)
	assert.Equal(t, err.Error(), err2.Error())
}

func TestLoadIdempotent(t *testing.T) {
	t.Setenv("PARLEY_MODEL", "gpt-4o-mini")

	path := writeConfig(t, `
agent_config:
  model: ${PARLEY_MODEL}
  toolgroups:
    - builtin::websearch
  sampling_params:
    strategy:
      type: top_p
      temperature: 0.4
      top_p: 0.9
`)

	first, err := Load(path)
	require.NoError(t, err)
	second, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLoadToolgroupForms(t *testing.T) {
	path := writeConfig(t, `
agent_config:
  model: m
  toolgroups:
    - builtin::websearch
    - name: builtin::rag
      args:
        vector_db_ids: [docs]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Toolgroups, 2)
	assert.Equal(t, "builtin::websearch", cfg.Toolgroups[0].Name)
	assert.Nil(t, cfg.Toolgroups[0].Args)
	assert.Equal(t, "builtin::rag", cfg.Toolgroups[1].Name)
	assert.Contains(t, cfg.Toolgroups[1].Args, "vector_db_ids")
}

func TestLoadDefaultsWhenFileAbsent(t *testing.T) {
	dir := t.TempDir()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })

	cfg, err := Load(DefaultPath)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadExplicitPathMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "agent_config: [not: a: mapping")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadDefaultsMergedIntoPartialFile(t *testing.T) {
	path := writeConfig(t, `
agent_config:
  model: my-model
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	def := Default()
	assert.Equal(t, "my-model", cfg.Model)
	assert.Equal(t, def.BaseURL, cfg.BaseURL)
	assert.Equal(t, def.SamplingParams, cfg.SamplingParams)
	assert.Equal(t, def.Speech, cfg.Speech)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad strategy", `
agent_config:
  model: m
  sampling_params:
    strategy:
      type: beam
`},
		{"temperature out of range", `
agent_config:
  model: m
  sampling_params:
    strategy:
      type: top_p
      temperature: 3.0
      top_p: 0.9
`},
		{"top_p out of range", `
agent_config:
  model: m
  sampling_params:
    strategy:
      type: top_p
      temperature: 0.5
      top_p: 1.5
`},
		{"bad speech format", `
agent_config:
  model: m
  speech:
    format: flac
`},
		{"toolgroup without name", `
agent_config:
  model: m
  toolgroups:
    - args:
        k: v
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}
