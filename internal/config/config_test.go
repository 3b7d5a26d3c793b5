package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
port = "9090"

[pipeline]
chunk_tokens = 200

[search]
vector_weight = 0.6
fulltext_weight = 0.4
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 200, cfg.Pipeline.ChunkTokens)
	assert.Equal(t, 0.6, cfg.Search.VectorWeight)
	// Untouched values keep their defaults.
	assert.Equal(t, 50, cfg.Pipeline.ChunkOverlapTokens)
	assert.Equal(t, 24*time.Hour, cfg.Orchestrator.TaskRetention)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Default()
	cfg.Pipeline.ChunkTokens = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Pipeline.ChunkOverlapTokens = cfg.Pipeline.ChunkTokens
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Pipeline.MinEntityConfidence = 1.5
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Orchestrator.Workers = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Orchestrator.SoftTimeLimit = cfg.Orchestrator.HardTimeLimit + time.Second
	assert.Error(t, cfg.Validate())
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("NEO4J_URI", "bolt://db:7687")
	t.Setenv("LLM_PROVIDER", "claude")
	t.Setenv("PORT", "7070")

	cfg := Default()
	cfg.ApplyEnv()
	assert.Equal(t, "bolt://db:7687", cfg.Neo4j.URI)
	assert.Equal(t, "claude", cfg.LLM.Provider)
	assert.Equal(t, "7070", cfg.Server.Port)
}
