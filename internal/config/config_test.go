package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "X-API-Key", cfg.Server.APIKeyHeader)
	assert.Equal(t, "minio", cfg.Storage.Driver)
	assert.Equal(t, 0.3, cfg.Vision.DetectionThreshold)
	assert.Equal(t, 112, cfg.Vision.FaceSize)
	assert.Equal(t, 0.65, cfg.Verify.SimilarityThreshold)
	assert.Equal(t, "fallback", cfg.Verify.DelegateMode)
	assert.Equal(t, "gemini-2.0-flash-lite", cfg.Verify.GeminiModel)
	assert.Equal(t, 30*time.Second, cfg.Verify.DelegateTimeout)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.Equal(t, []int{30, 20, 15, 10}, cfg.Search.AgeBonuses)
	require.NotNil(t, cfg.Search.AgePriority)
	assert.True(t, *cfg.Search.AgePriority)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestParseKeepsExplicitValues(t *testing.T) {
	data := []byte(`
server:
  port: 9000
vision:
  detection_threshold: 0.5
verify:
  delegate_mode: primary
  delegate_timeout: 5s
search:
  age_priority: false
  synonyms:
    "tóc dài": ["tóc dài"]
`)
	cfg, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 0.5, cfg.Vision.DetectionThreshold)
	assert.Equal(t, "primary", cfg.Verify.DelegateMode)
	assert.Equal(t, 5*time.Second, cfg.Verify.DelegateTimeout)
	assert.False(t, *cfg.Search.AgePriority)
	assert.Equal(t, []string{"tóc dài"}, cfg.Search.Synonyms["tóc dài"])
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  host: db\n"), 0o600))

	t.Setenv("FS_DB_HOST", "override")
	t.Setenv("FS_SERVER_PORT", "7070")
	t.Setenv("FS_API_KEY", "secret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "override", cfg.Database.Host)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Contains(t, cfg.Server.APIKeys, "secret")
	assert.Equal(t, "postgres://:@override:5432/?sslmode=disable", cfg.Database.DSN())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
