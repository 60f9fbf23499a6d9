package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "DATA_DIR", "FAULT_TRIAGE_DB_PATH", "ARTIFACT_BACKEND", "CATEGORY_MODEL_PATH", "MAX_DESCRIPTION_LENGTH"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "2000", cfg.Port)
	assert.Equal(t, filepath.Join("data", "fault-triage.db"), cfg.DBPath)
	assert.Equal(t, "file", cfg.ArtifactBackend)
	assert.Equal(t, "category_model.json", cfg.CategoryArtifact)
	assert.Equal(t, 5000, cfg.MaxDescriptionLength)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("FAULT_TRIAGE_DB_PATH", "/tmp/x.db")
	t.Setenv("ARTIFACT_BACKEND", "sqlite")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, *, https://b.example")
	t.Setenv("MAX_DESCRIPTION_LENGTH", "100")

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "/tmp/x.db", cfg.DBPath)

	apiCfg := cfg.apiConfig()
	assert.Equal(t, "sqlite", apiCfg.ArtifactBackend)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, apiCfg.AllowedOrigins)
	assert.Equal(t, 100, apiCfg.MaxDescriptionLength)
}

func TestLoadConfigInvalid(t *testing.T) {
	t.Setenv("MAX_DESCRIPTION_LENGTH", "lots")
	_, err := loadConfig()
	require.Error(t, err)
}
