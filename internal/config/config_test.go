package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("RACKCHECK_KNOWLEDGE_BACKEND", "")
	t.Setenv("RACKCHECK_MANUAL_THRESHOLD", "")

	cfg := Load()
	assert.Equal(t, BackendMemory, cfg.KnowledgeBackend)
	assert.Equal(t, DefaultRetrieval(), cfg.Retrieval)
	assert.Equal(t, 0.78, cfg.Retrieval.ManualThreshold)
	assert.Equal(t, 2, cfg.Retrieval.InventoryTopK)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("RACKCHECK_LOCATION_THRESHOLD", "0.65")
	t.Setenv("RACKCHECK_INVENTORY_TOPK", "4")
	t.Setenv("RACKCHECK_LANE_TIMEOUT", "5s")
	t.Setenv("RACKCHECK_LLM_PROVIDER", "anthropic")

	cfg := Load()
	assert.Equal(t, 0.65, cfg.Retrieval.LocationThreshold)
	assert.Equal(t, 4, cfg.Retrieval.InventoryTopK)
	assert.Equal(t, 5*time.Second, cfg.LaneTimeout)
	assert.Equal(t, ProviderAnthropic, cfg.LLMProvider)
}

func TestLoadMalformedFallsBack(t *testing.T) {
	t.Setenv("RACKCHECK_MANUAL_TOPK", "three")
	t.Setenv("RACKCHECK_PIPELINE_TIMEOUT", "soon")

	cfg := Load()
	assert.Equal(t, 3, cfg.Retrieval.ManualTopK)
	assert.Equal(t, 90*time.Second, cfg.PipelineTimeout)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.KnowledgeBackend = "redis" }},
		{"unknown llm", func(c *Config) { c.LLMProvider = "gemini" }},
		{"zero topk", func(c *Config) { c.Retrieval.ManualTopK = 0 }},
		{"negative threshold", func(c *Config) { c.Retrieval.LocationThreshold = -0.1 }},
		{"zero lanes", func(c *Config) { c.MaxConcurrentLanes = 0 }},
		{"zero dimension", func(c *Config) { c.EmbedDimension = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLogLevel("WARNING"))
	assert.Equal(t, slog.LevelError, ParseLogLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, ParseLogLevel("verbose"))
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("lane complete", "lane", "location")

	assert.Contains(t, stderr.String(), "lane complete")
	assert.NotContains(t, stderr.String(), "hidden")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(file.Bytes(), &entry))
	assert.Equal(t, "location", entry["lane"])
}

func TestSetupLoggerFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rackcheck.log")
	logger, cleanup := SetupLogger(path, slog.LevelInfo)
	logger.Info("hello")
	require.NoError(t, cleanup())
	assert.FileExists(t, path)

	_, cleanup = SetupLogger("", slog.LevelInfo)
	assert.NoError(t, cleanup())
}

func TestSetupLoggerLevels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rackcheck.log")
	logger, cleanup := SetupLoggerLevels(path, slog.LevelError, slog.LevelDebug)
	logger.Debug("file only", "lane", "inventory")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "file only")
}
