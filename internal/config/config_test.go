package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Create a temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  port: 9090
  host: "0.0.0.0"

store:
  api_key: "test-api-key"
  base_id: "appTEST"
  timeout_seconds: 45

feeds:
  reader_base_url: "https://reader.example.com"
  article_limit: 500
  since_hours: 48

bedrock:
  region: "us-west-2"
  model_id: "anthropic.claude-3-5-haiku-20241022-v1:0"
  max_tokens: 2048
  temperature: 0.3

scheduler:
  timezone: "America/New_York"
  cycle_times: ["03:00", "11:00"]
  stage_timeout_minutes: 20

newsletter:
  tier1_companies: ["openai", "anthropic"]
  dedup_days: 21
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	// Test server config
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	// Test store config
	assert.Equal(t, "test-api-key", cfg.Store.APIKey)
	assert.Equal(t, "appTEST", cfg.Store.BaseID)
	assert.Equal(t, 45, cfg.Store.TimeoutSeconds)
	assert.Equal(t, "https://api.airtable.com/v0", cfg.Store.BaseURL)

	// Test feeds config
	assert.Equal(t, "https://reader.example.com", cfg.Feeds.ReaderBaseURL)
	assert.Equal(t, 500, cfg.Feeds.ArticleLimit)
	assert.Equal(t, 48, cfg.Feeds.SinceHours)

	// Test bedrock config
	assert.Equal(t, "us-west-2", cfg.Bedrock.Region)
	assert.Equal(t, "anthropic.claude-3-5-haiku-20241022-v1:0", cfg.Bedrock.ModelID)
	assert.Equal(t, 2048, cfg.Bedrock.MaxTokens)
	assert.Equal(t, 0.3, cfg.Bedrock.Temperature)

	// Test scheduler config
	assert.Equal(t, []string{"03:00", "11:00"}, cfg.Scheduler.CycleTimes)
	assert.Equal(t, 20*time.Minute, cfg.Scheduler.StageTimeout())

	// Test newsletter config
	assert.Equal(t, []string{"openai", "anthropic"}, cfg.Newsletter.Tier1Companies)
	assert.Equal(t, 21, cfg.Newsletter.DedupDays)
}

func TestLoadDefaults(t *testing.T) {
	// Create a minimal config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
store:
  api_key: "test-key"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	// Verify defaults are applied
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 60, cfg.Store.TimeoutSeconds)
	assert.Equal(t, "us-east-1", cfg.Bedrock.Region)
	assert.Equal(t, 4096, cfg.Bedrock.MaxTokens)
	assert.Equal(t, 100, cfg.Gemini.ChunkSize)
	assert.Equal(t, 636, cfg.Imagery.TargetWidth)
	assert.Equal(t, 500, cfg.Extract.MinBodyLength)
	assert.Equal(t, "America/New_York", cfg.Scheduler.Timezone)
	assert.Equal(t, []string{"02:00", "09:30", "17:00"}, cfg.Scheduler.CycleTimes)
	assert.Equal(t, 5*time.Minute, cfg.Scheduler.SendCheckInterval())
	assert.Equal(t, 14, cfg.Newsletter.DedupDays)
	assert.Equal(t, 90, cfg.Newsletter.SubjectMaxLen)
	assert.Equal(t, "Pivot 5", cfg.Newsletter.BrandName)
	assert.Equal(t, "Daily AI Briefing", cfg.Newsletter.DeliverableBrand)
}

func TestLoadFromEnv(t *testing.T) {
	// Create a minimal config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
store:
  api_key: "file-key"
  base_id: "appFILE"
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	// Set environment variables
	os.Setenv("STORE_API_KEY", "env-key")
	os.Setenv("STORE_BASE_ID", "appENV")
	os.Setenv("GEMINI_API_KEY", "gem-key")
	defer func() {
		os.Unsetenv("STORE_API_KEY")
		os.Unsetenv("STORE_BASE_ID")
		os.Unsetenv("GEMINI_API_KEY")
	}()

	cfg, err := LoadFromEnv(configPath)
	require.NoError(t, err)

	// Environment variables should override file values
	assert.Equal(t, "env-key", cfg.Store.APIKey)
	assert.Equal(t, "appENV", cfg.Store.BaseID)
	assert.Equal(t, "gem-key", cfg.Gemini.APIKey)
	assert.True(t, cfg.Gemini.Enabled)
}

func TestLoadFileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestTimeout(t *testing.T) {
	cfg := StoreConfig{TimeoutSeconds: 45}
	assert.Equal(t, 45*time.Second, cfg.Timeout())
}
