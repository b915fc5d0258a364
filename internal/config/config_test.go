package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Batch.MaxConcurrentCompanies)
	assert.Equal(t, 1000, cfg.Match.RateYearWindow)
	assert.InDelta(t, 0.20, cfg.Match.AmountTolerance, 0.001)
	assert.InDelta(t, 0.7, cfg.Match.LLMAcceptMin, 0.001)
	assert.Equal(t, 3, cfg.Anthropic.MaxConcurrent)
	assert.Equal(t, 4000, cfg.Anthropic.ExcerptChars)
	assert.InDelta(t, 90.0, cfg.Reconcile.ScaleRatio, 0.001)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
  database_url: debtlink.db
log:
  level: debug
  format: console
server:
  port: 9090
batch:
  max_concurrent_companies: 10
match:
  disable_llm: true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Batch.MaxConcurrentCompanies)
	assert.True(t, cfg.Match.DisableLLM)
	// Defaults still apply for unset values
	assert.Equal(t, 1000, cfg.Match.RateYearWindow)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("DEBTLINK_STORE_DRIVER", "postgres")
	t.Setenv("DEBTLINK_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("DEBTLINK_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config populated like a default Load for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = "postgres://localhost/debtlink"
	cfg.Batch.MaxConcurrentCompanies = 5
	cfg.Match.AmountTolerance = 0.20
	cfg.Match.LLMAcceptMin = 0.7
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateStore_MissingURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate("store")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidateMatch_RequiresKeyUnlessDisabled(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("match")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key is required")

	cfg.Match.DisableLLM = true
	assert.NoError(t, cfg.Validate("match"))

	cfg.Match.DisableLLM = false
	cfg.Anthropic.Key = "sk-ant-key"
	assert.NoError(t, cfg.Validate("match"))
}

func TestValidateMatch_ThresholdBounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Match.DisableLLM = true

	cfg.Match.LLMAcceptMin = 1.5
	err := cfg.Validate("match")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "llm_accept_min")

	cfg.Match.LLMAcceptMin = 0.7
	cfg.Match.AmountTolerance = 0
	err = cfg.Validate("match")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "amount_tolerance")
}

func TestValidateReview_MissingNotion(t *testing.T) {
	cfg := validDefaults()

	err := cfg.Validate("review")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "notion.token is required")
	assert.Contains(t, err.Error(), "notion.review_db is required")

	cfg.Notion.Token = "ntn_token"
	cfg.Notion.ReviewDB = "review-db-id"
	assert.NoError(t, cfg.Validate("review"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidateConcurrencyBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Batch.MaxConcurrentCompanies = 0
	err := cfg.Validate("store")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "max_concurrent_companies must be between 1 and 50")

	cfg.Batch.MaxConcurrentCompanies = 51
	err = cfg.Validate("store")
	assert.Error(t, err)

	cfg.Batch.MaxConcurrentCompanies = 50
	assert.NoError(t, cfg.Validate("store"))
}
