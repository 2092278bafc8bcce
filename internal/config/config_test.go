package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Load works on the global viper instance; reset it so tests stay isolated.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "{}\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)

	assert.Equal(t, "data/hr-workflow.db", cfg.Database.Path)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)

	assert.Equal(t, int64(1000), cfg.Workflow.DeptHeadThreshold)
	assert.Equal(t, int64(2000), cfg.Workflow.HRThreshold)

	assert.True(t, cfg.Automation.Enabled)
	assert.Equal(t, 15*time.Second, cfg.Automation.PollInterval)
	assert.Equal(t, 20, cfg.Automation.BatchLimit)

	assert.False(t, cfg.Lark.Enabled)
	assert.False(t, cfg.OpenAI.Enabled)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "json", cfg.Logger.Format)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 127.0.0.1
  port: 9090
workflow:
  dept_head_threshold: 500
  hr_threshold: 5000
automation:
  enabled: false
logger:
  level: debug
  format: console
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, int64(500), cfg.Workflow.DeptHeadThreshold)
	assert.Equal(t, int64(5000), cfg.Workflow.HRThreshold)
	assert.False(t, cfg.Automation.Enabled)
	assert.Equal(t, "debug", cfg.Logger.Level)
}

func TestLoadMissingFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalidThresholds(t *testing.T) {
	path := writeConfig(t, `
workflow:
  dept_head_threshold: 3000
  hr_threshold: 2000
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hr_threshold")
}

func TestLoadLarkEnabledNeedsCredentials(t *testing.T) {
	path := writeConfig(t, `
lark:
  enabled: true
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lark.app_id")
}

func TestLoadCredentialsFromEnv(t *testing.T) {
	path := writeConfig(t, `
lark:
  enabled: true
openai:
  enabled: true
`)
	t.Setenv("LARK_APP_ID", "cli_app")
	t.Setenv("LARK_APP_SECRET", "shh")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "cli_app", cfg.Lark.AppID)
	assert.Equal(t, "shh", cfg.Lark.AppSecret)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
}

func TestValidateAutomationInterval(t *testing.T) {
	path := writeConfig(t, `
automation:
  enabled: true
  poll_interval: 0
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "poll_interval")
}
