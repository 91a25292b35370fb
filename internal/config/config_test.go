package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearLLMEnv keeps the developer's API keys out of provider discovery.
func clearLLMEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"GEMINI_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "OPENROUTER_API_KEY",
		"CHECKIN_LLM_PROVIDER", "CHECKIN_ANTHROPIC_API_KEY", "CHECKIN_OPENAI_API_KEY",
		"CHECKIN_GEMINI_API_KEY", "CHECKIN_OPENROUTER_API_KEY",
	} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "checkin.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func load(t *testing.T, path string, envFiles ...string) (*Config, error) {
	t.Helper()
	loader, err := NewLoader(path, envFiles...)
	require.NoError(t, err)
	return loader.Load()
}

func TestLoad_Defaults(t *testing.T) {
	clearLLMEnv(t)

	cfg, err := load(t, writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Empty(t, cfg.Database.DSN)
	assert.Equal(t, "mock", cfg.LLM.Provider)
	assert.Equal(t, uint(3), cfg.LLM.Retry.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, 10, cfg.Questions.RefillCount)
	assert.Equal(t, uint(3), cfg.Notify.Retry.Attempts)
	assert.Nil(t, cfg.Notify.Email)
}

func TestLoad_File(t *testing.T) {
	clearLLMEnv(t)

	cfg, err := load(t, writeConfig(t, `database:
  driver: postgres
  dsn: postgres://checkin@localhost/checkin?sslmode=disable
llm:
  provider: anthropic
  anthropic:
    api_key: sk-test
  timeout: 45s
notify:
  email:
    region: us-east-1
    from: alerts@example.com
    recipients:
      guardian-1: parent@example.com
  webhook:
    url: https://push.example.com/hooks/checkin
log:
  level: debug
`))
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "sk-test", cfg.LLM.Anthropic.APIKey)
	assert.Equal(t, "claude-haiku", cfg.LLM.Anthropic.Model)
	assert.Equal(t, 45*time.Second, cfg.LLM.Timeout)
	require.NotNil(t, cfg.Notify.Email)
	assert.Equal(t, "parent@example.com", cfg.Notify.Email.Recipients["guardian-1"])
	require.NotNil(t, cfg.Notify.Webhook)
	assert.Equal(t, "https://push.example.com/hooks/checkin", cfg.Notify.Webhook.URL)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearLLMEnv(t)
	t.Setenv("CHECKIN_DATABASE_DRIVER", "mysql")
	t.Setenv("CHECKIN_DATABASE_DSN", "checkin:pw@tcp(localhost:3306)/checkin?parseTime=true")
	t.Setenv("CHECKIN_LOG_LEVEL", "warn")

	cfg, err := load(t, writeConfig(t, "database:\n  driver: sqlite\n"))
	require.NoError(t, err)

	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_DiscoversProviderKey(t *testing.T) {
	clearLLMEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-openai")

	cfg, err := load(t, writeConfig(t, "{}\n"))
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "sk-openai", cfg.LLM.OpenAI.APIKey)
}

func TestLoad_EnvFile(t *testing.T) {
	clearLLMEnv(t)
	envFile := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("CHECKIN_QUESTIONS_REFILL_COUNT=25\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("CHECKIN_QUESTIONS_REFILL_COUNT") })

	cfg, err := load(t, writeConfig(t, "{}\n"), envFile)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Questions.RefillCount)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name              string
		content           string
		wantErrorContains []string
	}{
		{
			name:              "unknown driver",
			content:           "database:\n  driver: oracle\n",
			wantErrorContains: []string{"invalid configuration", "driver"},
		},
		{
			name:              "postgres without dsn",
			content:           "database:\n  driver: postgres\n",
			wantErrorContains: []string{"dsn"},
		},
		{
			name:              "bad log level",
			content:           "log:\n  level: loud\n",
			wantErrorContains: []string{"level"},
		},
		{
			name:              "bad email",
			content:           "notify:\n  email:\n    region: eu-west-1\n    from: not-an-email\n",
			wantErrorContains: []string{"from"},
		},
		{
			name:              "provider without key",
			content:           "llm:\n  provider: gemini\n",
			wantErrorContains: []string{"llm", "API key"},
		},
		{
			name:              "malformed yaml",
			content:           "database: [[[\n",
			wantErrorContains: []string{"could not be read"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearLLMEnv(t)
			_, err := load(t, writeConfig(t, tt.content))
			require.Error(t, err)
			for _, s := range tt.wantErrorContains {
				assert.Contains(t, err.Error(), s)
			}
		})
	}
}
