package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setEnv(t *testing.T, kv map[string]string) {
	t.Helper()
	for k, v := range kv {
		t.Setenv(k, v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(ConfigFileEnv, "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.LLMTimeout)
	assert.Equal(t, 3000, cfg.ResumeCharLimit)
	assert.Equal(t, IntakeModeSync, cfg.IntakeMode)
	assert.Equal(t, DefaultStageThresholds, cfg.StageThresholds)
}

func TestLoad_EnvOverrides(t *testing.T) {
	setEnv(t, map[string]string{
		ConfigFileEnv:          "",
		"PORT":                 "9090",
		"DATABASE_URL":         "postgres://localhost/hiretrack",
		"LLM_TIMEOUT":          "5s",
		"INTAKE_MODE":          "async",
		"S3_PATH_STYLE":        "true",
		"TASK_WORKERS":         "4",
		"ATS_STAGE_THRESHOLDS": "Interview:70",
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "postgres://localhost/hiretrack", cfg.DatabaseURL)
	assert.Equal(t, 5*time.Second, cfg.LLMTimeout)
	assert.Equal(t, IntakeModeAsync, cfg.IntakeMode)
	assert.True(t, cfg.S3PathStyle)
	assert.Equal(t, 4, cfg.TaskWorkers)
	assert.Equal(t, []StageThreshold{{Stage: "Interview", Score: 70}}, cfg.Thresholds())
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hiretrack.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 7070\nadmin_email: file@example.com\nresume_char_limit: 25000\n"), 0o644))

	setEnv(t, map[string]string{
		ConfigFileEnv: path,
		"ADMIN_EMAIL": "env@example.com",
	})

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, 25000, cfg.ResumeCharLimit)
	assert.Equal(t, "env@example.com", cfg.AdminEmail, "environment should win over file")
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv(ConfigFileEnv, filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"bad port", func(c *Config) { c.Port = 0 }, true},
		{"bad intake mode", func(c *Config) { c.IntakeMode = "later" }, true},
		{"bad provider", func(c *Config) { c.LLMProvider = "mystery" }, true},
		{"char limit too high", func(c *Config) { c.ResumeCharLimit = MaxResumeCharLimit + 1 }, true},
		{"no workers", func(c *Config) { c.TaskWorkers = 0 }, true},
		{"bad thresholds", func(c *Config) { c.StageThresholds = "Screening:high" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLLMKey(t *testing.T) {
	cfg := New()
	cfg.GroqAPIKey = "groq"
	cfg.GeminiAPIKey = "gemini"
	assert.Equal(t, "groq", cfg.LLMKey())

	cfg.LLMProvider = ProviderGemini
	assert.Equal(t, "gemini", cfg.LLMKey())

	cfg.LLMAPIKey = "explicit"
	assert.Equal(t, "explicit", cfg.LLMKey())
}

func TestAllowedOrigins(t *testing.T) {
	cfg := New()
	cfg.CORSAllowedOrigins = " https://a.example , ,https://b.example"
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins())
}
