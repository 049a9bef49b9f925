// Package config provides configuration loading and validation for the server and CLI.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ConfigFileEnv names the environment variable holding an optional YAML config path.
const ConfigFileEnv = "HIRETRACK_CONFIG"

// Intake evaluation modes.
const (
	IntakeModeSync  = "sync"
	IntakeModeAsync = "async"
)

// LLM providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config holds every runtime setting. Keys are the lowercased environment
// variable names, so DATABASE_URL and a YAML `database_url:` both land in DatabaseURL.
type Config struct {
	// Server
	Port               int           `koanf:"port"`
	CORSAllowedOrigins string        `koanf:"cors_allowed_origins"` // comma-separated
	ShutdownTimeout    time.Duration `koanf:"shutdown_timeout"`

	// Persistence
	DatabaseURL string `koanf:"database_url"`

	// Admin authentication
	JWTSecret          string `koanf:"jwt_secret"`
	JWTExpirationHours int    `koanf:"jwt_expiration_hours"`
	AdminEmail         string `koanf:"admin_email"`
	AdminPassword      string `koanf:"admin_password"`
	AdminPasswordHash  string `koanf:"admin_password_hash"`
	BcryptCost         int    `koanf:"bcrypt_cost"`
	PasswordPepper     string `koanf:"password_pepper"`

	// Evaluation oracle
	LLMProvider     string        `koanf:"llm_provider"`
	LLMAPIKey       string        `koanf:"llm_api_key"`
	GroqAPIKey      string        `koanf:"groq_api_key"`
	GeminiAPIKey    string        `koanf:"gemini_api_key"`
	LLMModel        string        `koanf:"llm_model"`
	LLMBaseURL      string        `koanf:"llm_base_url"`
	LLMTimeout      time.Duration `koanf:"llm_timeout"`
	ResumeCharLimit int           `koanf:"resume_char_limit"`
	StageThresholds string        `koanf:"ats_stage_thresholds"`
	IntakeMode      string        `koanf:"intake_mode"`

	// Resume storage
	StorageDir         string        `koanf:"storage_dir"`
	S3Bucket           string        `koanf:"s3_bucket"`
	S3Region           string        `koanf:"s3_region"`
	S3Endpoint         string        `koanf:"s3_endpoint"`
	S3PathStyle        bool          `koanf:"s3_path_style"`
	S3PublicBaseURL    string        `koanf:"s3_public_base_url"`
	ResumeFetchTimeout time.Duration `koanf:"resume_fetch_timeout"`
	UnidocLicenseKey   string        `koanf:"unidoc_license_api_key"`

	// Background tasks
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
	RedisQueueKey string `koanf:"redis_queue_key"`
	TaskWorkers   int    `koanf:"task_workers"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		Port:               8080,
		CORSAllowedOrigins: "http://localhost:5173,http://localhost:3000",
		ShutdownTimeout:    15 * time.Second,
		JWTExpirationHours: 24,
		BcryptCost:         12,
		LLMProvider:        ProviderOpenAI,
		LLMTimeout:         30 * time.Second,
		ResumeCharLimit:    3000,
		StageThresholds:    DefaultStageThresholds,
		IntakeMode:         IntakeModeSync,
		StorageDir:         "uploads",
		S3Region:           "us-east-1",
		ResumeFetchTimeout: 30 * time.Second,
		RedisQueueKey:      "hiretrack:tasks",
		TaskWorkers:        2,
	}
}

// Load builds a Config by layering defaults, an optional YAML file and environment variables.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if HIRETRACK_CONFIG is set
//  3. environment
func Load() (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider("", ".", strings.ToLower)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := *New()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration has usable values.
// Secrets are checked where they are consumed (NewJWTConfig, NewAdminCredentials).
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' out of range: %d", c.Port)
	}
	switch c.IntakeMode {
	case IntakeModeSync, IntakeModeAsync:
	default:
		return fmt.Errorf("config error: 'intake_mode' must be %q or %q, got %q", IntakeModeSync, IntakeModeAsync, c.IntakeMode)
	}
	switch c.LLMProvider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("config error: unknown 'llm_provider' %q", c.LLMProvider)
	}
	if c.ResumeCharLimit < 1 || c.ResumeCharLimit > MaxResumeCharLimit {
		return fmt.Errorf("config error: 'resume_char_limit' must be 1-%d, got %d", MaxResumeCharLimit, c.ResumeCharLimit)
	}
	if c.TaskWorkers < 1 {
		return fmt.Errorf("config error: 'task_workers' must be at least 1")
	}
	if _, err := ParseStageThresholds(c.StageThresholds); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	return nil
}

// MaxResumeCharLimit bounds how much resume text is ever sent to the oracle.
const MaxResumeCharLimit = 25000

// LLMKey returns the oracle credential for the configured provider.
// LLM_API_KEY wins; otherwise the provider-specific key is used.
func (c *Config) LLMKey() string {
	if c.LLMAPIKey != "" {
		return c.LLMAPIKey
	}
	if c.LLMProvider == ProviderGemini {
		return c.GeminiAPIKey
	}
	return c.GroqAPIKey
}

// AllowedOrigins splits CORSAllowedOrigins into a trimmed list.
func (c *Config) AllowedOrigins() []string {
	return splitList(c.CORSAllowedOrigins)
}

// Thresholds returns the parsed stage thresholds. Validate guarantees they parse.
func (c *Config) Thresholds() []StageThreshold {
	t, _ := ParseStageThresholds(c.StageThresholds)
	return t
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
