// Package llm provides chat-completion clients for the evaluation oracle.
// Providers are interchangeable behind the Client interface.
package llm

import "time"

// Provider represents an LLM provider
type Provider string

// Provider constants define supported LLM providers
const (
	// ProviderOpenAI is any OpenAI-compatible chat completions API (Groq by default)
	ProviderOpenAI Provider = "openai"
	// ProviderGemini is the Google Gemini provider
	ProviderGemini Provider = "gemini"
)

// Defaults for the OpenAI-compatible provider.
const (
	DefaultOpenAIBaseURL = "https://api.groq.com/openai/v1"
	DefaultOpenAIModel   = "llama-3.3-70b-versatile"
	DefaultGeminiModel   = "gemini-2.5-flash"
)

// Config holds the provider selection for the oracle.
type Config struct {
	Provider Provider
	Model    string
	BaseURL  string        // OpenAI-compatible providers only
	Timeout  time.Duration // per call
}

// DefaultConfig returns the default configuration (Groq through the OpenAI-compatible API)
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderOpenAI,
		Model:    DefaultOpenAIModel,
		BaseURL:  DefaultOpenAIBaseURL,
		Timeout:  30 * time.Second,
	}
}

// WithDefaults fills blank fields with the provider's defaults.
func (c Config) WithDefaults() *Config {
	if c.Provider == "" {
		c.Provider = ProviderOpenAI
	}
	if c.Model == "" {
		if c.Provider == ProviderGemini {
			c.Model = DefaultGeminiModel
		} else {
			c.Model = DefaultOpenAIModel
		}
	}
	if c.BaseURL == "" && c.Provider == ProviderOpenAI {
		c.BaseURL = DefaultOpenAIBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return &c
}
