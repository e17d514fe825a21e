package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
)

type Config struct {
	Server  ServerConfig
	LLM     LLMConfig
	Session SessionConfig
	Storage StorageConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port           int
	AllowedOrigins string
	ChatRatePerSec float64
	ChatBurst      int
	TrustProxy     bool // honor X-Forwarded-For / X-Real-IP for client addresses
}

// Origins splits AllowedOrigins on commas.
func (s ServerConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(s.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

type LLMConfig struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string // empty selects the provider's default
	MaxTokens   int
	Temperature float64
	Timeout     string
}

// TimeoutDuration parses Timeout, falling back to 60s.
func (l LLMConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(l.Timeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}

type SessionConfig struct {
	MaxTurns int
}

type StorageConfig struct {
	DataDir        string
	JournalEnabled bool
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:           3000,
			AllowedOrigins: "*",
			ChatRatePerSec: 2,
			ChatBurst:      5,
		},
		LLM: LLMConfig{
			Provider:    ProviderOpenAI,
			MaxTokens:   200,
			Temperature: 0.8,
			Timeout:     "60s",
		},
		Session: SessionConfig{
			MaxTurns: 20,
		},
		Storage: StorageConfig{
			DataDir:        defaultDataDir(),
			JournalEnabled: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON config file, then FITBUDDY_*
// environment variables. The API key comes from FITBUDDY_LLM_API_KEY,
// then OPENAI_API_KEY, then the local secrets file.
//
// Load does not require an API key; call Validate before serving.
func Load() (Config, error) {
	return loadWith(newFileBackend(ConfigFilePath()), defaultSecretsFile())
}

func loadWith(b ConfigBackend, secrets secretStore) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.LLM.APIKey == "" {
		if key, err := secrets.Get(apiKeyAccount); err == nil && key != "" {
			cfg.LLM.APIKey = key
		}
	}

	cfg.LLM.Provider = strings.ToLower(strings.TrimSpace(cfg.LLM.Provider))
	return cfg, nil
}

// Validate reports settings the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.LLM.APIKey == "" && c.LLM.Provider != ProviderOllama {
		errs = append(errs, errors.New("missing required config: model provider API key. "+
			"Set FITBUDDY_LLM_API_KEY (or OPENAI_API_KEY), or run `fitbuddy config set-key`"))
	}
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderOpenRouter, ProviderOllama:
	default:
		errs = append(errs, fmt.Errorf("llm.provider must be one of %q, %q, %q; got %q",
			ProviderOpenAI, ProviderOpenRouter, ProviderOllama, c.LLM.Provider))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Session.MaxTurns <= 0 {
		errs = append(errs, fmt.Errorf("session.max_turns must be positive, got %d", c.Session.MaxTurns))
	}
	if c.LLM.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("llm.max_tokens must be positive, got %d", c.LLM.MaxTokens))
	}
	return errors.Join(errs...)
}
