package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Mode string

const (
	ModeLocal      Mode = "local"
	ModeProduction Mode = "production"
)

// Provider backends.
const (
	ProviderOpenAI    = "openai"
	ProviderVertex    = "vertex"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"
)

type Config struct {
	Mode Mode   `yaml:"mode"`
	Port string `yaml:"port"`

	Provider        string        `yaml:"provider"`
	ModelName       string        `yaml:"model"`
	Temperature     float32       `yaml:"temperature"`
	MaxTokens       int           `yaml:"max_tokens"`
	ProviderTimeout time.Duration `yaml:"provider_timeout"`

	OpenAIAPIKey    string `yaml:"-"`
	OpenAIBaseURL   string `yaml:"openai_base_url"`
	AnthropicAPIKey string `yaml:"-"`
	GCPProjectID    string `yaml:"gcp_project"`
	GCPLocation     string `yaml:"gcp_location"`

	SystemPromptPath string `yaml:"system_prompt_path"`

	LogLevel string `yaml:"log_level"`
	Tracing  string `yaml:"tracing"` // "none" or "stdout"
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Mode:             ModeProduction,
		Port:             "3000",
		Temperature:      0.6,
		MaxTokens:        500,
		ProviderTimeout:  60 * time.Second,
		GCPLocation:      "us-central1",
		SystemPromptPath: "data/system_prompt.txt",
		LogLevel:         "info",
		Tracing:          "none",
	}
}

// Load builds the config: defaults, then the optional YAML file at path,
// then a .env file if present, then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Provider == "" {
		if c.Mode == ModeLocal {
			c.Provider = ProviderMock
		} else {
			c.Provider = ProviderOpenAI
		}
	}

	if c.ModelName == "" {
		switch c.Provider {
		case ProviderVertex:
			c.ModelName = "gemini-2.5-flash-lite"
		case ProviderAnthropic:
			c.ModelName = "claude-sonnet-4-5"
		case ProviderMock:
			c.ModelName = "mock"
		default:
			c.ModelName = "deepseek-ai/DeepSeek-V3"
		}
	}
}

// Validate checks that the selected provider has what it needs.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeLocal, ModeProduction:
	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}

	switch c.Provider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return errors.New("OPENAI_API_KEY must be set for the openai provider")
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return errors.New("ANTHROPIC_API_KEY must be set for the anthropic provider")
		}
	case ProviderVertex:
		if c.GCPProjectID == "" || c.GCPLocation == "" {
			return errors.New("TUTOR_GCP_PROJECT and TUTOR_GCP_LOCATION must be set for the vertex provider")
		}
	case ProviderMock:
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}

	if c.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", c.MaxTokens)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be within [0, 2], got %v", c.Temperature)
	}
	if c.ProviderTimeout < 0 {
		return fmt.Errorf("provider_timeout cannot be negative")
	}
	return nil
}

func applyEnv(c *Config) error {
	if v := getEnv("TUTOR_MODE", ""); v != "" {
		c.Mode = Mode(strings.ToLower(v))
	}
	c.Port = getEnv("TUTOR_PORT", getEnv("PORT", c.Port))
	c.Provider = strings.ToLower(getEnv("TUTOR_PROVIDER", c.Provider))
	c.ModelName = getEnv("TUTOR_MODEL_NAME", c.ModelName)

	c.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", c.OpenAIBaseURL)
	c.AnthropicAPIKey = getEnv("ANTHROPIC_API_KEY", c.AnthropicAPIKey)
	c.GCPProjectID = getEnv("TUTOR_GCP_PROJECT", c.GCPProjectID)
	c.GCPLocation = getEnv("TUTOR_GCP_LOCATION", c.GCPLocation)

	c.SystemPromptPath = getEnv("TUTOR_SYSTEM_PROMPT_PATH", c.SystemPromptPath)
	c.LogLevel = getEnv("TUTOR_LOG_LEVEL", c.LogLevel)
	c.Tracing = getEnv("TUTOR_TRACING", c.Tracing)

	if v := os.Getenv("TUTOR_TEMPERATURE"); v != "" {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return fmt.Errorf("TUTOR_TEMPERATURE: %w", err)
		}
		c.Temperature = float32(f)
	}
	if v := os.Getenv("TUTOR_MAX_TOKENS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TUTOR_MAX_TOKENS: %w", err)
		}
		c.MaxTokens = n
	}
	if v := os.Getenv("TUTOR_PROVIDER_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("TUTOR_PROVIDER_TIMEOUT: %w", err)
		}
		c.ProviderTimeout = d
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
