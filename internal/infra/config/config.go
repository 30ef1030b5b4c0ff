package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Engine EngineConfig `yaml:"engine"`
	LLM    LLMConfig    `yaml:"llm"`
	Tools  ToolsConfig  `yaml:"tools"`
	Store  StoreConfig  `yaml:"store"`
	Logger LoggerConfig `yaml:"logger"`
}

// EngineConfig holds conversation engine settings.
type EngineConfig struct {
	// Mode is the default chat mode for new conversations.
	Mode string `yaml:"mode"`
	// Greeting is the assistant message shown when a conversation starts.
	Greeting string `yaml:"greeting"`
	// StreamChunkTimeout bounds the wait for each streaming chunk.
	StreamChunkTimeout time.Duration `yaml:"stream_chunk_timeout"`
	// MaxTokens caps the completion length (0 = provider default).
	MaxTokens int `yaml:"max_tokens"`
	// Presets maps preset names to canned system context text. The
	// "default" preset is always available and means no context.
	Presets map[string]string `yaml:"presets,omitempty"`
}

// LLMConfig holds completion provider settings.
type LLMConfig struct {
	DefaultProvider string               `yaml:"default_provider"`
	Providers       []ProviderConfig     `yaml:"providers"`
	CircuitBreaker  CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig holds circuit breaker settings for providers.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// PoolConfig holds HTTP connection pool settings for providers.
type PoolConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
}

// ProviderConfig holds settings for a single completion provider.
type ProviderConfig struct {
	Name        string        `yaml:"name"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	ConnTimeout time.Duration `yaml:"conn_timeout"`
	RespTimeout time.Duration `yaml:"resp_timeout"`
	Pool        PoolConfig    `yaml:"pool"`
}

// ToolsConfig holds tool settings.
type ToolsConfig struct {
	// SearchBackend selects the search API: "serper" or "searxng".
	SearchBackend string `yaml:"search_backend"`
	// SerperAPIKey authenticates against the serper.dev API.
	SerperAPIKey string `yaml:"serper_api_key"`
	// SearXNGURL is the base URL of a SearXNG instance.
	SearXNGURL string `yaml:"searxng_url"`
	// SearchCacheTTL is how long search results are cached.
	SearchCacheTTL time.Duration `yaml:"search_cache_ttl"`
	// SearchRateLimit allows this many searches per SearchRateWindow.
	SearchRateLimit  int           `yaml:"search_rate_limit"`
	SearchRateWindow time.Duration `yaml:"search_rate_window"`
}

// StoreConfig holds persistence settings.
type StoreConfig struct {
	// DataDir is the root directory for conversation files. Session logs
	// live under DataDir/sessions.
	DataDir string `yaml:"data_dir"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".parrot", "data")
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Engine: EngineConfig{
			Mode:               "default",
			Greeting:           "Hello! How can I help you today?",
			StreamChunkTimeout: 60 * time.Second,
		},
		LLM: LLMConfig{
			DefaultProvider: "openai",
			Providers: []ProviderConfig{
				{
					Name:    "openai",
					BaseURL: "https://api.openai.com/v1",
					Model:   "gpt-4o-mini",
				},
			},
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:     true,
				MaxFailures: 5,
				Timeout:     30 * time.Second,
				Interval:    60 * time.Second,
			},
		},
		Tools: ToolsConfig{
			SearchBackend:    "serper",
			SearchCacheTTL:   15 * time.Minute,
			SearchRateLimit:  30,
			SearchRateWindow: time.Minute,
		},
		Store: StoreConfig{
			DataDir: defaultDataDir(),
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// Load reads the YAML config at path, layering it over Defaults().
// A missing file is not an error: defaults plus env overrides apply.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyEnvOverrides(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides applies PARROT_* environment variables on top of cfg.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PARROT_ENGINE_MODE"); v != "" {
		cfg.Engine.Mode = v
	}
	if v := os.Getenv("PARROT_ENGINE_STREAM_CHUNK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Engine.StreamChunkTimeout = d
		}
	}
	if v := os.Getenv("PARROT_LLM_DEFAULT_PROVIDER"); v != "" {
		cfg.LLM.DefaultProvider = v
	}
	if v := os.Getenv("PARROT_LLM_API_KEY"); v != "" {
		for i := range cfg.LLM.Providers {
			if cfg.LLM.Providers[i].Name == cfg.LLM.DefaultProvider {
				cfg.LLM.Providers[i].APIKey = v
			}
		}
	}
	if v := os.Getenv("PARROT_LLM_BASE_URL"); v != "" {
		for i := range cfg.LLM.Providers {
			if cfg.LLM.Providers[i].Name == cfg.LLM.DefaultProvider {
				cfg.LLM.Providers[i].BaseURL = v
			}
		}
	}
	if v := os.Getenv("PARROT_LLM_MODEL"); v != "" {
		for i := range cfg.LLM.Providers {
			if cfg.LLM.Providers[i].Name == cfg.LLM.DefaultProvider {
				cfg.LLM.Providers[i].Model = v
			}
		}
	}
	if v := os.Getenv("PARROT_TOOLS_SEARCH_BACKEND"); v != "" {
		cfg.Tools.SearchBackend = v
	}
	if v := os.Getenv("PARROT_TOOLS_SERPER_API_KEY"); v != "" {
		cfg.Tools.SerperAPIKey = v
	}
	if v := os.Getenv("PARROT_TOOLS_SEARXNG_URL"); v != "" {
		cfg.Tools.SearXNGURL = v
	}
	if v := os.Getenv("PARROT_TOOLS_SEARCH_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Tools.SearchRateLimit = n
		}
	}
	if v := os.Getenv("PARROT_STORE_DATA_DIR"); v != "" {
		cfg.Store.DataDir = v
	}
	if v := os.Getenv("PARROT_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("PARROT_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
}

// Provider returns the provider config with the given name, falling back to
// the default provider when name is empty or unknown.
func (c *Config) Provider(name string) ProviderConfig {
	if name != "" {
		for _, p := range c.LLM.Providers {
			if p.Name == name {
				return p
			}
		}
	}
	for _, p := range c.LLM.Providers {
		if p.Name == c.LLM.DefaultProvider {
			return p
		}
	}
	if len(c.LLM.Providers) > 0 {
		return c.LLM.Providers[0]
	}
	return ProviderConfig{}
}
