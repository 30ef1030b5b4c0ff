package config

import "fmt"

var validSearchBackends = map[string]bool{
	"serper":  true,
	"searxng": true,
}

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "warning": true, "error": true,
}

// Validate checks cfg for configuration mistakes that would otherwise
// surface as confusing runtime failures.
func Validate(cfg *Config) error {
	if len(cfg.LLM.Providers) == 0 {
		return fmt.Errorf("config: at least one llm provider is required")
	}
	seen := make(map[string]bool, len(cfg.LLM.Providers))
	for _, p := range cfg.LLM.Providers {
		if p.Name == "" {
			return fmt.Errorf("config: provider with empty name")
		}
		if seen[p.Name] {
			return fmt.Errorf("config: duplicate provider %q", p.Name)
		}
		seen[p.Name] = true
		if p.BaseURL == "" {
			return fmt.Errorf("config: provider %q has no base_url", p.Name)
		}
		if p.Model == "" {
			return fmt.Errorf("config: provider %q has no model", p.Name)
		}
	}
	if !seen[cfg.LLM.DefaultProvider] {
		return fmt.Errorf("config: default_provider %q not defined", cfg.LLM.DefaultProvider)
	}

	if !validSearchBackends[cfg.Tools.SearchBackend] {
		return fmt.Errorf("config: unknown search_backend %q (want serper or searxng)", cfg.Tools.SearchBackend)
	}
	if cfg.Tools.SearchBackend == "searxng" && cfg.Tools.SearXNGURL == "" {
		return fmt.Errorf("config: search_backend searxng requires searxng_url")
	}

	if cfg.Logger.Level != "" && !validLogLevels[cfg.Logger.Level] {
		return fmt.Errorf("config: unknown logger level %q", cfg.Logger.Level)
	}

	if cfg.Engine.StreamChunkTimeout < 0 {
		return fmt.Errorf("config: stream_chunk_timeout must not be negative")
	}

	return nil
}
