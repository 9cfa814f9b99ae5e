package llm

import (
	"fmt"
	"strings"

	"github.com/depositdefender/defender/internal/config"
)

// NewProvider creates a new LLM provider based on configuration
func NewProvider(cfg Config) (Provider, error) {
	provider := strings.ToLower(cfg.Provider)

	switch provider {
	case "openai":
		p, err := NewOpenAIProvider(cfg)
		if err != nil {
			return nil, err
		}
		return p, nil

	case "":
		// No provider configured - return nil (heuristic only)
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai)", cfg.Provider)
	}
}

// ConfigFromApp converts the service config section to llm.Config
func ConfigFromApp(ai config.AIConfig) Config {
	cfg := DefaultConfig()
	cfg.Provider = ai.Provider
	cfg.APIKey = ai.APIKey
	cfg.BaseURL = ai.BaseURL
	if ai.Model != "" {
		cfg.Model = ai.Model
	}
	if ai.TimeoutSec > 0 {
		cfg.Timeout = ai.TimeoutSec
	}
	return cfg
}
