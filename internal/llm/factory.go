package llm

import (
	"fmt"
	"log/slog"
	"strings"
)

// Known provider IDs.
const (
	ProviderGroq      = "groq"
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// KnownProviders lists the providers NewRegistryFromConfig can build, in registration order.
var KnownProviders = []string{ProviderGroq, ProviderGemini, ProviderOpenAI, ProviderAnthropic}

// NewProvider creates a provider by ID.
func NewProvider(id string, cfg ProviderConfig, logger *slog.Logger) (Provider, error) {
	var (
		p   Provider
		err error
	)
	switch strings.ToLower(id) {
	case ProviderGroq:
		p, err = newGroqProvider(cfg, logger)
	case ProviderGemini:
		p, err = newGeminiProvider(cfg)
	case ProviderOpenAI:
		p, err = newOpenAIProvider(cfg)
	case ProviderAnthropic:
		p, err = newAnthropicProvider(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", id)
	}
	if err != nil {
		return nil, err
	}
	if cfg.RateLimit > 0 {
		p = WithRateLimit(p, cfg.RateLimit)
	}
	return p, nil
}

// NewRegistryFromConfig registers every known provider that has credentials.
// Providers without an API key are skipped.
func NewRegistryFromConfig(cfgs map[string]ProviderConfig, logger *slog.Logger) (*Registry, error) {
	reg := NewRegistry()
	for _, id := range KnownProviders {
		cfg, ok := cfgs[id]
		if !ok || cfg.APIKey == "" {
			logger.Debug("provider not configured", "provider", id)
			continue
		}
		p, err := NewProvider(id, cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s provider: %w", id, err)
		}
		if err := reg.Register(p); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
