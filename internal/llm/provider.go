package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/Veraticus/the-spice-must-talk/internal/model"
)

// Provider errors.
var (
	ErrMissingCredentials = errors.New("provider is not configured")
	ErrAllProvidersFailed = errors.New("all providers failed")
	ErrEmptyCompletion    = errors.New("provider returned no content")
)

// Message is one chat turn sent to a provider.
type Message struct {
	Role    model.Role
	Content string
}

// Provider answers a conversation given a system prompt.
type Provider interface {
	ID() string
	Send(ctx context.Context, systemPrompt string, messages []Message) (string, error)
}

// ProviderConfig holds the settings of one provider.
type ProviderConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float64 `mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int     `mapstructure:"max_tokens" validate:"gte=0"`
	RateLimit   int     `mapstructure:"rate_limit" validate:"gte=0"` // Requests per minute, 0 for none
}

// ProviderError is a non-success HTTP response from a provider API.
type ProviderError struct {
	Provider   string
	Body       string
	StatusCode int
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// BuildMessages orders history before the new user turn.
func BuildMessages(history []model.Turn, userText string) []Message {
	messages := make([]Message, 0, len(history)+1)
	for _, t := range history {
		messages = append(messages, Message{Role: t.Role, Content: t.Content})
	}
	return append(messages, Message{Role: model.RoleUser, Content: userText})
}

func withDefaults(cfg ProviderConfig, defaultModel string) ProviderConfig {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.7
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}
	return cfg
}
