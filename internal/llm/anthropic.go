package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion        = "2023-06-01"
)

type anthropicProvider struct {
	httpClient *http.Client
	cfg        ProviderConfig
}

func newAnthropicProvider(cfg ProviderConfig) (*anthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required: %w", ErrMissingCredentials)
	}
	cfg = withDefaults(cfg, "claude-3-5-haiku-latest")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultAnthropicBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &anthropicProvider{cfg: cfg, httpClient: newHTTPClient()}, nil
}

func (p *anthropicProvider) ID() string { return ProviderAnthropic }

func (p *anthropicProvider) Send(ctx context.Context, systemPrompt string, messages []Message) (string, error) {
	chat := make([]map[string]string, 0, len(messages))
	for _, m := range messages {
		chat = append(chat, map[string]string{"role": string(m.Role), "content": m.Content})
	}

	requestBody := map[string]any{
		"model":       p.cfg.Model,
		"max_tokens":  p.cfg.MaxTokens,
		"temperature": p.cfg.Temperature,
		"system":      systemPrompt,
		"messages":    chat,
	}

	var response anthropicResponse
	err := postJSON(ctx, p.httpClient, "Anthropic", p.cfg.BaseURL+"/messages",
		map[string]string{
			"x-api-key":         p.cfg.APIKey,
			"anthropic-version": anthropicVersion,
		},
		requestBody, &response)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, c := range response.Content {
		if c.Type == "text" {
			b.WriteString(c.Text)
		}
	}
	return strings.TrimSpace(b.String()), nil
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Role    string `json:"role"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}
