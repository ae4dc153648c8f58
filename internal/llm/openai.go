package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

type openAIProvider struct {
	httpClient *http.Client
	cfg        ProviderConfig
}

func newOpenAIProvider(cfg ProviderConfig) (*openAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required: %w", ErrMissingCredentials)
	}
	cfg = withDefaults(cfg, "gpt-4o-mini")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &openAIProvider{cfg: cfg, httpClient: newHTTPClient()}, nil
}

func (p *openAIProvider) ID() string { return ProviderOpenAI }

func (p *openAIProvider) Send(ctx context.Context, systemPrompt string, messages []Message) (string, error) {
	chat := make([]map[string]string, 0, len(messages)+1)
	chat = append(chat, map[string]string{"role": "system", "content": systemPrompt})
	for _, m := range messages {
		chat = append(chat, map[string]string{"role": string(m.Role), "content": m.Content})
	}

	requestBody := map[string]any{
		"model":       p.cfg.Model,
		"messages":    chat,
		"temperature": p.cfg.Temperature,
		"max_tokens":  p.cfg.MaxTokens,
	}

	var response openAIResponse
	err := postJSON(ctx, p.httpClient, "OpenAI", p.cfg.BaseURL+"/chat/completions",
		map[string]string{"Authorization": "Bearer " + p.cfg.APIKey},
		requestBody, &response)
	if err != nil {
		return "", err
	}

	if len(response.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}

type openAIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
		Index        int    `json:"index"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}
