package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/callbacks"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/Veraticus/the-spice-must-talk/internal/model"
)

const defaultGroqBaseURL = "https://api.groq.com/openai/v1"

// groqProvider talks to Groq's OpenAI-compatible endpoint.
type groqProvider struct {
	llm llms.Model
	cfg ProviderConfig
}

var _ callbacks.Handler = logCallbackHandler{}

// logCallbackHandler reports langchaingo errors through slog.
type logCallbackHandler struct {
	callbacks.SimpleHandler
	logger *slog.Logger
}

func (h logCallbackHandler) HandleLLMError(ctx context.Context, err error) {
	h.logger.WarnContext(ctx, "LLM error", "provider", ProviderGroq, "error", err)
}

func (h logCallbackHandler) HandleLLMGenerateContentEnd(ctx context.Context, res *llms.ContentResponse) {
	if res == nil || len(res.Choices) == 0 {
		return
	}
	h.logger.DebugContext(ctx, "LLM generate content end",
		"provider", ProviderGroq,
		"stop_reason", res.Choices[0].StopReason)
}

func newGroqProvider(cfg ProviderConfig, logger *slog.Logger) (*groqProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("groq API key is required: %w", ErrMissingCredentials)
	}
	cfg = withDefaults(cfg, "llama-3.1-8b-instant")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGroqBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := openai.New(
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
		openai.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")),
		openai.WithCallback(logCallbackHandler{logger: logger}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create groq client: %w", err)
	}
	return &groqProvider{llm: client, cfg: cfg}, nil
}

func (p *groqProvider) ID() string { return ProviderGroq }

func (p *groqProvider) Send(ctx context.Context, systemPrompt string, messages []Message) (string, error) {
	resp, err := p.llm.GenerateContent(ctx, toMessageContent(systemPrompt, messages),
		llms.WithTemperature(p.cfg.Temperature),
		llms.WithMaxTokens(p.cfg.MaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("groq completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}

func toMessageContent(systemPrompt string, messages []Message) []llms.MessageContent {
	content := make([]llms.MessageContent, 0, len(messages)+1)
	content = append(content, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))
	for _, m := range messages {
		role := llms.ChatMessageTypeHuman
		if m.Role == model.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		content = append(content, llms.TextParts(role, m.Content))
	}
	return content
}
