package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/Veraticus/the-spice-must-talk/internal/model"
)

type geminiProvider struct {
	client *genai.Client
	cfg    ProviderConfig
}

func newGeminiProvider(cfg ProviderConfig) (*geminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required: %w", ErrMissingCredentials)
	}
	cfg = withDefaults(cfg, "gemini-2.0-flash")

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(context.Background(), clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &geminiProvider{client: client, cfg: cfg}, nil
}

func (p *geminiProvider) ID() string { return ProviderGemini }

func (p *geminiProvider) Send(ctx context.Context, systemPrompt string, messages []Message) (string, error) {
	resp, err := p.client.Models.GenerateContent(ctx, p.cfg.Model, toGenAIContents(messages),
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
			Temperature:       genai.Ptr(float32(p.cfg.Temperature)),
			MaxOutputTokens:   int32(p.cfg.MaxTokens), //nolint:gosec // bounded by config validation
		})
	if err != nil {
		return "", fmt.Errorf("gemini completion failed: %w", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

func toGenAIContents(messages []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		var role genai.Role = genai.RoleUser
		if m.Role == model.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return contents
}
