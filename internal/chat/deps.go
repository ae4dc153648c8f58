package chat

import (
	"context"
	"fmt"

	"github.com/Veraticus/the-spice-must-talk/internal/fetch"
	"github.com/Veraticus/the-spice-must-talk/internal/intent"
	"github.com/Veraticus/the-spice-must-talk/internal/llm"
	"github.com/Veraticus/the-spice-must-talk/internal/model"
	"github.com/Veraticus/the-spice-must-talk/internal/pii"
	"github.com/Veraticus/the-spice-must-talk/internal/session"
)

// Invoker answers a request with a model.
type Invoker interface {
	Invoke(ctx context.Context, req llm.Request) (llm.Response, error)
}

// RecordFetcher reads the records a plan asks for.
type RecordFetcher interface {
	Fetch(ctx context.Context, userID string, plan intent.FetchPlan) (*fetch.Result, error)
}

// PromptBuilder renders the system prompt.
type PromptBuilder interface {
	Build(result *fetch.Result, kind model.IdentityKind) (string, error)
}

// Deps contains all dependencies required by the chat service.
type Deps struct {
	// Sanitizer masks sensitive values before anything else sees the text.
	Sanitizer *pii.Sanitizer
	// Resolver plans which records a question needs.
	Resolver *intent.Resolver
	// Fetcher reads the planned records.
	Fetcher RecordFetcher
	// Prompts renders the system prompt.
	Prompts PromptBuilder
	// Invoker calls the model providers.
	Invoker Invoker
	// Sessions holds per-identity history.
	Sessions *session.Store
}

// Validate ensures all required dependencies are provided.
func (d *Deps) Validate() error {
	if d.Sanitizer == nil {
		return fmt.Errorf("sanitizer dependency is required")
	}
	if d.Resolver == nil {
		return fmt.Errorf("resolver dependency is required")
	}
	if d.Fetcher == nil {
		return fmt.Errorf("fetcher dependency is required")
	}
	if d.Prompts == nil {
		return fmt.Errorf("prompt builder dependency is required")
	}
	if d.Invoker == nil {
		return fmt.Errorf("invoker dependency is required")
	}
	if d.Sessions == nil {
		return fmt.Errorf("session store dependency is required")
	}
	return nil
}
