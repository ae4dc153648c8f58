// Package chat answers finance questions for signed-in users and guests.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/the-spice-must-talk/internal/common"
	"github.com/Veraticus/the-spice-must-talk/internal/llm"
	"github.com/Veraticus/the-spice-must-talk/internal/model"
	"github.com/Veraticus/the-spice-must-talk/internal/pii"
)

// DefaultGuestCacheTTL is how long a guest answer is reused.
const DefaultGuestCacheTTL = 10 * time.Minute

// Metadata describes how a reply was produced.
type Metadata struct {
	ResponseType        model.IdentityKind `json:"response_type"`
	Intent              model.Category     `json:"intent"`
	ErrorType           FallbackKind       `json:"error_type,omitempty"`
	Categories          []model.Category   `json:"categories,omitempty"`
	Confidence          float64            `json:"confidence"`
	NeedsAuthentication bool               `json:"needs_authentication"`
	PIIMasked           bool               `json:"pii_masked"`
	IsFallback          bool               `json:"is_fallback,omitempty"`
	Error               bool               `json:"error,omitempty"`
	Cached              bool               `json:"cached,omitempty"`
}

// Reply is the answer to one query.
type Reply struct {
	Text       string
	ProviderID string
	Metadata   Metadata
}

// QueryOption adjusts a single query.
type QueryOption func(*queryOptions)

type queryOptions struct {
	provider string
}

// WithProvider asks for a specific provider first.
func WithProvider(id string) QueryOption {
	return func(o *queryOptions) {
		o.provider = id
	}
}

// Option configures a Service.
type Option func(*Service)

// WithGuestCacheTTL sets how long guest answers are reused. Zero disables the cache.
func WithGuestCacheTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.cacheTTL = ttl
	}
}

// WithClock overrides the time source used for turn timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Service runs the query pipeline.
type Service struct {
	deps     Deps
	logger   *slog.Logger
	cache    *replyCache
	now      func() time.Time
	cacheTTL time.Duration
}

// NewService creates a chat service with the provided dependencies.
func NewService(deps Deps, opts ...Option) (*Service, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	s := &Service{
		deps:     deps,
		logger:   slog.Default(),
		now:      time.Now,
		cacheTTL: DefaultGuestCacheTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cacheTTL > 0 {
		s.cache = newReplyCache(s.cacheTTL)
	}
	return s, nil
}

// HandleQuery answers text for identity. The only errors returned are
// common.ErrEmptyMessage and context errors; every other failure becomes a
// canned reply.
func (s *Service) HandleQuery(ctx context.Context, identity model.Identity, text string, opts ...QueryOption) (*Reply, error) {
	if strings.TrimSpace(text) == "" {
		return nil, common.ErrEmptyMessage
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var q queryOptions
	for _, opt := range opts {
		opt(&q)
	}

	masked := s.deps.Sanitizer.Sanitize(text)
	if masked.HasSensitive {
		s.logger.Info("sensitive data masked",
			"identity", identity.ID,
			"labels", masked.Labels())
	}

	var (
		reply *Reply
		err   error
	)
	if identity.IsGuest() {
		reply, err = s.answerGuest(ctx, masked.Redacted, q)
	} else {
		reply, err = s.answerUser(ctx, identity, masked.Redacted, q)
	}
	if err != nil {
		return nil, err
	}

	reply.Metadata.PIIMasked = masked.HasSensitive
	if note := pii.Disclosure(masked); note != "" {
		reply.Text = note + "\n\n" + reply.Text
	}
	return reply, nil
}

func (s *Service) answerUser(ctx context.Context, identity model.Identity, redacted string, q queryOptions) (*Reply, error) {
	plan := s.deps.Resolver.Plan(redacted)
	meta := Metadata{
		ResponseType: model.IdentityAuthenticated,
		Intent:       plan.Decision.Primary,
		Confidence:   plan.Decision.Confidence,
		Categories:   plan.Categories(),
	}
	s.logger.Debug("query planned",
		"identity", identity.ID,
		"source", plan.Source,
		"categories", meta.Categories,
		"reasoning", plan.Decision.Reasoning)

	result, err := s.deps.Fetcher.Fetch(ctx, identity.ID, plan)
	if err != nil {
		return nil, err
	}

	system, err := s.deps.Prompts.Build(result, model.IdentityAuthenticated)
	if err != nil {
		s.logger.Error("failed to build prompt", "identity", identity.ID, "error", err)
		return s.fallback(meta, llm.ReasonUnknown), nil
	}

	var resp llm.Response
	err = s.deps.Sessions.Exchange(ctx, identity.ID, func(ctx context.Context, history []model.Turn) ([]model.Turn, error) {
		var invokeErr error
		resp, invokeErr = s.deps.Invoker.Invoke(ctx, llm.Request{
			SystemPrompt: system,
			UserText:     redacted,
			Preference:   q.provider,
			History:      history,
		})
		if invokeErr != nil {
			return nil, invokeErr
		}
		now := s.now()
		return []model.Turn{
			{Role: model.RoleUser, Content: redacted, CreatedAt: now},
			{Role: model.RoleAssistant, Content: resp.Text, CreatedAt: now},
		}, nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.logger.Warn("all providers failed", "identity", identity.ID, "error", err)
		return s.fallback(meta, lastReason(resp, err)), nil
	}

	return &Reply{Text: resp.Text, ProviderID: resp.ProviderID, Metadata: meta}, nil
}

func (s *Service) answerGuest(ctx context.Context, redacted string, q queryOptions) (*Reply, error) {
	decision := s.deps.Resolver.Resolve(redacted)
	meta := Metadata{
		ResponseType: model.IdentityGuest,
		Intent:       decision.Primary,
		Confidence:   decision.Confidence,
	}

	if s.deps.Resolver.RequiresSignIn(redacted) {
		meta.NeedsAuthentication = true
		return &Reply{Text: SignInPrompt, ProviderID: ProviderInformational, Metadata: meta}, nil
	}

	key := cacheKey(q.provider, redacted)
	if s.cache != nil {
		if cached, ok := s.cache.get(key); ok {
			cached.Metadata.Cached = true
			return &cached, nil
		}
	}

	system, err := s.deps.Prompts.Build(nil, model.IdentityGuest)
	if err != nil {
		s.logger.Error("failed to build guest prompt", "error", err)
		return s.fallback(meta, llm.ReasonUnknown), nil
	}

	resp, err := s.deps.Invoker.Invoke(ctx, llm.Request{
		SystemPrompt: system,
		UserText:     redacted,
		Preference:   q.provider,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.logger.Warn("all providers failed for guest", "error", err)
		return s.fallback(meta, lastReason(resp, err)), nil
	}

	reply := Reply{Text: resp.Text, ProviderID: resp.ProviderID, Metadata: meta}
	if s.cache != nil {
		s.cache.set(key, reply)
	}
	return &reply, nil
}

func (s *Service) fallback(meta Metadata, reason llm.FailureReason) *Reply {
	kind := FallbackFor(reason)
	meta.Error = true
	meta.IsFallback = true
	meta.ErrorType = kind
	return &Reply{
		Text:       FallbackMessage(meta.ResponseType, kind),
		ProviderID: ProviderFallback,
		Metadata:   meta,
	}
}

func lastReason(resp llm.Response, err error) llm.FailureReason {
	if n := len(resp.Attempts); n > 0 {
		return resp.Attempts[n-1].Reason
	}
	return llm.Classify(err)
}

// Connect prepares the session for a new connection. Signed-in users get
// their mirrored history loaded.
func (s *Service) Connect(ctx context.Context, identity model.Identity) {
	if identity.IsGuest() {
		return
	}
	s.deps.Sessions.Hydrate(ctx, identity.ID)
}

// Disconnect releases per-connection state. Guest sessions are dropped.
func (s *Service) Disconnect(identity model.Identity) {
	if identity.IsGuest() {
		s.deps.Sessions.Drop(identity.ID)
	}
}

// GetHistory returns the identity's conversation, oldest first.
func (s *Service) GetHistory(identity model.Identity) []model.Turn {
	if identity.IsGuest() {
		return nil
	}
	return s.deps.Sessions.History(identity.ID)
}

// ClearHistory forgets the identity's conversation.
func (s *Service) ClearHistory(ctx context.Context, identity model.Identity) {
	s.deps.Sessions.Clear(ctx, identity.ID)
}

// Suggestions returns starter questions for identity.
func (s *Service) Suggestions(identity model.Identity) []string {
	return Suggestions(identity)
}

// Close stops background work owned by the service.
func (s *Service) Close() {
	if s.cache != nil {
		s.cache.Close()
	}
}

// Shutdown implements do.Shutdownable.
func (s *Service) Shutdown() error {
	s.Close()
	return nil
}
