package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/the-spice-must-talk/internal/model"
)

// DefaultTimeout bounds a single provider attempt.
const DefaultTimeout = 30 * time.Second

// Request is one question to answer.
type Request struct {
	SystemPrompt string
	UserText     string
	Preference   string // Provider ID to try first; empty for the configured default
	History      []model.Turn
}

// Attempt records one provider call.
type Attempt struct {
	Err        error
	ProviderID string
	Reason     FailureReason
	Duration   time.Duration
}

// Response is the outcome of Invoke.
type Response struct {
	Err        error
	Text       string
	ProviderID string // Provider that produced Text
	Attempts   []Attempt
	Succeeded  bool
}

// ControllerConfig selects providers and bounds attempts.
type ControllerConfig struct {
	Default  string
	Fallback string
	Timeout  time.Duration
}

// Controller runs the primary/fallback invocation.
type Controller struct {
	registry *Registry
	logger   *slog.Logger
	cfg      ControllerConfig
}

// NewController creates a controller over registry.
func NewController(registry *Registry, cfg ControllerConfig, logger *slog.Logger) *Controller {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{registry: registry, cfg: cfg, logger: logger}
}

// Invoke asks the primary provider and, if that fails, the fallback provider
// once. On terminal failure it returns ErrAllProvidersFailed wrapping the last
// attempt's error. If ctx itself ends, ctx.Err() is returned.
func (c *Controller) Invoke(ctx context.Context, req Request) (Response, error) {
	messages := BuildMessages(req.History, req.UserText)

	primary := req.Preference
	if primary == "" {
		primary = c.cfg.Default
	}
	hops := []string{primary}
	if c.cfg.Fallback != "" && c.cfg.Fallback != primary {
		hops = append(hops, c.cfg.Fallback)
	}

	var resp Response
	for _, id := range hops {
		if err := ctx.Err(); err != nil {
			resp.Err = err
			return resp, err
		}

		a := c.attempt(ctx, id, req.SystemPrompt, messages)
		text := a.text
		resp.Attempts = append(resp.Attempts, a.Attempt)
		if a.Err == nil {
			resp.Text = text
			resp.ProviderID = id
			resp.Succeeded = true
			return resp, nil
		}

		if err := ctx.Err(); err != nil {
			resp.Err = err
			return resp, err
		}
		c.logger.Warn("provider attempt failed",
			"provider", id,
			"reason", a.Reason,
			"duration", a.Duration,
			"error", a.Err)
	}

	last := resp.Attempts[len(resp.Attempts)-1]
	resp.Err = fmt.Errorf("%w: %s: %w", ErrAllProvidersFailed, last.ProviderID, last.Err)
	return resp, resp.Err
}

type attemptResult struct {
	text string
	Attempt
}

func (c *Controller) attempt(ctx context.Context, id, systemPrompt string, messages []Message) attemptResult {
	res := attemptResult{Attempt: Attempt{ProviderID: id}}

	p, ok := c.registry.Get(id)
	if !ok {
		res.Err = fmt.Errorf("%s: %w", id, ErrMissingCredentials)
		res.Reason = Classify(res.Err)
		return res
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	text, err := p.Send(attemptCtx, systemPrompt, messages)
	res.Duration = time.Since(start)

	if err == nil && text == "" {
		err = ErrEmptyCompletion
	}
	if err == nil && attemptCtx.Err() != nil {
		err = attemptCtx.Err()
	}
	if err != nil {
		if attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			err = fmt.Errorf("attempt timed out after %s: %w", c.cfg.Timeout, context.DeadlineExceeded)
		}
		res.Err = err
		res.Reason = Classify(err)
		return res
	}

	res.text = text
	return res
}
