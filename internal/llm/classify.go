package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/Veraticus/the-spice-must-talk/internal/common"
)

// FailureReason is a coarse cause of a failed provider attempt.
type FailureReason string

// Failure reasons.
const (
	ReasonNone      FailureReason = ""
	ReasonTimeout   FailureReason = "timeout"
	ReasonRateLimit FailureReason = "rate_limit"
	ReasonAuth      FailureReason = "auth"
	ReasonNetwork   FailureReason = "network"
	ReasonUnknown   FailureReason = "unknown"
)

// Classify maps an attempt error to a FailureReason.
func Classify(err error) FailureReason {
	if err == nil {
		return ReasonNone
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	if errors.Is(err, common.ErrRateLimit) {
		return ReasonRateLimit
	}
	if errors.Is(err, ErrMissingCredentials) {
		return ReasonAuth
	}

	var perr *ProviderError
	if errors.As(err, &perr) {
		switch perr.StatusCode {
		case http.StatusTooManyRequests:
			return ReasonRateLimit
		case http.StatusUnauthorized, http.StatusForbidden:
			return ReasonAuth
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return ReasonTimeout
		case http.StatusBadGateway, http.StatusServiceUnavailable:
			return ReasonNetwork
		}
		return ReasonUnknown
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ReasonTimeout
		}
		return ReasonNetwork
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ReasonNetwork
	}

	// SDK clients do not always expose typed errors.
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit"):
		return ReasonRateLimit
	case strings.Contains(msg, "401") || strings.Contains(msg, "api key"):
		return ReasonAuth
	case strings.Contains(msg, "timeout"):
		return ReasonTimeout
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host"):
		return ReasonNetwork
	}
	return ReasonUnknown
}
