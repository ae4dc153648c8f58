package chat

import (
	"github.com/Veraticus/the-spice-must-talk/internal/llm"
	"github.com/Veraticus/the-spice-must-talk/internal/model"
)

// Provider IDs reported for replies that did not come from a model.
const (
	ProviderFallback      = "fallback"
	ProviderInformational = "informational"
)

// FallbackKind selects a canned message.
type FallbackKind string

// Fallback kinds.
const (
	FallbackDefault   FallbackKind = "default"
	FallbackNetwork   FallbackKind = "network_error"
	FallbackTimeout   FallbackKind = "timeout"
	FallbackRateLimit FallbackKind = "rate_limit"
)

// SignInPrompt is sent to guests asking about their own records.
const SignInPrompt = "To access personalized insights based on your real transactions, goals, and reminders, please sign in.\n\n" +
	"Once signed in, I can analyze your spending patterns, track savings progress, and provide tailored financial recommendations."

var authenticatedFallbacks = map[FallbackKind]string{
	FallbackDefault:   "I'm having trouble processing your request right now. Please try again in a moment.",
	FallbackNetwork:   "It seems I'm experiencing connection issues. Please check your internet connection and try again.",
	FallbackTimeout:   "Your request is taking longer than expected. Please try again with a shorter question.",
	FallbackRateLimit: "I'm receiving too many requests. Please wait a moment before trying again.",
}

var guestFallbacks = map[FallbackKind]string{
	FallbackDefault: "I'm here to help with general financial questions!\n\n" +
		"For personalized advice based on your actual accounts and spending patterns, please sign in.\n\n" +
		"In the meantime, I can help with general financial concepts and best practices.",
	FallbackNetwork:   "I'm temporarily unavailable right now. For personalized guidance, please sign in and try again later.",
	FallbackTimeout:   "Your request took too long to process. Please sign in for more robust financial guidance.",
	FallbackRateLimit: "I'm handling many requests. Please wait a moment before trying again.",
}

// FallbackFor maps a failure reason to the canned message kind.
func FallbackFor(reason llm.FailureReason) FallbackKind {
	switch reason {
	case llm.ReasonNetwork:
		return FallbackNetwork
	case llm.ReasonTimeout:
		return FallbackTimeout
	case llm.ReasonRateLimit:
		return FallbackRateLimit
	default:
		return FallbackDefault
	}
}

// FallbackMessage returns the canned text for an identity kind.
func FallbackMessage(kind model.IdentityKind, fb FallbackKind) string {
	table := guestFallbacks
	if kind == model.IdentityAuthenticated {
		table = authenticatedFallbacks
	}
	if msg, ok := table[fb]; ok {
		return msg
	}
	return table[FallbackDefault]
}
