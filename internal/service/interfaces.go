// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/the-spice-must-talk/internal/model"
)

// RecordStore is the read side of the user data store. Unknown users yield
// empty results, never errors.
type RecordStore interface {
	// Ledger operations
	GetLedgerEntries(ctx context.Context, userID string, window model.TimeWindow, limit int) ([]model.LedgerEntry, error)
	GetMonthlySummary(ctx context.Context, userID string, month time.Time) (*model.LedgerSummary, error)

	// Goal operations
	GetGoals(ctx context.Context, userID string, limit int) ([]model.Goal, error)
	GetGoalSummary(ctx context.Context, userID string) (*model.GoalSummary, error)

	// Reminder operations
	GetReminders(ctx context.Context, userID string, window model.TimeWindow, limit int) ([]model.Reminder, error)
	GetReminderCounts(ctx context.Context, userID string, now time.Time) (*model.ReminderCounts, error)
}

// RecordWriter populates the data store. The chat pipeline never writes records.
type RecordWriter interface {
	SaveLedgerEntries(ctx context.Context, entries []model.LedgerEntry) (int, error)
	SaveGoal(ctx context.Context, goal *model.Goal) error
	SaveReminder(ctx context.Context, reminder *model.Reminder) error
	SaveUser(ctx context.Context, user *model.User) error
}

// UserDirectory resolves verified user IDs to accounts.
type UserDirectory interface {
	GetUser(ctx context.Context, userID string) (*model.User, error)
}

// HistoryMirror durably records conversation turns for an identity.
type HistoryMirror interface {
	AppendTurns(ctx context.Context, identityID string, turns []model.Turn) error
	LoadTurns(ctx context.Context, identityID string, limit int) ([]model.Turn, error)
	ClearTurns(ctx context.Context, identityID string) error
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
