// Package storage provides the data persistence layer for the chat service.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/the-spice-must-talk/internal/model"
)

// Validation errors.
var (
	ErrNilContext       = errors.New("context cannot be nil")
	ErrEmptyString      = errors.New("string parameter cannot be empty")
	ErrNilParameter     = errors.New("parameter cannot be nil")
	ErrEmptySlice       = errors.New("slice cannot be empty")
	ErrInvalidEntry     = errors.New("invalid ledger entry")
	ErrInvalidGoal      = errors.New("invalid goal")
	ErrInvalidReminder  = errors.New("invalid reminder")
	ErrInvalidTurn      = errors.New("invalid conversation turn")
	ErrInvalidUser      = errors.New("invalid user")
	ErrInvalidGoalState = errors.New("invalid goal status")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateLedgerEntries(entries []model.LedgerEntry) error {
	if entries == nil {
		return fmt.Errorf("%w: entries", ErrNilParameter)
	}
	if len(entries) == 0 {
		return fmt.Errorf("%w: entries", ErrEmptySlice)
	}

	for i := range entries {
		if err := validateLedgerEntry(&entries[i]); err != nil {
			return fmt.Errorf("entry at index %d: %w", i, err)
		}
	}
	return nil
}

func validateLedgerEntry(e *model.LedgerEntry) error {
	if e.UserID == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidEntry)
	}
	if e.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidEntry)
	}
	if e.Type != model.EntryIncome && e.Type != model.EntryExpense {
		return fmt.Errorf("%w: type %q", ErrInvalidEntry, e.Type)
	}
	if e.Amount < 0 {
		return fmt.Errorf("%w: negative amount", ErrInvalidEntry)
	}
	return nil
}

func validateGoal(g *model.Goal) error {
	if g == nil {
		return fmt.Errorf("%w: goal", ErrNilParameter)
	}
	if g.UserID == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidGoal)
	}
	if strings.TrimSpace(g.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidGoal)
	}
	switch g.Status {
	case model.GoalActive, model.GoalCompleted, model.GoalPaused:
	default:
		return fmt.Errorf("%w: %s", ErrInvalidGoalState, g.Status)
	}
	if g.TargetAmount < 0 || g.SavedAmount < 0 {
		return fmt.Errorf("%w: negative amount", ErrInvalidGoal)
	}
	return nil
}

func validateReminder(r *model.Reminder) error {
	if r == nil {
		return fmt.Errorf("%w: reminder", ErrNilParameter)
	}
	if r.UserID == "" {
		return fmt.Errorf("%w: missing user ID", ErrInvalidReminder)
	}
	if strings.TrimSpace(r.Title) == "" {
		return fmt.Errorf("%w: missing title", ErrInvalidReminder)
	}
	if r.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidReminder)
	}
	return nil
}

func validateTurns(turns []model.Turn) error {
	for i, t := range turns {
		if t.Role != model.RoleUser && t.Role != model.RoleAssistant {
			return fmt.Errorf("%w: turn %d has role %q", ErrInvalidTurn, i, t.Role)
		}
	}
	return nil
}
