package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/the-spice-must-talk/internal/model"
	"github.com/Veraticus/the-spice-must-talk/internal/service"
)

// RecordBuilder collects records for one user and writes them in a single call.
type RecordBuilder struct {
	now       time.Time
	t         *testing.T
	userID    string
	entries   []model.LedgerEntry
	goals     []model.Goal
	reminders []model.Reminder
}

// NewRecordBuilder creates a builder whose relative dates are anchored at now.
func NewRecordBuilder(t *testing.T, userID string, now time.Time) *RecordBuilder {
	t.Helper()
	return &RecordBuilder{t: t, userID: userID, now: now}
}

// WithExpense adds an expense dated daysAgo before now.
func (b *RecordBuilder) WithExpense(daysAgo int, category string, amount float64, desc string) *RecordBuilder {
	return b.withEntry(model.EntryExpense, daysAgo, category, amount, desc)
}

// WithIncome adds an income entry dated daysAgo before now.
func (b *RecordBuilder) WithIncome(daysAgo int, category string, amount float64, desc string) *RecordBuilder {
	return b.withEntry(model.EntryIncome, daysAgo, category, amount, desc)
}

func (b *RecordBuilder) withEntry(typ model.EntryType, daysAgo int, category string, amount float64, desc string) *RecordBuilder {
	b.entries = append(b.entries, model.LedgerEntry{
		UserID:      b.userID,
		Date:        b.now.AddDate(0, 0, -daysAgo),
		Type:        typ,
		Category:    category,
		Amount:      amount,
		Description: desc,
	})
	return b
}

// WithGoal adds a goal. A zero dueInDays leaves the target date unset.
func (b *RecordBuilder) WithGoal(name string, status model.GoalStatus, target, saved float64, dueInDays int) *RecordBuilder {
	g := model.Goal{
		UserID:       b.userID,
		Name:         name,
		Status:       status,
		TargetAmount: target,
		SavedAmount:  saved,
	}
	if dueInDays != 0 {
		due := b.now.AddDate(0, 0, dueInDays)
		g.TargetDate = &due
	}
	b.goals = append(b.goals, g)
	return b
}

// WithReminder adds a reminder offset from now. Negative offsets are in the past.
func (b *RecordBuilder) WithReminder(title string, offset time.Duration) *RecordBuilder {
	b.reminders = append(b.reminders, model.Reminder{
		UserID: b.userID,
		Title:  title,
		Date:   b.now.Add(offset),
	})
	return b
}

// WithFixture applies a predefined record set.
func (b *RecordBuilder) WithFixture(f Fixture) *RecordBuilder {
	return f(b)
}

// Seed writes every collected record, failing the test on error.
func (b *RecordBuilder) Seed(db *TestDB) {
	b.t.Helper()
	b.SeedInto(db.Storage)
}

// SeedInto writes the collected records to any writer.
func (b *RecordBuilder) SeedInto(w service.RecordWriter) {
	b.t.Helper()
	ctx := context.Background()

	if len(b.entries) > 0 {
		if _, err := w.SaveLedgerEntries(ctx, b.entries); err != nil {
			b.t.Fatalf("failed to seed ledger entries: %v", err)
		}
	}
	for i := range b.goals {
		if err := w.SaveGoal(ctx, &b.goals[i]); err != nil {
			b.t.Fatalf("failed to seed goal %q: %v", b.goals[i].Name, err)
		}
	}
	for i := range b.reminders {
		if err := w.SaveReminder(ctx, &b.reminders[i]); err != nil {
			b.t.Fatalf("failed to seed reminder %q: %v", b.reminders[i].Title, err)
		}
	}
}
