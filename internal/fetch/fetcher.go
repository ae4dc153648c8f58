// Package fetch reads the record categories a plan asks for, concurrently and
// with per-category failure isolation.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/elliotchance/pie/v2"
	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/the-spice-must-talk/internal/intent"
	"github.com/Veraticus/the-spice-must-talk/internal/model"
	"github.com/Veraticus/the-spice-must-talk/internal/service"
)

// ErrTaskPanic marks a category whose read panicked.
var ErrTaskPanic = errors.New("fetch task panicked")

// Record caps per category.
const (
	LedgerLimit   = 30
	GoalsLimit    = 10
	ReminderLimit = 10 // Per bucket
)

// Reminder window relative to now.
const (
	ReminderLookback  = 30 * 24 * time.Hour
	ReminderLookahead = 14 * 24 * time.Hour
)

// LedgerBundle is the ledger slice of a fetch.
type LedgerBundle struct {
	Err     error
	Summary *model.LedgerSummary // Current calendar month; nil if the aggregate failed
	Window  model.TimeWindow
	Entries []model.LedgerEntry // Newest first
}

// GoalsBundle is the goals slice of a fetch.
type GoalsBundle struct {
	Err     error
	Summary *model.GoalSummary
	Goals   []model.Goal
}

// RemindersBundle is the reminders slice of a fetch.
type RemindersBundle struct {
	Err      error
	Counts   *model.ReminderCounts
	Today    []model.Reminder
	Upcoming []model.Reminder
	Overdue  []model.Reminder
}

// Result holds one bundle per requested category. Categories not requested are nil.
type Result struct {
	Ledger    *LedgerBundle
	Goals     *GoalsBundle
	Reminders *RemindersBundle
	Now       time.Time
}

// HasData reports whether any category produced at least one record or aggregate.
func (r *Result) HasData() bool {
	if r == nil {
		return false
	}
	if b := r.Ledger; b != nil && b.Err == nil && (len(b.Entries) > 0 || (b.Summary != nil && b.Summary.TransactionCount > 0)) {
		return true
	}
	if b := r.Goals; b != nil && b.Err == nil && (len(b.Goals) > 0 || (b.Summary != nil && b.Summary.TotalGoals > 0)) {
		return true
	}
	if b := r.Reminders; b != nil && b.Err == nil && (len(b.Today)+len(b.Upcoming)+len(b.Overdue) > 0 || (b.Counts != nil && b.Counts.Total > 0)) {
		return true
	}
	return false
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) { f.now = now }
}

// WithLogger sets the logger used for degraded reads.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = logger }
}

// Fetcher reads records from a store according to a plan.
type Fetcher struct {
	store  service.RecordStore
	now    func() time.Time
	logger *slog.Logger
}

// NewFetcher creates a fetcher over store.
func NewFetcher(store service.RecordStore, opts ...Option) *Fetcher {
	f := &Fetcher{
		store:  store,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch runs one task per category the plan wants. A failing category is
// marked in its bundle and never affects the others. If ctx is cancelled,
// Fetch returns ctx.Err() and no result.
func (f *Fetcher) Fetch(ctx context.Context, userID string, plan intent.FetchPlan) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &Result{Now: f.now()}

	// A plain Group is used so one task's error never cancels its siblings.
	var g errgroup.Group
	if plan.Ledger {
		res.Ledger = &LedgerBundle{Window: plan.Window}
		g.Go(f.task(model.CategoryLedger, userID, &res.Ledger.Err, func() {
			f.fetchLedger(ctx, userID, res.Now, res.Ledger)
		}))
	}
	if plan.Goals {
		res.Goals = &GoalsBundle{}
		g.Go(f.task(model.CategoryGoals, userID, &res.Goals.Err, func() {
			f.fetchGoals(ctx, userID, res.Goals)
		}))
	}
	if plan.Reminders {
		res.Reminders = &RemindersBundle{}
		g.Go(f.task(model.CategoryReminders, userID, &res.Reminders.Err, func() {
			f.fetchReminders(ctx, userID, res.Now, res.Reminders)
		}))
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// task runs fn and records a panic in errp instead of letting it escape.
// Tasks report failures through their bundle, so the returned error is
// always nil.
func (f *Fetcher) task(category model.Category, userID string, errp *error, fn func()) func() error {
	return func() error {
		defer func() {
			if r := recover(); r != nil {
				*errp = fmt.Errorf("%w: %s: %v", ErrTaskPanic, category, r)
				f.logger.Error("fetch task panicked", "category", category, "user", userID, "panic", r)
			}
		}()
		fn()
		return nil
	}
}

func (f *Fetcher) fetchLedger(ctx context.Context, userID string, now time.Time, b *LedgerBundle) {
	entries, err := f.store.GetLedgerEntries(ctx, userID, b.Window, LedgerLimit)
	if err != nil {
		f.logger.Warn("ledger fetch failed", "user", userID, "error", err)
		b.Err = err
		return
	}
	if len(entries) > LedgerLimit {
		entries = entries[:LedgerLimit]
	}
	b.Entries = entries

	summary, err := f.store.GetMonthlySummary(ctx, userID, now)
	if err != nil {
		f.logger.Warn("monthly summary failed", "user", userID, "error", err)
		return
	}
	b.Summary = summary
}

func (f *Fetcher) fetchGoals(ctx context.Context, userID string, b *GoalsBundle) {
	goals, err := f.store.GetGoals(ctx, userID, GoalsLimit)
	if err != nil {
		f.logger.Warn("goals fetch failed", "user", userID, "error", err)
		b.Err = err
		return
	}
	if len(goals) > GoalsLimit {
		goals = goals[:GoalsLimit]
	}
	b.Goals = goals

	summary, err := f.store.GetGoalSummary(ctx, userID)
	if err != nil {
		f.logger.Warn("goal summary failed", "user", userID, "error", err)
		return
	}
	b.Summary = summary
}

func (f *Fetcher) fetchReminders(ctx context.Context, userID string, now time.Time, b *RemindersBundle) {
	start := now.Add(-ReminderLookback)
	window := model.TimeWindow{Start: &start, End: now.Add(ReminderLookahead)}

	reminders, err := f.store.GetReminders(ctx, userID, window, 0)
	if err != nil {
		f.logger.Warn("reminders fetch failed", "user", userID, "error", err)
		b.Err = err
		return
	}

	b.Today = capped(pie.Filter(reminders, func(r model.Reminder) bool { return r.IsToday(now) }))
	b.Overdue = capped(pie.Filter(reminders, func(r model.Reminder) bool { return r.IsOverdue(now) }))
	b.Upcoming = capped(pie.Filter(reminders, func(r model.Reminder) bool { return r.IsUpcoming(now) }))

	counts, err := f.store.GetReminderCounts(ctx, userID, now)
	if err != nil {
		f.logger.Warn("reminder counts failed", "user", userID, "error", err)
		return
	}
	b.Counts = counts
}

func capped(rs []model.Reminder) []model.Reminder {
	if len(rs) > ReminderLimit {
		return rs[:ReminderLimit]
	}
	return rs
}
