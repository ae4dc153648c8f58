package prompt

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/the-spice-must-talk/internal/fetch"
	"github.com/Veraticus/the-spice-must-talk/internal/model"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestAssembler(t *testing.T, opts Options) *Assembler {
	t.Helper()
	a, err := NewAssembler(opts, WithClock(func() time.Time { return testNow }))
	require.NoError(t, err)
	return a
}

func fullResult() *fetch.Result {
	due := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	return &fetch.Result{
		Now: testNow,
		Ledger: &fetch.LedgerBundle{
			Entries: []model.LedgerEntry{
				{Date: time.Date(2024, 6, 14, 9, 0, 0, 0, time.UTC), Type: model.EntryExpense, Category: "Food", Amount: 1234, Description: "Groceries"},
				{Date: time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC), Type: model.EntryIncome, Category: "Salary", Amount: 60000},
			},
			Summary: &model.LedgerSummary{TotalIncome: 60000, TotalExpenses: 1234, NetSavings: 58766, SavingsRate: 97.94, TransactionCount: 2},
		},
		Goals: &fetch.GoalsBundle{
			Goals: []model.Goal{
				{Name: "Emergency fund", Status: model.GoalActive, TargetAmount: 100000, SavedAmount: 40000, TargetDate: &due},
				{Name: "Phone", Status: model.GoalCompleted, TargetAmount: 30000, SavedAmount: 30000},
			},
			Summary: &model.GoalSummary{TotalGoals: 2, ActiveGoals: 1, CompletedGoals: 1, OverallProgress: 53.8},
		},
		Reminders: &fetch.RemindersBundle{
			Today:    []model.Reminder{{Title: "Pay electricity", Date: testNow}},
			Upcoming: []model.Reminder{{Title: "Renew insurance", Date: testNow.AddDate(0, 0, 5)}},
			Overdue:  []model.Reminder{{Title: "Card payment", Date: testNow.AddDate(0, 0, -2)}},
			Counts:   &model.ReminderCounts{Total: 3, Today: 1, Upcoming: 1, Overdue: 1},
		},
	}
}

func TestBuild_Authenticated(t *testing.T) {
	out, err := newTestAssembler(t, Options{}).Build(fullResult(), model.IdentityAuthenticated)
	require.NoError(t, err)

	for _, want := range []string{
		"You are the built-in AI financial assistant for Finance Tracker.",
		"1. The user is logged in.",
		"Always express amounts in ₹ (INR).",
		"Your database currently shows [value].",
		"Today's Date: June 15, 2024",
		"THIS MONTH'S FINANCIAL SUMMARY:",
		"  Income:    ₹60,000.00",
		"  Save Rate: 97.9%",
		"  Txn Count: 2",
		"  • [Jun 14] Expense | Food | ₹1,234.00 — Groceries",
		"  • [Jun 10] Income | Salary | ₹60,000.00\n",
		"Total: 2 | Active: 1 | Completed: 1 | Overall Progress: 54%",
		"  • Emergency fund | active | ₹40,000 / ₹100,000 (40%) | Due: Dec 31, 2024",
		"  • Phone | completed | ₹30,000 / ₹30,000 (100%) | Due: No deadline",
		"Total: 3 | Today: 1 | Upcoming: 1 | Overdue: 1",
		"  • Pay electricity — Jun 15, 2024 [TODAY]",
		"UPCOMING REMINDERS (next 14 days):\n  • Renew insurance — Jun 20, 2024",
		"  • Card payment — Jun 13, 2024 [OVERDUE]",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "No specific financial data matched")
}

func TestBuild_Guest(t *testing.T) {
	out, err := newTestAssembler(t, Options{}).Build(fullResult(), model.IdentityGuest)
	require.NoError(t, err)

	assert.Contains(t, out, "The user is a guest and is not signed in.")
	assert.Contains(t, out, "Today's Date: June 15, 2024")
	for _, section := range []string{"FINANCIAL SUMMARY", "RECENT TRANSACTIONS", "YOUR GOALS", "REMINDER", "database"} {
		assert.NotContains(t, out, section)
	}
}

func TestBuild_GuestNoDataNote(t *testing.T) {
	tests := []struct {
		name   string
		result *fetch.Result
	}{
		{name: "full result", result: fullResult()},
		{name: "nil result", result: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := newTestAssembler(t, Options{}).Build(tt.result, model.IdentityGuest)
			require.NoError(t, err)
			assert.Contains(t, out, "No specific financial data matched this query.")
			assert.True(t, strings.HasSuffix(out, "apply the out-of-scope rule above."))
		})
	}
}

func TestRuleSetsAreDisjoint(t *testing.T) {
	guest := make(map[string]bool, len(guestRules))
	for _, r := range guestRules {
		guest[r] = true
	}
	for _, r := range authenticatedRules {
		assert.False(t, guest[r], r)
	}
	for _, r := range guestRules {
		assert.NotContains(t, strings.ToLower(r), "database")
	}
}

func TestBuild_OmitsFailedAndEmptySections(t *testing.T) {
	res := fullResult()
	res.Goals.Err = errors.New("boom")
	res.Reminders = nil
	res.Ledger.Entries = nil

	out, err := newTestAssembler(t, Options{}).Build(res, model.IdentityAuthenticated)
	require.NoError(t, err)
	assert.Contains(t, out, "THIS MONTH'S FINANCIAL SUMMARY")
	assert.NotContains(t, out, "RECENT TRANSACTIONS")
	assert.NotContains(t, out, "GOAL OVERVIEW")
	assert.NotContains(t, out, "REMINDER OVERVIEW")
}

func TestBuild_NoData(t *testing.T) {
	res := &fetch.Result{
		Now:    testNow,
		Ledger: &fetch.LedgerBundle{Summary: &model.LedgerSummary{}},
		Goals:  &fetch.GoalsBundle{Err: errors.New("boom")},
	}
	out, err := newTestAssembler(t, Options{}).Build(res, model.IdentityAuthenticated)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, "apply the out-of-scope rule above."))
	assert.NotContains(t, out, "FINANCIAL SUMMARY")

	out, err = newTestAssembler(t, Options{}).Build(nil, model.IdentityAuthenticated)
	require.NoError(t, err)
	assert.Contains(t, out, "No specific financial data matched this query.")
}

func TestBuild_Truncates(t *testing.T) {
	res := &fetch.Result{Now: testNow, Ledger: &fetch.LedgerBundle{}}
	for i := 0; i < 40; i++ {
		res.Ledger.Entries = append(res.Ledger.Entries, model.LedgerEntry{
			Date: testNow, Type: model.EntryExpense, Category: "Food", Amount: 1,
		})
	}
	out, err := newTestAssembler(t, Options{}).Build(res, model.IdentityAuthenticated)
	require.NoError(t, err)
	assert.Equal(t, fetch.LedgerLimit, strings.Count(out, "| Food |"))
}

func TestBuild_CustomOptions(t *testing.T) {
	a := newTestAssembler(t, Options{AppName: "Budgeteer", CurrencySymbol: "$", CurrencyCode: "USD"})
	out, err := a.Build(fullResult(), model.IdentityAuthenticated)
	require.NoError(t, err)
	assert.Contains(t, out, "financial assistant for Budgeteer")
	assert.Contains(t, out, "Always express amounts in $ (USD).")
	assert.Contains(t, out, "$1,234.00")
	assert.NotContains(t, out, "₹")
}
