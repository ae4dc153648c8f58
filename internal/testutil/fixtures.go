package testutil

import (
	"time"

	"github.com/Veraticus/the-spice-must-talk/internal/model"
)

// Fixture is a reusable record set applied through a RecordBuilder.
type Fixture func(*RecordBuilder) *RecordBuilder

// FixtureHousehold is a month of typical activity: salary, a handful of
// expenses, two goals and reminders in every temporal bucket.
var FixtureHousehold Fixture = func(b *RecordBuilder) *RecordBuilder {
	return b.
		WithIncome(10, "Salary", 60000, "Monthly salary").
		WithExpense(1, "Food", 450, "Groceries").
		WithExpense(2, "Food", 1200, "Dinner out").
		WithExpense(3, "Transport", 300, "Metro card").
		WithExpense(12, "Rent", 18000, "June rent").
		WithGoal("Emergency fund", model.GoalActive, 100000, 40000, 180).
		WithGoal("New phone", model.GoalCompleted, 30000, 30000, 0).
		WithReminder("Pay electricity bill", time.Hour).
		WithReminder("Renew insurance", 5*24*time.Hour).
		WithReminder("Credit card payment", -2*24*time.Hour)
}

// FixtureEmpty adds nothing.
var FixtureEmpty Fixture = func(b *RecordBuilder) *RecordBuilder { return b }
