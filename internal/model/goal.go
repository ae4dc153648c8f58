package model

import (
	"math"
	"time"
)

// GoalStatus is the lifecycle state of a savings goal.
type GoalStatus string

const (
	// GoalActive is being saved towards.
	GoalActive GoalStatus = "active"
	// GoalCompleted has reached its target.
	GoalCompleted GoalStatus = "completed"
	// GoalPaused is on hold.
	GoalPaused GoalStatus = "paused"
)

// Goal is a savings target owned by a user.
type Goal struct {
	CreatedAt    time.Time
	TargetDate   *time.Time
	ID           string
	UserID       string
	Name         string
	Category     string
	Priority     string
	Status       GoalStatus
	TargetAmount float64
	SavedAmount  float64
}

// ProgressPercentage returns how much of the target has been saved, capped at 100.
func (g *Goal) ProgressPercentage() float64 {
	if g.TargetAmount <= 0 {
		return 0
	}
	pct := g.SavedAmount / g.TargetAmount * 100
	return math.Min(math.Round(pct*100)/100, 100)
}

// RemainingAmount returns the amount still to be saved, never negative.
func (g *Goal) RemainingAmount() float64 {
	return math.Max(g.TargetAmount-g.SavedAmount, 0)
}

// DaysRemaining returns whole days until the target date, or nil when the goal has none.
func (g *Goal) DaysRemaining(now time.Time) *int {
	if g.TargetDate == nil {
		return nil
	}
	days := int(math.Ceil(g.TargetDate.Sub(now).Hours() / 24))
	return &days
}

// IsOverdue reports whether an unfinished goal has passed its target date.
func (g *Goal) IsOverdue(now time.Time) bool {
	if g.TargetDate == nil || g.Status == GoalCompleted {
		return false
	}
	return g.TargetDate.Before(now)
}

// GoalSummary aggregates all goals of a user as computed by the store.
type GoalSummary struct {
	TotalTarget     float64
	TotalSaved      float64
	OverallProgress float64 // Percent saved across all goals
	TotalGoals      int
	ActiveGoals     int
	CompletedGoals  int
	PausedGoals     int
}
