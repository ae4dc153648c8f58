package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/Veraticus/the-spice-must-talk/internal/model"
)

// SaveGoal inserts or replaces a goal.
func (s *SQLiteStorage) SaveGoal(ctx context.Context, goal *model.Goal) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateGoal(goal); err != nil {
		return err
	}
	if goal.ID == "" {
		goal.ID = uuid.NewString()
	}

	var targetDate sql.NullTime
	if goal.TargetDate != nil {
		targetDate = sql.NullTime{Time: dbTime(*goal.TargetDate), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO goals (
			id, user_id, name, category, priority, status,
			target_amount, saved_amount, target_date
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			priority = excluded.priority,
			status = excluded.status,
			target_amount = excluded.target_amount,
			saved_amount = excluded.saved_amount,
			target_date = excluded.target_date
	`, goal.ID, goal.UserID, goal.Name, goal.Category, goal.Priority, string(goal.Status),
		goal.TargetAmount, goal.SavedAmount, targetDate)
	if err != nil {
		return fmt.Errorf("failed to save goal: %w", err)
	}
	return nil
}

// GetGoals returns a user's goals, soonest target date first and undated goals last.
func (s *SQLiteStorage) GetGoals(ctx context.Context, userID string, limit int) ([]model.Goal, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, category, priority, status,
		       target_amount, saved_amount, target_date, created_at
		FROM goals
		WHERE user_id = ?
		ORDER BY target_date IS NULL, target_date ASC, created_at ASC
		LIMIT ?
	`, userID, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query goals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var goals []model.Goal
	for rows.Next() {
		var g model.Goal
		var status string
		var targetDate sql.NullTime
		if err := rows.Scan(
			&g.ID, &g.UserID, &g.Name, &g.Category, &g.Priority, &status,
			&g.TargetAmount, &g.SavedAmount, &targetDate, &g.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		g.Status = model.GoalStatus(status)
		if targetDate.Valid {
			t := targetDate.Time
			g.TargetDate = &t
		}
		goals = append(goals, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating goals: %w", err)
	}
	return goals, nil
}

// GetGoalSummary aggregates every goal the user owns.
func (s *SQLiteStorage) GetGoalSummary(ctx context.Context, userID string) (*model.GoalSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	var summary model.GoalSummary
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'active' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'paused' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(target_amount), 0),
			COALESCE(SUM(saved_amount), 0)
		FROM goals
		WHERE user_id = ?
	`, userID).Scan(
		&summary.TotalGoals, &summary.ActiveGoals, &summary.CompletedGoals, &summary.PausedGoals,
		&summary.TotalTarget, &summary.TotalSaved,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query goal summary: %w", err)
	}

	if summary.TotalTarget > 0 {
		summary.OverallProgress = summary.TotalSaved / summary.TotalTarget * 100
	}
	return &summary, nil
}
