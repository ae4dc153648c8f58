package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/the-spice-must-talk/internal/model"
)

// SaveReminder inserts or replaces a reminder.
func (s *SQLiteStorage) SaveReminder(ctx context.Context, reminder *model.Reminder) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateReminder(reminder); err != nil {
		return err
	}
	if reminder.ID == "" {
		reminder.ID = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reminders (id, user_id, title, description, date, recurrence)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			date = excluded.date,
			recurrence = excluded.recurrence
	`, reminder.ID, reminder.UserID, reminder.Title, reminder.Description,
		dbTime(reminder.Date), reminder.Recurrence)
	if err != nil {
		return fmt.Errorf("failed to save reminder: %w", err)
	}
	return nil
}

// GetReminders returns a user's reminders inside the window, earliest first.
func (s *SQLiteStorage) GetReminders(ctx context.Context, userID string, window model.TimeWindow, limit int) ([]model.Reminder, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	query := `
		SELECT id, user_id, title, description, date, recurrence, created_at
		FROM reminders
		WHERE user_id = ? AND date <= ?`
	args := []any{userID, dbTime(window.End)}
	if window.Start != nil {
		query += ` AND date > ?`
		args = append(args, dbTime(*window.Start))
	}
	query += ` ORDER BY date ASC LIMIT ?`
	args = append(args, sqlLimit(limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reminders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var reminders []model.Reminder
	for rows.Next() {
		var r model.Reminder
		if err := rows.Scan(
			&r.ID, &r.UserID, &r.Title, &r.Description, &r.Date, &r.Recurrence, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		reminders = append(reminders, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reminders: %w", err)
	}
	return reminders, nil
}

// GetReminderCounts buckets every reminder the user owns relative to the day containing now.
func (s *SQLiteStorage) GetReminderCounts(ctx context.Context, userID string, now time.Time) (*model.ReminderCounts, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	dayStart := dbTime(model.StartOfDay(now))
	dayEnd := dbTime(model.StartOfDay(now).AddDate(0, 0, 1))

	var counts model.ReminderCounts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN date >= ? AND date < ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN date >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN date < ? THEN 1 ELSE 0 END), 0)
		FROM reminders
		WHERE user_id = ?
	`, dayStart, dayEnd, dayEnd, dayStart, userID).Scan(
		&counts.Total, &counts.Today, &counts.Upcoming, &counts.Overdue,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query reminder counts: %w", err)
	}
	return &counts, nil
}
