package storage

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/Veraticus/the-spice-must-talk/internal/model"
)

// AppendTurns mirrors conversation turns for an identity.
func (s *SQLiteStorage) AppendTurns(ctx context.Context, identityID string, turns []model.Turn) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(identityID, "identityID"); err != nil {
		return err
	}
	if len(turns) == 0 {
		return nil
	}
	if err := validateTurns(turns); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // Rollback is a no-op if tx has been committed
	}()

	for _, t := range turns {
		created := t.CreatedAt
		if created.IsZero() {
			created = time.Now()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO chat_turns (identity_id, role, content, created_at) VALUES (?, ?, ?, ?)
		`, identityID, string(t.Role), t.Content, dbTime(created)); err != nil {
			return fmt.Errorf("failed to insert turn: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LoadTurns returns the most recent turns for an identity in chronological order.
func (s *SQLiteStorage) LoadTurns(ctx context.Context, identityID string, limit int) ([]model.Turn, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(identityID, "identityID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, created_at
		FROM chat_turns
		WHERE identity_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, identityID, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query turns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var turns []model.Turn
	for rows.Next() {
		var t model.Turn
		var role string
		if err := rows.Scan(&role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		t.Role = model.Role(role)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating turns: %w", err)
	}
	slices.Reverse(turns)
	return turns, nil
}

// ClearTurns removes every mirrored turn for an identity.
func (s *SQLiteStorage) ClearTurns(ctx context.Context, identityID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(identityID, "identityID"); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM chat_turns WHERE identity_id = ?`, identityID); err != nil {
		return fmt.Errorf("failed to clear turns: %w", err)
	}
	return nil
}
