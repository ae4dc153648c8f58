package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/the-spice-must-talk/internal/model"
)

// SaveLedgerEntries inserts entries, skipping any whose hash is already stored.
// It returns the number of rows actually inserted.
func (s *SQLiteStorage) SaveLedgerEntries(ctx context.Context, entries []model.LedgerEntry) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateLedgerEntries(entries); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback() // Rollback is a no-op if tx has been committed
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO ledger_entries (
			id, user_id, hash, date, type, category, amount,
			description, notes, payment_method
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	inserted := 0
	for i := range entries {
		e := &entries[i]
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.Hash == "" {
			e.Hash = e.GenerateHash()
		}

		res, err := stmt.ExecContext(ctx,
			e.ID, e.UserID, e.Hash, dbTime(e.Date), string(e.Type), e.Category, e.Amount,
			e.Description, e.Notes, e.PaymentMethod,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert entry %s: %w", e.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return inserted, nil
}

// GetLedgerEntries returns a user's entries inside the window, newest first.
func (s *SQLiteStorage) GetLedgerEntries(ctx context.Context, userID string, window model.TimeWindow, limit int) ([]model.LedgerEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	query := `
		SELECT id, user_id, hash, date, type, category, amount,
		       description, notes, payment_method, created_at
		FROM ledger_entries
		WHERE user_id = ? AND date <= ?`
	args := []any{userID, dbTime(window.End)}
	if window.Start != nil {
		query += ` AND date > ?`
		args = append(args, dbTime(*window.Start))
	}
	query += ` ORDER BY date DESC, created_at DESC LIMIT ?`
	args = append(args, sqlLimit(limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		var entryType string
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.Hash, &e.Date, &entryType, &e.Category, &e.Amount,
			&e.Description, &e.Notes, &e.PaymentMethod, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		e.Type = model.EntryType(entryType)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}
	return entries, nil
}

// GetMonthlySummary totals the calendar month containing month.
func (s *SQLiteStorage) GetMonthlySummary(ctx context.Context, userID string, month time.Time) (*model.LedgerSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(userID, "userID"); err != nil {
		return nil, err
	}

	start := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, month.Location())
	end := start.AddDate(0, 1, 0)

	summary := &model.LedgerSummary{
		Month:      start,
		ByCategory: make(map[string]float64),
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT type, category, SUM(amount), COUNT(*)
		FROM ledger_entries
		WHERE user_id = ? AND date >= ? AND date < ?
		GROUP BY type, category
	`, userID, dbTime(start), dbTime(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query monthly summary: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var entryType, category string
		var total sql.NullFloat64
		var count int
		if err := rows.Scan(&entryType, &category, &total, &count); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		summary.TransactionCount += count
		switch model.EntryType(entryType) {
		case model.EntryIncome:
			summary.TotalIncome += total.Float64
		case model.EntryExpense:
			summary.TotalExpenses += total.Float64
			summary.ByCategory[category] += total.Float64
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating summary rows: %w", err)
	}

	summary.NetSavings = summary.TotalIncome - summary.TotalExpenses
	if summary.TotalIncome > 0 {
		summary.SavingsRate = summary.NetSavings / summary.TotalIncome * 100
	}
	return summary, nil
}
