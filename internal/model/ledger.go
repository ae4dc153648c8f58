package model

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// EntryType indicates whether money came in or went out.
type EntryType string

const (
	// EntryIncome is money received.
	EntryIncome EntryType = "income"
	// EntryExpense is money spent.
	EntryExpense EntryType = "expense"
)

// Label returns the capitalized form used in prompts.
func (t EntryType) Label() string {
	switch t {
	case EntryIncome:
		return "Income"
	case EntryExpense:
		return "Expense"
	default:
		return string(t)
	}
}

// LedgerEntry is a single income or expense record owned by a user.
type LedgerEntry struct {
	Date          time.Time
	CreatedAt     time.Time
	ID            string
	UserID        string
	Type          EntryType
	Category      string
	Description   string
	Notes         string
	PaymentMethod string
	Hash          string
	Amount        float64 // Always positive; Type carries the direction
}

// GenerateHash creates a unique hash for duplicate detection.
func (e *LedgerEntry) GenerateHash() string {
	data := fmt.Sprintf("%s:%s:%.2f:%s:%s",
		e.UserID,
		e.Date.Format("2006-01-02"),
		e.Amount,
		e.Type,
		e.Description)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// LedgerSummary holds totals for a calendar month as computed by the store.
type LedgerSummary struct {
	Month            time.Time
	ByCategory       map[string]float64 // Expense totals keyed by category
	TotalIncome      float64
	TotalExpenses    float64
	NetSavings       float64
	SavingsRate      float64 // Percent of income kept, 0 when there is no income
	TransactionCount int
}
