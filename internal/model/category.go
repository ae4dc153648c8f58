package model

// Category names one of the record families the assistant can read for a user.
type Category string

const (
	// CategoryLedger covers income and expense entries.
	CategoryLedger Category = "ledger"
	// CategoryGoals covers savings goals and their progress.
	CategoryGoals Category = "goals"
	// CategoryReminders covers payment and bill reminders.
	CategoryReminders Category = "reminders"
)

// Categories returns every data category in canonical order.
func Categories() []Category {
	return []Category{CategoryLedger, CategoryGoals, CategoryReminders}
}

// Valid reports whether c is a known data category.
func (c Category) Valid() bool {
	switch c {
	case CategoryLedger, CategoryGoals, CategoryReminders:
		return true
	}
	return false
}

func (c Category) String() string {
	return string(c)
}
