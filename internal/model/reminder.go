package model

import "time"

// Reminder is a dated notification a user asked to receive.
type Reminder struct {
	Date        time.Time
	CreatedAt   time.Time
	ID          string
	UserID      string
	Title       string
	Description string
	Recurrence  string // Empty for one-off reminders
}

// IsToday reports whether the reminder falls on the same calendar day as now.
func (r *Reminder) IsToday(now time.Time) bool {
	y1, m1, d1 := r.Date.In(now.Location()).Date()
	y2, m2, d2 := now.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// IsOverdue reports whether the reminder's day has already passed.
func (r *Reminder) IsOverdue(now time.Time) bool {
	return r.Date.Before(StartOfDay(now)) && !r.IsToday(now)
}

// IsUpcoming reports whether the reminder is due after today.
func (r *Reminder) IsUpcoming(now time.Time) bool {
	return !r.IsToday(now) && !r.IsOverdue(now)
}

// ReminderCounts aggregates a user's reminders by temporal status.
type ReminderCounts struct {
	Total    int
	Today    int
	Upcoming int
	Overdue  int
}

// StartOfDay truncates t to local midnight.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
