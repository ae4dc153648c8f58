package model

import "time"

// Role identifies who produced a conversation turn.
type Role string

const (
	// RoleUser is a turn written by the person chatting.
	RoleUser Role = "user"
	// RoleAssistant is a turn produced by the model.
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation. User turns always hold redacted text.
type Turn struct {
	CreatedAt time.Time `json:"created_at"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
}

// IdentityKind distinguishes signed-in users from anonymous guests.
type IdentityKind string

const (
	// IdentityAuthenticated is a verified user whose records can be read.
	IdentityAuthenticated IdentityKind = "authenticated"
	// IdentityGuest is an anonymous caller with no stored records.
	IdentityGuest IdentityKind = "guest"
)

// Identity is the caller a query is answered for.
type Identity struct {
	ID       string // Stable user ID, or a per-connection ID for guests
	Username string
	Kind     IdentityKind
}

// IsGuest reports whether the identity is anonymous.
func (i Identity) IsGuest() bool {
	return i.Kind != IdentityAuthenticated
}

// User is an account that can sign in.
type User struct {
	CreatedAt time.Time
	ID        string
	Username  string
	Email     string
}

// TimeWindow bounds ledger reads to (Start, End]. A nil Start means unbounded.
type TimeWindow struct {
	Start *time.Time
	End   time.Time
}

// Unbounded reports whether the window has no lower bound.
func (w TimeWindow) Unbounded() bool {
	return w.Start == nil
}

// Contains reports whether t falls inside the window.
func (w TimeWindow) Contains(t time.Time) bool {
	if t.After(w.End) {
		return false
	}
	return w.Start == nil || t.After(*w.Start)
}
