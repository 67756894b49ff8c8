package domain

import "time"

// SessionKind distinguishes canonical sessions (created by sign-in on the
// primary) from derived sessions (created by handoff redemption on a
// satellite).
type SessionKind string

const (
	// SessionKindCanonical is a session created by authentication on the
	// primary instance. Only the primary ever writes these.
	SessionKindCanonical SessionKind = "canonical"

	// SessionKindDerived is a satellite's local recognition of a primary
	// session, established through a handoff token.
	SessionKindDerived SessionKind = "derived"
)

// Session is an authenticated browsing session. The raw session token lives
// only in the user's cookie; the store keeps its SHA-256 fingerprint.
type Session struct {
	ID        string
	Subject   string // user ID the session belongs to
	Kind      SessionKind
	TokenHash string
	// PrimarySessionID links a derived session back to the canonical one it
	// was handed off from. Empty for canonical sessions.
	PrimarySessionID string
	IssuedAt         time.Time
	ExpiresAt        time.Time
	RevokedAt        *time.Time
}

// Active reports whether the session is usable at the given instant.
func (s Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
