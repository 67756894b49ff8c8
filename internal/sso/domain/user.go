package domain

import "time"

// User is an account on the primary instance. Satellites have no users of
// their own; they only recognise subjects named in handoff tokens.
type User struct {
	ID           string
	Username     string
	PasswordHash string // PHC-format Argon2id

	// TOTPSecret is set once the user enrolls a second factor. MFAEnabledAt
	// is set when the enrollment is verified; sign-in requires a code only
	// after that.
	TOTPSecret   *string
	MFAEnabledAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// MFARequired reports whether sign-in must include a TOTP code.
func (u User) MFARequired() bool {
	return u.MFAEnabledAt != nil && u.TOTPSecret != nil && *u.TOTPSecret != ""
}
