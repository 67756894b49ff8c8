package domain

import "time"

// HandoffConsumption records a redeemed handoff token's jti on the satellite
// that consumed it. The row's existence is what makes tokens single-use: the
// insert is keyed on JTI, so exactly one of any number of concurrent
// redemptions can succeed.
type HandoffConsumption struct {
	JTI string
	// ExpiresAt mirrors the token's own expiry. Once it passes, the row is
	// dead weight (the token can no longer verify anyway) and housekeeping
	// removes it.
	ExpiresAt  time.Time
	ConsumedAt time.Time
}
