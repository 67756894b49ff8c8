package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultHandoffTTL is the default lifetime of a handoff token. The token
// only needs to survive one redirect leg, so it is deliberately short.
const DefaultHandoffTTL = 60 * time.Second

// HandoffClaims are the claims carried by a handoff token: a short-lived,
// single-use proof of an active primary session, bound to exactly one
// satellite origin via the audience claim.
type HandoffClaims struct {
	jwt.RegisteredClaims

	// SID is the primary session ID the token was derived from.
	SID string `json:"sid,omitempty"`

	// ReturnURL is the satellite URL the user is being sent back to. It is
	// echoed byte-for-byte so the original route survives both redirect legs.
	ReturnURL string `json:"rtu,omitempty"`

	// SessionExpiry is when the underlying primary session expires. The
	// satellite caps its derived session at this instant.
	SessionExpiry *jwt.NumericDate `json:"sxp,omitempty"`
}

// NewHandoffClaims builds claims for a handoff token bound to targetOrigin.
func NewHandoffClaims(
	issuer, subject, sid, targetOrigin, returnURL string,
	sessionExpiry time.Time,
	ttl time.Duration,
	now time.Time,
) HandoffClaims {
	if ttl <= 0 {
		ttl = DefaultHandoffTTL
	}
	return HandoffClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{targetOrigin},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		SID:           sid,
		ReturnURL:     returnURL,
		SessionExpiry: jwt.NewNumericDate(sessionExpiry),
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim. The jti
// is what the satellite records to enforce single use.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateIssuer checks the iss claim against the expected value. An empty
// expectation enforces nothing.
func (c *HandoffClaims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateOrigin checks that the token was minted for exactly the given
// origin. A token bound to another origin must fail closed.
func (c *HandoffClaims) ValidateOrigin(origin string) error {
	if len(c.Audience) != 1 || !slices.Contains(c.Audience, origin) {
		return ErrOrigin
	}
	return nil
}

// ValidateExpiry ensures the token hasn't expired (exp) and isn't used
// before it is valid (nbf).
func (c *HandoffClaims) ValidateExpiry(now time.Time) error {
	now = now.UTC()
	if c.ExpiresAt == nil || now.After(c.ExpiresAt.Time) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}
	return nil
}
