package jwtx

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrUnknownKID  = errors.New("jwtx: unknown kid")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")
	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrOrigin      = errors.New("jwtx: origin mismatch")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
)

// KeyProvider resolves a kid to an Ed25519 public key. Implemented by
// KeySet (local keys) and RemoteKeySet (keys fetched from the primary).
type KeyProvider interface {
	Get(kid string) (ed25519.PublicKey, error)
}

// Verifier validates handoff tokens: signature against a KeyProvider, then
// issuer, target origin, and expiry.
type Verifier struct {
	Keys   KeyProvider
	Issuer string
}

// NewVerifier creates a verifier expecting tokens from the given issuer.
func NewVerifier(keys KeyProvider, issuer string) *Verifier {
	return &Verifier{Keys: keys, Issuer: issuer}
}

// Verify validates the JWT string and the origin binding, returning the
// parsed claims. Every failure is terminal: a token that fails any check
// must never establish a session.
func (v *Verifier) Verify(tokenStr, expectedOrigin string) (*HandoffClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		// Time checks are done explicitly below so each failure maps to a
		// distinct sentinel error.
		jwt.WithoutClaimsValidation(),
	)

	token, err := parser.ParseWithClaims(tokenStr, &HandoffClaims{}, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, ErrMalformed
		}
		pub, err := v.Keys.Get(kid)
		if err != nil {
			// An unreachable key source must stay distinguishable so the
			// caller can fail closed with a retryable error.
			if errors.Is(err, ErrUpstream) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %q", ErrUnknownKID, kid)
		}
		return pub, nil
	})
	if err != nil {
		if errors.Is(err, ErrUnknownKID) || errors.Is(err, ErrUpstream) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSig, err)
	}

	claims, ok := token.Claims.(*HandoffClaims)
	if !ok || !token.Valid {
		return nil, ErrMalformed
	}

	if err := claims.ValidateIssuer(v.Issuer); err != nil {
		return nil, err
	}
	if err := claims.ValidateOrigin(expectedOrigin); err != nil {
		return nil, err
	}
	if err := claims.ValidateExpiry(time.Now()); err != nil {
		return nil, err
	}

	return claims, nil
}
