package jwtx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	testIssuer = "https://primary.test"
	testOrigin = "https://satellite.test"
)

func newTestVerifier(t *testing.T) (*EdDSASigner, *Verifier) {
	t.Helper()

	signer, err := NewEphemeralSigner()
	require.NoError(t, err)

	keys := NewKeySet()
	require.NoError(t, keys.AddSigner(signer))

	return signer, NewVerifier(keys, testIssuer)
}

func signedToken(t *testing.T, signer *EdDSASigner, mutate func(*HandoffClaims)) string {
	t.Helper()

	claims := NewHandoffClaims(
		testIssuer, "user-1", "sess-1", testOrigin,
		"https://satellite.test/dashboard?tab=2",
		time.Now().Add(time.Hour), 30*time.Second, time.Now(),
	)
	if mutate != nil {
		mutate(&claims)
	}

	token, err := signer.Sign(claims)
	require.NoError(t, err)
	return token
}

func TestVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	signer, verifier := newTestVerifier(t)
	token := signedToken(t, signer, nil)

	claims, err := verifier.Verify(token, testOrigin)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, "sess-1", claims.SID)
	require.Equal(t, "https://satellite.test/dashboard?tab=2", claims.ReturnURL)
	require.NotEmpty(t, claims.ID)
}

func TestVerifyRejectsWrongOrigin(t *testing.T) {
	t.Parallel()

	signer, verifier := newTestVerifier(t)
	token := signedToken(t, signer, nil)

	_, err := verifier.Verify(token, "https://other.test")
	require.ErrorIs(t, err, ErrOrigin)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	t.Parallel()

	signer, verifier := newTestVerifier(t)
	token := signedToken(t, signer, func(c *HandoffClaims) {
		past := time.Now().Add(-time.Minute)
		c.IssuedAt = numericDate(past.Add(-time.Minute))
		c.NotBefore = numericDate(past.Add(-time.Minute))
		c.ExpiresAt = numericDate(past)
	})

	_, err := verifier.Verify(token, testOrigin)
	require.ErrorIs(t, err, ErrExpired)
}

func TestVerifyRejectsWrongIssuer(t *testing.T) {
	t.Parallel()

	signer, verifier := newTestVerifier(t)
	token := signedToken(t, signer, func(c *HandoffClaims) {
		c.Issuer = "https://imposter.test"
	})

	_, err := verifier.Verify(token, testOrigin)
	require.ErrorIs(t, err, ErrIssuer)
}

func TestVerifyRejectsUnknownSigner(t *testing.T) {
	t.Parallel()

	_, verifier := newTestVerifier(t)

	stranger, err := NewEphemeralSigner()
	require.NoError(t, err)
	token := signedToken(t, stranger, nil)

	_, err = verifier.Verify(token, testOrigin)
	require.ErrorIs(t, err, ErrUnknownKID)
}

func TestVerifyRejectsTamperedToken(t *testing.T) {
	t.Parallel()

	signer, verifier := newTestVerifier(t)
	token := signedToken(t, signer, nil)

	tampered := token[:len(token)-3] + "xyz"
	_, err := verifier.Verify(tampered, testOrigin)
	require.Error(t, err)
}
