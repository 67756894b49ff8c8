package jwtx

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func numericDate(t time.Time) *jwt.NumericDate { return jwt.NewNumericDate(t) }

func TestNewEphemeralKeyManager(t *testing.T) {
	t.Parallel()

	t.Run("defaults and clamping", func(t *testing.T) {
		km, err := NewEphemeralKeyManager(0)
		require.NoError(t, err)
		require.Equal(t, 2, km.NumSigners())

		km, err = NewEphemeralKeyManager(50)
		require.NoError(t, err)
		require.Equal(t, 10, km.NumSigners())
	})

	t.Run("keyset holds every signer", func(t *testing.T) {
		km, err := NewEphemeralKeyManager(3)
		require.NoError(t, err)
		require.True(t, km.IsReady())
		require.Len(t, km.KeySet.PublicJWKS().Keys, 3)

		for _, kid := range km.ActiveKIDs() {
			_, err := km.KeySet.Get(kid)
			require.NoError(t, err)
		}
	})
}

func TestKeyManagerRotation(t *testing.T) {
	t.Parallel()

	km, err := NewEphemeralKeyManager(1)
	require.NoError(t, err)
	oldKid := km.ActiveKIDs()[0]

	fresh, err := NewEphemeralSigner()
	require.NoError(t, err)
	require.NoError(t, km.AddSigner(fresh))
	require.Equal(t, 2, km.NumSigners())

	require.NoError(t, km.RetireSignerByKid(oldKid))
	require.Equal(t, []string{fresh.KID()}, km.ActiveKIDs())

	// Retired key stays available for verification grace.
	_, err = km.KeySet.Get(oldKid)
	require.NoError(t, err)

	// The last remaining key cannot be retired.
	require.Error(t, km.RetireSignerByKid(fresh.KID()))
}

func TestKeyManagerRetireUnknownKid(t *testing.T) {
	t.Parallel()

	km, err := NewEphemeralKeyManager(2)
	require.NoError(t, err)
	require.ErrorIs(t, km.RetireSignerByKid("nope"), ErrUnknownKID)
}

func TestTokensSignedByRotatedKeyStillVerify(t *testing.T) {
	t.Parallel()

	km, err := NewEphemeralKeyManager(2)
	require.NoError(t, err)
	verifier := NewVerifier(km.KeySet, testIssuer)

	signer := km.GetSigner()
	claims := NewHandoffClaims(testIssuer, "u", "s", testOrigin, "https://satellite.test/", time.Now().Add(time.Hour), 0, time.Now())
	token, err := signer.Sign(claims)
	require.NoError(t, err)

	require.NoError(t, km.RetireSignerByKid(signer.KID()))

	_, err = verifier.Verify(token, testOrigin)
	require.NoError(t, err)
}
