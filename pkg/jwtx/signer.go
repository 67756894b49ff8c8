package jwtx

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aussiebroadwan/crosstab/pkg/cryptox"
)

// Signer signs handoff tokens. Only EdDSA (Ed25519) is supported: the keys
// are small, fast to generate ephemerally, and trivially published via JWKS.
type Signer interface {
	KID() string
	Sign(HandoffClaims) (string, error)
	PublicJWK() JWK
}

// EdDSASigner implements Signer using Ed25519.
type EdDSASigner struct {
	kid string
	key ed25519.PrivateKey
	pub ed25519.PublicKey
}

// NewSigner loads an Ed25519 private key from PEM bytes (PKCS8).
func NewSigner(kid string, pemKey []byte) (*EdDSASigner, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, errors.New("jwtx: invalid PEM for Ed25519 key")
	}
	if block.Type != "PRIVATE KEY" {
		return nil, fmt.Errorf("jwtx: expected PRIVATE KEY, got %q", block.Type)
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("jwtx: failed to parse PKCS8 key: %w", err)
	}
	priv, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("jwtx: key is not Ed25519")
	}

	return &EdDSASigner{
		kid: kid,
		key: priv,
		pub: priv.Public().(ed25519.PublicKey),
	}, nil
}

// NewEphemeralSigner generates a fresh Ed25519 signer with a random key ID.
// The private key never leaves process memory.
func NewEphemeralSigner() (*EdDSASigner, error) {
	pemKey, err := cryptox.GenerateEd25519Key()
	if err != nil {
		return nil, err
	}
	kid, err := cryptox.GenerateToken(8)
	if err != nil {
		return nil, err
	}
	return NewSigner("ct-"+kid, pemKey)
}

// KID returns the key identifier placed in the token header.
func (s *EdDSASigner) KID() string { return s.kid }

// Sign produces a compact-serialized EdDSA JWT for the given claims.
func (s *EdDSASigner) Sign(claims HandoffClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	token.Header["kid"] = s.kid
	return token.SignedString(s.key)
}

// PublicJWK returns the signer's public key as a JWK for JWKS publishing.
func (s *EdDSASigner) PublicJWK() JWK {
	return NewEd25519JWK(s.kid, s.pub)
}
