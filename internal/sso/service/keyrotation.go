package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/crosstab/pkg/jwtx"
	"github.com/aussiebroadwan/crosstab/pkg/slogx"
)

// KeyRotationService rotates the primary's ephemeral handoff signing keys at
// runtime. Keys are in-memory only: a retired key stops signing but its
// public half stays in the key set, so handoff tokens signed moments before
// rotation still verify until satellites refresh their JWKS cache.
type KeyRotationService struct {
	Keys *jwtx.KeyManager
}

// RotateKeyResponse reports the outcome of a rotation.
type RotateKeyResponse struct {
	NewKid      string   `json:"new_kid"`
	RetiredKids []string `json:"retired_kids,omitempty"`
	ActiveKeys  int      `json:"active_keys"`
}

// RotateKey generates a new signing key and optionally retires the existing
// ones. With retireExisting false the new key joins the signing pool.
func (s *KeyRotationService) RotateKey(ctx context.Context, retireExisting bool) (*RotateKeyResponse, error) {
	if s.Keys == nil {
		return nil, fmt.Errorf("key manager is required")
	}
	l := slogx.FromContext(ctx)

	signer, err := jwtx.NewEphemeralSigner()
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}

	var retired []string
	if retireExisting {
		retired = s.Keys.ActiveKIDs()
	}

	// Add before retiring so the manager never signs with zero keys.
	if err := s.Keys.AddSigner(signer); err != nil {
		return nil, fmt.Errorf("failed to add signer: %w", err)
	}

	for _, kid := range retired {
		if err := s.Keys.RetireSignerByKid(kid); err != nil {
			return nil, fmt.Errorf("failed to retire key %s: %w", kid, err)
		}
	}

	l.Info("signing key rotated",
		slog.String("new_kid", signer.KID()),
		slog.Int("retired", len(retired)),
		slog.Int("active_keys", s.Keys.NumSigners()),
	)
	return &RotateKeyResponse{
		NewKid:      signer.KID(),
		RetiredKids: retired,
		ActiveKeys:  s.Keys.NumSigners(),
	}, nil
}

// RetireKey stops signing with kid without generating a replacement. The
// last active key cannot be retired.
func (s *KeyRotationService) RetireKey(ctx context.Context, kid string) error {
	if s.Keys == nil {
		return fmt.Errorf("key manager is required")
	}
	if err := s.Keys.RetireSignerByKid(kid); err != nil {
		return fmt.Errorf("failed to retire key %s: %w", kid, err)
	}
	slogx.FromContext(ctx).Info("signing key retired", slog.String("kid", kid))
	return nil
}

// ActiveKIDs lists the kids currently eligible to sign.
func (s *KeyRotationService) ActiveKIDs() []string {
	return s.Keys.ActiveKIDs()
}
