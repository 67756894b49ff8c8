package jwtx

import (
	"fmt"
	"math/rand/v2"
	"sync"
)

// KeyManager manages the ephemeral Ed25519 signing keys of a primary
// instance. Keys only exist in memory: a restart invalidates all outstanding
// handoff tokens, which is acceptable because they live for seconds.
//
// Multiple keys are kept so rotation can retire a key without a gap: retired
// keys stay in the KeySet for verification grace but are no longer selected
// for signing.
type KeyManager struct {
	KeySet *KeySet

	mu      sync.RWMutex
	signers []Signer
}

// NewEphemeralKeyManager generates numKeys fresh signing keys and a KeySet
// holding their public halves for JWKS publishing. numKeys is clamped to
// [1, 10] and defaults to 2.
func NewEphemeralKeyManager(numKeys int) (*KeyManager, error) {
	if numKeys <= 0 {
		numKeys = 2
	}
	if numKeys > 10 {
		numKeys = 10
	}

	keyset := NewKeySet()
	signers := make([]Signer, 0, numKeys)
	for i := 0; i < numKeys; i++ {
		signer, err := NewEphemeralSigner()
		if err != nil {
			return nil, fmt.Errorf("jwtx: failed to generate signer %d: %w", i+1, err)
		}
		if err := keyset.AddSigner(signer); err != nil {
			return nil, fmt.Errorf("jwtx: failed to add signer %d to keyset: %w", i+1, err)
		}
		signers = append(signers, signer)
	}

	return &KeyManager{KeySet: keyset, signers: signers}, nil
}

// GetSigner returns a randomly selected active signer, distributing signing
// across keys. Returns nil when no keys are active.
func (km *KeyManager) GetSigner() Signer {
	km.mu.RLock()
	defer km.mu.RUnlock()

	switch len(km.signers) {
	case 0:
		return nil
	case 1:
		return km.signers[0]
	default:
		return km.signers[rand.IntN(len(km.signers))]
	}
}

// NumSigners returns the number of active signing keys.
func (km *KeyManager) NumSigners() int {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return len(km.signers)
}

// IsReady reports whether verification keys are loaded.
func (km *KeyManager) IsReady() bool {
	return km.KeySet.IsReady()
}

// AddSigner adds a new signing key, registering its public half in the
// KeySet. Used for runtime rotation.
func (km *KeyManager) AddSigner(signer Signer) error {
	if signer == nil {
		return fmt.Errorf("jwtx: signer cannot be nil")
	}

	km.mu.Lock()
	defer km.mu.Unlock()

	if err := km.KeySet.AddSigner(signer); err != nil {
		return fmt.Errorf("jwtx: failed to add signer to keyset: %w", err)
	}
	km.signers = append(km.signers, signer)
	return nil
}

// RetireSignerByKid removes a key from signing. The public key stays in the
// KeySet so tokens signed just before retirement still verify. The last
// active key cannot be retired.
func (km *KeyManager) RetireSignerByKid(kid string) error {
	km.mu.Lock()
	defer km.mu.Unlock()

	if len(km.signers) <= 1 {
		return fmt.Errorf("jwtx: cannot retire the last signing key")
	}

	remaining := make([]Signer, 0, len(km.signers)-1)
	found := false
	for _, s := range km.signers {
		if s.KID() == kid {
			found = true
			continue
		}
		remaining = append(remaining, s)
	}
	if !found {
		return fmt.Errorf("jwtx: %w: %q", ErrUnknownKID, kid)
	}

	km.signers = remaining
	return nil
}

// ActiveKIDs returns the key IDs currently used for signing.
func (km *KeyManager) ActiveKIDs() []string {
	km.mu.RLock()
	defer km.mu.RUnlock()

	kids := make([]string, 0, len(km.signers))
	for _, s := range km.signers {
		kids = append(kids, s.KID())
	}
	return kids
}
