package jwtx

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// ErrUpstream reports that the primary's JWKS endpoint could not be reached
// or returned garbage. Callers must fail closed: no key, no session.
var ErrUpstream = errors.New("jwtx: jwks fetch failed")

const (
	defaultFetchTimeout = 5 * time.Second
	defaultRefreshTTL   = 5 * time.Minute
)

// RemoteKeySet is a KeyProvider backed by the primary instance's JWKS
// endpoint. Keys are cached and refreshed when stale or when an unknown kid
// shows up (the primary may have rotated).
type RemoteKeySet struct {
	url    string
	client *http.Client
	ttl    time.Duration

	mu        sync.Mutex
	keys      *KeySet
	fetchedAt time.Time
}

// NewRemoteKeySet creates a remote key set for the given JWKS URL. Zero
// values pick a 5s fetch timeout and a 5m refresh interval.
func NewRemoteKeySet(jwksURL string, fetchTimeout, refreshTTL time.Duration) *RemoteKeySet {
	if fetchTimeout <= 0 {
		fetchTimeout = defaultFetchTimeout
	}
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTTL
	}
	return &RemoteKeySet{
		url:    jwksURL,
		client: &http.Client{Timeout: fetchTimeout},
		ttl:    refreshTTL,
		keys:   NewKeySet(),
	}
}

// Get implements KeyProvider. A cache miss triggers one synchronous refresh;
// if the primary is unreachable the lookup fails with ErrUpstream and the
// caller must not grant access.
func (r *RemoteKeySet) Get(kid string) (ed25519.PublicKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if time.Since(r.fetchedAt) > r.ttl {
		if err := r.refreshLocked(); err != nil {
			return nil, err
		}
	}

	pub, err := r.keys.Get(kid)
	if errors.Is(err, ErrUnknownKID) {
		// Unknown kid can mean a rotation we haven't seen yet.
		if err := r.refreshLocked(); err != nil {
			return nil, err
		}
		pub, err = r.keys.Get(kid)
	}
	return pub, err
}

// Refresh forces a fetch of the primary's JWKS.
func (r *RemoteKeySet) Refresh(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refreshCtxLocked(ctx)
}

func (r *RemoteKeySet) refreshLocked() error {
	ctx, cancel := context.WithTimeout(context.Background(), r.client.Timeout)
	defer cancel()
	return r.refreshCtxLocked(ctx)
}

func (r *RemoteKeySet) refreshCtxLocked(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var jwks JWKS
	if err := json.NewDecoder(resp.Body).Decode(&jwks); err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if err := r.keys.ResetFromJWKS(jwks); err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	r.fetchedAt = time.Now()
	return nil
}
