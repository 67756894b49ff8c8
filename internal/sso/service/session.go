package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/crosstab/internal/sso/domain"
	"github.com/aussiebroadwan/crosstab/internal/sso/store"
	"github.com/aussiebroadwan/crosstab/pkg/cryptox"
	"github.com/aussiebroadwan/crosstab/pkg/idx"
	"github.com/aussiebroadwan/crosstab/pkg/slogx"
)

const (
	// DefaultSessionTTL is the canonical session lifetime on the primary.
	DefaultSessionTTL = 12 * time.Hour

	// DefaultDerivedTTL caps a satellite session; the effective TTL is the
	// smaller of this and the remaining primary session lifetime.
	DefaultDerivedTTL = 1 * time.Hour
)

// SessionService owns session rows for this instance. The primary creates
// canonical sessions at sign-in; a satellite creates derived sessions only
// through handoff redemption. Evidence (the opaque cookie value) is never
// stored, only its fingerprint.
type SessionService struct {
	Store store.Store
	TTL   time.Duration
}

func (s *SessionService) ttl() time.Duration {
	if s.TTL > 0 {
		return s.TTL
	}
	return DefaultSessionTTL
}

// Create mints a canonical session for subject and returns the session row
// together with the evidence token the caller puts in the cookie. The raw
// token exists only in this return value and the client's cookie jar.
func (s *SessionService) Create(ctx context.Context, subject string) (domain.Session, string, error) {
	return s.create(ctx, domain.Session{
		Subject: subject,
		Kind:    domain.SessionKindCanonical,
	}, s.ttl())
}

// CreateDerived mints a satellite session recognising a primary session. Its
// lifetime never outlives the primary session it derives from.
func (s *SessionService) CreateDerived(ctx context.Context, subject, primarySessionID string, primaryExpiry time.Time) (domain.Session, string, error) {
	ttl := DefaultDerivedTTL
	if s.TTL > 0 {
		ttl = s.TTL
	}

	sess := domain.Session{
		Subject:          subject,
		Kind:             domain.SessionKindDerived,
		PrimarySessionID: primarySessionID,
	}

	now := time.Now().UTC()
	expiresAt := now.Add(ttl)
	if !primaryExpiry.IsZero() && primaryExpiry.Before(expiresAt) {
		expiresAt = primaryExpiry
	}
	if !expiresAt.After(now) {
		return domain.Session{}, "", ErrSessionInvalid
	}
	return s.createAt(ctx, sess, now, expiresAt)
}

func (s *SessionService) create(ctx context.Context, sess domain.Session, ttl time.Duration) (domain.Session, string, error) {
	now := time.Now().UTC()
	return s.createAt(ctx, sess, now, now.Add(ttl))
}

func (s *SessionService) createAt(ctx context.Context, sess domain.Session, now, expiresAt time.Time) (domain.Session, string, error) {
	token, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return domain.Session{}, "", err
	}

	sess.ID = idx.New().String()
	sess.TokenHash = cryptox.FingerprintToken(token)
	sess.IssuedAt = now
	sess.ExpiresAt = expiresAt

	if err := s.Store.Sessions().CreateSession(ctx, sess); err != nil {
		return domain.Session{}, "", err
	}

	slogx.FromContext(ctx).Info("session created",
		slog.String("session_id", sess.ID),
		slog.String("kind", string(sess.Kind)),
		slog.Time("expires_at", sess.ExpiresAt),
	)
	return sess, token, nil
}

// Validate resolves evidence to an active session. Unknown, expired, and
// revoked evidence all fail with ErrSessionInvalid; the distinction is
// logged, never returned.
func (s *SessionService) Validate(ctx context.Context, token string) (domain.Session, error) {
	if token == "" {
		return domain.Session{}, ErrSessionInvalid
	}

	hash := cryptox.FingerprintToken(token)
	sess, err := s.Store.Sessions().GetSessionByTokenHash(ctx, hash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Session{}, ErrSessionInvalid
		}
		return domain.Session{}, err
	}

	if !sess.Active(time.Now().UTC()) {
		slogx.FromContext(ctx).Debug("inactive session presented",
			slog.String("session_id", sess.ID),
			slog.Bool("revoked", sess.RevokedAt != nil),
		)
		return domain.Session{}, ErrSessionInvalid
	}
	return sess, nil
}

// Revoke marks the session unusable. Revoking an already-revoked or unknown
// session is not an error to the caller.
func (s *SessionService) Revoke(ctx context.Context, sessionID string) error {
	err := s.Store.Sessions().RevokeSession(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	return err
}
