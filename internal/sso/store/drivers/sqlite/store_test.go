package sqlite

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/crosstab/internal/sso/domain"
	"github.com/aussiebroadwan/crosstab/internal/sso/store"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "crosstab.db")
	s, err := NewStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	return s
}

func TestUsersRepo_CreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	u := domain.User{
		ID:           "01JTESTUSER000000000000001",
		Username:     "alice",
		PasswordHash: "$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, s.Users().CreateUser(ctx, u))

	got, err := s.Users().GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
	require.Equal(t, u.PasswordHash, got.PasswordHash)
	require.Nil(t, got.TOTPSecret)
	require.Nil(t, got.MFAEnabledAt)

	byID, err := s.Users().GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	require.Equal(t, "alice", byID.Username)
}

func TestUsersRepo_DuplicateUsername(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	u := domain.User{ID: "a", Username: "bob", PasswordHash: "x", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.Users().CreateUser(ctx, u))

	u.ID = "b"
	err := s.Users().CreateUser(ctx, u)
	require.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestUsersRepo_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Users().GetUserByUsername(context.Background(), "ghost")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestUsersRepo_MFALifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	u := domain.User{ID: "u1", Username: "carol", PasswordHash: "x", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.Users().CreateUser(ctx, u))

	require.NoError(t, s.Users().SetTOTPSecret(ctx, "u1", "JBSWY3DPEHPK3PXP"))
	got, err := s.Users().GetUserByID(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got.TOTPSecret)
	require.False(t, got.MFARequired(), "secret alone should not require MFA")

	require.NoError(t, s.Users().EnableMFA(ctx, "u1"))
	got, err = s.Users().GetUserByID(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got.MFAEnabledAt)
	require.True(t, got.MFARequired())

	require.NoError(t, s.Users().DisableMFA(ctx, "u1"))
	got, err = s.Users().GetUserByID(ctx, "u1")
	require.NoError(t, err)
	require.Nil(t, got.TOTPSecret)
	require.Nil(t, got.MFAEnabledAt)
}

func TestUsersRepo_IsEmpty(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	empty, err := s.Users().IsEmpty(ctx)
	require.NoError(t, err)
	require.True(t, empty)

	now := time.Now().UTC()
	require.NoError(t, s.Users().CreateUser(ctx, domain.User{
		ID: "u1", Username: "dave", PasswordHash: "x", CreatedAt: now, UpdatedAt: now,
	}))

	empty, err = s.Users().IsEmpty(ctx)
	require.NoError(t, err)
	require.False(t, empty)
}

func TestSessionsRepo_Lifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	sess := domain.Session{
		ID:        "s1",
		Subject:   "u1",
		Kind:      domain.SessionKindCanonical,
		TokenHash: "hash-1",
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	}
	require.NoError(t, s.Sessions().CreateSession(ctx, sess))

	got, err := s.Sessions().GetSessionByTokenHash(ctx, "hash-1")
	require.NoError(t, err)
	require.Equal(t, "s1", got.ID)
	require.Equal(t, domain.SessionKindCanonical, got.Kind)
	require.True(t, got.Active(now))

	require.NoError(t, s.Sessions().RevokeSession(ctx, "s1"))
	got, err = s.Sessions().GetSessionByTokenHash(ctx, "hash-1")
	require.NoError(t, err)
	require.NotNil(t, got.RevokedAt)
	require.False(t, got.Active(now))

	// Revoking twice is a no-op failure, not silent success.
	require.ErrorIs(t, s.Sessions().RevokeSession(ctx, "s1"), store.ErrNotFound)
}

func TestSessionsRepo_DerivedSessionKeepsLineage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	sess := domain.Session{
		ID:               "s2",
		Subject:          "u1",
		Kind:             domain.SessionKindDerived,
		TokenHash:        "hash-2",
		PrimarySessionID: "s1",
		IssuedAt:         now,
		ExpiresAt:        now.Add(time.Hour),
	}
	require.NoError(t, s.Sessions().CreateSession(ctx, sess))

	got, err := s.Sessions().GetSessionByTokenHash(ctx, "hash-2")
	require.NoError(t, err)
	require.Equal(t, domain.SessionKindDerived, got.Kind)
	require.Equal(t, "s1", got.PrimarySessionID)
}

func TestSessionsRepo_DeleteExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, s.Sessions().CreateSession(ctx, domain.Session{
		ID: "old", Subject: "u1", Kind: domain.SessionKindCanonical,
		TokenHash: "hash-old", IssuedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
	}))
	require.NoError(t, s.Sessions().CreateSession(ctx, domain.Session{
		ID: "live", Subject: "u1", Kind: domain.SessionKindCanonical,
		TokenHash: "hash-live", IssuedAt: now, ExpiresAt: now.Add(time.Hour),
	}))

	require.NoError(t, s.Sessions().DeleteExpiredSessions(ctx))

	_, err := s.Sessions().GetSessionByTokenHash(ctx, "hash-old")
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.Sessions().GetSessionByTokenHash(ctx, "hash-live")
	require.NoError(t, err)
}

func TestHandoffsRepo_SingleUse(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	c := domain.HandoffConsumption{JTI: "jti-1", ExpiresAt: now.Add(time.Minute), ConsumedAt: now}

	require.NoError(t, s.Handoffs().ConsumeHandoff(ctx, c))
	require.ErrorIs(t, s.Handoffs().ConsumeHandoff(ctx, c), store.ErrAlreadyExists)
}

func TestHandoffsRepo_ConcurrentRedemption(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	c := domain.HandoffConsumption{JTI: "jti-race", ExpiresAt: now.Add(time.Minute), ConsumedAt: now}

	const workers = 8
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Handoffs().ConsumeHandoff(ctx, c)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else {
			require.ErrorIs(t, err, store.ErrAlreadyExists)
		}
	}
	require.Equal(t, 1, wins, "exactly one concurrent redemption must win")
}

func TestHandoffsRepo_DeleteExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, s.Handoffs().ConsumeHandoff(ctx, domain.HandoffConsumption{
		JTI: "jti-old", ExpiresAt: now.Add(-time.Minute), ConsumedAt: now.Add(-2 * time.Minute),
	}))
	require.NoError(t, s.Handoffs().ConsumeHandoff(ctx, domain.HandoffConsumption{
		JTI: "jti-live", ExpiresAt: now.Add(time.Minute), ConsumedAt: now,
	}))

	require.NoError(t, s.Handoffs().DeleteExpiredHandoffs(ctx))

	// The expired row is gone, so its jti can be inserted again.
	require.NoError(t, s.Handoffs().ConsumeHandoff(ctx, domain.HandoffConsumption{
		JTI: "jti-old", ExpiresAt: now.Add(time.Minute), ConsumedAt: now,
	}))
	require.ErrorIs(t, s.Handoffs().ConsumeHandoff(ctx, domain.HandoffConsumption{
		JTI: "jti-live", ExpiresAt: now.Add(time.Minute), ConsumedAt: now,
	}), store.ErrAlreadyExists)
}

func TestStore_WithTxRollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	err := s.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().CreateUser(ctx, domain.User{
			ID: "u1", Username: "eve", PasswordHash: "x", CreatedAt: now, UpdatedAt: now,
		}); err != nil {
			return err
		}
		return context.Canceled
	})
	require.Error(t, err)

	_, err = s.Users().GetUserByUsername(ctx, "eve")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_WithTxCommits(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	err := s.WithTx(ctx, func(tx store.Tx) error {
		return tx.Users().CreateUser(ctx, domain.User{
			ID: "u1", Username: "frank", PasswordHash: "x", CreatedAt: now, UpdatedAt: now,
		})
	})
	require.NoError(t, err)

	_, err = s.Users().GetUserByUsername(ctx, "frank")
	require.NoError(t, err)
}
