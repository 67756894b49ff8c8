package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBootstrapService(t *testing.T) {
	st := newTestStore(t)
	svc := &BootstrapService{Store: st, Token: "setup-token"}
	ctx := context.Background()

	t.Run("fresh system is not bootstrapped", func(t *testing.T) {
		bootstrapped, err := svc.IsBootstrapped(ctx)
		require.NoError(t, err)
		require.False(t, bootstrapped)
	})

	t.Run("wrong token is rejected", func(t *testing.T) {
		_, err := svc.Bootstrap(ctx, "guess", "admin", "password123")
		require.ErrorIs(t, err, ErrBootstrapUnauthorized)
	})

	t.Run("creates the first user", func(t *testing.T) {
		userID, err := svc.Bootstrap(ctx, "setup-token", "admin", "password123")
		require.NoError(t, err)
		require.NotEmpty(t, userID)

		user, err := st.Users().GetUserByID(ctx, userID)
		require.NoError(t, err)
		require.Equal(t, "admin", user.Username)

		bootstrapped, err := svc.IsBootstrapped(ctx)
		require.NoError(t, err)
		require.True(t, bootstrapped)
	})

	t.Run("refuses once a user exists", func(t *testing.T) {
		_, err := svc.Bootstrap(ctx, "setup-token", "admin2", "password456")
		require.ErrorIs(t, err, ErrBootstrapAlready)
	})
}

func TestBootstrapService_NoTokenConfigured(t *testing.T) {
	st := newTestStore(t)
	svc := &BootstrapService{Store: st}

	// An empty configured token never matches, even an empty submission.
	_, err := svc.Bootstrap(context.Background(), "", "admin", "password123")
	require.ErrorIs(t, err, ErrBootstrapUnauthorized)
}
