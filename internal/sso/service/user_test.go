package service

import (
	"context"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/crosstab/internal/sso/domain"
	"github.com/aussiebroadwan/crosstab/internal/sso/store"
	"github.com/aussiebroadwan/crosstab/pkg/cryptox"
	"github.com/aussiebroadwan/crosstab/pkg/idx"
)

func createTestUser(t *testing.T, st store.Store, username, password string) domain.User {
	t.Helper()

	hash, err := cryptox.HashPassword(password)
	require.NoError(t, err)

	now := time.Now().UTC()
	user := domain.User{
		ID:           idx.New().String(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, st.Users().CreateUser(context.Background(), user))
	return user
}

func TestUserService_Authenticate(t *testing.T) {
	st := newTestStore(t)
	svc := &UserService{Store: st}
	ctx := context.Background()

	createTestUser(t, st, "alice", "correct horse battery staple")

	t.Run("valid credentials", func(t *testing.T) {
		user, err := svc.Authenticate(ctx, "alice", "correct horse battery staple", "")
		require.NoError(t, err)
		require.Equal(t, "alice", user.Username)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "alice", "wrong", "")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown user looks like wrong password", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "nobody", "whatever", "")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestUserService_AuthenticateWithMFA(t *testing.T) {
	st := newTestStore(t)
	svc := &UserService{Store: st}
	mfa := &MFAService{Store: st, Issuer: "Crosstab"}
	ctx := context.Background()

	user := createTestUser(t, st, "bob", "hunter2hunter2")

	enrollment, err := mfa.EnrollTOTP(ctx, user.ID)
	require.NoError(t, err)

	code, err := totp.GenerateCode(enrollment.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, mfa.VerifyTOTP(ctx, user.ID, code))

	t.Run("missing code prompts for MFA", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "bob", "hunter2hunter2", "")
		require.ErrorIs(t, err, ErrMFARequired)
	})

	t.Run("bad code is invalid credentials", func(t *testing.T) {
		_, err := svc.Authenticate(ctx, "bob", "hunter2hunter2", "000000")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("valid code", func(t *testing.T) {
		code, err := totp.GenerateCode(enrollment.Secret, time.Now())
		require.NoError(t, err)

		authed, err := svc.Authenticate(ctx, "bob", "hunter2hunter2", code)
		require.NoError(t, err)
		require.Equal(t, user.ID, authed.ID)
	})

	t.Run("wrong password with valid code still fails", func(t *testing.T) {
		code, err := totp.GenerateCode(enrollment.Secret, time.Now())
		require.NoError(t, err)

		_, err = svc.Authenticate(ctx, "bob", "nope", code)
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})
}
