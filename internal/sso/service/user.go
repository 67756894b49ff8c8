package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aussiebroadwan/crosstab/internal/sso/domain"
	"github.com/aussiebroadwan/crosstab/internal/sso/store"
	"github.com/aussiebroadwan/crosstab/pkg/cryptox"
	"github.com/aussiebroadwan/crosstab/pkg/slogx"
	"github.com/pquerna/otp/totp"
)

type UserService struct {
	Store store.Store
}

// GetUserByID fetches a user by id.
func (s *UserService) GetUserByID(ctx context.Context, userID string) (domain.User, error) {
	return s.Store.Users().GetUserByID(ctx, userID)
}

// Authenticate checks a username/password pair, plus a TOTP code when the
// user has MFA enabled. Unknown user and wrong password both return
// ErrInvalidCredentials; a correct password with a missing code returns
// ErrMFARequired so the sign-in form can prompt for it.
func (s *UserService) Authenticate(ctx context.Context, username, password, totpCode string) (domain.User, error) {
	l := slogx.FromContext(ctx)

	user, err := s.Store.Users().GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Burn a hash anyway so the two failure paths take similar time.
			_ = cryptox.VerifyPassword(password, cryptox.DummyHash)
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		l.Warn("failed sign-in attempt", slog.String("user_id", user.ID))
		return domain.User{}, ErrInvalidCredentials
	}

	if user.MFARequired() {
		if totpCode == "" {
			return domain.User{}, ErrMFARequired
		}
		if !totp.Validate(totpCode, *user.TOTPSecret) {
			l.Warn("failed MFA attempt", slog.String("user_id", user.ID))
			return domain.User{}, ErrInvalidCredentials
		}
	}

	return user, nil
}
