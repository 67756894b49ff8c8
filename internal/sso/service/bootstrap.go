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

var (
	ErrBootstrapAlready      = errors.New("system already bootstrapped")
	ErrBootstrapUnauthorized = errors.New("unauthorized bootstrap attempt")
)

// BootstrapService creates the first user on a fresh primary. It is guarded
// by a pre-shared token from config and refuses once any user exists.
type BootstrapService struct {
	Store store.Store
	Token string // Pre-configured bootstrap token
}

func (s *BootstrapService) IsBootstrapped(ctx context.Context) (bool, error) {
	empty, err := s.Store.Users().IsEmpty(ctx)
	if err != nil {
		return false, err
	}
	return !empty, nil
}

// Bootstrap creates the first user and returns its id.
func (s *BootstrapService) Bootstrap(ctx context.Context, token, username, password string) (string, error) {
	l := slogx.FromContext(ctx)

	if bootstrapped, err := s.IsBootstrapped(ctx); err != nil {
		return "", err
	} else if bootstrapped {
		l.Warn("attempted bootstrap on already-bootstrapped system")
		return "", ErrBootstrapAlready
	}

	if s.Token == "" || token != s.Token {
		l.Warn("unauthorized bootstrap attempt")
		return "", ErrBootstrapUnauthorized
	}

	passHash, err := cryptox.HashPassword(password)
	if err != nil {
		l.Error("failed to hash bootstrap password", slog.Any("error", err))
		return "", err
	}

	now := time.Now().UTC()
	userID := idx.New().String()
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		// Re-check inside the tx; two racing bootstrap calls must not both
		// create a first user.
		empty, err := tx.Users().IsEmpty(ctx)
		if err != nil {
			return err
		}
		if !empty {
			return ErrBootstrapAlready
		}
		return tx.Users().CreateUser(ctx, domain.User{
			ID:           userID,
			Username:     username,
			PasswordHash: passHash,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
	})
	if err != nil {
		return "", err
	}

	l.Info("successfully bootstrapped system", slog.String("user_id", userID))
	return userID, nil
}
