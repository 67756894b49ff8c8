package service

import (
	"context"
	"fmt"

	"github.com/aussiebroadwan/crosstab/internal/sso/domain"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/aussiebroadwan/crosstab/internal/sso/store"
)

type MFAService struct {
	Store  store.Store
	Issuer string // Issuer name for TOTP (e.g., "Crosstab")
}

// EnrollTOTP generates a TOTP secret for the user and returns it along with
// the otpauth URL. This does NOT enable MFA yet - the user must verify a
// code first.
func (s *MFAService) EnrollTOTP(ctx context.Context, userID string) (domain.MFAEnrollment, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return domain.MFAEnrollment{}, fmt.Errorf("failed to load user: %w", err)
	}
	if user.MFARequired() {
		return domain.MFAEnrollment{}, ErrMFAAlreadyEnabled
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.Issuer,
		AccountName: user.Username,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return domain.MFAEnrollment{}, fmt.Errorf("failed to generate TOTP key: %w", err)
	}

	// Store the secret (but don't enable MFA yet)
	if err := s.Store.Users().SetTOTPSecret(ctx, userID, key.Secret()); err != nil {
		return domain.MFAEnrollment{}, fmt.Errorf("failed to store TOTP secret: %w", err)
	}

	return domain.MFAEnrollment{
		Secret:  key.Secret(),
		URL:     key.URL(),
		Issuer:  s.Issuer,
		Account: user.Username,
	}, nil
}

// VerifyTOTP checks the first code against the enrolled secret and enables
// MFA on success.
func (s *MFAService) VerifyTOTP(ctx context.Context, userID, code string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if user.TOTPSecret == nil || *user.TOTPSecret == "" {
		return ErrMFANotEnrolled
	}
	if user.MFARequired() {
		return ErrMFAAlreadyEnabled
	}

	if !totp.Validate(code, *user.TOTPSecret) {
		return ErrInvalidTOTPCode
	}

	return s.Store.Users().EnableMFA(ctx, userID)
}

// RemoveMFA disables MFA after verifying a current TOTP code.
func (s *MFAService) RemoveMFA(ctx context.Context, userID, code string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if !user.MFARequired() {
		return ErrMFANotEnrolled
	}

	if !totp.Validate(code, *user.TOTPSecret) {
		return ErrInvalidTOTPCode
	}

	return s.Store.Users().DisableMFA(ctx, userID)
}
