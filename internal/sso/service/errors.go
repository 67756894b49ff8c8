package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials covers unknown username, wrong password, and any
	// other sign-in failure. Callers must not distinguish which.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrMFARequired means the password checked out but a TOTP code is
	// needed to finish sign-in.
	ErrMFARequired = errors.New("mfa code required")

	ErrInvalidTOTPCode   = errors.New("invalid TOTP code")
	ErrMFANotEnrolled    = errors.New("MFA not enrolled")
	ErrMFAAlreadyEnabled = errors.New("MFA already enabled for this user")

	// ErrSessionInvalid covers expired, revoked, and unknown sessions
	// identically so evidence probing learns nothing.
	ErrSessionInvalid = errors.New("session invalid")

	// ErrOriginNotAllowed means the requested return URL's origin is not in
	// the satellite allowlist; no token is minted.
	ErrOriginNotAllowed = errors.New("origin not allowed")

	// ErrHandoffFailed is the single generic redemption failure. The reason
	// (bad signature, expired, wrong audience, replayed jti) is logged but
	// never surfaced to the client.
	ErrHandoffFailed = errors.New("handoff failed")

	// ErrUpstreamUnavailable means the primary's key material could not be
	// fetched in time. The request fails closed and may be retried.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// ConfigurationError is fatal at startup: app construction returns it and the
// process exits rather than serving with a broken topology.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}
