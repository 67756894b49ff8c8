package http

import "time"

// SignInRequest is accepted as JSON or form fields of the same names.
type SignInRequest struct {
	Username    string `json:"username" form:"username"`
	Password    string `json:"password" form:"password"`
	TOTPCode    string `json:"totp_code,omitempty" form:"totp_code"`
	RedirectURL string `json:"redirect_url,omitempty" form:"redirect_url"`
}

// SessionResponse describes the caller's current session.
type SessionResponse struct {
	SessionID        string    `json:"session_id"`
	Subject          string    `json:"subject"`
	Kind             string    `json:"kind"`
	PrimarySessionID string    `json:"primary_session_id,omitempty"`
	IssuedAt         time.Time `json:"issued_at"`
	ExpiresAt        time.Time `json:"expires_at"`
}

type BootstrapRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type BootstrapResponse struct {
	UserID string `json:"user_id"`
}

type MFAVerifyRequest struct {
	Code string `json:"code"`
}

type RotateKeysRequest struct {
	RetireExisting bool `json:"retire_existing"`
}

// HealthChecks reports per-dependency readiness.
type HealthChecks struct {
	Database string `json:"database"`
	Signer   string `json:"signer,omitempty"`
}

// HealthResponse is returned by the livez and readyz probes.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}
