package domain

// MFAEnrollment is returned when a user starts TOTP enrollment. The secret
// and otpauth URL are shown once; MFA is not active until the first code is
// verified.
type MFAEnrollment struct {
	Secret  string `json:"secret"`
	URL     string `json:"url"`
	Issuer  string `json:"issuer"`
	Account string `json:"account"`
}
