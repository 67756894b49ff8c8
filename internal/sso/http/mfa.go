package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aussiebroadwan/crosstab/internal/sso/service"
	"github.com/aussiebroadwan/crosstab/pkg/httpx"
	"github.com/aussiebroadwan/crosstab/pkg/slogx"
)

type MFAHandler struct {
	MFAService *service.MFAService
}

// HandleEnroll starts TOTP enrollment for the signed-in user.
//
//	@Summary		Enroll TOTP
//	@Description	Generates a TOTP secret and otpauth URL for the signed-in user. MFA activates only after the first code is verified.
//	@Tags			MFA
//	@Produce		json
//	@Success		200	{object}	domain.MFAEnrollment
//	@Failure		401	{object}	httpx.ErrorResponse	"No valid session"
//	@Failure		409	{object}	httpx.ErrorResponse	"MFA already enabled"
//	@Router			/v1/mfa/totp/enroll [post].
func (h *MFAHandler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "authentication_failed",
			"a valid session is required")
		return
	}

	enrollment, err := h.MFAService.EnrollTOTP(r.Context(), sess.Subject)
	if err != nil {
		if errors.Is(err, service.ErrMFAAlreadyEnabled) {
			httpx.WriteError(w, http.StatusConflict, "mfa_already_enabled",
				"MFA is already enabled for this user")
			return
		}
		slogx.FromContext(r.Context()).Error("TOTP enrollment failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error",
			"failed to enroll TOTP")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, enrollment)
}

// HandleVerify checks the first TOTP code and activates MFA.
//
//	@Summary		Verify TOTP enrollment
//	@Description	Verifies the first code against the enrolled secret and enables MFA for subsequent sign-ins.
//	@Tags			MFA
//	@Accept			json
//	@Param			request	body	MFAVerifyRequest	true	"TOTP code"
//	@Success		204	"MFA enabled"
//	@Failure		400	{object}	httpx.ErrorResponse	"Invalid body or code, or not enrolled"
//	@Failure		401	{object}	httpx.ErrorResponse	"No valid session"
//	@Router			/v1/mfa/totp/verify [post].
func (h *MFAHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "authentication_failed",
			"a valid session is required")
		return
	}

	var req MFAVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request",
			"a TOTP code is required")
		return
	}

	if err := h.MFAService.VerifyTOTP(r.Context(), sess.Subject, req.Code); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidTOTPCode):
			httpx.WriteError(w, http.StatusBadRequest, "invalid_totp_code",
				"the TOTP code is incorrect")
		case errors.Is(err, service.ErrMFANotEnrolled):
			httpx.WriteError(w, http.StatusBadRequest, "mfa_not_enrolled",
				"enroll TOTP before verifying")
		case errors.Is(err, service.ErrMFAAlreadyEnabled):
			httpx.WriteError(w, http.StatusConflict, "mfa_already_enabled",
				"MFA is already enabled for this user")
		default:
			slogx.FromContext(r.Context()).Error("TOTP verification failed", "error", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error",
				"failed to verify TOTP")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleRemove disables MFA after verifying a current code.
//
//	@Summary		Remove MFA
//	@Description	Disables MFA for the signed-in user after verifying a current TOTP code.
//	@Tags			MFA
//	@Accept			json
//	@Param			request	body	MFAVerifyRequest	true	"Current TOTP code"
//	@Success		204	"MFA removed"
//	@Failure		400	{object}	httpx.ErrorResponse	"Invalid code or MFA not enabled"
//	@Failure		401	{object}	httpx.ErrorResponse	"No valid session"
//	@Router			/v1/mfa/totp [delete].
func (h *MFAHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "authentication_failed",
			"a valid session is required")
		return
	}

	var req MFAVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request",
			"a TOTP code is required")
		return
	}

	if err := h.MFAService.RemoveMFA(r.Context(), sess.Subject, req.Code); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidTOTPCode):
			httpx.WriteError(w, http.StatusBadRequest, "invalid_totp_code",
				"the TOTP code is incorrect")
		case errors.Is(err, service.ErrMFANotEnrolled):
			httpx.WriteError(w, http.StatusBadRequest, "mfa_not_enrolled",
				"MFA is not enabled for this user")
		default:
			slogx.FromContext(r.Context()).Error("MFA removal failed", "error", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error",
				"failed to remove MFA")
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
