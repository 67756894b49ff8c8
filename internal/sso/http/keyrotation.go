package http

import (
	"encoding/json"
	"net/http"

	"github.com/aussiebroadwan/crosstab/internal/sso/service"
	"github.com/aussiebroadwan/crosstab/pkg/httpx"
	"github.com/aussiebroadwan/crosstab/pkg/slogx"
)

type KeyRotationHandler struct {
	KeyRotationService *service.KeyRotationService
}

// HandleRotate generates a new handoff signing key at runtime.
//
//	@Summary		Rotate signing keys
//	@Description	Generates a new ephemeral signing key. With retire_existing the current keys stop signing but keep verifying until satellites refresh their JWKS cache.
//	@Tags			Keys
//	@Accept			json
//	@Produce		json
//	@Param			request	body		RotateKeysRequest	false	"Rotation options"
//	@Success		200		{object}	service.RotateKeyResponse
//	@Failure		401		{object}	httpx.ErrorResponse	"No valid session"
//	@Router			/v1/keys/rotate [post].
func (h *KeyRotationHandler) HandleRotate(w http.ResponseWriter, r *http.Request) {
	var req RotateKeysRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request",
				"request body must be valid JSON")
			return
		}
	}

	res, err := h.KeyRotationService.RotateKey(r.Context(), req.RetireExisting)
	if err != nil {
		slogx.FromContext(r.Context()).Error("key rotation failed", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error",
			"failed to rotate keys")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, res)
}

// HandleRetire stops signing with a specific key.
//
//	@Summary		Retire a signing key
//	@Description	Removes kid from the signing pool without a replacement. The last active key cannot be retired.
//	@Tags			Keys
//	@Param			kid	path	string	true	"Key ID"
//	@Success		204	"Key retired"
//	@Failure		400	{object}	httpx.ErrorResponse	"Unknown kid or last active key"
//	@Failure		401	{object}	httpx.ErrorResponse	"No valid session"
//	@Router			/v1/keys/{kid}/retire [post].
func (h *KeyRotationHandler) HandleRetire(w http.ResponseWriter, r *http.Request) {
	kid := r.PathValue("kid")
	if kid == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "kid is required")
		return
	}

	if err := h.KeyRotationService.RetireKey(r.Context(), kid); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
