package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/crosstab/internal/sso/service"
	"github.com/aussiebroadwan/crosstab/pkg/httpx"
	"github.com/aussiebroadwan/crosstab/pkg/slogx"
)

type BootstrapHandler struct {
	BootstrapService *service.BootstrapService
}

// ServeHTTP creates the first user on a fresh primary.
//
//	@Summary		Bootstrap the first user
//	@Description	Creates the first user on a fresh instance. Only available when a bootstrap token is configured, and only until a user exists.
//	@Tags			Bootstrap
//	@Accept			json
//	@Produce		json
//	@Param			X-Bootstrap-Token	header		string				true	"Bootstrap token"
//	@Param			request				body		BootstrapRequest	true	"First user credentials"
//	@Success		201					{object}	BootstrapResponse
//	@Failure		400					{object}	httpx.ErrorResponse	"Invalid request body"
//	@Failure		401					{object}	httpx.ErrorResponse	"Missing or wrong token, or already bootstrapped"
//	@Failure		404					{object}	httpx.ErrorResponse	"Bootstrap not enabled"
//	@Router			/v1/bootstrap [post].
func (h *BootstrapHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	l := slogx.FromContext(r.Context())

	if h.BootstrapService.Token == "" {
		httpx.WriteError(w, http.StatusNotFound, "not_found",
			"bootstrap endpoint is not enabled")
		return
	}

	token := r.Header.Get("X-Bootstrap-Token")
	if token == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized",
			"bootstrap token is required in X-Bootstrap-Token header")
		return
	}

	var req BootstrapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request",
			"request body must be valid JSON")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request",
			"username and password are required")
		return
	}

	userID, err := h.BootstrapService.Bootstrap(r.Context(), token, req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBootstrapAlready):
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized",
				"system has already been bootstrapped")
		case errors.Is(err, service.ErrBootstrapUnauthorized):
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized",
				"invalid bootstrap token")
		default:
			l.Error("bootstrap failed", "error", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error",
				"an internal error occurred")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, BootstrapResponse{UserID: userID})
}
