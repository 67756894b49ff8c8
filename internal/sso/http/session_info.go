package http

import (
	"net/http"

	"github.com/aussiebroadwan/crosstab/pkg/httpx"
)

type SessionInfoHandler struct{}

// ServeHTTP introspects the caller's own session. The session is attached to
// the context by the route guard; without one this returns 401.
//
//	@Summary		Current session
//	@Description	Returns the caller's session: id, subject, kind (canonical or derived), and lifetime. Derived sessions also carry the primary session id they recognise.
//	@Tags			Session
//	@Produce		json
//	@Success		200	{object}	SessionResponse
//	@Failure		401	{object}	httpx.ErrorResponse	"No valid session"
//	@Router			/v1/session [get].
func (h *SessionInfoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "authentication_failed",
			"a valid session is required")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, SessionResponse{
		SessionID:        sess.ID,
		Subject:          sess.Subject,
		Kind:             string(sess.Kind),
		PrimarySessionID: sess.PrimarySessionID,
		IssuedAt:         sess.IssuedAt,
		ExpiresAt:        sess.ExpiresAt,
	})
}
