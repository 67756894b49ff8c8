package http

import (
	"net/http"

	"github.com/aussiebroadwan/crosstab/internal/sso/service"
)

type SignOutHandler struct {
	Sessions     *service.SessionService
	CookieSecure bool
}

// ServeHTTP revokes the caller's session and clears the cookie. Signing out
// without a valid session still clears the cookie and succeeds; there is
// nothing useful to report.
//
//	@Summary		Sign out
//	@Description	Revokes the current session and clears the session cookie. Always succeeds.
//	@Tags			Sign-in
//	@Success		204	"Signed out"
//	@Router			/v1/sign-out [post].
func (h *SignOutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if sess, err := h.Sessions.Validate(r.Context(), sessionCookie(r)); err == nil {
		_ = h.Sessions.Revoke(r.Context(), sess.ID)
	}
	clearSessionCookie(w, h.CookieSecure)
	w.WriteHeader(http.StatusNoContent)
}
