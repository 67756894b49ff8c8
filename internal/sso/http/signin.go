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

type SignInHandler struct {
	Users        *service.UserService
	Sessions     *service.SessionService
	Handoff      *service.HandoffService
	CookieSecure bool
}

// HandleGet performs silent SSO: a caller who already holds a valid session
// and asks for an allowlisted redirect_url gets an immediate handoff
// redirect without re-entering credentials.
//
//	@Summary		Silent single sign-on
//	@Description	With a valid session cookie and an allowlisted redirect_url, responds with a 303 handoff redirect to the satellite. Without a session the caller must sign in first.
//	@Tags			Sign-in
//	@Produce		json
//	@Param			redirect_url	query	string	false	"Absolute URL on an allowlisted satellite to return to"
//	@Success		303	"Handoff redirect to the satellite"
//	@Success		204	"Session is valid, nothing to hand off"
//	@Failure		400	{object}	httpx.ErrorResponse	"redirect_url origin not allowlisted"
//	@Failure		401	{object}	httpx.ErrorResponse	"No valid session"
//	@Router			/v1/sign-in [get].
func (h *SignInHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Sessions.Validate(r.Context(), sessionCookie(r))
	if err != nil {
		httpx.WriteError(w, http.StatusUnauthorized, "login_required",
			"sign in to continue")
		return
	}

	redirectURL := r.URL.Query().Get("redirect_url")
	if redirectURL == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	target, err := h.Handoff.Mint(r.Context(), sess, redirectURL)
	if err != nil {
		if errors.Is(err, service.ErrOriginNotAllowed) {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_redirect",
				"redirect_url is not an allowlisted satellite")
			return
		}
		httpx.WriteError(w, http.StatusInternalServerError, "server_error",
			"failed to mint handoff token")
		return
	}

	http.Redirect(w, r, target, http.StatusSeeOther)
}

// HandlePost signs a user in with username/password (and a TOTP code when
// enrolled), sets the session cookie, and optionally hands the browser off
// to a satellite.
//
//	@Summary		Sign in
//	@Description	Authenticates with username and password (plus totp_code when MFA is enabled). On success a session cookie is set; when redirect_url targets an allowlisted satellite the response is a 303 handoff redirect, otherwise 204.
//	@Tags			Sign-in
//	@Accept			json
//	@Produce		json
//	@Param			request	body	SignInRequest	true	"Credentials"
//	@Success		303	"Handoff redirect to the satellite"
//	@Success		204	"Signed in"
//	@Failure		400	{object}	httpx.ErrorResponse	"Malformed request or non-allowlisted redirect_url"
//	@Failure		401	{object}	httpx.ErrorResponse	"authentication_failed or mfa_required"
//	@Router			/v1/sign-in [post].
func (h *SignInHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	l := slogx.FromContext(r.Context())

	req, ok := parseSignInRequest(r)
	if !ok {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request",
			"request body must be JSON or form encoded")
		return
	}
	if req.Username == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request",
			"username and password are required")
		return
	}

	user, err := h.Users.Authenticate(r.Context(), req.Username, req.Password, req.TOTPCode)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMFARequired):
			httpx.WriteError(w, http.StatusUnauthorized, "mfa_required",
				"a TOTP code is required to sign in")
		case errors.Is(err, service.ErrInvalidCredentials):
			httpx.WriteError(w, http.StatusUnauthorized, "authentication_failed",
				"invalid credentials")
		default:
			l.Error("sign-in failed", "error", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error",
				"an internal error occurred")
		}
		return
	}

	sess, token, err := h.Sessions.Create(r.Context(), user.ID)
	if err != nil {
		l.Error("failed to create session", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error",
			"failed to create session")
		return
	}

	setSessionCookie(w, token, sess.ExpiresAt, h.CookieSecure)

	if req.RedirectURL == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	target, err := h.Handoff.Mint(r.Context(), sess, req.RedirectURL)
	if err != nil {
		if errors.Is(err, service.ErrOriginNotAllowed) {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_redirect",
				"redirect_url is not an allowlisted satellite")
			return
		}
		l.Error("failed to mint handoff token", "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error",
			"failed to mint handoff token")
		return
	}

	http.Redirect(w, r, target, http.StatusSeeOther)
}

func parseSignInRequest(r *http.Request) (SignInRequest, bool) {
	var req SignInRequest

	ct := r.Header.Get("Content-Type")
	if strings.HasPrefix(ct, "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return SignInRequest{}, false
		}
		return req, true
	}

	if err := r.ParseForm(); err != nil {
		return SignInRequest{}, false
	}
	req.Username = r.PostFormValue("username")
	req.Password = r.PostFormValue("password")
	req.TOTPCode = r.PostFormValue("totp_code")
	req.RedirectURL = r.PostFormValue("redirect_url")
	return req, true
}
