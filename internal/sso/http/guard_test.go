package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/crosstab/internal/sso/domain"
	"github.com/aussiebroadwan/crosstab/internal/sso/service"
	"github.com/aussiebroadwan/crosstab/internal/sso/store"
	"github.com/aussiebroadwan/crosstab/internal/sso/store/drivers/sqlite"
	"github.com/aussiebroadwan/crosstab/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	s, err := sqlite.NewStore(filepath.Join(t.TempDir(), "crosstab.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	return s
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestRouteMatcher(t *testing.T) {
	t.Parallel()

	m, err := NewRouteMatcher([]string{"/reports/**", "/admin", " ", "/app/*/settings"})
	require.NoError(t, err)

	require.True(t, m.Protected("/reports/monthly"))
	require.True(t, m.Protected("/reports/2026/08/summary"))
	require.True(t, m.Protected("/admin"))
	require.True(t, m.Protected("/app/team-a/settings"))

	require.False(t, m.Protected("/"))
	require.False(t, m.Protected("/public"))
	require.False(t, m.Protected("/admin/users"), "pattern without wildcard matches exactly")
	require.False(t, m.Protected("/app/team-a/other"))

	_, err = NewRouteMatcher([]string{"[broken"})
	require.Error(t, err)
}

type guardFixture struct {
	guard    *RouteGuard
	sessions *service.SessionService
	next     *recordingHandler
}

type recordingHandler struct {
	called  bool
	session *domain.Session
}

func (h *recordingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.called = true
	if sess, ok := SessionFromContext(r.Context()); ok {
		h.session = &sess
	}
	w.WriteHeader(http.StatusOK)
}

func newGuardFixture(t *testing.T, satellite bool, handoff *service.HandoffService) *guardFixture {
	t.Helper()

	matcher, err := NewRouteMatcher([]string{"/reports/**"})
	require.NoError(t, err)

	sessions := &service.SessionService{Store: newTestStore(t)}
	classifier := &service.Classifier{
		Satellite: satellite,
		Domain:    "https://app.example.net",
		SignInURL: mustURL(t, "https://accounts.example.com/v1/sign-in"),
	}

	return &guardFixture{
		guard: &RouteGuard{
			Matcher:    matcher,
			Classifier: classifier,
			Sessions:   sessions,
			Handoff:    handoff,
		},
		sessions: sessions,
		next:     &recordingHandler{},
	}
}

func (f *guardFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.guard.Middleware()(f.next).ServeHTTP(rec, req)
	return rec
}

func TestGuardPublicRoutePasses(t *testing.T) {
	f := newGuardFixture(t, true, nil)

	req := httptest.NewRequest(http.MethodGet, "https://app.example.net/public", nil)
	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, f.next.called)
	require.Nil(t, f.next.session)
}

func TestGuardAllowsValidSession(t *testing.T) {
	f := newGuardFixture(t, true, nil)

	_, token, err := f.sessions.Create(t.Context(), "user-1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "https://app.example.net/reports/monthly", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	rec := f.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, f.next.called)
	require.NotNil(t, f.next.session)
	require.Equal(t, "user-1", f.next.session.Subject)
}

func TestGuardRedirectsBrowserToSignIn(t *testing.T) {
	f := newGuardFixture(t, true, nil)

	req := httptest.NewRequest(http.MethodGet, "https://app.example.net/reports/monthly?tab=x", nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	rec := f.do(req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.False(t, f.next.called)

	loc := mustURL(t, rec.Header().Get("Location"))
	require.Equal(t, "accounts.example.com", loc.Host)
	require.Equal(t, "/v1/sign-in", loc.Path)

	// The redirect carries the absolute original URL so sign-in can hand
	// the browser back.
	back := mustURL(t, loc.Query().Get("redirect_url"))
	require.Equal(t, "app.example.net", back.Host)
	require.Equal(t, "/reports/monthly", back.Path)
	require.Equal(t, "x", back.Query().Get("tab"))
}

func TestGuardRejectsNonBrowserRequests(t *testing.T) {
	f := newGuardFixture(t, true, nil)

	t.Run("POST gets 401 not a redirect", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "https://app.example.net/reports/export", nil)
		rec := f.do(req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("json client gets 401 not a redirect", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "https://app.example.net/reports/monthly", nil)
		req.Header.Set("Accept", "application/json")
		rec := f.do(req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("no session cookie is set on reject", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "https://app.example.net/reports/export", nil)
		rec := f.do(req)
		require.Empty(t, rec.Result().Cookies())
	})
}

func TestGuardRedeemsHandoffToken(t *testing.T) {
	km, err := jwtx.NewEphemeralKeyManager(1)
	require.NoError(t, err)

	mint := &service.HandoffService{
		Keys:           km,
		Issuer:         "https://accounts.example.com",
		AllowedOrigins: []string{"https://app.example.net"},
	}

	satStore := newTestStore(t)
	sessions := &service.SessionService{Store: satStore}
	redeem := &service.HandoffService{
		Store:    satStore,
		Sessions: sessions,
		Verifier: jwtx.NewVerifier(km.KeySet, "https://accounts.example.com"),
	}

	f := newGuardFixture(t, true, redeem)
	f.guard.Sessions = sessions

	primarySess := domain.Session{
		ID:        "primary-1",
		Subject:   "user-1",
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}
	redirect, err := mint.Mint(t.Context(), primarySess, "https://app.example.net/reports/monthly?tab=x")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, redirect, nil)
	rec := f.do(req)

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.False(t, f.next.called, "redemption redirects, the handler runs on the next request")

	// Token parameter is stripped from the final location.
	loc := mustURL(t, rec.Header().Get("Location"))
	require.Empty(t, loc.Query().Get(service.HandoffParam))
	require.Equal(t, "/reports/monthly", loc.Path)
	require.Equal(t, "x", loc.Query().Get("tab"))

	// A session cookie was issued and now admits the follow-up request.
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, SessionCookieName, cookies[0].Name)
	require.True(t, cookies[0].HttpOnly)

	followUp := httptest.NewRequest(http.MethodGet, rec.Header().Get("Location"), nil)
	followUp.AddCookie(cookies[0])
	rec = f.do(followUp)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, f.next.called)
	require.Equal(t, domain.SessionKindDerived, f.next.session.Kind)
}

func TestGuardFailedRedemptionFallsBackToSignIn(t *testing.T) {
	km, err := jwtx.NewEphemeralKeyManager(1)
	require.NoError(t, err)

	satStore := newTestStore(t)
	sessions := &service.SessionService{Store: satStore}
	redeem := &service.HandoffService{
		Store:    satStore,
		Sessions: sessions,
		Verifier: jwtx.NewVerifier(km.KeySet, "https://accounts.example.com"),
	}

	f := newGuardFixture(t, true, redeem)
	f.guard.Sessions = sessions

	req := httptest.NewRequest(http.MethodGet,
		"https://app.example.net/reports/monthly?"+service.HandoffParam+"=garbage", nil)
	req.Header.Set("Accept", "text/html")
	rec := f.do(req)

	// Generic fallback: back to sign-in, no session, no hint why.
	require.Equal(t, http.StatusSeeOther, rec.Code)
	loc := mustURL(t, rec.Header().Get("Location"))
	require.Equal(t, "accounts.example.com", loc.Host)
	require.Empty(t, rec.Result().Cookies())

	// The stale token parameter is not carried to sign-in.
	back := mustURL(t, loc.Query().Get("redirect_url"))
	require.Empty(t, back.Query().Get(service.HandoffParam))
}

func TestGuardFailsClosedWhenKeySourceDown(t *testing.T) {
	// JWKS endpoint that is down from the start.
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	dead.Close()

	satStore := newTestStore(t)
	sessions := &service.SessionService{Store: satStore}
	remote := jwtx.NewRemoteKeySet(dead.URL+"/.well-known/jwks.json", time.Second, time.Minute)
	redeem := &service.HandoffService{
		Store:    satStore,
		Sessions: sessions,
		Verifier: jwtx.NewVerifier(remote, "https://accounts.example.com"),
	}

	f := newGuardFixture(t, true, redeem)
	f.guard.Sessions = sessions

	// A structurally valid token signed by an unknown key forces a key
	// lookup, which cannot be satisfied.
	km, err := jwtx.NewEphemeralKeyManager(1)
	require.NoError(t, err)
	mint := &service.HandoffService{
		Keys:           km,
		Issuer:         "https://accounts.example.com",
		AllowedOrigins: []string{"https://app.example.net"},
	}
	primarySess := domain.Session{ID: "p1", Subject: "user-1", ExpiresAt: time.Now().Add(time.Hour)}
	redirect, err := mint.Mint(t.Context(), primarySess, "https://app.example.net/reports/monthly")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, redirect, nil)
	rec := f.do(req)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
	require.Empty(t, rec.Result().Cookies(), "fail closed: no session on upstream failure")
}
