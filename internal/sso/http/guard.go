package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/aussiebroadwan/crosstab/internal/sso/domain"
	"github.com/aussiebroadwan/crosstab/internal/sso/service"
	"github.com/aussiebroadwan/crosstab/pkg/httpx"
	"github.com/aussiebroadwan/crosstab/pkg/slogx"
	"github.com/gobwas/glob"
)

type sessionCtxKey struct{}

// SessionFromContext returns the session the route guard attached, if any.
func SessionFromContext(ctx context.Context) (domain.Session, bool) {
	sess, ok := ctx.Value(sessionCtxKey{}).(domain.Session)
	return sess, ok
}

func withSession(ctx context.Context, sess domain.Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey{}, sess)
}

// RequireSession rejects requests that reached a handler without a session
// attached by the guard. For endpoints that must always be authenticated
// regardless of the protected-route configuration.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := SessionFromContext(r.Context()); !ok {
			httpx.WriteError(w, http.StatusUnauthorized, "authentication_failed",
				"a valid session is required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RouteMatcher decides whether a request path is protected. Routes are
// public by default; protection is opt-in via glob patterns compiled once at
// startup.
type RouteMatcher struct {
	globs []glob.Glob
}

// NewRouteMatcher compiles the given glob patterns. A pattern that does not
// compile is a configuration error.
func NewRouteMatcher(patterns []string) (*RouteMatcher, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid route pattern %q: %w", p, err)
		}
		globs = append(globs, g)
	}
	return &RouteMatcher{globs: globs}, nil
}

// Protected reports whether path matches any configured pattern.
func (m *RouteMatcher) Protected(path string) bool {
	for _, g := range m.globs {
		if g.Match(path) {
			return true
		}
	}
	return false
}

// RouteGuard enforces session recognition in front of handler dispatch. For
// protected routes it allows requests with a valid local session, attempts
// handoff redemption on satellites when the token parameter is present, and
// otherwise redirects browsers to sign-in or rejects API callers. It never
// mutates sessions on the allow, redirect, or reject paths; only a
// successful redemption creates state.
type RouteGuard struct {
	Matcher    *RouteMatcher
	Classifier *service.Classifier
	Sessions   *service.SessionService

	// Handoff is nil on the primary; only satellites redeem.
	Handoff *service.HandoffService

	// CookieSecure marks issued cookies Secure; set when the instance
	// origin is https.
	CookieSecure bool
}

// Middleware returns the guard as a chainable middleware.
func (g *RouteGuard) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			g.serve(w, r, next)
		})
	}
}

func (g *RouteGuard) serve(w http.ResponseWriter, r *http.Request, next http.Handler) {
	// A valid session is attached to the context even on public routes so
	// handlers can personalise without forcing protection.
	if sess, err := g.Sessions.Validate(r.Context(), sessionCookie(r)); err == nil {
		next.ServeHTTP(w, r.WithContext(withSession(r.Context(), sess)))
		return
	}

	if !g.Matcher.Protected(r.URL.Path) {
		next.ServeHTTP(w, r)
		return
	}

	res := g.Classifier.Resolve(g.absoluteURL(r))

	if res.IsSatellite && g.Handoff != nil {
		if token := r.URL.Query().Get(service.HandoffParam); token != "" {
			g.redeem(w, r, res, token)
			return
		}
	}

	g.unauthenticated(w, r, res)
}

// redeem attempts handoff redemption. Success sets the cookie and bounces
// the browser back to the same URL without the token, so a reload cannot
// replay it. Failure falls back to the unauthenticated flow, except when the
// primary's keys were unreachable, which is reported as retryable.
func (g *RouteGuard) redeem(w http.ResponseWriter, r *http.Request, res domain.Resolution, token string) {
	l := slogx.FromContext(r.Context())

	result, err := g.Handoff.Redeem(r.Context(), token, res.Origin)
	if err != nil {
		if errors.Is(err, service.ErrUpstreamUnavailable) {
			w.Header().Set("Retry-After", "2")
			httpx.WriteError(w, http.StatusBadGateway, "upstream_unavailable",
				"sign-in service unreachable, retry shortly")
			return
		}
		l.Warn("handoff redemption rejected", slog.String("path", r.URL.Path))
		g.unauthenticated(w, r, res)
		return
	}

	setSessionCookie(w, result.Token, result.Session.ExpiresAt, g.CookieSecure)
	http.Redirect(w, r, result.Redirect, http.StatusSeeOther)
}

func (g *RouteGuard) unauthenticated(w http.ResponseWriter, r *http.Request, res domain.Resolution) {
	if !browserNavigation(r) || res.SignInURL == nil {
		httpx.WriteError(w, http.StatusUnauthorized, "authentication_failed",
			"a valid session is required")
		return
	}

	// Send the browser to sign-in carrying where it was headed, minus any
	// stale token parameter.
	returnTo := g.absoluteURL(r).String()
	if stripped, err := service.StripHandoffParam(returnTo); err == nil {
		returnTo = stripped
	}

	signIn := *res.SignInURL
	q := signIn.Query()
	q.Set("redirect_url", returnTo)
	signIn.RawQuery = q.Encode()

	http.Redirect(w, r, signIn.String(), http.StatusSeeOther)
}

// absoluteURL rebuilds the request's absolute URL. Server requests carry
// only path and query; scheme and host come from the request/TLS state.
func (g *RouteGuard) absoluteURL(r *http.Request) *url.URL {
	u := *r.URL
	u.Host = r.Host
	u.Scheme = "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		u.Scheme = "https"
	}
	return &u
}

// browserNavigation reports whether the request looks like a top-level
// browser navigation that can follow a redirect, as opposed to an API call
// that wants a status code.
func browserNavigation(r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}
	accept := r.Header.Get("Accept")
	if strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html") {
		return false
	}
	return true
}
