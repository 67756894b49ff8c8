package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/crosstab/internal/sso/service"
	"github.com/aussiebroadwan/crosstab/internal/sso/store"
	"github.com/aussiebroadwan/crosstab/pkg/httpx"
	"github.com/aussiebroadwan/crosstab/pkg/jwtx"
	"github.com/aussiebroadwan/crosstab/pkg/slogx"

	_ "github.com/aussiebroadwan/crosstab/api/docs" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers. Which routes it
// registers depends on the instance role: the primary carries sign-in,
// bootstrap, MFA, key management, and JWKS; a satellite carries only
// session introspection, sign-out, and health, with the route guard doing
// the recognition work in front of the application routes.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	satellite    bool
	cookieSecure bool
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store
	keys  *jwtx.KeySet // nil on satellites

	Guard              *RouteGuard
	SessionService     *service.SessionService
	UserService        *service.UserService
	HandoffService     *service.HandoffService
	BootstrapService   *service.BootstrapService
	MFAService         *service.MFAService
	KeyRotationService *service.KeyRotationService
}

func NewRouter(
	satellite bool,
	cookieSecure bool,
	buildVersion string,
	keys *jwtx.KeySet,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		satellite:    satellite,
		cookieSecure: cookieSecure,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		keys:         keys,
		store:        st,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerSession()
	r.registerSystem()

	if r.satellite {
		return
	}

	r.registerSignIn()
	r.registerBootstrap()
	r.registerMFA()
	r.registerKeyRotation()

	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.keys),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			Crosstab SSO API
//	@version		0.1.0
//	@description	Cross-domain session propagation service. A primary instance owns users and canonical sessions; satellite instances recognise them through short-lived single-use handoff tokens carried in redirects.
//	@description
//	@description				Handoff tokens are EdDSA-signed JWTs verifiable against the JWKS endpoint.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/crosstab
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	// Guard runs inside logging so its redirects are logged like any
	// response, but outside the mux so it sees every route.
	handler := httpx.Chain(r.Mux, r.Guard.Middleware())
	httpx.Chain(handler, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerSignIn() {
	h := &SignInHandler{
		Users:        r.UserService,
		Sessions:     r.SessionService,
		Handoff:      r.HandoffService,
		CookieSecure: r.cookieSecure,
	}

	// GET /sign-in - silent SSO for already-authenticated browsers
	r.Mux.Handle("GET /v1/sign-in",
		httpx.Chain(http.HandlerFunc(h.HandleGet),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// POST /sign-in - strict rate limit by IP + username to slow brute force
	r.Mux.Handle("POST /v1/sign-in",
		httpx.Chain(http.HandlerFunc(h.HandlePost),
			httpx.RateLimitByIPAndFormField(httpx.StrictLimit, "username"),
		),
	)
}

func (r *Router) registerSession() {
	r.Mux.Handle("GET /v1/session",
		httpx.Chain(&SessionInfoHandler{},
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	signOut := &SignOutHandler{
		Sessions:     r.SessionService,
		CookieSecure: r.cookieSecure,
	}
	r.Mux.Handle("POST /v1/sign-out",
		httpx.Chain(signOut,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerBootstrap() {
	// POST /bootstrap - very strict rate limit by IP (one-time setup endpoint)
	r.Mux.Handle("POST /v1/bootstrap",
		httpx.Chain(&BootstrapHandler{BootstrapService: r.BootstrapService},
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerMFA() {
	h := &MFAHandler{MFAService: r.MFAService}

	r.Mux.Handle("POST /v1/mfa/totp/enroll",
		httpx.Chain(http.HandlerFunc(h.HandleEnroll),
			RequireSession,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// Strict limit on verify to slow TOTP brute force.
	r.Mux.Handle("POST /v1/mfa/totp/verify",
		httpx.Chain(http.HandlerFunc(h.HandleVerify),
			RequireSession,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	r.Mux.Handle("DELETE /v1/mfa/totp",
		httpx.Chain(http.HandlerFunc(h.HandleRemove),
			RequireSession,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerKeyRotation() {
	h := &KeyRotationHandler{KeyRotationService: r.KeyRotationService}

	r.Mux.Handle("POST /v1/keys/rotate",
		httpx.Chain(http.HandlerFunc(h.HandleRotate),
			RequireSession,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("POST /v1/keys/{kid}/retire",
		httpx.Chain(http.HandlerFunc(h.HandleRetire),
			RequireSession,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - generous limits (monitoring systems poll often)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}
