package app

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/crosstab/internal/sso/service"
)

const (
	RolePrimary   = "primary"
	RoleSatellite = "satellite"
)

type Config struct {
	Role   string // Instance role (primary, satellite) (default: primary)
	Domain string // Required: this instance's origin, e.g. https://accounts.example.com

	SignInURL        string   // Satellite: the primary's absolute sign-in URL. Primary: optional override of the local path.
	Issuer           string   // Optional: handoff token issuer. Primary default: Domain. Satellite default: the primary's origin, derived from SignInURL or PrimaryJWKSURL.
	SatelliteOrigins []string // Primary: origins handoff tokens may target
	ProtectedRoutes  []string // Glob patterns of routes requiring a session
	PrimaryJWKSURL   string   // Satellite: the primary's JWKS endpoint (default: derived from SignInURL)

	HandoffTTL        time.Duration // Optional: handoff token lifetime (default: 60s)
	SessionTTL        time.Duration // Optional: canonical session lifetime (default: 12h)
	DerivedSessionTTL time.Duration // Optional: derived session cap (default: 1h)
	JWKSFetchTimeout  time.Duration // Optional: JWKS fetch timeout (default: 5s)
	JWKSRefreshTTL    time.Duration // Optional: JWKS cache lifetime (default: 5m)
	NumKeys           int           // Optional: number of signing keys to generate (default: 2, min: 1, max: 10)

	BootstrapToken       string        // Optional: token required to perform bootstrap
	DatabaseFile         string        // Optional: path to SQLite database file (default: ./crosstab.db)
	PepperFile           string        // Optional: path to password pepper file (default: ./pepper)
	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() Config {
	cfg := Config{
		Role:   getEnvOrDefault("SSO_ROLE", RolePrimary),
		Domain: os.Getenv("SSO_DOMAIN"),

		SignInURL:        os.Getenv("SSO_SIGN_IN_URL"),
		Issuer:           os.Getenv("SSO_ISSUER"),
		SatelliteOrigins: splitAndTrim(os.Getenv("SSO_SATELLITE_ORIGINS")),
		ProtectedRoutes:  splitAndTrim(os.Getenv("SSO_PROTECTED_ROUTES")),
		PrimaryJWKSURL:   os.Getenv("SSO_PRIMARY_JWKS_URL"),

		HandoffTTL:        getEnvDurationOrDefault("SSO_HANDOFF_TTL", 60*time.Second),
		SessionTTL:        getEnvDurationOrDefault("SSO_SESSION_TTL", 12*time.Hour),
		DerivedSessionTTL: getEnvDurationOrDefault("SSO_DERIVED_SESSION_TTL", 1*time.Hour),
		JWKSFetchTimeout:  getEnvDurationOrDefault("SSO_JWKS_FETCH_TIMEOUT", 5*time.Second),
		JWKSRefreshTTL:    getEnvDurationOrDefault("SSO_JWKS_REFRESH_TTL", 5*time.Minute),
		NumKeys:           getEnvIntOrDefault("SSO_NUM_KEYS", 2),

		BootstrapToken:       os.Getenv("SSO_BOOTSTRAP_TOKEN"),
		DatabaseFile:         getEnvOrDefault("SSO_DATABASE_FILE", "crosstab.db"),
		PepperFile:           getEnvOrDefault("SSO_PEPPER_FILE", "pepper"),
		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}

	return cfg
}

// Validate fails fast on broken topology before anything is served.
func (c Config) Validate() error {
	if c.Role != RolePrimary && c.Role != RoleSatellite {
		return &service.ConfigurationError{
			Field:  "SSO_ROLE",
			Reason: fmt.Sprintf("must be %q or %q, got %q", RolePrimary, RoleSatellite, c.Role),
		}
	}

	if c.Domain == "" {
		return &service.ConfigurationError{
			Field:  "SSO_DOMAIN",
			Reason: "instance origin must be configured",
		}
	}
	if u, err := url.Parse(c.Domain); err != nil || !u.IsAbs() || u.Host == "" {
		return &service.ConfigurationError{
			Field:  "SSO_DOMAIN",
			Reason: "must be an absolute origin like https://accounts.example.com",
		}
	}

	if c.Role == RoleSatellite {
		// A satellite with nowhere to send browsers is unusable outside
		// prod, where operators may accept serving 401s only.
		if c.SignInURL == "" && c.Env != "prod" {
			return &service.ConfigurationError{
				Field:  "SSO_SIGN_IN_URL",
				Reason: "satellite instance has no sign-in URL to redirect to",
			}
		}
		if c.SignInURL != "" {
			if u, err := url.Parse(c.SignInURL); err != nil || !u.IsAbs() {
				return &service.ConfigurationError{
					Field:  "SSO_SIGN_IN_URL",
					Reason: "must be an absolute URL",
				}
			}
		}
		if c.PrimaryJWKSURL == "" && c.SignInURL == "" {
			return &service.ConfigurationError{
				Field:  "SSO_PRIMARY_JWKS_URL",
				Reason: "satellite needs the primary's JWKS endpoint (or a sign-in URL to derive it from)",
			}
		}
	}

	if c.Role == RolePrimary {
		for _, origin := range c.SatelliteOrigins {
			if u, err := url.Parse(origin); err != nil || !u.IsAbs() || u.Host == "" {
				return &service.ConfigurationError{
					Field:  "SSO_SATELLITE_ORIGINS",
					Reason: fmt.Sprintf("%q is not an absolute origin", origin),
				}
			}
		}
	}

	return nil
}

// handoffIssuer resolves the issuer claim handoff tokens carry and are
// checked against. Both roles must agree on it: the primary signs with its
// own origin, so a satellite's default is the primary's origin as derived
// from the sign-in or JWKS URL, never the satellite's own Domain.
func (c Config) handoffIssuer() string {
	if c.Issuer != "" {
		return c.Issuer
	}
	if c.Role == RoleSatellite {
		for _, raw := range []string{c.SignInURL, c.PrimaryJWKSURL} {
			if raw == "" {
				continue
			}
			if u, err := url.Parse(raw); err == nil && u.IsAbs() && u.Host != "" {
				return u.Scheme + "://" + u.Host
			}
		}
	}
	return c.Domain
}

// jwksURL resolves the primary's JWKS endpoint for a satellite, deriving it
// from the sign-in URL's origin when not given explicitly.
func (c Config) jwksURL() string {
	if c.PrimaryJWKSURL != "" {
		return c.PrimaryJWKSURL
	}
	u, err := url.Parse(c.SignInURL)
	if err != nil {
		return ""
	}
	return u.Scheme + "://" + u.Host + "/.well-known/jwks.json"
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Plain integers are taken as seconds.
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
