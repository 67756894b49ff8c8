package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// baseTestConfig mirrors LoadConfig's defaults without reading the test
// environment. Issuer is deliberately left empty: both roles must agree on
// it out of the box.
func baseTestConfig(t *testing.T) Config {
	t.Helper()

	dir := t.TempDir()
	cfg := LoadConfig()
	cfg.Issuer = ""
	cfg.DatabaseFile = filepath.Join(dir, "crosstab.db")
	cfg.PepperFile = filepath.Join(dir, "pepper")
	return cfg
}

func newTestApplication(t *testing.T, cfg Config) *Application {
	t.Helper()

	application, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = application.db.Close() })
	return application
}

// A default-configured deployment: the operator sets role, domain, the
// allowlist, and where the primary lives, and nothing else. Handoff must
// work without an explicit SSO_ISSUER on either side.
func TestDefaultConfigHandoffAcrossRoles(t *testing.T) {
	ctx := context.Background()

	primaryCfg := baseTestConfig(t)
	primaryCfg.Role = RolePrimary
	primaryCfg.Domain = "https://accounts.example.com"
	primaryCfg.SatelliteOrigins = []string{"https://app.example.net"}
	primary := newTestApplication(t, primaryCfg)

	primarySrv := httptest.NewServer(primary.router)
	t.Cleanup(primarySrv.Close)

	satCfg := baseTestConfig(t)
	satCfg.Role = RoleSatellite
	satCfg.Domain = "https://app.example.net"
	satCfg.SignInURL = "https://accounts.example.com/v1/sign-in"
	satCfg.PrimaryJWKSURL = primarySrv.URL + "/.well-known/jwks.json"
	satCfg.ProtectedRoutes = []string{"/reports/**"}
	satellite := newTestApplication(t, satCfg)

	// Both sides resolved the same issuer without SSO_ISSUER being set.
	require.Equal(t, "https://accounts.example.com", satellite.handoffService.Verifier.Issuer)

	sess, _, err := primary.sessionService.Create(ctx, "user-1")
	require.NoError(t, err)

	returnURL := "https://app.example.net/reports/q1?team=sales"
	minted, err := primary.handoffService.Mint(ctx, sess, returnURL)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, minted, nil)
	rr := httptest.NewRecorder()
	satellite.router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusSeeOther, rr.Code)
	require.Equal(t, returnURL, rr.Header().Get("Location"))
	require.NotEmpty(t, rr.Result().Cookies())

	introspect := httptest.NewRequest(http.MethodGet, "https://app.example.net/v1/session", nil)
	for _, c := range rr.Result().Cookies() {
		introspect.AddCookie(c)
	}
	rr2 := httptest.NewRecorder()
	satellite.router.ServeHTTP(rr2, introspect)

	require.Equal(t, http.StatusOK, rr2.Code)
	require.Contains(t, rr2.Body.String(), `"kind":"derived"`)
}
