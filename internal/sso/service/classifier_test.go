package service

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

func TestClassifierResolve(t *testing.T) {
	t.Parallel()

	t.Run("static primary", func(t *testing.T) {
		c := &Classifier{
			Domain:    "https://accounts.example.com",
			SignInURL: mustURL(t, "https://accounts.example.com/v1/sign-in"),
		}
		res := c.Resolve(mustURL(t, "https://accounts.example.com/dashboard"))
		require.False(t, res.IsSatellite)
		require.Equal(t, "https://accounts.example.com", res.Origin)
		require.NotNil(t, res.SignInURL)
	})

	t.Run("static satellite", func(t *testing.T) {
		c := &Classifier{
			Satellite: true,
			Domain:    "https://app.example.net",
			SignInURL: mustURL(t, "https://accounts.example.com/v1/sign-in"),
		}
		res := c.Resolve(mustURL(t, "https://app.example.net/reports"))
		require.True(t, res.IsSatellite)
		require.Equal(t, "https://app.example.net", res.Origin)
	})

	t.Run("function classification wins over static", func(t *testing.T) {
		c := &Classifier{
			Satellite: false,
			Domain:    "https://static.example.com",
			SatelliteFn: func(u *url.URL) bool {
				return u.Host != "accounts.example.com"
			},
			DomainFn: func(u *url.URL) string {
				return u.Scheme + "://" + u.Host
			},
		}

		res := c.Resolve(mustURL(t, "https://app.example.net/x"))
		require.True(t, res.IsSatellite)
		require.Equal(t, "https://app.example.net", res.Origin)

		res = c.Resolve(mustURL(t, "https://accounts.example.com/x"))
		require.False(t, res.IsSatellite)
		require.Equal(t, "https://accounts.example.com", res.Origin)
	})

	t.Run("empty origin falls back to request url", func(t *testing.T) {
		c := &Classifier{}
		res := c.Resolve(mustURL(t, "https://fallback.example.org/path"))
		require.Equal(t, "https://fallback.example.org", res.Origin)
	})
}

func TestClassifierValidate(t *testing.T) {
	t.Parallel()

	t.Run("satellite without sign-in url fails outside prod", func(t *testing.T) {
		c := &Classifier{Satellite: true, Domain: "https://app.example.net"}
		err := c.Validate("dev")
		require.Error(t, err)

		var cfgErr *ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		require.Equal(t, "SSO_SIGN_IN_URL", cfgErr.Field)
	})

	t.Run("satellite without sign-in url tolerated in prod", func(t *testing.T) {
		c := &Classifier{Satellite: true, Domain: "https://app.example.net"}
		require.NoError(t, c.Validate("prod"))
	})

	t.Run("function-based classifier skips static checks", func(t *testing.T) {
		c := &Classifier{
			Satellite:   true,
			SatelliteFn: func(*url.URL) bool { return true },
			DomainFn:    func(u *url.URL) string { return u.Scheme + "://" + u.Host },
		}
		require.NoError(t, c.Validate("dev"))
	})

	t.Run("static instance needs an origin", func(t *testing.T) {
		c := &Classifier{}
		err := c.Validate("dev")
		var cfgErr *ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		require.Equal(t, "SSO_DOMAIN", cfgErr.Field)
	})

	t.Run("valid satellite", func(t *testing.T) {
		c := &Classifier{
			Satellite: true,
			Domain:    "https://app.example.net",
			SignInURL: mustURL(t, "https://accounts.example.com/v1/sign-in"),
		}
		require.NoError(t, c.Validate("dev"))
	})
}
