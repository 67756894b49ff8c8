package service

import (
	"net/url"

	"github.com/aussiebroadwan/crosstab/internal/sso/domain"
)

// Classifier decides, per request, whether this instance acts as the primary
// or a satellite for the request's domain, and where sign-in lives. The
// static fields are the common case; the function fields exist for
// deployments that serve several domains from one process and must classify
// by the request URL. Functions must be pure and concurrency safe, they are
// called on every request.
type Classifier struct {
	// Satellite and Domain are the static classification, used when the
	// corresponding function below is nil.
	Satellite bool
	Domain    string

	// SatelliteFn and DomainFn, when set, classify per request URL.
	SatelliteFn func(*url.URL) bool
	DomainFn    func(*url.URL) string

	// SignInURL is where unauthenticated browsers are sent. On a satellite
	// this is the primary's absolute sign-in URL; on the primary it is the
	// local sign-in path.
	SignInURL *url.URL
}

// Resolve classifies the given request URL.
func (c *Classifier) Resolve(requestURL *url.URL) domain.Resolution {
	res := domain.Resolution{
		IsSatellite: c.Satellite,
		Origin:      c.Domain,
		SignInURL:   c.SignInURL,
	}
	if c.SatelliteFn != nil {
		res.IsSatellite = c.SatelliteFn(requestURL)
	}
	if c.DomainFn != nil {
		res.Origin = c.DomainFn(requestURL)
	}
	if res.Origin == "" && requestURL != nil && requestURL.Host != "" {
		res.Origin = requestURL.Scheme + "://" + requestURL.Host
	}
	return res
}

// Validate checks the classifier is usable for the given environment. A
// statically configured satellite that has nowhere to send unauthenticated
// users is a broken topology; outside prod we refuse to start rather than
// serve redirect loops. In prod the functions may resolve a sign-in URL we
// cannot see statically, so only the fully static case is fatal.
func (c *Classifier) Validate(env string) error {
	static := c.SatelliteFn == nil && c.DomainFn == nil
	if static && c.Satellite && c.SignInURL == nil && env != "prod" {
		return &ConfigurationError{
			Field:  "SSO_SIGN_IN_URL",
			Reason: "satellite instance has no sign-in URL to redirect to",
		}
	}
	if static && c.Domain == "" {
		return &ConfigurationError{
			Field:  "SSO_DOMAIN",
			Reason: "instance origin must be configured",
		}
	}
	return nil
}
