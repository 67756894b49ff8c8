package domain

import "net/url"

// Resolution is the per-request answer of the domain classifier: what role
// this instance plays for the request's origin, and where sign-in lives.
type Resolution struct {
	IsSatellite bool
	// Origin is the scheme://host[:port] this request is served under.
	Origin string
	// SignInURL is the primary's sign-in route. For a primary resolution it
	// points at the local sign-in path; nil only when the instance is a
	// primary with no local sign-in configured.
	SignInURL *url.URL
}
