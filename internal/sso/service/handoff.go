package service

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/aussiebroadwan/crosstab/internal/sso/domain"
	"github.com/aussiebroadwan/crosstab/internal/sso/store"
	"github.com/aussiebroadwan/crosstab/pkg/jwtx"
	"github.com/aussiebroadwan/crosstab/pkg/slogx"
)

// HandoffParam is the query parameter that carries a handoff token through
// the redirect to the satellite. Double-underscore prefix to stay out of the
// way of application parameters.
const HandoffParam = "__crosstab_handoff"

// HandoffService implements both ends of cross-domain session propagation.
// The primary uses Mint: sign a short-lived single-use token binding a
// session to one satellite origin and one return URL. A satellite uses
// Redeem: verify the token against the primary's published keys, burn its
// jti, and mint a local derived session. An instance wires only the side it
// plays; the unused dependencies stay nil.
type HandoffService struct {
	Store    store.Store
	Sessions *SessionService

	// Mint side (primary).
	Keys           *jwtx.KeyManager
	Issuer         string
	AllowedOrigins []string
	TTL            time.Duration

	// Redeem side (satellite).
	Verifier *jwtx.Verifier
}

// Mint signs a handoff token for sess targeting returnURL and returns the
// redirect target: returnURL with the token appended as a query parameter.
// The return URL must be absolute and its origin must be allowlisted.
func (s *HandoffService) Mint(ctx context.Context, sess domain.Session, returnURL string) (string, error) {
	l := slogx.FromContext(ctx)

	target, err := url.Parse(returnURL)
	if err != nil || !target.IsAbs() || target.Host == "" {
		l.Warn("handoff mint rejected: unparseable return url")
		return "", ErrOriginNotAllowed
	}

	origin := target.Scheme + "://" + target.Host
	if !s.originAllowed(origin) {
		l.Warn("handoff mint rejected: origin not allowlisted",
			slog.String("origin", origin),
		)
		return "", ErrOriginNotAllowed
	}

	claims := jwtx.NewHandoffClaims(
		s.Issuer,
		sess.Subject,
		sess.ID,
		origin,
		returnURL,
		sess.ExpiresAt,
		s.TTL,
		time.Now().UTC(),
	)

	signer := s.Keys.GetSigner()
	if signer == nil {
		return "", errors.New("no active signing key")
	}
	token, err := signer.Sign(claims)
	if err != nil {
		return "", err
	}

	q := target.Query()
	q.Set(HandoffParam, token)
	target.RawQuery = q.Encode()

	l.Info("handoff token minted",
		slog.String("session_id", sess.ID),
		slog.String("target_origin", origin),
		slog.String("jti", claims.ID),
	)
	return target.String(), nil
}

func (s *HandoffService) originAllowed(origin string) bool {
	for _, allowed := range s.AllowedOrigins {
		if allowed == origin {
			return true
		}
	}
	return false
}

// RedeemResult is what a successful redemption yields: the new local session,
// its evidence token for the cookie, and the return URL with the handoff
// parameter stripped.
type RedeemResult struct {
	Session  domain.Session
	Token    string
	Redirect string
}

// Redeem verifies tokenStr for expectedOrigin, enforces single use, and
// creates a derived session. Every verification failure collapses to
// ErrHandoffFailed; only an unreachable key source is reported distinctly
// (ErrUpstreamUnavailable) because that one is retryable and must fail
// closed rather than generic.
func (s *HandoffService) Redeem(ctx context.Context, tokenStr, expectedOrigin string) (RedeemResult, error) {
	l := slogx.FromContext(ctx)

	claims, err := s.Verifier.Verify(tokenStr, expectedOrigin)
	if err != nil {
		if errors.Is(err, jwtx.ErrUpstream) {
			l.Error("handoff redemption failed: key source unreachable", slog.Any("error", err))
			return RedeemResult{}, ErrUpstreamUnavailable
		}
		l.Warn("handoff redemption failed: verification", slog.Any("error", err))
		return RedeemResult{}, ErrHandoffFailed
	}

	// Burn the jti before creating any session. The insert is atomic, so of
	// N concurrent redemptions exactly one reaches the session create below.
	err = s.Store.Handoffs().ConsumeHandoff(ctx, domain.HandoffConsumption{
		JTI:        claims.ID,
		ExpiresAt:  claims.ExpiresAt.Time,
		ConsumedAt: time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			l.Warn("handoff redemption failed: token already consumed",
				slog.String("jti", claims.ID),
			)
			return RedeemResult{}, ErrHandoffFailed
		}
		return RedeemResult{}, err
	}

	var primaryExpiry time.Time
	if claims.SessionExpiry != nil {
		primaryExpiry = claims.SessionExpiry.Time
	}

	sess, token, err := s.Sessions.CreateDerived(ctx, claims.Subject, claims.SID, primaryExpiry)
	if err != nil {
		if errors.Is(err, ErrSessionInvalid) {
			l.Warn("handoff redemption failed: primary session already expired",
				slog.String("jti", claims.ID),
			)
			return RedeemResult{}, ErrHandoffFailed
		}
		return RedeemResult{}, err
	}

	redirect, err := stripHandoffParam(claims.ReturnURL)
	if err != nil {
		return RedeemResult{}, ErrHandoffFailed
	}

	l.Info("handoff redeemed",
		slog.String("jti", claims.ID),
		slog.String("session_id", sess.ID),
		slog.String("primary_session_id", sess.PrimarySessionID),
	)
	return RedeemResult{Session: sess, Token: token, Redirect: redirect}, nil
}

// stripHandoffParam removes the token parameter from u, leaving everything
// else intact. The token claim holds the pre-handoff return URL, which does
// not carry the parameter, but the guard also calls this on live request
// URLs that do.
func stripHandoffParam(u string) (string, error) {
	parsed, err := url.Parse(u)
	if err != nil {
		return "", err
	}
	q := parsed.Query()
	if _, ok := q[HandoffParam]; !ok {
		return u, nil
	}
	q.Del(HandoffParam)
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}

// StripHandoffParam is the exported form used by the route guard when
// rebuilding the post-redemption redirect from the live request URL.
func StripHandoffParam(u string) (string, error) { return stripHandoffParam(u) }
