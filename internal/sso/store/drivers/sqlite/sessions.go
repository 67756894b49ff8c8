package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/crosstab/internal/sso/domain"
)

type sessionsRepo struct {
	db dbtx
}

const createSessionQuery = `
INSERT INTO sessions (id, subject, kind, token_hash, primary_session_id, issued_at, expires_at, revoked_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

func (r *sessionsRepo) CreateSession(ctx context.Context, s domain.Session) error {
	_, err := r.db.ExecContext(ctx, createSessionQuery,
		s.ID,
		s.Subject,
		string(s.Kind),
		s.TokenHash,
		s.PrimarySessionID,
		s.IssuedAt,
		s.ExpiresAt,
		mapOptionalTime(s.RevokedAt),
	)
	return mapConflict(err)
}

const getSessionByTokenHashQuery = `
SELECT id, subject, kind, token_hash, primary_session_id, issued_at, expires_at, revoked_at
FROM sessions
WHERE token_hash = ?
`

func (r *sessionsRepo) GetSessionByTokenHash(ctx context.Context, hash string) (domain.Session, error) {
	var (
		s         domain.Session
		kind      string
		revokedAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, getSessionByTokenHashQuery, hash).Scan(
		&s.ID,
		&s.Subject,
		&kind,
		&s.TokenHash,
		&s.PrimarySessionID,
		&s.IssuedAt,
		&s.ExpiresAt,
		&revokedAt,
	)
	if err != nil {
		return domain.Session{}, mapNotFound(err)
	}
	s.Kind = domain.SessionKind(kind)
	s.RevokedAt = mapNullTimePtr(revokedAt)
	return s, nil
}

func (r *sessionsRepo) RevokeSession(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = CURRENT_TIMESTAMP WHERE id = ? AND revoked_at IS NULL`,
		id,
	)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (r *sessionsRepo) DeleteExpiredSessions(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at < CURRENT_TIMESTAMP`,
	)
	return err
}
