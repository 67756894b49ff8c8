package sqlite

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/crosstab/internal/sso/domain"
)

type usersRepo struct {
	db dbtx
}

const createUserQuery = `
INSERT INTO users (id, username, password_hash, totp_secret, mfa_enabled_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`

func (r *usersRepo) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx, createUserQuery,
		u.ID,
		u.Username,
		u.PasswordHash,
		mapOptionalString(u.TOTPSecret),
		mapOptionalTime(u.MFAEnabledAt),
		u.CreatedAt,
		u.UpdatedAt,
	)
	return mapConflict(err)
}

const getUserQuery = `
SELECT id, username, password_hash, totp_secret, mfa_enabled_at, created_at, updated_at
FROM users
`

func (r *usersRepo) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, getUserQuery+"WHERE id = ?", id)
	return scanUser(row)
}

func (r *usersRepo) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, getUserQuery+"WHERE username = ?", username)
	return scanUser(row)
}

func (r *usersRepo) SetTOTPSecret(ctx context.Context, userID, secret string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET totp_secret = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		secret, userID,
	)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (r *usersRepo) EnableMFA(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET mfa_enabled_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		userID,
	)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (r *usersRepo) DisableMFA(ctx context.Context, userID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET totp_secret = NULL, mfa_enabled_at = NULL, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		userID,
	)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (r *usersRepo) IsEmpty(ctx context.Context) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return false, err
	}
	return n == 0, nil
}

func scanUser(row *sql.Row) (domain.User, error) {
	var (
		u            domain.User
		totpSecret   sql.NullString
		mfaEnabledAt sql.NullTime
	)
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.PasswordHash,
		&totpSecret,
		&mfaEnabledAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, mapNotFound(err)
	}
	u.TOTPSecret = mapNullStringPtr(totpSecret)
	u.MFAEnabledAt = mapNullTimePtr(mfaEnabledAt)
	return u, nil
}

func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return mapNotFound(sql.ErrNoRows)
	}
	return nil
}
