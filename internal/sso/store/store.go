package store

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/crosstab/internal/sso/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Each instance owns its own
// database: the primary keeps users and canonical sessions, a satellite
// keeps derived sessions and redeemed handoff jtis. There is deliberately no
// shared storage between instances.
type Store interface {
	Users() Users
	Sessions() Sessions
	Handoffs() Handoffs

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction, rolling back when fn errors
	// and committing otherwise.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store with Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Users interface {
	// CreateUser inserts a new user (id is provided by the app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByUsername is used during sign-in.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)

	// SetTOTPSecret stores a pending TOTP secret for a user.
	SetTOTPSecret(ctx context.Context, userID, secret string) error

	// EnableMFA marks the user's TOTP enrollment as verified.
	EnableMFA(ctx context.Context, userID string) error

	// DisableMFA clears the TOTP secret and enabled timestamp.
	DisableMFA(ctx context.Context, userID string) error

	// IsEmpty reports whether there are no users (bootstrap check).
	IsEmpty(ctx context.Context) (bool, error)
}

type Sessions interface {
	// CreateSession stores a new session record.
	CreateSession(ctx context.Context, s domain.Session) error

	// GetSessionByTokenHash returns the session whose evidence fingerprint
	// matches. Expiry and revocation are the caller's concern so that all
	// invalid states can be treated identically.
	GetSessionByTokenHash(ctx context.Context, hash string) (domain.Session, error)

	// RevokeSession sets revoked_at on the session.
	RevokeSession(ctx context.Context, id string) error

	// DeleteExpiredSessions is housekeeping.
	DeleteExpiredSessions(ctx context.Context) error
}

type Handoffs interface {
	// ConsumeHandoff records a handoff token's jti as redeemed. Returns
	// ErrAlreadyExists if the jti was consumed before; the insert is the
	// single-use gate, atomic under concurrent redemption.
	ConsumeHandoff(ctx context.Context, c domain.HandoffConsumption) error

	// DeleteExpiredHandoffs removes consumption rows whose tokens can no
	// longer verify anyway.
	DeleteExpiredHandoffs(ctx context.Context) error
}
