package sqlite

import (
	"context"

	"github.com/aussiebroadwan/crosstab/internal/sso/domain"
)

type handoffsRepo struct {
	db dbtx
}

const consumeHandoffQuery = `
INSERT INTO handoff_consumptions (jti, expires_at, consumed_at)
VALUES (?, ?, ?)
`

// ConsumeHandoff is the single-use gate: the primary key on jti means exactly
// one concurrent redemption wins and every other gets store.ErrAlreadyExists.
func (r *handoffsRepo) ConsumeHandoff(ctx context.Context, c domain.HandoffConsumption) error {
	_, err := r.db.ExecContext(ctx, consumeHandoffQuery,
		c.JTI,
		c.ExpiresAt,
		c.ConsumedAt,
	)
	return mapConflict(err)
}

func (r *handoffsRepo) DeleteExpiredHandoffs(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM handoff_consumptions WHERE expires_at < CURRENT_TIMESTAMP`,
	)
	return err
}
