package repository

import (
	"context"
	"time"
)

// RevokedTokenRepository persists revoked token identifiers in Postgres.
// A row only matters until expires_at; PruneExpired clears the rest.
type RevokedTokenRepository struct {
	pool pgxPool
	now  func() time.Time
}

// NewRevokedTokenRepository constructs repository.
func NewRevokedTokenRepository(pool pgxPool) *RevokedTokenRepository {
	return &RevokedTokenRepository{pool: pool, now: time.Now}
}

func (r *RevokedTokenRepository) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	const query = `
        INSERT INTO revoked_tokens (token_id, expires_at)
        VALUES ($1, $2)
        ON CONFLICT (token_id) DO NOTHING`
	_, err := r.pool.Exec(ctx, query, tokenID, r.now().Add(ttl))
	return err
}

func (r *RevokedTokenRepository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	const query = `
        SELECT EXISTS (
            SELECT 1 FROM revoked_tokens WHERE token_id=$1 AND expires_at > NOW()
        )`
	var revoked bool
	if err := r.pool.QueryRow(ctx, query, tokenID).Scan(&revoked); err != nil {
		return false, err
	}
	return revoked, nil
}

// PruneExpired deletes rows whose tokens have expired and returns how many went.
func (r *RevokedTokenRepository) PruneExpired(ctx context.Context) (int64, error) {
	const query = `DELETE FROM revoked_tokens WHERE expires_at <= NOW()`
	cmd, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
