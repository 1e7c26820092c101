package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-storefront/internal/domain/auth"
)

const (
	getTokenByHashSQL = `SELECT id, token_hash, user_id
		FROM tokens WHERE token_hash = $1 AND active = TRUE`

	upsertTokenSQL = `INSERT INTO tokens (id, token_hash, user_id, active)
		VALUES ($1, $2, $3, TRUE)
		ON CONFLICT (id) DO UPDATE SET
			token_hash = EXCLUDED.token_hash,
			user_id = EXCLUDED.user_id,
			active = TRUE`
)

var _ auth.Repository = (*TokenRepository)(nil)

// TokenRepository provides bearer token lookups.
type TokenRepository struct {
	pool *pgxpool.Pool
}

// NewTokenRepository returns a TokenRepository that uses the given pool.
func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

// FindByHash looks up an active token by its HMAC-SHA256 hash.
// Returns an error wrapping pgx.ErrNoRows when no matching token exists.
func (r *TokenRepository) FindByHash(ctx context.Context, hash string) (*auth.TokenInfo, error) {
	var info auth.TokenInfo
	err := r.pool.QueryRow(ctx, getTokenByHashSQL, hash).Scan(&info.ID, &info.TokenHash, &info.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.Wrap(err, "token not found")
		}
		return nil, errors.Wrap(err, "find token by hash")
	}
	return &info, nil
}

// Upsert provisions a token for a user.
func (r *TokenRepository) Upsert(ctx context.Context, info auth.TokenInfo) error {
	if _, err := r.pool.Exec(ctx, upsertTokenSQL, info.ID, info.TokenHash, info.UserID); err != nil {
		return errors.Wrapf(err, "upsert token %q", info.ID)
	}
	return nil
}
