package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// TokenRepo stores refresh tokens by SHA-256 hash. Tokens are single use:
// Consume revokes the row it accepts.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

func (r *TokenRepo) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	_, err := conn(ctx, r.DB).ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, expires_at, created_at) VALUES (?,?,?,?)",
		userID, tokenHash, exp.UTC(), time.Now().UTC())
	return err
}

// Consume accepts a live token exactly once and returns its user. Unknown,
// expired, revoked and already consumed tokens all yield ErrInvalidRefresh.
// Of two concurrent calls with the same token only one succeeds.
func (r *TokenRepo) Consume(ctx context.Context, tokenHash string, now time.Time) (uint64, error) {
	db := conn(ctx, r.DB)
	var (
		userID    uint64
		expiresAt time.Time
	)
	err := db.QueryRowContext(ctx,
		"SELECT user_id, expires_at FROM refresh_tokens WHERE token_hash=? AND revoked_at IS NULL LIMIT 1",
		tokenHash).Scan(&userID, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrInvalidRefresh
	}
	if err != nil {
		return 0, err
	}
	if !now.Before(expiresAt) {
		return 0, ErrInvalidRefresh
	}

	res, err := db.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE token_hash=? AND revoked_at IS NULL",
		now.UTC(), tokenHash)
	if err != nil {
		return 0, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return 0, ErrInvalidRefresh
	}
	return userID, nil
}

func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string, at time.Time) error {
	_, err := conn(ctx, r.DB).ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE token_hash=? AND revoked_at IS NULL",
		at.UTC(), tokenHash)
	return err
}

// RevokeAllForUser ends every session of userID.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64, at time.Time) error {
	_, err := conn(ctx, r.DB).ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=? WHERE user_id=? AND revoked_at IS NULL",
		at.UTC(), userID)
	return err
}

// PurgeExpired deletes tokens that expired before cutoff and reports how
// many rows went.
func (r *TokenRepo) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := conn(ctx, r.DB).ExecContext(ctx, "DELETE FROM refresh_tokens WHERE expires_at < ?", cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
