package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bookineo/bookineo/pkg/database"
	"github.com/bookineo/bookineo/services/api/internal/domain"
)

const (
	insertRefreshTokenQuery = `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	selectRefreshTokenQuery = `
		SELECT id, user_id, token_hash, expires_at, created_at, revoked_at
		FROM refresh_tokens WHERE token_hash = $1`
	revokeRefreshTokenQuery = `UPDATE refresh_tokens SET revoked_at = $1 WHERE token_hash = $2 AND revoked_at IS NULL`
	revokeUserTokensQuery   = `UPDATE refresh_tokens SET revoked_at = $1 WHERE user_id = $2 AND revoked_at IS NULL`
)

// RefreshTokenRepository implements repository.RefreshTokenRepository.
type RefreshTokenRepository struct {
	db database.DBTX
}

func NewRefreshTokenRepository(db database.DBTX) *RefreshTokenRepository {
	return &RefreshTokenRepository{db: db}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, userID, tokenHash string, expiresAt time.Time) (err error) {
	ctx, end := database.TraceQuery(ctx, "CreateRefreshToken", insertRefreshTokenQuery)
	defer func() { end(err) }()

	if _, err = r.db.Exec(ctx, insertRefreshTokenQuery, uuid.NewString(), userID, tokenHash, expiresAt, time.Now().UTC()); err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepository) GetByHash(ctx context.Context, tokenHash string) (_ *domain.RefreshToken, err error) {
	ctx, end := database.TraceQuery(ctx, "GetRefreshToken", selectRefreshTokenQuery)
	defer func() { end(err) }()

	var t domain.RefreshToken
	err = r.db.QueryRow(ctx, selectRefreshTokenQuery, tokenHash).Scan(
		&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.CreatedAt, &t.RevokedAt,
	)
	if err != nil {
		return nil, notFoundOr(err, "refresh token", "(hash)", func(err error) error {
			return fmt.Errorf("query refresh token: %w", err)
		})
	}
	return &t, nil
}

// Revoke marks one token as used. Revoking an already revoked token is a no-op.
func (r *RefreshTokenRepository) Revoke(ctx context.Context, tokenHash string) (err error) {
	ctx, end := database.TraceQuery(ctx, "RevokeRefreshToken", revokeRefreshTokenQuery)
	defer func() { end(err) }()

	if _, err = r.db.Exec(ctx, revokeRefreshTokenQuery, time.Now().UTC(), tokenHash); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func (r *RefreshTokenRepository) RevokeByUserID(ctx context.Context, userID string) (err error) {
	ctx, end := database.TraceQuery(ctx, "RevokeUserRefreshTokens", revokeUserTokensQuery)
	defer func() { end(err) }()

	if _, err = r.db.Exec(ctx, revokeUserTokensQuery, time.Now().UTC(), userID); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	return nil
}
