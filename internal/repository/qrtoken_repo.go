package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastpay-sz/payment-orchestrator/internal/model"
)

type QRTokenRepository struct {
	pool *pgxpool.Pool
}

func NewQRTokenRepository(pool *pgxpool.Pool) *QRTokenRepository {
	return &QRTokenRepository{pool: pool}
}

func (r *QRTokenRepository) Insert(ctx context.Context, token *model.QRToken) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO qr_tokens (id, merchant_id, amount, description, usage_limit, usage_count, expires_at, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		token.ID, token.MerchantID, token.Amount, token.Description, token.UsageLimit,
		token.UsageCount, token.ExpiresAt, token.Active, token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert qr token: %w", err)
	}
	return nil
}

func (r *QRTokenRepository) Get(ctx context.Context, tokenID string) (*model.QRToken, error) {
	token := &model.QRToken{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, merchant_id, amount, COALESCE(description, ''), usage_limit, usage_count, expires_at, active, created_at
		FROM qr_tokens WHERE id = $1`, tokenID).
		Scan(&token.ID, &token.MerchantID, &token.Amount, &token.Description, &token.UsageLimit,
			&token.UsageCount, &token.ExpiresAt, &token.Active, &token.CreatedAt)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return token, nil
}

// ConsumeIfUsable increments the usage count only while the token is active,
// unexpired and under its limit. The conditional UPDATE is the atomicity
// boundary: concurrent consumers of the same token race on the row, and the
// database admits exactly as many increments as the limit allows. A token
// that reaches its limit is deactivated in the same statement.
func (r *QRTokenRepository) ConsumeIfUsable(ctx context.Context, tokenID string, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE qr_tokens
		SET usage_count = usage_count + 1,
			active = (usage_count + 1 < usage_limit)
		WHERE id = $1
			AND active
			AND usage_count < usage_limit
			AND (expires_at IS NULL OR expires_at > $2)`,
		tokenID, now,
	)
	if err != nil {
		return false, fmt.Errorf("consume qr token: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
