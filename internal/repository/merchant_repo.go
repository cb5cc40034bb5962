package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastpay-sz/payment-orchestrator/internal/model"
)

// MerchantRepository reads the merchant records this core needs to gate
// payments. Merchant management itself lives in another service.
type MerchantRepository struct {
	pool *pgxpool.Pool
}

func NewMerchantRepository(pool *pgxpool.Pool) *MerchantRepository {
	return &MerchantRepository{pool: pool}
}

func (r *MerchantRepository) Resolve(ctx context.Context, merchantID string) (*model.Merchant, error) {
	m := &model.Merchant{}
	err := r.pool.QueryRow(ctx,
		`SELECT merchant_id, name, active, fee_rate, created_at
		FROM merchants WHERE merchant_id = $1`, merchantID).
		Scan(&m.ID, &m.Name, &m.Active, &m.FeeRate, &m.CreatedAt)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return m, nil
}
