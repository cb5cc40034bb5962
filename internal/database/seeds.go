package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/fastpay-sz/payment-orchestrator/internal/model"
	"github.com/fastpay-sz/payment-orchestrator/internal/repository"
)

type seedMerchant struct {
	ID      string
	Name    string
	Active  bool
	FeeRate string
}

type seedToken struct {
	ID         string
	MerchantID string
	Amount     string // empty means dynamic, customer-entered
	Desc       string
	UsageLimit int
	TTL        time.Duration // zero means never expires
}

var seedMerchants = []seedMerchant{
	{ID: "MERCH_KHANYA_001", Name: "Khanya General Dealer", Active: true, FeeRate: "0.02"},
	{ID: "MERCH_SIBEBE_002", Name: "Sibebe Craft Market", Active: true, FeeRate: "0.02"},
	{ID: "MERCH_LUSITO_003", Name: "Lusito Hardware", Active: true, FeeRate: "0.018"},
	{ID: "MERCH_DORMANT_004", Name: "Closed Trading Store", Active: false, FeeRate: "0.02"},
}

var seedTokens = []seedToken{
	{ID: "QR_DEMO0001", MerchantID: "MERCH_KHANYA_001", Amount: "150.00", Desc: "Grocery bundle", UsageLimit: 100},
	{ID: "QR_DEMO0002", MerchantID: "MERCH_SIBEBE_002", Desc: "Market stall - customer enters amount", UsageLimit: 1000},
	{ID: "QR_DEMO0003", MerchantID: "MERCH_LUSITO_003", Amount: "750.00", Desc: "Cement bag x5", UsageLimit: 1, TTL: 24 * time.Hour},
}

// SeedData loads demo merchants and QR tokens. Inserts are idempotent so the
// seeder can run on every start.
func SeedData(ctx context.Context, pool *pgxpool.Pool) error {
	for _, m := range seedMerchants {
		_, err := pool.Exec(ctx,
			`INSERT INTO merchants (merchant_id, name, active, fee_rate, created_at)
			VALUES ($1, $2, $3, $4, now())
			ON CONFLICT (merchant_id) DO NOTHING`,
			m.ID, m.Name, m.Active, decimal.RequireFromString(m.FeeRate),
		)
		if err != nil {
			return fmt.Errorf("seed merchant %s: %w", m.ID, err)
		}
	}

	for _, t := range seedTokens {
		var amount *decimal.Decimal
		if t.Amount != "" {
			d := decimal.RequireFromString(t.Amount)
			amount = &d
		}
		var expiresAt *time.Time
		if t.TTL > 0 {
			e := time.Now().Add(t.TTL)
			expiresAt = &e
		}
		_, err := pool.Exec(ctx,
			`INSERT INTO qr_tokens (id, merchant_id, amount, description, usage_limit, usage_count, expires_at, active, created_at)
			VALUES ($1, $2, $3, $4, $5, 0, $6, true, now())
			ON CONFLICT (id) DO NOTHING`,
			t.ID, t.MerchantID, amount, t.Desc, t.UsageLimit, expiresAt,
		)
		if err != nil {
			return fmt.Errorf("seed qr token %s: %w", t.ID, err)
		}
	}

	log.Info().
		Int("merchants", len(seedMerchants)).
		Int("qr_tokens", len(seedTokens)).
		Msg("seed data loaded")
	return nil
}

// SeedMemory loads the same demo data into the in-memory stores.
func SeedMemory(ctx context.Context, merchants *repository.MemoryMerchantResolver, tokens *repository.MemoryTokenStore) error {
	now := time.Now()
	for _, m := range seedMerchants {
		merchants.Put(model.Merchant{
			ID:        m.ID,
			Name:      m.Name,
			Active:    m.Active,
			FeeRate:   decimal.RequireFromString(m.FeeRate),
			CreatedAt: now,
		})
	}
	for _, t := range seedTokens {
		var amount *decimal.Decimal
		if t.Amount != "" {
			d := decimal.RequireFromString(t.Amount)
			amount = &d
		}
		var expiresAt *time.Time
		if t.TTL > 0 {
			e := now.Add(t.TTL)
			expiresAt = &e
		}
		err := tokens.Insert(ctx, &model.QRToken{
			ID:          t.ID,
			MerchantID:  t.MerchantID,
			Amount:      amount,
			Description: t.Desc,
			UsageLimit:  t.UsageLimit,
			ExpiresAt:   expiresAt,
			Active:      true,
			CreatedAt:   now,
		})
		if err != nil {
			return fmt.Errorf("seed memory qr token %s: %w", t.ID, err)
		}
	}
	return nil
}
