package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/fastpay-sz/payment-orchestrator/internal/model"
)

type TransactionRepository struct {
	pool *pgxpool.Pool
}

func NewTransactionRepository(pool *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{pool: pool}
}

func (r *TransactionRepository) Create(ctx context.Context, txn *model.Transaction) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO transactions (id, merchant_id, customer_id, amount, currency, payment_method, qr_token_id,
			description, risk_score, risk_decision, risk_factors, status, rail, rail_reference, fee_charged,
			settled_at, failure_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		txn.ID, txn.MerchantID, txn.CustomerID, txn.Amount, txn.Currency, txn.Method, txn.QRTokenID,
		txn.Description, txn.RiskScore, txn.RiskDecision, txn.RiskFactors, txn.Status, txn.Rail,
		txn.RailReference, txn.FeeCharged, txn.SettledAt, txn.FailureReason, txn.CreatedAt, txn.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (r *TransactionRepository) Get(ctx context.Context, id string) (*model.Transaction, error) {
	txn := &model.Transaction{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, merchant_id, COALESCE(customer_id, ''), amount, currency, payment_method,
			COALESCE(qr_token_id, ''), COALESCE(description, ''), risk_score, COALESCE(risk_decision, ''),
			risk_factors, status, COALESCE(rail, ''), COALESCE(rail_reference, ''), fee_charged, settled_at,
			COALESCE(failure_reason, ''), created_at, updated_at
		FROM transactions WHERE id = $1`, id).
		Scan(&txn.ID, &txn.MerchantID, &txn.CustomerID, &txn.Amount, &txn.Currency, &txn.Method,
			&txn.QRTokenID, &txn.Description, &txn.RiskScore, &txn.RiskDecision, &txn.RiskFactors,
			&txn.Status, &txn.Rail, &txn.RailReference, &txn.FeeCharged, &txn.SettledAt,
			&txn.FailureReason, &txn.CreatedAt, &txn.UpdatedAt)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return txn, nil
}

func (r *TransactionRepository) Update(ctx context.Context, txn *model.Transaction) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE transactions SET risk_score = $2, risk_decision = $3, risk_factors = $4, status = $5,
			rail = $6, rail_reference = $7, fee_charged = $8, settled_at = $9, failure_reason = $10,
			updated_at = $11
		WHERE id = $1`,
		txn.ID, txn.RiskScore, txn.RiskDecision, txn.RiskFactors, txn.Status,
		txn.Rail, txn.RailReference, txn.FeeCharged, txn.SettledAt, txn.FailureReason, txn.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return nil
}

// DailyTotal sums the amounts a customer originated at a merchant in the 24
// hours before asOf. It backs the risk scorer's velocity check.
func (r *TransactionRepository) DailyTotal(ctx context.Context, customerID, merchantID string, asOf time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM transactions
		WHERE customer_id = $1 AND merchant_id = $2 AND created_at >= $3 AND created_at < $4
			AND status <> 'blocked'`,
		customerID, merchantID, asOf.Add(-24*time.Hour), asOf).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("daily total: %w", err)
	}
	return total, nil
}

// Summary aggregates the transaction table for the reporting endpoint.
func (r *TransactionRepository) Summary(ctx context.Context) (*model.AnalyticsSummary, error) {
	summary := &model.AnalyticsSummary{
		SettledVolume: decimal.Zero,
		ByStatus:      map[string]int{},
		ByRail:        map[string]int{},
		RiskBands:     map[string]int{},
	}

	rows, err := r.pool.Query(ctx,
		`SELECT status, COALESCE(rail, ''), COALESCE(risk_decision, ''), amount FROM transactions`)
	if err != nil {
		return nil, fmt.Errorf("summary query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status   string
			railID   string
			decision string
			amount   decimal.Decimal
		)
		if err := rows.Scan(&status, &railID, &decision, &amount); err != nil {
			return nil, fmt.Errorf("summary scan: %w", err)
		}
		summary.Accumulate(model.Status(status), railID, model.RiskDecision(decision), amount)
	}
	return summary, rows.Err()
}
