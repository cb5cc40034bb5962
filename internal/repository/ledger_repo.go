package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastpay-sz/payment-orchestrator/internal/model"
)

// LedgerRepository is the append-only event store for transactions. Nothing
// here updates or deletes rows.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

func (r *LedgerRepository) Append(ctx context.Context, entry *model.LedgerEntry) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO ledger_entries (id, transaction_id, status, step, rail, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.TransactionID, entry.Status, entry.Step, entry.Rail, entry.Reason, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

func (r *LedgerRepository) ByTransaction(ctx context.Context, txnID string) ([]*model.LedgerEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, transaction_id, status, step, COALESCE(rail, ''), COALESCE(reason, ''), created_at
		FROM ledger_entries WHERE transaction_id = $1 ORDER BY created_at, id`, txnID)
	if err != nil {
		return nil, fmt.Errorf("ledger by transaction: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

func (r *LedgerRepository) List(ctx context.Context, filter model.LedgerFilter) ([]*model.LedgerEntry, error) {
	query := `SELECT id, transaction_id, status, step, COALESCE(rail, ''), COALESCE(reason, ''), created_at
		FROM ledger_entries WHERE 1=1`
	args := []interface{}{}

	if filter.From != nil {
		args = append(args, *filter.From)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += fmt.Sprintf(" AND created_at < $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Rail != "" {
		args = append(args, filter.Rail)
		query += fmt.Sprintf(" AND rail = $%d", len(args))
	}
	query += " ORDER BY created_at, id"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

type entryRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanEntries(rows entryRows) ([]*model.LedgerEntry, error) {
	var entries []*model.LedgerEntry
	for rows.Next() {
		e := &model.LedgerEntry{}
		if err := rows.Scan(&e.ID, &e.TransactionID, &e.Status, &e.Step, &e.Rail, &e.Reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
