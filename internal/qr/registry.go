// Package qr validates and consumes QR-initiated payment tokens. Tokens are
// issued by the merchant-facing collaborator; this registry only resolves and
// consumes them. Consumption is atomic per token id: the usable check and the
// usage increment happen as one operation in the backing store.
package qr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fastpay-sz/payment-orchestrator/internal/model"
	"github.com/fastpay-sz/payment-orchestrator/internal/monitoring"
	"github.com/fastpay-sz/payment-orchestrator/internal/repository"
)

var (
	ErrNotFound         = errors.New("qr token not found")
	ErrExpired          = errors.New("qr token expired")
	ErrUsageExhausted   = errors.New("qr token usage limit reached")
	ErrInactive         = errors.New("qr token inactive")
	ErrMerchantMismatch = errors.New("qr token belongs to a different merchant")
	ErrAmountMismatch   = errors.New("presented amount differs from the token's fixed amount")
)

// TokenStore is the storage the registry runs on. Get reports a missing token
// with repository.ErrNotFound; any other error is an infrastructure failure.
// ConsumeIfUsable must be atomic with respect to other consumers of the same
// token id: it increments the usage count and reports true only if the token
// was active, unexpired and under its usage limit at the moment of the
// increment.
type TokenStore interface {
	Get(ctx context.Context, tokenID string) (*model.QRToken, error)
	ConsumeIfUsable(ctx context.Context, tokenID string, now time.Time) (bool, error)
}

// Resolution is what a successfully consumed token contributes to a payment.
type Resolution struct {
	Amount      decimal.Decimal
	Description string
}

type Registry struct {
	store TokenStore
	now   func() time.Time
}

func NewRegistry(store TokenStore) *Registry {
	return &Registry{store: store, now: time.Now}
}

// ValidateAndConsume resolves the token, validates it against the presenting
// merchant and amount, and consumes one usage. presented may be nil when the
// token carries a fixed amount. There are no retries here; the caller decides
// what to do with a failure.
func (r *Registry) ValidateAndConsume(ctx context.Context, tokenID string, presented *decimal.Decimal, merchantID string) (*Resolution, error) {
	token, err := r.store.Get(ctx, tokenID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			monitoring.QRConsume("not_found")
			return nil, ErrNotFound
		}
		// A store failure is not a verdict on the token; it must surface
		// as an infrastructure error, not a rejection.
		return nil, fmt.Errorf("load token %s: %w", tokenID, err)
	}

	if token.MerchantID != merchantID {
		monitoring.QRConsume("merchant_mismatch")
		return nil, ErrMerchantMismatch
	}

	amount, err := r.resolveAmount(token, presented)
	if err != nil {
		monitoring.QRConsume("amount_mismatch")
		return nil, err
	}

	consumed, err := r.store.ConsumeIfUsable(ctx, tokenID, r.now())
	if err != nil {
		return nil, fmt.Errorf("consume token %s: %w", tokenID, err)
	}
	if !consumed {
		reason := r.classifyUnusable(ctx, tokenID)
		monitoring.QRConsume(reasonLabel(reason))
		return nil, reason
	}

	monitoring.QRConsume("consumed")
	return &Resolution{Amount: amount, Description: token.Description}, nil
}

func (r *Registry) resolveAmount(token *model.QRToken, presented *decimal.Decimal) (decimal.Decimal, error) {
	if token.Amount == nil {
		// Dynamic token: the customer-entered amount is required.
		if presented == nil || !presented.IsPositive() {
			return decimal.Zero, ErrAmountMismatch
		}
		return *presented, nil
	}
	if presented != nil && !presented.Equal(*token.Amount) {
		return decimal.Zero, ErrAmountMismatch
	}
	return *token.Amount, nil
}

// classifyUnusable re-reads the token to report why the atomic consume found
// it unusable. The race where the state changes between consume and re-read
// only affects the reported reason, never the consume outcome.
func (r *Registry) classifyUnusable(ctx context.Context, tokenID string) error {
	token, err := r.store.Get(ctx, tokenID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("load token %s: %w", tokenID, err)
	}
	switch {
	case token.ExpiresAt != nil && r.now().After(*token.ExpiresAt):
		return ErrExpired
	case token.UsageCount >= token.UsageLimit:
		return ErrUsageExhausted
	case !token.Active:
		return ErrInactive
	default:
		return ErrUsageExhausted
	}
}

func reasonLabel(err error) string {
	switch {
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrUsageExhausted):
		return "usage_exhausted"
	case errors.Is(err, ErrInactive):
		return "inactive"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "store_error"
	}
}
