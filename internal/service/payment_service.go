package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/fastpay-sz/payment-orchestrator/internal/model"
	"github.com/fastpay-sz/payment-orchestrator/internal/orchestrator"
	"github.com/fastpay-sz/payment-orchestrator/internal/qr"
)

// MerchantResolver is the read surface of the external merchant service.
type MerchantResolver interface {
	Resolve(ctx context.Context, merchantID string) (*model.Merchant, error)
}

// LedgerReader is the reporting read surface over the ledger.
type LedgerReader interface {
	ByTransaction(ctx context.Context, txnID string) ([]*model.LedgerEntry, error)
	List(ctx context.Context, filter model.LedgerFilter) ([]*model.LedgerEntry, error)
}

// Reporter aggregates transactions for the analytics endpoint.
type Reporter interface {
	Summary(ctx context.Context) (*model.AnalyticsSummary, error)
}

// InputError rejects a request before any transaction record exists.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// InitiateRequest is a validated payment initiation. For QR payments Amount
// is the customer-presented amount and may be zero when the token fixes it.
type InitiateRequest struct {
	MerchantID string
	CustomerID string
	Amount     decimal.Decimal
	Currency   string
	Method     model.PaymentMethod
	QRTokenID  string
}

type PaymentService struct {
	orch      *orchestrator.Orchestrator
	txns      orchestrator.TransactionStore
	ledger    LedgerReader
	merchants MerchantResolver
	registry  *qr.Registry
	reports   Reporter

	supportedCurrencies []string

	// spawn runs the pipeline after acceptance. Production uses a goroutine;
	// tests may run it inline.
	spawn func(func())
}

func NewPaymentService(orch *orchestrator.Orchestrator, txns orchestrator.TransactionStore, ledger LedgerReader, merchants MerchantResolver, registry *qr.Registry, reports Reporter, supportedCurrencies []string) *PaymentService {
	return &PaymentService{
		orch:                orch,
		txns:                txns,
		ledger:              ledger,
		merchants:           merchants,
		registry:            registry,
		reports:             reports,
		supportedCurrencies: supportedCurrencies,
		spawn:               func(fn func()) { go fn() },
	}
}

// Initiate validates the request, consumes the QR token when present, and
// accepts the transaction. The pipeline runs on a context detached from the
// caller's: a client disconnect must not abandon an in-flight settlement.
func (s *PaymentService) Initiate(ctx context.Context, req *InitiateRequest) (*model.Transaction, error) {
	if err := s.validate(ctx, req); err != nil {
		return nil, err
	}

	amount := req.Amount
	description := ""
	if req.Method == model.MethodQRCode {
		var presented *decimal.Decimal
		if req.Amount.IsPositive() {
			presented = &req.Amount
		}
		resolution, err := s.registry.ValidateAndConsume(ctx, req.QRTokenID, presented, req.MerchantID)
		if err != nil {
			return nil, err
		}
		amount = resolution.Amount
		description = resolution.Description
	}

	if !amount.IsPositive() {
		return nil, &InputError{Field: "amount", Message: "amount must be positive"}
	}

	txn := &model.Transaction{
		ID:          uuid.NewString(),
		MerchantID:  req.MerchantID,
		CustomerID:  req.CustomerID,
		Amount:      amount,
		Currency:    req.Currency,
		Method:      req.Method,
		QRTokenID:   req.QRTokenID,
		Description: description,
		FeeCharged:  decimal.Zero,
	}

	if err := s.orch.Accept(ctx, txn); err != nil {
		return nil, err
	}

	pipeline := *txn
	detached := context.WithoutCancel(ctx)
	s.spawn(func() {
		if err := s.orch.Process(detached, &pipeline); err != nil {
			log.Error().Err(err).Str("txn_id", pipeline.ID).Msg("payment pipeline aborted")
		}
	})

	return txn, nil
}

func (s *PaymentService) validate(ctx context.Context, req *InitiateRequest) error {
	switch req.Method {
	case model.MethodDirect:
		if !req.Amount.IsPositive() {
			return &InputError{Field: "amount", Message: "amount must be positive"}
		}
	case model.MethodQRCode:
		if req.QRTokenID == "" {
			return &InputError{Field: "qr_token_id", Message: "required for qr_code payments"}
		}
	default:
		return &InputError{Field: "payment_method", Message: "must be direct or qr_code"}
	}

	if !s.currencySupported(req.Currency) {
		return &InputError{Field: "currency", Message: fmt.Sprintf("unsupported currency %q", req.Currency)}
	}

	merchant, err := s.merchants.Resolve(ctx, req.MerchantID)
	if err != nil {
		return &InputError{Field: "merchant_id", Message: fmt.Sprintf("unknown merchant %q", req.MerchantID)}
	}
	if !merchant.Active {
		return &InputError{Field: "merchant_id", Message: fmt.Sprintf("merchant %q is inactive", req.MerchantID)}
	}
	return nil
}

func (s *PaymentService) currencySupported(currency string) bool {
	for _, c := range s.supportedCurrencies {
		if c == currency {
			return true
		}
	}
	return false
}

// GetPayment returns the transaction and its ordered ledger history. Repeated
// calls without intervening writes return the same view.
func (s *PaymentService) GetPayment(ctx context.Context, id string) (*model.Transaction, []*model.LedgerEntry, error) {
	txn, err := s.txns.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	entries, err := s.ledger.ByTransaction(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("load ledger for %s: %w", id, err)
	}
	return txn, entries, nil
}

func (s *PaymentService) ListLedger(ctx context.Context, filter model.LedgerFilter) ([]*model.LedgerEntry, error) {
	return s.ledger.List(ctx, filter)
}

func (s *PaymentService) Summary(ctx context.Context) (*model.AnalyticsSummary, error) {
	return s.reports.Summary(ctx)
}

// IsQRRejection reports whether err is one of the registry's token failures.
func IsQRRejection(err error) bool {
	return errors.Is(err, qr.ErrNotFound) ||
		errors.Is(err, qr.ErrExpired) ||
		errors.Is(err, qr.ErrUsageExhausted) ||
		errors.Is(err, qr.ErrInactive) ||
		errors.Is(err, qr.ErrMerchantMismatch) ||
		errors.Is(err, qr.ErrAmountMismatch)
}
