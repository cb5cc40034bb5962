package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod is how the payment was originated.
type PaymentMethod string

const (
	MethodDirect PaymentMethod = "direct"
	MethodQRCode PaymentMethod = "qr_code"
)

// RiskDecision is the categorical outcome of risk scoring.
type RiskDecision string

const (
	DecisionAllow     RiskDecision = "allow"
	DecisionChallenge RiskDecision = "challenge"
	DecisionBlock     RiskDecision = "block"
)

// Transaction is the payment record owned by the orchestrator. Amount and
// fees are decimals end to end; risk score and rail are written at most once.
type Transaction struct {
	ID            string          `json:"id"`
	MerchantID    string          `json:"merchant_id"`
	CustomerID    string          `json:"customer_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Method        PaymentMethod   `json:"payment_method"`
	QRTokenID     string          `json:"qr_token_id,omitempty"`
	Description   string          `json:"description,omitempty"`
	RiskScore     int             `json:"risk_score"`
	RiskDecision  RiskDecision    `json:"risk_decision,omitempty"`
	RiskFactors   []string        `json:"risk_factors,omitempty"`
	Status        Status          `json:"status"`
	Rail          string          `json:"rail,omitempty"`
	RailReference string          `json:"rail_reference,omitempty"`
	FeeCharged    decimal.Decimal `json:"fee_charged"`
	SettledAt     *time.Time      `json:"settled_at,omitempty"`
	FailureReason string          `json:"failure_reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// QRToken is a merchant-issued payment token. A nil Amount means the customer
// enters the amount at presentation time. Tokens are deactivated, never deleted.
type QRToken struct {
	ID          string           `json:"id"`
	MerchantID  string           `json:"merchant_id"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Description string           `json:"description,omitempty"`
	UsageLimit  int              `json:"usage_limit"`
	UsageCount  int              `json:"usage_count"`
	ExpiresAt   *time.Time       `json:"expires_at,omitempty"`
	Active      bool             `json:"active"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Merchant is the slice of merchant identity this core needs: whether the
// merchant may transact, and its negotiated fee rate.
type Merchant struct {
	ID        string          `json:"merchant_id"`
	Name      string          `json:"name"`
	Active    bool            `json:"active"`
	FeeRate   decimal.Decimal `json:"fee_rate"`
	CreatedAt time.Time       `json:"created_at"`
}

// LedgerEntry is one append-only record of a transaction event. The ledger is
// the source of truth for a transaction's history.
type LedgerEntry struct {
	ID            string    `json:"id"`
	TransactionID string    `json:"transaction_id"`
	Status        Status    `json:"status"`
	Step          string    `json:"step"`
	Rail          string    `json:"rail,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// LedgerFilter narrows reporting reads over the ledger.
type LedgerFilter struct {
	From   *time.Time
	To     *time.Time
	Status Status
	Rail   string
}

// RiskAssessment is the value object produced by the scorer and embedded
// into the transaction record. It is never persisted on its own.
type RiskAssessment struct {
	Score    int          `json:"score"`
	Factors  []string     `json:"factors"`
	Decision RiskDecision `json:"decision"`
}

// AnalyticsSummary aggregates ledger/transaction data for reporting reads.
type AnalyticsSummary struct {
	TotalPayments   int             `json:"total_payments"`
	SettledPayments int             `json:"settled_payments"`
	SettledVolume   decimal.Decimal `json:"settled_volume"`
	ByStatus        map[string]int  `json:"by_status"`
	ByRail          map[string]int  `json:"by_rail"`
	RiskBands       map[string]int  `json:"risk_bands"`
}

// Accumulate folds one transaction into the summary. Risk bands mirror the
// scoring decision the transaction was given, so they always agree with the
// watermarks that were configured when it was scored. Transactions that never
// reached scoring carry no band.
func (s *AnalyticsSummary) Accumulate(status Status, rail string, decision RiskDecision, amount decimal.Decimal) {
	s.TotalPayments++
	s.ByStatus[string(status)]++
	if rail != "" {
		s.ByRail[rail]++
	}
	switch decision {
	case DecisionAllow:
		s.RiskBands["low"]++
	case DecisionChallenge:
		s.RiskBands["medium"]++
	case DecisionBlock:
		s.RiskBands["high"]++
	}
	if status == StatusSettled {
		s.SettledPayments++
		s.SettledVolume = s.SettledVolume.Add(amount)
	}
}
