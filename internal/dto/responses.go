package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/fastpay-sz/payment-orchestrator/internal/model"
)

type InitiatePaymentResponse struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Message       string `json:"message"`
}

type LedgerEntryView struct {
	Status    string    `json:"status"`
	Step      string    `json:"step"`
	Rail      string    `json:"rail,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type PaymentStatusResponse struct {
	TransactionID  string            `json:"transaction_id"`
	MerchantID     string            `json:"merchant_id"`
	CustomerID     string            `json:"customer_id,omitempty"`
	Amount         decimal.Decimal   `json:"amount"`
	Currency       string            `json:"currency"`
	Method         string            `json:"payment_method"`
	Description    string            `json:"description,omitempty"`
	RiskScore      int               `json:"risk_score"`
	RiskDecision   string            `json:"risk_decision,omitempty"`
	RiskFactors    []string          `json:"risk_factors,omitempty"`
	Status         string            `json:"status"`
	Rail           string            `json:"rail,omitempty"`
	RailReference  string            `json:"rail_reference,omitempty"`
	FeeCharged     decimal.Decimal   `json:"fee_charged"`
	SettledAt      *time.Time        `json:"settled_at,omitempty"`
	FailureReason  string            `json:"failure_reason,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	TransactionLog []LedgerEntryView `json:"transaction_log"`
}

type LedgerListResponse struct {
	Count   int               `json:"count"`
	Entries []LedgerEntryView `json:"entries"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// NewPaymentStatusResponse maps a transaction and its ledger history into
// the API view.
func NewPaymentStatusResponse(txn *model.Transaction, entries []*model.LedgerEntry) PaymentStatusResponse {
	resp := PaymentStatusResponse{
		TransactionID: txn.ID,
		MerchantID:    txn.MerchantID,
		CustomerID:    txn.CustomerID,
		Amount:        txn.Amount,
		Currency:      txn.Currency,
		Method:        string(txn.Method),
		Description:   txn.Description,
		RiskScore:     txn.RiskScore,
		RiskDecision:  string(txn.RiskDecision),
		RiskFactors:   txn.RiskFactors,
		Status:        string(txn.Status),
		Rail:          txn.Rail,
		RailReference: txn.RailReference,
		FeeCharged:    txn.FeeCharged,
		SettledAt:     txn.SettledAt,
		FailureReason: txn.FailureReason,
		CreatedAt:     txn.CreatedAt,
		UpdatedAt:     txn.UpdatedAt,
	}
	resp.TransactionLog = NewLedgerEntryViews(entries)
	return resp
}

func NewLedgerEntryViews(entries []*model.LedgerEntry) []LedgerEntryView {
	views := make([]LedgerEntryView, len(entries))
	for i, e := range entries {
		views[i] = LedgerEntryView{
			Status:    string(e.Status),
			Step:      e.Step,
			Rail:      e.Rail,
			Reason:    e.Reason,
			Timestamp: e.CreatedAt,
		}
	}
	return views
}
