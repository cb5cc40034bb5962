package dto

import "github.com/shopspring/decimal"

// InitiatePaymentRequest starts a payment. Amount is optional for qr_code
// payments whose token fixes the amount; everywhere else it must be positive
// (validated in the service so the error is typed, not a binding string).
type InitiatePaymentRequest struct {
	MerchantID string          `json:"merchant_id" binding:"required"`
	CustomerID string          `json:"customer_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Method     string          `json:"payment_method" binding:"required,oneof=direct qr_code"`
	QRTokenID  string          `json:"qr_token_id"`
}
