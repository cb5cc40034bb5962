// Package risk scores payment attributes against configured thresholds.
// Scoring is a pure function of its inputs: identical attributes and history
// always produce the identical assessment. It never returns an error --
// malformed input degrades to a conservative high score with a reason.
package risk

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fastpay-sz/payment-orchestrator/internal/config"
	"github.com/fastpay-sz/payment-orchestrator/internal/model"
)

// Score contributions per factor. The decision watermarks come from config;
// these weights are fixed relative to the 0-100 scale.
const (
	weightHighAmount      = 30
	weightDailyExceeded   = 40
	weightUnknownCurrency = 25
	weightHistoryUnknown  = 40
	maxScore              = 100
	conservativeScore     = 95
)

// HistoryLookup is the bounded time-windowed read dependency the scorer uses
// for velocity checks. DailyTotal returns the cumulative amount originated by
// the customer at the merchant in the 24 hours before asOf.
type HistoryLookup interface {
	DailyTotal(ctx context.Context, customerID, merchantID string, asOf time.Time) (decimal.Decimal, error)
}

// Attributes is the slice of a transaction the scorer weighs.
type Attributes struct {
	MerchantID string
	CustomerID string
	Amount     decimal.Decimal
	Currency   string
	Method     model.PaymentMethod
	At         time.Time
}

type Scorer struct {
	cfg     config.RiskConfig
	history HistoryLookup
}

func NewScorer(cfg config.RiskConfig, history HistoryLookup) *Scorer {
	return &Scorer{cfg: cfg, history: history}
}

// Score produces a risk assessment for the given attributes. The only side
// effect is the history read; a failed or missing lookup contributes the
// maximum velocity weight rather than failing the assessment.
func (s *Scorer) Score(ctx context.Context, attrs Attributes) model.RiskAssessment {
	if !attrs.Amount.IsPositive() || attrs.Currency == "" || attrs.MerchantID == "" {
		return model.RiskAssessment{
			Score:    conservativeScore,
			Factors:  []string{fmt.Sprintf("malformed scoring input: amount=%s currency=%q merchant=%q", attrs.Amount, attrs.Currency, attrs.MerchantID)},
			Decision: s.decide(conservativeScore),
		}
	}

	score := 0
	var factors []string

	if attrs.Amount.GreaterThan(s.cfg.HighAmountThreshold) {
		score += weightHighAmount
		factors = append(factors, fmt.Sprintf("high amount: %s %s", attrs.Amount, attrs.Currency))
	}

	if !s.currencySupported(attrs.Currency) {
		score += weightUnknownCurrency
		factors = append(factors, fmt.Sprintf("unsupported currency: %s", attrs.Currency))
	}

	if attrs.Method == model.MethodQRCode {
		score += s.cfg.QRBaselineWeight
		factors = append(factors, "qr-initiated payment baseline")
	}

	score, factors = s.applyVelocity(ctx, attrs, score, factors)

	if score > maxScore {
		score = maxScore
	}

	return model.RiskAssessment{Score: score, Factors: factors, Decision: s.decide(score)}
}

func (s *Scorer) applyVelocity(ctx context.Context, attrs Attributes, score int, factors []string) (int, []string) {
	if s.history == nil {
		return score + weightHistoryUnknown, append(factors, "history unavailable: no lookup configured")
	}
	prior, err := s.history.DailyTotal(ctx, attrs.CustomerID, attrs.MerchantID, attrs.At)
	if err != nil {
		return score + weightHistoryUnknown, append(factors, fmt.Sprintf("history unavailable: %v", err))
	}
	if prior.Add(attrs.Amount).GreaterThanOrEqual(s.cfg.MaxDailyAmount) {
		score += weightDailyExceeded
		factors = append(factors, fmt.Sprintf("daily amount limit reached: %s prior + %s", prior, attrs.Amount))
	}
	return score, factors
}

func (s *Scorer) currencySupported(currency string) bool {
	for _, c := range s.cfg.SupportedCurrencies {
		if c == currency {
			return true
		}
	}
	return false
}

func (s *Scorer) decide(score int) model.RiskDecision {
	switch {
	case score < s.cfg.LowWatermark:
		return model.DecisionAllow
	case score < s.cfg.HighWatermark:
		return model.DecisionChallenge
	default:
		return model.DecisionBlock
	}
}
