// Package orchestrator drives a payment transaction through its state
// machine: received -> risk_assessed -> routed -> settling -> settled, with
// blocked, routing_failed and settlement_failed as failure terminals. The
// orchestrator owns the transaction record and is the only writer of the
// ledger.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/fastpay-sz/payment-orchestrator/internal/model"
	"github.com/fastpay-sz/payment-orchestrator/internal/monitoring"
	"github.com/fastpay-sz/payment-orchestrator/internal/rail"
	"github.com/fastpay-sz/payment-orchestrator/internal/risk"
)

// TransactionStore persists transaction records. Reads must observe prior
// writes (the status endpoint depends on read-your-writes).
type TransactionStore interface {
	Create(ctx context.Context, txn *model.Transaction) error
	Get(ctx context.Context, id string) (*model.Transaction, error)
	Update(ctx context.Context, txn *model.Transaction) error
}

// LedgerStore appends transaction events. Entries are never updated.
type LedgerStore interface {
	Append(ctx context.Context, entry *model.LedgerEntry) error
}

type Orchestrator struct {
	scorer   *risk.Scorer
	selector *rail.Selector
	adapters map[string]rail.Adapter
	txns     TransactionStore
	ledger   LedgerStore

	railTimeout time.Duration
	railRetries int

	// flight serializes settlement per transaction id: a concurrent second
	// settle for the same id joins the first instead of reaching the rail.
	flight singleflight.Group
	now    func() time.Time
}

func New(scorer *risk.Scorer, selector *rail.Selector, adapters []rail.Adapter, txns TransactionStore, ledger LedgerStore, railTimeout time.Duration, railRetries int) *Orchestrator {
	byID := make(map[string]rail.Adapter, len(adapters))
	for _, a := range adapters {
		byID[a.Describe().ID] = a
	}
	return &Orchestrator{
		scorer:      scorer,
		selector:    selector,
		adapters:    byID,
		txns:        txns,
		ledger:      ledger,
		railTimeout: railTimeout,
		railRetries: railRetries,
		now:         time.Now,
	}
}

// Accept persists a freshly validated transaction in the received state and
// writes its first ledger entry. The caller then runs Process, typically on
// a detached context so a client disconnect cannot abandon a settlement.
func (o *Orchestrator) Accept(ctx context.Context, txn *model.Transaction) error {
	now := o.now()
	txn.Status = model.StatusReceived
	txn.CreatedAt = now
	txn.UpdatedAt = now
	if err := o.txns.Create(ctx, txn); err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return o.append(ctx, txn, "accepted", "payment request validated and accepted")
}

// Process drives the transaction from received to a terminal state. Every
// transition is appended to the ledger. Errors are persistence failures; the
// domain outcomes (blocked, routing_failed, settlement_failed) are states,
// not errors.
func (o *Orchestrator) Process(ctx context.Context, txn *model.Transaction) error {
	assessment := o.scorer.Score(ctx, risk.Attributes{
		MerchantID: txn.MerchantID,
		CustomerID: txn.CustomerID,
		Amount:     txn.Amount,
		Currency:   txn.Currency,
		Method:     txn.Method,
		At:         txn.CreatedAt,
	})
	txn.RiskScore = assessment.Score
	txn.RiskDecision = assessment.Decision
	txn.RiskFactors = assessment.Factors

	reason := fmt.Sprintf("score=%d decision=%s", assessment.Score, assessment.Decision)
	if len(assessment.Factors) > 0 {
		reason += " factors: " + strings.Join(assessment.Factors, "; ")
	}
	if err := o.transition(ctx, txn, model.StatusRiskAssessed, "risk_engine", reason); err != nil {
		return err
	}

	if assessment.Decision == model.DecisionBlock {
		return o.fail(ctx, txn, model.StatusBlocked, "risk_engine",
			"blocked by risk decision: "+strings.Join(assessment.Factors, "; "))
	}

	railID, err := o.selector.Select(txn.Amount, txn.Currency, assessment.Decision, o.descriptors())
	if err != nil {
		if errors.Is(err, rail.ErrNoEligibleRail) {
			return o.fail(ctx, txn, model.StatusRoutingFailed, "router",
				fmt.Sprintf("no eligible rail for %s %s", txn.Amount, txn.Currency))
		}
		return fmt.Errorf("select rail: %w", err)
	}
	txn.Rail = railID
	if err := o.transition(ctx, txn, model.StatusRouted, "router", "selected rail "+railID); err != nil {
		return err
	}

	if err := o.transition(ctx, txn, model.StatusSettling, "settlement", "settlement started"); err != nil {
		return err
	}

	result, settleErr := o.settle(ctx, txn)
	if settleErr != nil {
		return o.fail(ctx, txn, model.StatusSettlementFailed, "settlement", settleErr.Error())
	}

	txn.RailReference = result.RailReference
	txn.FeeCharged = result.FeeCharged
	settledAt := result.SettledAt
	txn.SettledAt = &settledAt
	if err := o.transition(ctx, txn, model.StatusSettled, "settlement",
		fmt.Sprintf("settled via %s ref=%s fee=%s", txn.Rail, result.RailReference, result.FeeCharged)); err != nil {
		return err
	}
	monitoring.PaymentFinished(string(model.StatusSettled))
	return nil
}

// settle runs the bounded-retry settlement for txn, serialized per
// transaction id. A RailTimeout is retried once with the same id so the
// adapter can de-duplicate; a second timeout, a rejection, or an unavailable
// rail are definitive.
func (o *Orchestrator) settle(ctx context.Context, txn *model.Transaction) (*rail.Result, error) {
	v, err, _ := o.flight.Do(txn.ID, func() (interface{}, error) {
		return o.settleOnce(ctx, txn)
	})
	if err != nil {
		return nil, err
	}
	return v.(*rail.Result), nil
}

func (o *Orchestrator) settleOnce(ctx context.Context, txn *model.Transaction) (*rail.Result, error) {
	adapter, ok := o.adapters[txn.Rail]
	if !ok {
		return nil, fmt.Errorf("rail %q not registered", txn.Rail)
	}

	attempts := 1 + o.railRetries
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, o.railTimeout)
		start := o.now()
		result, err := adapter.Settle(attemptCtx, txn.ID, txn.Amount, txn.Currency, map[string]string{
			"merchant_id": txn.MerchantID,
		})
		cancel()
		elapsed := o.now().Sub(start)

		switch {
		case err == nil:
			monitoring.SettlementAttempt(txn.Rail, "settled", elapsed)
			o.appendAttempt(ctx, txn, attempt, "settled")
			return result, nil
		case errors.Is(err, rail.ErrTimeout):
			monitoring.SettlementAttempt(txn.Rail, "timeout", elapsed)
			o.appendAttempt(ctx, txn, attempt, "timeout")
			lastErr = fmt.Errorf("settlement timed out (attempt %d/%d): %w", attempt, attempts, err)
		default:
			var rejected *rail.RejectedError
			if errors.As(err, &rejected) {
				monitoring.SettlementAttempt(txn.Rail, "rejected", elapsed)
				o.appendAttempt(ctx, txn, attempt, "rejected: "+rejected.Code)
				return nil, err
			}
			monitoring.SettlementAttempt(txn.Rail, "unavailable", elapsed)
			o.appendAttempt(ctx, txn, attempt, "unavailable")
			return nil, err
		}
	}
	return nil, lastErr
}

func (o *Orchestrator) descriptors() []rail.Descriptor {
	descs := make([]rail.Descriptor, 0, len(o.adapters))
	for _, a := range o.adapters {
		descs = append(descs, a.Describe())
	}
	return descs
}

func (o *Orchestrator) transition(ctx context.Context, txn *model.Transaction, to model.Status, step, reason string) error {
	if err := model.ValidateTransition(txn.Status, to); err != nil {
		return err
	}
	txn.Status = to
	txn.UpdatedAt = o.now()
	if err := o.txns.Update(ctx, txn); err != nil {
		return fmt.Errorf("update transaction %s: %w", txn.ID, err)
	}
	return o.append(ctx, txn, step, reason)
}

// fail moves txn to a failure terminal. Every non-settled terminal carries a
// human-readable reason.
func (o *Orchestrator) fail(ctx context.Context, txn *model.Transaction, to model.Status, step, reason string) error {
	txn.FailureReason = reason
	if err := o.transition(ctx, txn, to, step, reason); err != nil {
		return err
	}
	monitoring.PaymentFinished(string(to))
	return nil
}

func (o *Orchestrator) append(ctx context.Context, txn *model.Transaction, step, reason string) error {
	entry := &model.LedgerEntry{
		ID:            uuid.NewString(),
		TransactionID: txn.ID,
		Status:        txn.Status,
		Step:          step,
		Rail:          txn.Rail,
		Reason:        reason,
		CreatedAt:     o.now(),
	}
	if err := o.ledger.Append(ctx, entry); err != nil {
		return fmt.Errorf("append ledger entry for %s: %w", txn.ID, err)
	}
	return nil
}

// appendAttempt records one adapter invocation. Failures to write this entry
// are logged, not fatal: the settlement outcome itself still gets recorded.
func (o *Orchestrator) appendAttempt(ctx context.Context, txn *model.Transaction, attempt int, outcome string) {
	entry := &model.LedgerEntry{
		ID:            uuid.NewString(),
		TransactionID: txn.ID,
		Status:        txn.Status,
		Step:          "settlement_attempt",
		Rail:          txn.Rail,
		Reason:        fmt.Sprintf("attempt %d: %s", attempt, outcome),
		CreatedAt:     o.now(),
	}
	if err := o.ledger.Append(ctx, entry); err != nil {
		log.Error().Err(err).Str("txn_id", txn.ID).Msg("failed to record settlement attempt")
	}
}
