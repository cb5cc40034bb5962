package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastpay-sz/payment-orchestrator/internal/config"
	"github.com/fastpay-sz/payment-orchestrator/internal/model"
	"github.com/fastpay-sz/payment-orchestrator/internal/rail"
	"github.com/fastpay-sz/payment-orchestrator/internal/repository"
	"github.com/fastpay-sz/payment-orchestrator/internal/risk"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// fakeAdapter replays a scripted sequence of outcomes, one per Settle call.
type fakeAdapter struct {
	desc   rail.Descriptor
	script []error
	calls  int
}

func newFakeAdapter(desc rail.Descriptor, script ...error) *fakeAdapter {
	return &fakeAdapter{desc: desc, script: script}
}

func (f *fakeAdapter) Describe() rail.Descriptor { return f.desc }

func (f *fakeAdapter) Settle(ctx context.Context, txnID string, amount decimal.Decimal, currency string, meta map[string]string) (*rail.Result, error) {
	idx := f.calls
	f.calls++
	if idx < len(f.script) && f.script[idx] != nil {
		return nil, f.script[idx]
	}
	return &rail.Result{
		RailReference: "REF_" + txnID,
		SettledAt:     time.Now(),
		FeeCharged:    amount.Mul(f.desc.FeeRate).Round(2),
	}, nil
}

func domesticDesc() rail.Descriptor {
	return rail.Descriptor{
		ID:         "eswatini_switch",
		Currencies: []string{"SZL"},
		MaxAmount:  d("10000"),
		FeeRate:    d("0.015"),
		SameDay:    true,
		Health:     rail.HealthHealthy,
	}
}

func internationalDesc() rail.Descriptor {
	return rail.Descriptor{
		ID:           "visa_direct",
		Currencies:   []string{"SZL", "USD", "EUR"},
		MaxAmount:    d("100000"),
		FeeRate:      d("0.025"),
		Conservative: true,
		Health:       rail.HealthHealthy,
	}
}

type fixture struct {
	orch   *Orchestrator
	txns   *repository.MemoryTransactionStore
	ledger *repository.MemoryLedgerStore
}

func newFixture(t *testing.T, adapters ...rail.Adapter) *fixture {
	t.Helper()
	txns := repository.NewMemoryTransactionStore()
	ledger := repository.NewMemoryLedgerStore()
	scorer := risk.NewScorer(config.RiskConfig{
		LowWatermark:        30,
		HighWatermark:       70,
		HighAmountThreshold: d("5000"),
		MaxDailyAmount:      d("50000"),
		QRBaselineWeight:    10,
		SupportedCurrencies: []string{"SZL", "USD", "EUR"},
	}, txns)
	selector := rail.NewSelector(true)
	orch := New(scorer, selector, adapters, txns, ledger, 200*time.Millisecond, 1)
	return &fixture{orch: orch, txns: txns, ledger: ledger}
}

func newTxn(amount, currency string) *model.Transaction {
	return &model.Transaction{
		ID:         uuid.NewString(),
		MerchantID: "MERCH_KHANYA_001",
		CustomerID: "CUST_001",
		Amount:     d(amount),
		Currency:   currency,
		Method:     model.MethodDirect,
		FeeCharged: decimal.Zero,
	}
}

func (f *fixture) run(t *testing.T, txn *model.Transaction) *model.Transaction {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.orch.Accept(ctx, txn))
	require.NoError(t, f.orch.Process(ctx, txn))
	got, err := f.txns.Get(ctx, txn.ID)
	require.NoError(t, err)
	return got
}

func (f *fixture) attempts(t *testing.T, txnID string) []*model.LedgerEntry {
	t.Helper()
	entries, err := f.ledger.ByTransaction(context.Background(), txnID)
	require.NoError(t, err)
	var out []*model.LedgerEntry
	for _, e := range entries {
		if e.Step == "settlement_attempt" {
			out = append(out, e)
		}
	}
	return out
}

func TestOrchestratorProcess(t *testing.T) {
	t.Run("happy: low-risk SZL payment settles on the domestic rail", func(t *testing.T) {
		f := newFixture(t, newFakeAdapter(domesticDesc()), newFakeAdapter(internationalDesc()))
		got := f.run(t, newTxn("1000", "SZL"))

		assert.Equal(t, model.StatusSettled, got.Status)
		assert.Equal(t, model.DecisionAllow, got.RiskDecision)
		assert.Equal(t, "eswatini_switch", got.Rail)
		assert.True(t, got.FeeCharged.Equal(d("15.00")))
		assert.NotNil(t, got.SettledAt)
		assert.Empty(t, got.FailureReason)
	})

	t.Run("happy: blocked payment never reaches a rail", func(t *testing.T) {
		domestic := newFakeAdapter(domesticDesc())
		international := newFakeAdapter(internationalDesc())
		f := newFixture(t, domestic, international)
		got := f.run(t, newTxn("50000", "SZL"))

		assert.Equal(t, model.StatusBlocked, got.Status)
		assert.Equal(t, model.DecisionBlock, got.RiskDecision)
		assert.Empty(t, got.Rail)
		assert.NotEmpty(t, got.FailureReason)
		assert.Zero(t, domestic.calls)
		assert.Zero(t, international.calls)
	})

	t.Run("happy: no eligible rail is a routing failure", func(t *testing.T) {
		f := newFixture(t, newFakeAdapter(domesticDesc()))
		got := f.run(t, newTxn("1000", "USD"))

		assert.Equal(t, model.StatusRoutingFailed, got.Status)
		assert.Contains(t, got.FailureReason, "no eligible rail")
	})

	t.Run("happy: challenged payment routes to the conservative rail", func(t *testing.T) {
		f := newFixture(t, newFakeAdapter(domesticDesc()), newFakeAdapter(internationalDesc()))
		got := f.run(t, newTxn("6000", "SZL"))

		assert.Equal(t, model.DecisionChallenge, got.RiskDecision)
		assert.Equal(t, model.StatusSettled, got.Status)
		assert.Equal(t, "visa_direct", got.Rail)
	})

	t.Run("happy: one timeout then success settles with two attempt records", func(t *testing.T) {
		adapter := newFakeAdapter(domesticDesc(), rail.ErrTimeout, nil)
		f := newFixture(t, adapter)
		txn := newTxn("1000", "SZL")
		got := f.run(t, txn)

		assert.Equal(t, model.StatusSettled, got.Status)
		assert.Equal(t, 2, adapter.calls)
		attempts := f.attempts(t, txn.ID)
		require.Len(t, attempts, 2)
		assert.Contains(t, attempts[0].Reason, "timeout")
		assert.Contains(t, attempts[1].Reason, "settled")
	})

	t.Run("bad: two timeouts fail settlement", func(t *testing.T) {
		adapter := newFakeAdapter(domesticDesc(), rail.ErrTimeout, rail.ErrTimeout)
		f := newFixture(t, adapter)
		txn := newTxn("1000", "SZL")
		got := f.run(t, txn)

		assert.Equal(t, model.StatusSettlementFailed, got.Status)
		assert.Equal(t, 2, adapter.calls)
		assert.Contains(t, got.FailureReason, "timed out")
	})

	t.Run("bad: rejection is terminal and never retried", func(t *testing.T) {
		adapter := newFakeAdapter(domesticDesc(), &rail.RejectedError{Code: "INSUFFICIENT_FUNDS", Reason: "declined by issuing bank"})
		f := newFixture(t, adapter)
		txn := newTxn("1000", "SZL")
		got := f.run(t, txn)

		assert.Equal(t, model.StatusSettlementFailed, got.Status)
		assert.Equal(t, 1, adapter.calls, "a rejection signals a decision, not a transient fault")
		assert.Contains(t, got.FailureReason, "INSUFFICIENT_FUNDS")
	})

	t.Run("bad: unavailable rail fails settlement without retry", func(t *testing.T) {
		adapter := newFakeAdapter(domesticDesc(), rail.ErrUnavailable)
		f := newFixture(t, adapter)
		got := f.run(t, newTxn("1000", "SZL"))

		assert.Equal(t, model.StatusSettlementFailed, got.Status)
		assert.Equal(t, 1, adapter.calls)
	})

	t.Run("edge: terminal transactions cannot be reprocessed", func(t *testing.T) {
		f := newFixture(t, newFakeAdapter(domesticDesc()))
		txn := newTxn("1000", "SZL")
		got := f.run(t, txn)
		require.Equal(t, model.StatusSettled, got.Status)

		err := f.orch.Process(context.Background(), got)
		assert.Error(t, err)

		after, err2 := f.txns.Get(context.Background(), txn.ID)
		require.NoError(t, err2)
		assert.Equal(t, model.StatusSettled, after.Status)
	})

	t.Run("edge: every transition lands in the ledger", func(t *testing.T) {
		f := newFixture(t, newFakeAdapter(domesticDesc()))
		txn := newTxn("1000", "SZL")
		f.run(t, txn)

		entries, err := f.ledger.ByTransaction(context.Background(), txn.ID)
		require.NoError(t, err)

		var statuses []model.Status
		for _, e := range entries {
			if e.Step != "settlement_attempt" {
				statuses = append(statuses, e.Status)
			}
		}
		assert.Equal(t, []model.Status{
			model.StatusReceived,
			model.StatusRiskAssessed,
			model.StatusRouted,
			model.StatusSettling,
			model.StatusSettled,
		}, statuses)
	})
}
