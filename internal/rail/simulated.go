package rail

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// simulated is the shared core of the demo rail adapters. It settles after a
// short simulated network delay, charges the configured fee rate, and
// de-duplicates by transaction id so a retried settle returns the original
// result instead of charging twice. Reject and timeout injection rates make
// failure paths reachable without a real backend.
type simulated struct {
	mu        sync.Mutex
	desc      Descriptor
	refPrefix string
	latency   time.Duration

	rejectRate  float64
	timeoutRate float64
	rng         *rand.Rand

	results  map[string]*Result
	timedOut map[string]bool

	now func() time.Time
}

func newSimulated(desc Descriptor, refPrefix string, latency time.Duration, rejectRate, timeoutRate float64) simulated {
	return simulated{
		desc:        desc,
		refPrefix:   refPrefix,
		latency:     latency,
		rejectRate:  rejectRate,
		timeoutRate: timeoutRate,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		results:     make(map[string]*Result),
		timedOut:    make(map[string]bool),
		now:         time.Now,
	}
}

func (s *simulated) Describe() Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.desc
}

func (s *simulated) SetHealth(h Health) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.desc.Health = h
}

func (s *simulated) Settle(ctx context.Context, txnID string, amount decimal.Decimal, currency string, meta map[string]string) (*Result, error) {
	s.mu.Lock()
	if prev, ok := s.results[txnID]; ok {
		s.mu.Unlock()
		log.Debug().Str("rail", s.desc.ID).Str("txn_id", txnID).Msg("duplicate settle, returning original result")
		return prev, nil
	}
	if s.desc.Health == HealthUnavailable {
		s.mu.Unlock()
		return nil, ErrUnavailable
	}
	injectTimeout := s.rng.Float64() < s.timeoutRate && !s.timedOut[txnID]
	if injectTimeout {
		s.timedOut[txnID] = true
	}
	injectReject := !injectTimeout && s.rng.Float64() < s.rejectRate
	s.mu.Unlock()

	if injectTimeout {
		// First attempt for this id stalls past the caller's deadline;
		// a retry with the same id will settle.
		<-ctx.Done()
		return nil, ErrTimeout
	}

	select {
	case <-time.After(s.latency):
	case <-ctx.Done():
		return nil, ErrTimeout
	}

	if injectReject {
		return nil, &RejectedError{Code: "INSUFFICIENT_FUNDS", Reason: "declined by issuing bank"}
	}

	res := &Result{
		RailReference: s.refPrefix + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8]),
		SettledAt:     s.now(),
		FeeCharged:    amount.Mul(s.desc.FeeRate).Round(2),
	}

	s.mu.Lock()
	if prev, ok := s.results[txnID]; ok {
		res = prev
	} else {
		s.results[txnID] = res
	}
	s.mu.Unlock()

	return res, nil
}
