package rail

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/fastpay-sz/payment-orchestrator/internal/model"
)

// ErrNoEligibleRail means every candidate was excluded by currency, amount
// or health. Routing it is the orchestrator's job; the selector just reports.
var ErrNoEligibleRail = errors.New("no eligible settlement rail")

// Selector picks a rail for a transaction. Selection is deterministic for
// identical inputs: eligibility filters first, then lowest fee, then faster
// settlement, then rail id ordering. When preferConservative is set,
// challenged transactions order rails declared conservative first.
type Selector struct {
	preferConservative bool
}

func NewSelector(preferConservative bool) *Selector {
	return &Selector{preferConservative: preferConservative}
}

func (s *Selector) Select(amount decimal.Decimal, currency string, decision model.RiskDecision, candidates []Descriptor) (string, error) {
	eligible := make([]Descriptor, 0, len(candidates))
	for _, d := range candidates {
		if !d.SupportsCurrency(currency) {
			continue
		}
		if d.MaxAmount.LessThan(amount) {
			continue
		}
		if d.Health == HealthUnavailable {
			continue
		}
		eligible = append(eligible, d)
	}
	if len(eligible) == 0 {
		return "", ErrNoEligibleRail
	}

	conservativeFirst := s.preferConservative && decision == model.DecisionChallenge
	sort.Slice(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if conservativeFirst && a.Conservative != b.Conservative {
			return a.Conservative
		}
		if !a.FeeRate.Equal(b.FeeRate) {
			return a.FeeRate.LessThan(b.FeeRate)
		}
		if a.SameDay != b.SameDay {
			return a.SameDay
		}
		return a.ID < b.ID
	})

	return eligible[0].ID, nil
}
