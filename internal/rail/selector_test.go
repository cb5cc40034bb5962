package rail

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastpay-sz/payment-orchestrator/internal/model"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func domestic() Descriptor {
	return Descriptor{
		ID:         "eswatini_switch",
		Currencies: []string{"SZL"},
		MaxAmount:  d("10000"),
		FeeRate:    d("0.015"),
		SameDay:    true,
		Health:     HealthHealthy,
	}
}

func international() Descriptor {
	return Descriptor{
		ID:           "visa_direct",
		Currencies:   []string{"SZL", "USD", "EUR"},
		MaxAmount:    d("100000"),
		FeeRate:      d("0.025"),
		Conservative: true,
		Health:       HealthHealthy,
	}
}

func TestSelector(t *testing.T) {
	t.Run("happy: cheapest eligible rail wins", func(t *testing.T) {
		s := NewSelector(false)
		got, err := s.Select(d("1000"), "SZL", model.DecisionAllow, []Descriptor{international(), domestic()})
		require.NoError(t, err)
		assert.Equal(t, "eswatini_switch", got)
	})

	t.Run("happy: amount over domestic max falls through to the card rail", func(t *testing.T) {
		s := NewSelector(false)
		got, err := s.Select(d("25000"), "SZL", model.DecisionAllow, []Descriptor{domestic(), international()})
		require.NoError(t, err)
		assert.Equal(t, "visa_direct", got)
	})

	t.Run("happy: currency filter excludes the domestic switch", func(t *testing.T) {
		s := NewSelector(false)
		got, err := s.Select(d("100"), "USD", model.DecisionAllow, []Descriptor{domestic(), international()})
		require.NoError(t, err)
		assert.Equal(t, "visa_direct", got)
	})

	t.Run("happy: unavailable rails are excluded", func(t *testing.T) {
		s := NewSelector(false)
		down := domestic()
		down.Health = HealthUnavailable
		got, err := s.Select(d("1000"), "SZL", model.DecisionAllow, []Descriptor{down, international()})
		require.NoError(t, err)
		assert.Equal(t, "visa_direct", got)
	})

	t.Run("happy: degraded rails remain eligible", func(t *testing.T) {
		s := NewSelector(false)
		shaky := domestic()
		shaky.Health = HealthDegraded
		got, err := s.Select(d("1000"), "SZL", model.DecisionAllow, []Descriptor{shaky, international()})
		require.NoError(t, err)
		assert.Equal(t, "eswatini_switch", got)
	})

	t.Run("happy: challenge prefers the conservative rail when configured", func(t *testing.T) {
		s := NewSelector(true)
		got, err := s.Select(d("1000"), "SZL", model.DecisionChallenge, []Descriptor{domestic(), international()})
		require.NoError(t, err)
		assert.Equal(t, "visa_direct", got)

		// allow decisions are unaffected
		got, err = s.Select(d("1000"), "SZL", model.DecisionAllow, []Descriptor{domestic(), international()})
		require.NoError(t, err)
		assert.Equal(t, "eswatini_switch", got)
	})

	t.Run("happy: challenge without the preference keeps fee ordering", func(t *testing.T) {
		s := NewSelector(false)
		got, err := s.Select(d("1000"), "SZL", model.DecisionChallenge, []Descriptor{domestic(), international()})
		require.NoError(t, err)
		assert.Equal(t, "eswatini_switch", got)
	})

	t.Run("edge: fee tie broken by settlement latency", func(t *testing.T) {
		s := NewSelector(false)
		fast := domestic()
		slow := international()
		slow.FeeRate = fast.FeeRate
		got, err := s.Select(d("1000"), "SZL", model.DecisionAllow, []Descriptor{slow, fast})
		require.NoError(t, err)
		assert.Equal(t, "eswatini_switch", got)
	})

	t.Run("edge: full tie broken by id ordering, deterministically", func(t *testing.T) {
		s := NewSelector(false)
		a := domestic()
		a.ID = "rail_b"
		b := domestic()
		b.ID = "rail_a"
		for i := 0; i < 10; i++ {
			got, err := s.Select(d("1000"), "SZL", model.DecisionAllow, []Descriptor{a, b})
			require.NoError(t, err)
			assert.Equal(t, "rail_a", got)
		}
	})

	t.Run("edge: amount exactly at the max is eligible", func(t *testing.T) {
		s := NewSelector(false)
		got, err := s.Select(d("10000"), "SZL", model.DecisionAllow, []Descriptor{domestic()})
		require.NoError(t, err)
		assert.Equal(t, "eswatini_switch", got)
	})

	t.Run("bad: nothing eligible", func(t *testing.T) {
		s := NewSelector(false)
		_, err := s.Select(d("500"), "GBP", model.DecisionAllow, []Descriptor{domestic(), international()})
		assert.ErrorIs(t, err, ErrNoEligibleRail)
	})

	t.Run("bad: all candidates unavailable", func(t *testing.T) {
		s := NewSelector(false)
		a, b := domestic(), international()
		a.Health = HealthUnavailable
		b.Health = HealthUnavailable
		_, err := s.Select(d("500"), "SZL", model.DecisionAllow, []Descriptor{a, b})
		assert.ErrorIs(t, err, ErrNoEligibleRail)
	})
}
