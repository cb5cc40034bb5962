// Package rail models settlement backends behind one capability contract.
// The orchestrator never branches on which concrete rail it is calling.
package rail

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Health string

const (
	HealthHealthy     Health = "healthy"
	HealthDegraded    Health = "degraded"
	HealthUnavailable Health = "unavailable"
)

// Descriptor is the static and semi-static configuration of a rail that the
// selector reads. Health is the only field mutated after construction, by
// health-check collaborators outside this core.
type Descriptor struct {
	ID           string          `json:"id"`
	Currencies   []string        `json:"currencies"`
	MaxAmount    decimal.Decimal `json:"max_amount"`
	FeeRate      decimal.Decimal `json:"fee_rate"`
	SameDay      bool            `json:"same_day"`
	Conservative bool            `json:"conservative"`
	Health       Health          `json:"health"`
}

func (d Descriptor) SupportsCurrency(currency string) bool {
	for _, c := range d.Currencies {
		if c == currency {
			return true
		}
	}
	return false
}

// Result is what a rail reports back for a settled transaction.
type Result struct {
	RailReference string          `json:"rail_reference"`
	SettledAt     time.Time       `json:"settled_at"`
	FeeCharged    decimal.Decimal `json:"fee_charged"`
}

// RejectedError is a definitive decision by the rail; it is never retried.
type RejectedError struct {
	Code   string
	Reason string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("rail rejected settlement (%s): %s", e.Code, e.Reason)
}

var (
	// ErrTimeout marks a settlement attempt that exhausted its deadline.
	// The caller may retry once with the same transaction id.
	ErrTimeout = errors.New("rail settlement timed out")

	// ErrUnavailable marks a rail that cannot take traffic at all.
	ErrUnavailable = errors.New("rail unavailable")
)

// Adapter is the capability contract every settlement backend implements.
// Settle is not assumed idempotent at the rail boundary; adapters that can
// de-duplicate do so by transaction id.
type Adapter interface {
	Describe() Descriptor
	Settle(ctx context.Context, txnID string, amount decimal.Decimal, currency string, meta map[string]string) (*Result, error)
}

// HealthSetter is implemented by adapters whose health is maintained by an
// external health checker.
type HealthSetter interface {
	SetHealth(h Health)
}
