package rail

import (
	"time"

	"github.com/fastpay-sz/payment-orchestrator/internal/config"
)

// EswatiniSwitch settles through the national low-cost instant payment
// switch: SZL only, small amounts, same-day settlement.
type EswatiniSwitch struct {
	simulated
}

func NewEswatiniSwitch(cfg config.RailConfig) *EswatiniSwitch {
	desc := Descriptor{
		ID:           cfg.ID,
		Currencies:   cfg.Currencies,
		MaxAmount:    cfg.MaxAmount,
		FeeRate:      cfg.FeeRate,
		SameDay:      cfg.SameDay,
		Conservative: cfg.Conservative,
		Health:       HealthHealthy,
	}
	return &EswatiniSwitch{
		simulated: newSimulated(desc, "ESW_", 150*time.Millisecond, cfg.RejectRate, cfg.TimeoutRate),
	}
}
