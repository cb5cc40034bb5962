package rail

import (
	"time"

	"github.com/fastpay-sz/payment-orchestrator/internal/config"
)

// VisaDirect settles through the card network's direct-settlement service:
// multi-currency, high limits, next-day settlement, declared conservative so
// challenged transactions can be steered to it.
type VisaDirect struct {
	simulated
}

func NewVisaDirect(cfg config.RailConfig) *VisaDirect {
	desc := Descriptor{
		ID:           cfg.ID,
		Currencies:   cfg.Currencies,
		MaxAmount:    cfg.MaxAmount,
		FeeRate:      cfg.FeeRate,
		SameDay:      cfg.SameDay,
		Conservative: cfg.Conservative,
		Health:       HealthHealthy,
	}
	return &VisaDirect{
		simulated: newSimulated(desc, "VD_", 400*time.Millisecond, cfg.RejectRate, cfg.TimeoutRate),
	}
}
