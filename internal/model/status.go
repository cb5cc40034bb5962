package model

import "fmt"

// Status is the lifecycle state of a payment transaction. Transitions are
// validated against a closed table; anything not listed is rejected.
type Status string

const (
	StatusReceived         Status = "received"
	StatusRiskAssessed     Status = "risk_assessed"
	StatusRouted           Status = "routed"
	StatusSettling         Status = "settling"
	StatusSettled          Status = "settled"
	StatusBlocked          Status = "blocked"
	StatusRoutingFailed    Status = "routing_failed"
	StatusSettlementFailed Status = "settlement_failed"
)

var transitions = map[Status][]Status{
	StatusReceived:     {StatusRiskAssessed},
	StatusRiskAssessed: {StatusRouted, StatusBlocked, StatusRoutingFailed},
	StatusRouted:       {StatusSettling},
	StatusSettling:     {StatusSettled, StatusSettlementFailed},
	// terminal states have no outgoing edges
	StatusSettled:          {},
	StatusBlocked:          {},
	StatusRoutingFailed:    {},
	StatusSettlementFailed: {},
}

// Terminal reports whether no further transition is permitted from s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0 && s.Valid()
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether the edge s -> to exists in the table.
func (s Status) CanTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns an error describing why from -> to is illegal,
// or nil if the edge is in the table.
func ValidateTransition(from, to Status) error {
	if !from.Valid() {
		return fmt.Errorf("unknown status %q", from)
	}
	if !to.Valid() {
		return fmt.Errorf("unknown status %q", to)
	}
	if from.Terminal() {
		return fmt.Errorf("status %q is terminal", from)
	}
	if !from.CanTransition(to) {
		return fmt.Errorf("illegal transition %q -> %q", from, to)
	}
	return nil
}
