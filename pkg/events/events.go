// Package events defines the typed event stream emitted by agent loops and
// the fan-out bus that delivers it to read-only subscribers. Subscribers see
// value copies only; nothing in this package can reach back into loop or
// wallet state.
package events

import "time"

// Type identifies the kind of loop event.
type Type string

const (
	TypeStarted       Type = "started"
	TypeCycleEnd      Type = "cycle_end"
	TypeAction        Type = "action"
	TypeError         Type = "error"
	TypePaused        Type = "paused"
	TypeResumed       Type = "resumed"
	TypeStopped       Type = "stopped"
	TypeBalancePaused Type = "balance_paused"
)

// Event is one observation from an agent loop. Events are emitted for every
// state transition and every decided action, and the same records form the
// audit log.
type Event struct {
	AgentID string    `json:"agentId"`
	Type    Type      `json:"type"`
	Cycle   int       `json:"cycle"`
	State   string    `json:"state"`
	Detail  string    `json:"detail,omitempty"`
	Err     string    `json:"error,omitempty"`
	Time    time.Time `json:"ts"`
}
