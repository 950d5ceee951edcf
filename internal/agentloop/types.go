// Package agentloop runs one agent's observe → decide → act cycle on its own
// timer. Each loop is an independent state machine over one wallet; many
// loops run concurrently and share nothing but the process. Strategy logic
// lives outside the loop behind the Observer/Decider/Actor interfaces.
package agentloop

import (
	"context"
	"errors"
	"time"
)

// ErrLifecycle is returned for invalid state transitions, e.g. starting a
// stopped loop or resuming one that isn't paused. Stopped is terminal.
var ErrLifecycle = errors.New("invalid loop lifecycle transition")

// State is the loop's current phase.
type State string

const (
	StateIdle     State = "idle"
	StateDeciding State = "deciding"
	StateActing   State = "acting"
	StatePaused   State = "paused"
	StateStopped  State = "stopped"
)

// WorldState is whatever the strategy's observer gathered for one cycle.
// The loop carries it from Observe to Decide without interpreting it.
type WorldState map[string]any

// Action is a decided intent handed to the actor.
type Action struct {
	Kind   string `json:"kind"` // e.g. "buy", "sell"
	Amount uint64 `json:"amount,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// Observer gathers world state at the start of a cycle.
type Observer interface {
	Observe(ctx context.Context) (WorldState, error)
}

// Decider turns world state into an action, or nil for "do nothing".
type Decider interface {
	Decide(ctx context.Context, ws WorldState) (*Action, error)
}

// Actor executes a decided action, typically through a trader or wallet.
type Actor interface {
	Act(ctx context.Context, action Action) error
}

// Balancer is the slice of the wallet the loop needs for its balance floor.
type Balancer interface {
	Balance(ctx context.Context) (uint64, error)
}

// Config controls one loop's cadence and circuit breakers.
type Config struct {
	AgentID string

	// Interval between cycles. Ignored when CronExpr is set.
	Interval time.Duration

	// CronExpr optionally schedules cycles by cron expression instead of a
	// fixed interval.
	CronExpr string

	// MaxCycles stops the loop for good after that many cycles. 0 = run
	// until stopped.
	MaxCycles int

	// MinBalance pauses the loop when the wallet balance (lamports) drops
	// below it, before any decide/act work. 0 = disabled.
	MinBalance uint64
}
