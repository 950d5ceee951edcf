// Package metrics defines the sink interface wallets and loops report into.
// The sink is injected by the orchestrator; there is no process-wide
// registry. The default implementations either drop everything or mirror
// counts into slog.
package metrics

import "log/slog"

// Sink receives operational counters from wallets, traders and loops.
// Implementations must be safe for concurrent use.
type Sink interface {
	CycleCompleted(agentID string)
	LoopStateChanged(agentID, state string)
	TransferConfirmed(agentID string, lamports uint64)
	TransferRejected(agentID, reason string)
	TradeExecuted(agentID, side string, lamports uint64)
}

// Nop discards all metrics.
type Nop struct{}

func (Nop) CycleCompleted(string)                {}
func (Nop) LoopStateChanged(string, string)      {}
func (Nop) TransferConfirmed(string, uint64)     {}
func (Nop) TransferRejected(string, string)      {}
func (Nop) TradeExecuted(string, string, uint64) {}

// Log mirrors every metric into slog at debug level. Useful during local
// runs where no external collector is wired up.
type Log struct{}

func (Log) CycleCompleted(agentID string) {
	slog.Debug("metric: cycle completed", "agent", agentID)
}

func (Log) LoopStateChanged(agentID, state string) {
	slog.Debug("metric: loop state changed", "agent", agentID, "state", state)
}

func (Log) TransferConfirmed(agentID string, lamports uint64) {
	slog.Debug("metric: transfer confirmed", "agent", agentID, "lamports", lamports)
}

func (Log) TransferRejected(agentID, reason string) {
	slog.Debug("metric: transfer rejected", "agent", agentID, "reason", reason)
}

func (Log) TradeExecuted(agentID, side string, lamports uint64) {
	slog.Debug("metric: trade executed", "agent", agentID, "side", side, "lamports", lamports)
}
