package agentloop

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/ayonic/Solana-Agent-Wallet/internal/metrics"
	"github.com/ayonic/Solana-Agent-Wallet/pkg/events"
)

// Deps are the loop's collaborators. Bus, Audit and Metrics may be nil.
type Deps struct {
	Balancer Balancer
	Observer Observer
	Decider  Decider
	Actor    Actor
	Bus      *events.Bus
	Audit    *AuditLog
	Metrics  metrics.Sink
}

// Loop is one agent's decision state machine.
//
// Pause and Stop cancel only the pending timer; a cycle already in flight
// runs to completion and the request is honored at the cycle boundary.
// Cycles within one loop are strictly sequential: the next timer is armed
// only after the current cycle settles.
type Loop struct {
	cfg  Config
	deps Deps

	mu       sync.Mutex
	state    State
	cycle    int
	errCount int
	timer    *time.Timer
	started  bool
	inFlight bool
}

// New validates the config and builds a loop in the idle state.
func New(cfg Config, deps Deps) (*Loop, error) {
	if cfg.AgentID == "" {
		return nil, fmt.Errorf("loop config: agent ID is required")
	}
	if cfg.CronExpr != "" {
		if !gronx.New().IsValid(cfg.CronExpr) {
			return nil, fmt.Errorf("loop config: invalid cron expression %q", cfg.CronExpr)
		}
	} else if cfg.Interval <= 0 {
		return nil, fmt.Errorf("loop config: interval must be positive")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}
	return &Loop{cfg: cfg, deps: deps, state: StateIdle}, nil
}

// State returns the loop's current state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Cycle returns the number of cycles begun so far.
func (l *Loop) Cycle() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cycle
}

// ErrorCount returns how many cycles ended in an error event.
func (l *Loop) ErrorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.errCount
}

// Start begins timer scheduling. Starting an already-running loop is a
// no-op; starting a stopped loop fails, stopped is terminal.
func (l *Loop) Start() error {
	l.mu.Lock()
	if l.state == StateStopped {
		l.mu.Unlock()
		return fmt.Errorf("agent %s: loop is stopped: %w", l.cfg.AgentID, ErrLifecycle)
	}
	if l.started {
		l.mu.Unlock()
		return nil
	}
	l.started = true
	l.armLocked()
	l.mu.Unlock()

	l.emit(events.TypeStarted, 0, StateIdle, "", nil)
	slog.Info("loop started", "agent", l.cfg.AgentID, "interval", l.cfg.Interval, "cron", l.cfg.CronExpr, "maxCycles", l.cfg.MaxCycles)
	return nil
}

// Pause cancels the pending timer. The loop stays paused until Resume.
func (l *Loop) Pause() {
	l.mu.Lock()
	if l.state == StateStopped || l.state == StatePaused {
		l.mu.Unlock()
		return
	}
	l.cancelTimerLocked()
	cycle := l.cycle
	l.setStateLocked(StatePaused)
	l.mu.Unlock()

	l.emit(events.TypePaused, cycle, StatePaused, "", nil)
	slog.Info("loop paused", "agent", l.cfg.AgentID, "cycle", cycle)
}

// Resume re-arms the timer. Valid only from the paused state. If a cycle is
// still in flight (paused mid-cycle, resumed before it settled), only the
// state flips back; the cycle's own settlement arms the next timer, keeping
// cycles strictly sequential.
func (l *Loop) Resume() error {
	l.mu.Lock()
	if l.state != StatePaused {
		state := l.state
		l.mu.Unlock()
		return fmt.Errorf("agent %s: resume from %s: %w", l.cfg.AgentID, state, ErrLifecycle)
	}
	l.setStateLocked(StateIdle)
	if !l.inFlight {
		l.armLocked()
	}
	cycle := l.cycle
	l.mu.Unlock()

	l.emit(events.TypeResumed, cycle, StateIdle, "", nil)
	slog.Info("loop resumed", "agent", l.cfg.AgentID, "cycle", cycle)
	return nil
}

// Stop cancels the pending timer and stops the loop for good. An in-flight
// cycle finishes first; no new cycle starts afterwards. Stopping a stopped
// loop is a no-op.
func (l *Loop) Stop() {
	l.mu.Lock()
	if l.state == StateStopped {
		l.mu.Unlock()
		return
	}
	l.cancelTimerLocked()
	cycle := l.cycle
	l.setStateLocked(StateStopped)
	l.mu.Unlock()

	l.emit(events.TypeStopped, cycle, StateStopped, "stop requested", nil)
	slog.Info("loop stopped", "agent", l.cfg.AgentID, "cycle", cycle)
}

// --- Cycle execution ---

// tick fires on the timer goroutine. One tick runs one full cycle; the next
// timer is armed only when the cycle settles, so cycles never overlap.
func (l *Loop) tick() {
	l.mu.Lock()
	if l.state != StateIdle || l.inFlight {
		// Pause/Stop landed between timer fire and here, or the previous
		// cycle has not settled yet.
		l.mu.Unlock()
		return
	}
	l.inFlight = true
	l.cycle++
	cycle := l.cycle
	l.setStateLocked(StateDeciding)
	l.mu.Unlock()

	l.runCycle(context.Background(), cycle)
	l.finishCycle(cycle)
}

func (l *Loop) runCycle(ctx context.Context, cycle int) {
	if l.cfg.MinBalance > 0 {
		balance, err := l.deps.Balancer.Balance(ctx)
		if err != nil {
			l.cycleError(cycle, fmt.Errorf("balance check: %w", err))
			return
		}
		if balance < l.cfg.MinBalance {
			l.pauseForBalance(cycle, balance)
			return
		}
	}

	ws, err := l.deps.Observer.Observe(ctx)
	if err != nil {
		l.cycleError(cycle, fmt.Errorf("observe: %w", err))
		return
	}

	action, err := l.deps.Decider.Decide(ctx, ws)
	if err != nil {
		l.cycleError(cycle, fmt.Errorf("decide: %w", err))
		return
	}

	if action == nil {
		l.emit(events.TypeCycleEnd, cycle, StateIdle, "no action", nil)
		return
	}

	l.mu.Lock()
	if l.state == StateDeciding {
		l.setStateLocked(StateActing)
	}
	l.mu.Unlock()
	l.emit(events.TypeAction, cycle, StateActing, fmt.Sprintf("%s %d", action.Kind, action.Amount), nil)

	if err := l.deps.Actor.Act(ctx, *action); err != nil {
		l.cycleError(cycle, fmt.Errorf("act %s: %w", action.Kind, err))
		return
	}

	l.emit(events.TypeCycleEnd, cycle, StateIdle, action.Kind, nil)
}

// finishCycle settles the state machine after a cycle and arms the next
// timer unless the loop was paused or stopped in the meantime.
func (l *Loop) finishCycle(cycle int) {
	l.deps.Metrics.CycleCompleted(l.cfg.AgentID)

	l.mu.Lock()
	l.inFlight = false
	switch l.state {
	case StateStopped, StatePaused:
		// Honored at the cycle boundary; nothing to re-arm.
		l.mu.Unlock()
		return
	}
	l.setStateLocked(StateIdle)

	if l.cfg.MaxCycles > 0 && l.cycle >= l.cfg.MaxCycles {
		l.setStateLocked(StateStopped)
		l.mu.Unlock()
		l.emit(events.TypeStopped, cycle, StateStopped, "max cycles reached", nil)
		slog.Info("loop finished", "agent", l.cfg.AgentID, "cycles", cycle)
		return
	}

	l.armLocked()
	l.mu.Unlock()
}

// cycleError records a failed cycle. Errors are counted and emitted but
// never terminate the loop; only MaxCycles or Stop reach the stopped state.
func (l *Loop) cycleError(cycle int, err error) {
	l.mu.Lock()
	l.errCount++
	l.mu.Unlock()

	l.emit(events.TypeError, cycle, StateIdle, "", err)
	slog.Warn("loop cycle failed", "agent", l.cfg.AgentID, "cycle", cycle, "error", err)
}

// pauseForBalance trips the low-balance circuit breaker: the loop pauses
// without observing or deciding, and stays paused until an operator resumes
// it.
func (l *Loop) pauseForBalance(cycle int, balance uint64) {
	l.mu.Lock()
	if l.state == StateDeciding {
		l.setStateLocked(StatePaused)
	}
	paused := l.state == StatePaused
	l.mu.Unlock()

	if paused {
		detail := fmt.Sprintf("balance %d below floor %d", balance, l.cfg.MinBalance)
		l.emit(events.TypeBalancePaused, cycle, StatePaused, detail, nil)
		slog.Warn("loop paused on low balance",
			"agent", l.cfg.AgentID, "balance", balance, "floor", l.cfg.MinBalance)
	}
}

// --- Scheduling ---

// armLocked schedules the next tick. Caller holds l.mu.
func (l *Loop) armLocked() {
	l.timer = time.AfterFunc(l.nextDelay(), l.tick)
}

// cancelTimerLocked stops the pending timer, if any. Caller holds l.mu.
func (l *Loop) cancelTimerLocked() {
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}

func (l *Loop) nextDelay() time.Duration {
	if l.cfg.CronExpr != "" {
		next, err := gronx.NextTickAfter(l.cfg.CronExpr, time.Now(), false)
		if err == nil {
			return time.Until(next)
		}
		slog.Error("loop: cron next-tick failed, falling back to interval",
			"agent", l.cfg.AgentID, "expr", l.cfg.CronExpr, "error", err)
	}
	return l.cfg.Interval
}

// setStateLocked records a state transition. Caller holds l.mu.
func (l *Loop) setStateLocked(s State) {
	if l.state == s {
		return
	}
	l.state = s
	l.deps.Metrics.LoopStateChanged(l.cfg.AgentID, string(s))
}

// emit appends the event to the audit log and broadcasts it. Audit write
// failures are swallowed: the log is diagnostic, not authoritative state.
func (l *Loop) emit(t events.Type, cycle int, state State, detail string, err error) {
	ev := events.Event{
		AgentID: l.cfg.AgentID,
		Type:    t,
		Cycle:   cycle,
		State:   string(state),
		Detail:  detail,
		Time:    time.Now().UTC(),
	}
	if err != nil {
		ev.Err = err.Error()
	}

	if l.deps.Audit != nil {
		if werr := l.deps.Audit.Append(ev); werr != nil {
			slog.Debug("loop: audit write failed", "agent", l.cfg.AgentID, "error", werr)
		}
	}
	if l.deps.Bus != nil {
		l.deps.Bus.Publish(ev)
	}
}
