package agentloop

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ayonic/Solana-Agent-Wallet/pkg/events"
)

// fakeStrategy implements Balancer, Observer, Decider and Actor with
// programmable behavior and call counters.
type fakeStrategy struct {
	mu sync.Mutex

	balance    uint64
	balanceErr error
	observeErr error
	decideErr  error
	actErr     error
	action     *Action

	observeCalls int
	decideCalls  int
	actCalls     int
}

func (f *fakeStrategy) Balance(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balance, f.balanceErr
}

func (f *fakeStrategy) Observe(context.Context) (WorldState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observeCalls++
	return WorldState{"tick": f.observeCalls}, f.observeErr
}

func (f *fakeStrategy) Decide(context.Context, WorldState) (*Action, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decideCalls++
	return f.action, f.decideErr
}

func (f *fakeStrategy) Act(context.Context, Action) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actCalls++
	return f.actErr
}

func (f *fakeStrategy) counts() (observe, decide, act int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.observeCalls, f.decideCalls, f.actCalls
}

// collector subscribes to the bus and records every event.
type collector struct {
	mu  sync.Mutex
	evs []events.Event
}

func (c *collector) handle(ev events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evs = append(c.evs, ev)
}

func (c *collector) ofType(t events.Type) []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []events.Event
	for _, ev := range c.evs {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func newTestLoop(t *testing.T, cfg Config, strat *fakeStrategy) (*Loop, *collector) {
	t.Helper()
	bus := events.NewBus()
	col := &collector{}
	bus.Subscribe("test", col.handle)

	l, err := New(cfg, Deps{
		Balancer: strat,
		Observer: strat,
		Decider:  strat,
		Actor:    strat,
		Bus:      bus,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(l.Stop)
	return l, col
}

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(t *testing.T, d time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestNew_RejectsBadConfig(t *testing.T) {
	if _, err := New(Config{Interval: time.Second}, Deps{}); err == nil {
		t.Error("empty agent ID accepted")
	}
	if _, err := New(Config{AgentID: "a"}, Deps{}); err == nil {
		t.Error("zero interval without cron accepted")
	}
	if _, err := New(Config{AgentID: "a", CronExpr: "not a cron"}, Deps{}); err == nil {
		t.Error("invalid cron expression accepted")
	}
	if _, err := New(Config{AgentID: "a", CronExpr: "* * * * *"}, Deps{}); err != nil {
		t.Errorf("valid cron rejected: %v", err)
	}
}

func TestLoop_MaxCyclesStopsExactly(t *testing.T) {
	strat := &fakeStrategy{action: &Action{Kind: "buy", Amount: 10}}
	l, col := newTestLoop(t, Config{AgentID: "agent-x", Interval: 5 * time.Millisecond, MaxCycles: 3}, strat)

	if err := l.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return l.State() == StateStopped })

	if got := l.Cycle(); got != 3 {
		t.Errorf("cycle count = %d, want 3", got)
	}
	observe, decide, act := strat.counts()
	if observe != 3 || decide != 3 || act != 3 {
		t.Errorf("observe/decide/act = %d/%d/%d, want 3/3/3", observe, decide, act)
	}

	// Extra wait: no fourth cycle may sneak in after stopped.
	time.Sleep(30 * time.Millisecond)
	if got := l.Cycle(); got != 3 {
		t.Errorf("cycle count after settle = %d, want 3", got)
	}

	stopped := col.ofType(events.TypeStopped)
	if len(stopped) != 1 || stopped[0].Detail != "max cycles reached" {
		t.Errorf("stopped events = %+v, want one with max-cycles detail", stopped)
	}
}

func TestLoop_StoppedIsTerminal(t *testing.T) {
	strat := &fakeStrategy{}
	l, _ := newTestLoop(t, Config{AgentID: "agent-x", Interval: time.Hour}, strat)

	if err := l.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	l.Stop()
	l.Stop() // idempotent

	if err := l.Start(); !errors.Is(err, ErrLifecycle) {
		t.Errorf("Start after Stop = %v, want ErrLifecycle", err)
	}
	if err := l.Resume(); !errors.Is(err, ErrLifecycle) {
		t.Errorf("Resume after Stop = %v, want ErrLifecycle", err)
	}
}

func TestLoop_StartIsIdempotent(t *testing.T) {
	strat := &fakeStrategy{}
	l, col := newTestLoop(t, Config{AgentID: "agent-x", Interval: time.Hour}, strat)

	if err := l.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := l.Start(); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if got := len(col.ofType(events.TypeStarted)); got != 1 {
		t.Errorf("started events = %d, want 1", got)
	}
}

func TestLoop_BalanceFloorPausesWithoutDeciding(t *testing.T) {
	strat := &fakeStrategy{balance: 40, action: &Action{Kind: "buy"}}
	l, col := newTestLoop(t, Config{AgentID: "agent-x", Interval: 5 * time.Millisecond, MinBalance: 100}, strat)

	if err := l.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return l.State() == StatePaused })

	observe, decide, act := strat.counts()
	if observe != 0 || decide != 0 || act != 0 {
		t.Errorf("observe/decide/act = %d/%d/%d, want 0/0/0 when below floor", observe, decide, act)
	}
	if got := len(col.ofType(events.TypeBalancePaused)); got != 1 {
		t.Errorf("balance_paused events = %d, want 1", got)
	}

	// Operator tops up and resumes; the loop cycles normally again.
	strat.mu.Lock()
	strat.balance = 500
	strat.mu.Unlock()
	if err := l.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool {
		o, _, _ := strat.counts()
		return o >= 1
	})
}

func TestLoop_PauseAndResume(t *testing.T) {
	strat := &fakeStrategy{}
	l, col := newTestLoop(t, Config{AgentID: "agent-x", Interval: 5 * time.Millisecond}, strat)

	if err := l.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return l.Cycle() >= 1 })

	l.Pause()
	if got := l.State(); got != StatePaused {
		t.Fatalf("state after Pause = %s, want paused", got)
	}
	atPause := l.Cycle()
	time.Sleep(30 * time.Millisecond)
	if got := l.Cycle(); got != atPause {
		t.Errorf("cycles advanced while paused: %d -> %d", atPause, got)
	}

	if err := l.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return l.Cycle() > atPause })

	if got := len(col.ofType(events.TypePaused)); got != 1 {
		t.Errorf("paused events = %d, want 1", got)
	}
	if got := len(col.ofType(events.TypeResumed)); got != 1 {
		t.Errorf("resumed events = %d, want 1", got)
	}
}

// blockingStrategy parks inside Observe until released and tracks how many
// Observe calls run at once.
type blockingStrategy struct {
	entered chan struct{}
	release chan struct{}

	mu          sync.Mutex
	inFlight    int
	maxInFlight int
}

func newBlockingStrategy() *blockingStrategy {
	return &blockingStrategy{
		entered: make(chan struct{}, 8),
		release: make(chan struct{}),
	}
}

func (b *blockingStrategy) Balance(context.Context) (uint64, error) { return 1, nil }

func (b *blockingStrategy) Observe(context.Context) (WorldState, error) {
	b.mu.Lock()
	b.inFlight++
	if b.inFlight > b.maxInFlight {
		b.maxInFlight = b.inFlight
	}
	b.mu.Unlock()

	b.entered <- struct{}{}
	<-b.release

	b.mu.Lock()
	b.inFlight--
	b.mu.Unlock()
	return WorldState{}, nil
}

func (b *blockingStrategy) Decide(context.Context, WorldState) (*Action, error) { return nil, nil }

func (b *blockingStrategy) Act(context.Context, Action) error { return nil }

func (b *blockingStrategy) peak() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.maxInFlight
}

func TestLoop_ResumeDuringCycleKeepsCyclesSequential(t *testing.T) {
	strat := newBlockingStrategy()
	l, err := New(Config{AgentID: "agent-x", Interval: 2 * time.Millisecond}, Deps{
		Balancer: strat,
		Observer: strat,
		Decider:  strat,
		Actor:    strat,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(l.Stop)

	if err := l.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-strat.entered // cycle 1 is now parked inside Observe

	// Pause and resume while the cycle is in flight, then sit through
	// several intervals. No new cycle may begin until cycle 1 settles.
	l.Pause()
	if err := l.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if got := l.Cycle(); got != 1 {
		t.Fatalf("cycle count with cycle 1 still in flight = %d, want 1", got)
	}

	// Release cycle 1; the loop re-arms at the boundary and cycle 2 runs.
	strat.release <- struct{}{}
	<-strat.entered
	l.Stop()
	strat.release <- struct{}{}

	if got := strat.peak(); got != 1 {
		t.Errorf("max concurrent Observe calls = %d, want 1", got)
	}
}

func TestLoop_ResumeRequiresPaused(t *testing.T) {
	strat := &fakeStrategy{}
	l, _ := newTestLoop(t, Config{AgentID: "agent-x", Interval: time.Hour}, strat)

	if err := l.Resume(); !errors.Is(err, ErrLifecycle) {
		t.Errorf("Resume on idle loop = %v, want ErrLifecycle", err)
	}
}

func TestLoop_ActorErrorIsNonFatal(t *testing.T) {
	strat := &fakeStrategy{action: &Action{Kind: "sell", Amount: 5}, actErr: errors.New("venue down")}
	l, col := newTestLoop(t, Config{AgentID: "agent-x", Interval: 5 * time.Millisecond, MaxCycles: 2}, strat)

	if err := l.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return l.State() == StateStopped })

	if got := l.ErrorCount(); got != 2 {
		t.Errorf("error count = %d, want 2", got)
	}
	errs := col.ofType(events.TypeError)
	if len(errs) != 2 {
		t.Fatalf("error events = %d, want 2", len(errs))
	}
	if errs[0].Err == "" {
		t.Error("error event carries no error text")
	}
}

func TestLoop_NilActionEndsCycleWithoutActing(t *testing.T) {
	strat := &fakeStrategy{action: nil}
	l, col := newTestLoop(t, Config{AgentID: "agent-x", Interval: 5 * time.Millisecond, MaxCycles: 1}, strat)

	if err := l.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return l.State() == StateStopped })

	_, _, act := strat.counts()
	if act != 0 {
		t.Errorf("act calls = %d, want 0 for nil action", act)
	}
	ends := col.ofType(events.TypeCycleEnd)
	if len(ends) != 1 || ends[0].Detail != "no action" {
		t.Errorf("cycle_end events = %+v, want one with no-action detail", ends)
	}
}

func TestLoop_AuditLogRecordsLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	audit, err := OpenAuditLog(path)
	if err != nil {
		t.Fatalf("OpenAuditLog: %v", err)
	}
	defer audit.Close()

	strat := &fakeStrategy{action: &Action{Kind: "buy", Amount: 7}}
	l, err := New(Config{AgentID: "agent-x", Interval: 5 * time.Millisecond, MaxCycles: 2}, Deps{
		Balancer: strat,
		Observer: strat,
		Decider:  strat,
		Actor:    strat,
		Audit:    audit,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := l.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return l.State() == StateStopped })

	evs, err := ReadAuditLog(path, "agent-x")
	if err != nil {
		t.Fatalf("ReadAuditLog: %v", err)
	}
	var started, actions, stopped int
	for _, ev := range evs {
		switch ev.Type {
		case events.TypeStarted:
			started++
		case events.TypeAction:
			actions++
		case events.TypeStopped:
			stopped++
		}
	}
	if started != 1 || actions != 2 || stopped != 1 {
		t.Errorf("audit started/actions/stopped = %d/%d/%d, want 1/2/1", started, actions, stopped)
	}

	// Filtering excludes other agents.
	other, err := ReadAuditLog(path, "someone-else")
	if err != nil {
		t.Fatalf("ReadAuditLog other: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("events for unrelated agent = %d, want 0", len(other))
	}
}
