package authflow

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Orchestrator owns the challenge state machine. It is the single writer of
// the auth state; the route gate, inactivity monitor, and UI observe it
// through State/SetupProgress/Subscribe and never write back.
//
// Orchestrator instances are built once via Builder and are safe for
// concurrent use, though the intended execution model is a single UI event
// loop issuing one operation at a time.
type Orchestrator struct {
	config  Config
	gateway *Gateway
	flows   *flowStore
	audit   *auditDispatcher
	metrics *Metrics

	mu    sync.Mutex
	state State
	setup SetupProgress

	// storeMu orders persisted writes against ClearAll's wipe so a clear
	// that wins a race can never be overwritten afterwards.
	storeMu sync.Mutex

	// loginSeq stamps each login attempt; outcomes whose stamp is no longer
	// the latest are discarded. clearGen is bumped on every clear so logout
	// always beats an in-flight refresh regardless of completion order.
	loginSeq atomic.Uint64
	clearGen atomic.Uint64

	subMu   sync.Mutex
	subs    map[uint64]chan StateChange
	subNext uint64
}

// State returns the currently active challenge state.
func (o *Orchestrator) State() State {
	if o == nil {
		return State{}
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// SetupProgress returns the first-login setup flow position.
func (o *Orchestrator) SetupProgress() SetupProgress {
	if o == nil {
		return SetupProgress{}
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.setup
}

// Decide applies the route gate rules against the current state.
func (o *Orchestrator) Decide(current Route) (Route, bool) {
	o.mu.Lock()
	state, setup := o.state, o.setup
	o.mu.Unlock()
	return DecideRoute(o.config.Routes, state, setup, current)
}

// Subscribe registers a state-change listener. Slow subscribers miss updates
// rather than blocking transitions. The returned cancel function releases
// the subscription.
func (o *Orchestrator) Subscribe(buffer int) (<-chan StateChange, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan StateChange, buffer)

	o.subMu.Lock()
	o.subNext++
	id := o.subNext
	if o.subs == nil {
		o.subs = make(map[uint64]chan StateChange)
	}
	o.subs[id] = ch
	o.subMu.Unlock()

	cancel := func() {
		o.subMu.Lock()
		delete(o.subs, id)
		o.subMu.Unlock()
	}
	return ch, cancel
}

// setState atomically replaces the active variant (and with it any pending
// handle of the previous variant) and notifies subscribers.
func (o *Orchestrator) setState(state State, setup SetupProgress) {
	o.mu.Lock()
	o.state = state
	o.setup = setup
	o.mu.Unlock()
	o.notify(StateChange{State: state, Setup: setup})
}

func (o *Orchestrator) notify(change StateChange) {
	o.subMu.Lock()
	defer o.subMu.Unlock()
	for _, ch := range o.subs {
		select {
		case ch <- change:
		default:
		}
	}
}

// advanceSetup moves the setup step forward, never backward.
func advanceSetup(current SetupProgress, step SetupStep) SetupProgress {
	rank := map[SetupStep]int{"": 0, StepPassword: 1, StepMFA: 2, StepComplete: 3}
	if rank[step] <= rank[current.Step] {
		return current
	}
	current.Step = step
	return current
}

// ClearAll drops the in-memory state and every persisted field, returning to
// the anonymous state. It is idempotent: repeated calls converge on the same
// empty state and empty storage.
func (o *Orchestrator) ClearAll(ctx context.Context) error {
	if o == nil {
		return ErrOrchestratorNotReady
	}
	o.clearGen.Add(1)
	o.setState(State{Kind: StateAnonymous}, SetupProgress{})

	o.storeMu.Lock()
	err := o.flows.Clear(ctx)
	o.storeMu.Unlock()

	o.emitAudit(ctx, auditEventClearAll, err == nil, "", "", err, nil)
	return err
}

// persistGuarded runs a storage write only while gen is still the current
// clear generation. The generation is re-checked under storeMu: a clear bumps
// the generation before it acquires the mutex, so a write that observes the
// old generation here always lands before the clear's wipe. Reports whether
// the write ran.
func (o *Orchestrator) persistGuarded(gen uint64, write func()) bool {
	o.storeMu.Lock()
	defer o.storeMu.Unlock()
	if gen != o.clearGen.Load() {
		return false
	}
	write()
	return true
}

// abandonForInactivity is the idle watchdog's entry point.
func (o *Orchestrator) abandonForInactivity(ctx context.Context) {
	o.metricInc(MetricInactivityAbandon)
	username := ""
	if pending := o.State().Pending; pending != nil {
		username = pending.Username
	}
	err := o.ClearAll(ctx)
	o.emitAudit(ctx, auditEventInactivityAbandon, err == nil, username, "", err, nil)
}

// Close flushes and stops the audit dispatcher.
func (o *Orchestrator) Close() {
	if o == nil {
		return
	}
	if o.audit != nil {
		o.audit.Close()
	}
}

// AuditDropped reports audit events discarded under backpressure.
func (o *Orchestrator) AuditDropped() uint64 {
	if o == nil || o.audit == nil {
		return 0
	}
	return o.audit.Dropped()
}

// MetricsSnapshot returns a copy of the in-process counters.
func (o *Orchestrator) MetricsSnapshot() MetricsSnapshot {
	if o == nil || o.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return o.metrics.Snapshot()
}

func (o *Orchestrator) metricInc(id MetricID) {
	if o == nil || o.metrics == nil {
		return
	}
	o.metrics.Inc(id)
}

func (o *Orchestrator) observeProvider(start time.Time) {
	if o == nil || o.metrics == nil {
		return
	}
	o.metrics.Observe(MetricProviderLatency, time.Since(start))
}

// attemptStale reports whether an outcome stamped with (seq, gen) was
// superseded by a newer login or an intervening clear.
func (o *Orchestrator) attemptStale(seq, gen uint64) bool {
	return seq != o.loginSeq.Load() || gen != o.clearGen.Load()
}
