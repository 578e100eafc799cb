package authflow

import (
	"context"
	"sync"
	"time"
)

// InactivityAbandonMessage is surfaced to the user when the watchdog
// abandons a first-login setup flow.
const InactivityAbandonMessage = "your setup session was closed after a period of inactivity; please sign in again"

// InactivityMonitor force-abandons an in-progress first-login setup flow
// after a fixed idle window. It is inert outside that flow: ordinary
// authenticated sessions are never timed out here.
//
// Integrators call Touch for every user input event (pointer movement, key
// press, click, scroll, tab becoming visible) and HandleUnload from the page
// unload hook.
type InactivityMonitor struct {
	orch     *Orchestrator
	window   time.Duration
	onExpire func(target Route, message string)

	mu           sync.Mutex
	timer        *time.Timer
	lastActivity time.Time
	stopped      bool
}

// NewInactivityMonitor builds a monitor over the orchestrator. onExpire is
// invoked after the flow has been cleared and receives the login route plus a
// user-visible explanation; it must not block.
func NewInactivityMonitor(orch *Orchestrator, onExpire func(Route, string)) *InactivityMonitor {
	window := orch.config.Inactivity.IdleWindow
	return &InactivityMonitor{
		orch:     orch,
		window:   window,
		onExpire: onExpire,
	}
}

// Start arms the watchdog. Calling Start on a running monitor resets it.
func (m *InactivityMonitor) Start() {
	if m == nil || !m.orch.config.Inactivity.Enabled {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopped = false
	m.lastActivity = time.Now()
	m.rearmLocked()
}

// Stop disarms the watchdog.
func (m *InactivityMonitor) Stop() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopped = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// Touch records user activity and pushes the deadline out.
func (m *InactivityMonitor) Touch() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return
	}
	m.lastActivity = time.Now()
	m.rearmLocked()
}

// LastActivity reports the most recent recorded activity instant.
func (m *InactivityMonitor) LastActivity() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastActivity
}

func (m *InactivityMonitor) rearmLocked() {
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.window, m.fire)
}

func (m *InactivityMonitor) fire() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	// Only an incomplete first-login setup flow is abandoned on idle.
	setup := m.orch.SetupProgress()
	if !setup.FirstLogin || setup.Step == StepComplete {
		return
	}

	m.orch.abandonForInactivity(context.Background())
	if m.onExpire != nil {
		m.onExpire(m.orch.config.Routes.Login, InactivityAbandonMessage)
	}
}

// HandleUnload performs the same clear on page unload, exempting the
// change-password route while a new-password challenge is outstanding so a
// benign reload does not destroy in-flight state.
func (m *InactivityMonitor) HandleUnload(ctx context.Context, current Route) {
	if m == nil {
		return
	}
	setup := m.orch.SetupProgress()
	if !setup.FirstLogin || setup.Step == StepComplete {
		return
	}
	state := m.orch.State()
	if state.Kind == StateNewPasswordRequired && current == m.orch.config.Routes.ChangePassword {
		return
	}
	m.orch.abandonForInactivity(ctx)
}
