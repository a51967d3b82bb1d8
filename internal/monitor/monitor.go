// Copyright (c) 2025 The Satchel Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package monitor implements the session inactivity timeout state machine.
package monitor

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/satchelhq/satchel/internal/policy"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

const (
	// DefaultThrottle bounds how often raw activity signals may trigger a
	// full timer reset, so rapid typing does not cause a reset storm.
	DefaultThrottle = time.Second

	// DefaultTickInterval is how often the warning countdown updates.
	DefaultTickInterval = time.Second
)

// ScheduleFunc returns the inactivity timeout and warning lead to apply at a
// full reset. It is consulted once per reset: a policy change mid-cycle takes
// effect at the next reset, never retroactively.
type ScheduleFunc func() (timeout, lead time.Duration)

// FromPolicy adapts a policy source into a ScheduleFunc.
func FromPolicy(fn func() policy.SessionPolicy) ScheduleFunc {
	return func() (time.Duration, time.Duration) {
		timeout := fn().Timeout()
		return timeout, policy.WarningLead(timeout)
	}
}

// Callbacks are invoked outside the monitor's lock, on timer goroutines.
type Callbacks struct {
	// OnWarning fires when the warning phase begins, with the countdown's
	// starting value.
	OnWarning func(remaining time.Duration)

	// OnTick fires on every countdown update while the warning is visible.
	OnTick func(remaining time.Duration)

	// OnExpired fires exactly once per forced sign-out, whether the
	// countdown reached zero, the sign-out timer fired, or ForceLogout was
	// called. It is never invoked by Stop.
	OnExpired func()
}

// Config holds monitor construction parameters.
type Config struct {
	// Schedule is required.
	Schedule ScheduleFunc

	// Throttle for activity signals. Zero means DefaultThrottle.
	Throttle time.Duration

	// TickInterval for the warning countdown. Zero means DefaultTickInterval.
	TickInterval time.Duration

	Callbacks Callbacks
}

// =============================================================================
// MONITOR
// =============================================================================

// Monitor owns the session timeout state for one signed-in session. It is
// created per session and torn down with Stop when the session ends; state
// never survives the instance.
type Monitor struct {
	mu sync.Mutex

	schedule ScheduleFunc
	cb       Callbacks
	tick     time.Duration
	limiter  *rate.Limiter

	active         bool
	warningVisible bool
	remaining      time.Duration
	lastActivity   time.Time

	// gen invalidates scheduled callbacks: every reset and teardown bumps
	// it, and a callback whose captured generation no longer matches is a
	// no-op. This is what makes a stale sign-out timer harmless.
	gen uint64

	// expired guards the exactly-once expiry callback for the current
	// session; cleared on Start.
	expired bool

	warnTimer   *time.Timer
	logoutTimer *time.Timer
	tickTimer   *time.Timer
}

// New creates an idle monitor. Call Start when the user signs in.
func New(cfg Config) *Monitor {
	throttle := cfg.Throttle
	if throttle <= 0 {
		throttle = DefaultThrottle
	}
	tick := cfg.TickInterval
	if tick <= 0 {
		tick = DefaultTickInterval
	}
	return &Monitor{
		schedule: cfg.Schedule,
		cb:       cfg.Callbacks,
		tick:     tick,
		limiter:  rate.NewLimiter(rate.Every(throttle), 1),
	}
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Start begins monitoring. Calling Start on an active monitor is a no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.active {
		m.mu.Unlock()
		return
	}
	m.active = true
	m.expired = false
	m.lastActivity = time.Now()
	notify := m.rescheduleAllLocked()
	m.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// Stop tears the monitor down without invoking any callback. Safe to call
// repeatedly and after expiry; a stray timer firing after Stop is inert.
func (m *Monitor) Stop() {
	m.mu.Lock()
	m.teardownLocked()
	m.mu.Unlock()
}

// Extend performs a full timer reset, dismissing the warning if visible.
// Always legal to call; a no-op when the monitor is idle.
func (m *Monitor) Extend() {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return
	}
	m.lastActivity = time.Now()
	notify := m.rescheduleAllLocked()
	m.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// ForceLogout expires the session immediately, bypassing any remaining time.
// Idempotent: the expiry callback fires at most once per session.
func (m *Monitor) ForceLogout() {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return
	}
	notify := m.expireLocked()
	m.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// RecordActivity reports a raw user interaction signal. An accepted signal
// updates the last-activity timestamp and performs a full reset; signals
// arriving within the throttle window of the previous accepted one are
// dropped.
func (m *Monitor) RecordActivity() {
	m.mu.Lock()
	if !m.active || !m.limiter.Allow() {
		m.mu.Unlock()
		return
	}
	m.lastActivity = time.Now()
	notify := m.rescheduleAllLocked()
	m.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// =============================================================================
// STATE ACCESSORS
// =============================================================================

// Active reports whether a session is currently being monitored.
func (m *Monitor) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// WarningVisible reports whether the timeout warning should be shown.
func (m *Monitor) WarningVisible() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.warningVisible
}

// TimeRemaining returns the countdown value, or 0 when the warning is not
// visible.
func (m *Monitor) TimeRemaining() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.warningVisible {
		return 0
	}
	return m.remaining
}

// LastActivity returns the timestamp of the last accepted activity signal.
func (m *Monitor) LastActivity() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastActivity
}

// =============================================================================
// STATE MACHINE INTERNALS
// =============================================================================

// rescheduleAllLocked is the single place phase timers are created. It
// cancels every prior timer, bumps the generation, re-reads the schedule, and
// arms the warning and sign-out timers. If the lead covers the whole timeout
// the warning phase begins immediately; the returned notify func (if any)
// must be run after the lock is released.
func (m *Monitor) rescheduleAllLocked() func() {
	m.clearTimersLocked()
	m.gen++
	gen := m.gen
	m.warningVisible = false
	m.remaining = 0

	timeout, lead := m.schedule()

	m.logoutTimer = time.AfterFunc(timeout, func() { m.onLogoutTimer(gen) })

	if timeToWarning := timeout - lead; timeToWarning > 0 {
		m.warnTimer = time.AfterFunc(timeToWarning, func() { m.onWarnTimer(gen, lead) })
		return nil
	}

	// Ultra-short session: the warning window covers the entire timeout,
	// so the countdown starts right away.
	return m.enterWarningLocked(gen, lead)
}

// enterWarningLocked transitions Running -> Warning and arms the first
// countdown tick. Returns the warning notification to run outside the lock.
func (m *Monitor) enterWarningLocked(gen uint64, lead time.Duration) func() {
	m.warningVisible = true
	m.remaining = lead
	m.tickTimer = time.AfterFunc(m.tick, func() { m.onTickTimer(gen) })

	if m.cb.OnWarning == nil {
		return nil
	}
	onWarning := m.cb.OnWarning
	remaining := m.remaining
	return func() { onWarning(remaining) }
}

// onWarnTimer receives the lead computed at reset time; re-reading the
// schedule here would let a mid-cycle policy change leak into the countdown.
func (m *Monitor) onWarnTimer(gen uint64, lead time.Duration) {
	m.mu.Lock()
	if !m.currentLocked(gen) {
		m.mu.Unlock()
		return
	}
	notify := m.enterWarningLocked(gen, lead)
	m.mu.Unlock()

	if notify != nil {
		notify()
	}
}

func (m *Monitor) onTickTimer(gen uint64) {
	m.mu.Lock()
	if !m.currentLocked(gen) {
		m.mu.Unlock()
		return
	}
	m.remaining -= m.tick
	if m.remaining <= 0 {
		m.remaining = 0
		notify := m.expireLocked()
		m.mu.Unlock()
		if notify != nil {
			notify()
		}
		return
	}
	m.tickTimer = time.AfterFunc(m.tick, func() { m.onTickTimer(gen) })
	onTick := m.cb.OnTick
	remaining := m.remaining
	m.mu.Unlock()

	if onTick != nil {
		onTick(remaining)
	}
}

func (m *Monitor) onLogoutTimer(gen uint64) {
	m.mu.Lock()
	if !m.currentLocked(gen) {
		m.mu.Unlock()
		return
	}
	notify := m.expireLocked()
	m.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// expireLocked tears down and returns the expiry callback, or nil if it has
// already been delivered. Clearing all timers here is what prevents the
// countdown and the sign-out timer from double-firing.
func (m *Monitor) expireLocked() func() {
	m.teardownLocked()
	if m.expired {
		return nil
	}
	m.expired = true
	return m.cb.OnExpired
}

// teardownLocked cancels all timers unconditionally and returns to Idle.
func (m *Monitor) teardownLocked() {
	m.clearTimersLocked()
	m.gen++
	m.active = false
	m.warningVisible = false
	m.remaining = 0
}

func (m *Monitor) clearTimersLocked() {
	if m.warnTimer != nil {
		m.warnTimer.Stop()
		m.warnTimer = nil
	}
	if m.logoutTimer != nil {
		m.logoutTimer.Stop()
		m.logoutTimer = nil
	}
	if m.tickTimer != nil {
		m.tickTimer.Stop()
		m.tickTimer = nil
	}
}

// currentLocked reports whether a timer callback belongs to the live
// schedule. Stale generations mean the timer was cancelled after its
// goroutine was already committed to run.
func (m *Monitor) currentLocked(gen uint64) bool {
	return m.active && gen == m.gen
}
