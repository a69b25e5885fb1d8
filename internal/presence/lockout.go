package presence

import (
	"math"
	"sync"
	"time"
)

type lockoutState struct {
	failures    int
	lastAttempt time.Time
	lockedUntil time.Time // zero until the threshold is reached
}

// LockoutStatus is the result of a lockout check.
type LockoutStatus struct {
	Blocked          bool
	MinutesRemaining int
}

// LockoutTracker counts consecutive credential failures per
// (origin, identifier) pair and locks the pair out for a fixed duration once
// the threshold is reached. Checks on a locked pair must happen before any
// credential comparison so locked requests carry no hashing cost or timing
// signal.
type LockoutTracker struct {
	threshold int
	duration  time.Duration
	mu        sync.Mutex // serializes read-modify-write across Check/RecordFailure
	store     *Store[*lockoutState]
}

// NewLockoutTracker creates a tracker that locks a pair for duration after
// threshold consecutive failures.
func NewLockoutTracker(threshold int, duration time.Duration) *LockoutTracker {
	return &LockoutTracker{
		threshold: threshold,
		duration:  duration,
		store:     NewStore[*lockoutState](),
	}
}

func pairKey(origin, identifier string) string {
	return origin + "|" + identifier
}

// Check reports whether the pair is currently locked out. Stale state (a
// lockout that has elapsed, or failures older than the lockout duration) is
// reset on read, so a check after the window always sees a clean slate.
func (l *LockoutTracker) Check(origin, identifier string, now time.Time) LockoutStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := pairKey(origin, identifier)
	st, _, ok := l.store.Get(key)
	if !ok {
		return LockoutStatus{}
	}

	if !st.lockedUntil.IsZero() {
		if now.Before(st.lockedUntil) {
			mins := int(math.Ceil(st.lockedUntil.Sub(now).Minutes()))
			return LockoutStatus{Blocked: true, MinutesRemaining: mins}
		}
		l.store.Delete(key)
		return LockoutStatus{}
	}

	if now.Sub(st.lastAttempt) > l.duration {
		l.store.Delete(key)
	}
	return LockoutStatus{}
}

// RecordFailure increments the failure count for the pair, arming the
// lockout when the threshold is reached, and returns the current count.
func (l *LockoutTracker) RecordFailure(origin, identifier string, now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := pairKey(origin, identifier)
	st, _, ok := l.store.Get(key)
	if !ok || now.Sub(st.lastAttempt) > l.duration {
		st = &lockoutState{}
	}

	st.failures++
	st.lastAttempt = now
	if st.failures >= l.threshold && st.lockedUntil.IsZero() {
		st.lockedUntil = now.Add(l.duration)
	}
	// Re-inserting refreshes the sweep timestamp as well.
	l.store.Put(key, st, now)
	return st.failures
}

// Clear wipes all failure state for the pair. Called on any successful
// credential check.
func (l *LockoutTracker) Clear(origin, identifier string) {
	l.store.Delete(pairKey(origin, identifier))
}

// Sweep evicts pairs whose most recent activity is older than the lockout
// duration.
func (l *LockoutTracker) Sweep(now time.Time) int {
	return l.store.Sweep(now, l.duration)
}

type windowState struct {
	count       int
	windowStart time.Time
}

// WindowLimiter is the coarser sliding ceiling used by the registration and
// self-identification paths: at most max events per origin per window, with
// no escalating lockout. The counter simply resets once the window elapses.
type WindowLimiter struct {
	max    int
	window time.Duration
	mu     sync.Mutex
	store  *Store[*windowState]
}

// NewWindowLimiter creates a limiter allowing max events per window.
func NewWindowLimiter(max int, window time.Duration) *WindowLimiter {
	return &WindowLimiter{
		max:    max,
		window: window,
		store:  NewStore[*windowState](),
	}
}

// Allow records an event for origin and reports whether it is within the
// ceiling.
func (w *WindowLimiter) Allow(origin string, now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	st, _, ok := w.store.Get(origin)
	if !ok || now.Sub(st.windowStart) > w.window {
		st = &windowState{windowStart: now}
	}
	st.count++
	w.store.Put(origin, st, st.windowStart)
	return st.count <= w.max
}

// Sweep evicts origins whose window has elapsed.
func (w *WindowLimiter) Sweep(now time.Time) int {
	return w.store.Sweep(now, w.window)
}
