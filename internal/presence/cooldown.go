package presence

import (
	"time"

	"github.com/mwhite-dev/punchcard/internal/models"
)

// CooldownTracker deduplicates repeated self-identifications from the same
// customer at the same merchant. Within the window a repeat attempt replays
// the original outcome (same identification id, same snapshot) instead of
// creating new state or re-triggering side effects.
type CooldownTracker struct {
	window time.Duration
	store  *Store[*models.IdentifyOutcome]
}

// NewCooldownTracker creates a tracker with the given window.
func NewCooldownTracker(window time.Duration) *CooldownTracker {
	return &CooldownTracker{
		window: window,
		store:  NewStore[*models.IdentifyOutcome](),
	}
}

func cooldownKey(merchantID, identifier string) string {
	return merchantID + "|" + identifier
}

// RecordOutcome stores the outcome of a fresh identification.
func (c *CooldownTracker) RecordOutcome(merchantID, identifier string, outcome *models.IdentifyOutcome, now time.Time) {
	c.store.Put(cooldownKey(merchantID, identifier), outcome, now)
}

// GetOutcome returns the recorded outcome and its age if one exists inside
// the window. Outcomes older than the window are treated as absent.
func (c *CooldownTracker) GetOutcome(merchantID, identifier string, now time.Time) (*models.IdentifyOutcome, time.Duration, bool) {
	outcome, recordedAt, ok := c.store.Get(cooldownKey(merchantID, identifier))
	if !ok {
		return nil, 0, false
	}
	age := now.Sub(recordedAt)
	if age > c.window {
		return nil, 0, false
	}
	return outcome, age, true
}

// Sweep evicts outcomes older than the window.
func (c *CooldownTracker) Sweep(now time.Time) int {
	return c.store.Sweep(now, c.window)
}
