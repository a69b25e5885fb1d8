package presence_test

import (
	"testing"
	"time"

	"github.com/mwhite-dev/punchcard/internal/models"
	"github.com/mwhite-dev/punchcard/internal/presence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const cooldownWindow = 15 * time.Minute

func TestCooldownReplaysOutcomeInsideWindow(t *testing.T) {
	c := presence.NewCooldownTracker(cooldownWindow)
	now := time.Now()

	outcome := &models.IdentifyOutcome{
		IdentificationID: "ident-1",
		IsNew:            true,
		DisplayName:      "Alice",
		PointsBalance:    42,
	}
	c.RecordOutcome("m1", "alice@example.com", outcome, now)

	got, age, ok := c.GetOutcome("m1", "alice@example.com", now.Add(5*time.Minute))
	require.True(t, ok)
	assert.Equal(t, outcome, got)
	assert.Equal(t, 5*time.Minute, age)
}

func TestCooldownAbsentAfterWindow(t *testing.T) {
	c := presence.NewCooldownTracker(cooldownWindow)
	now := time.Now()

	c.RecordOutcome("m1", "alice@example.com", &models.IdentifyOutcome{}, now)

	_, _, ok := c.GetOutcome("m1", "alice@example.com", now.Add(cooldownWindow+time.Second))
	assert.False(t, ok)
}

func TestCooldownScopedPerMerchant(t *testing.T) {
	c := presence.NewCooldownTracker(cooldownWindow)
	now := time.Now()

	c.RecordOutcome("m1", "alice@example.com", &models.IdentifyOutcome{IdentificationID: "a"}, now)

	_, _, ok := c.GetOutcome("m2", "alice@example.com", now)
	assert.False(t, ok)
}

func TestCooldownSweep(t *testing.T) {
	c := presence.NewCooldownTracker(cooldownWindow)
	now := time.Now()

	c.RecordOutcome("m1", "old@example.com", &models.IdentifyOutcome{}, now.Add(-time.Hour))
	c.RecordOutcome("m1", "fresh@example.com", &models.IdentifyOutcome{}, now)

	assert.Equal(t, 1, c.Sweep(now))
}
