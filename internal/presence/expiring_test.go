package presence_test

import (
	"sync"
	"testing"
	"time"

	"github.com/mwhite-dev/punchcard/internal/presence"
	"github.com/stretchr/testify/assert"
)

func TestStorePutGetDelete(t *testing.T) {
	s := presence.NewStore[string]()
	now := time.Now()

	s.Put("a", "alpha", now)

	v, insertedAt, ok := s.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "alpha", v)
	assert.Equal(t, now, insertedAt)

	s.Delete("a")
	_, _, ok = s.Get("a")
	assert.False(t, ok)

	// Deleting an absent key is a no-op
	s.Delete("a")
}

func TestStorePutReplacesExisting(t *testing.T) {
	s := presence.NewStore[int]()
	t0 := time.Now()

	s.Put("k", 1, t0)
	s.Put("k", 2, t0.Add(time.Second))

	v, insertedAt, ok := s.Get("k")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, t0.Add(time.Second), insertedAt)
	assert.Equal(t, 1, s.Len())
}

func TestStoreTakeIsDestructive(t *testing.T) {
	s := presence.NewStore[string]()
	s.Put("k", "v", time.Now())

	v, _, ok := s.Take("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	_, _, ok = s.Take("k")
	assert.False(t, ok)
}

func TestStoreSweepRemovesOnlyStaleEntries(t *testing.T) {
	s := presence.NewStore[string]()
	t0 := time.Now()
	ttl := 15 * time.Minute

	s.Put("old", "1", t0.Add(-16*time.Minute))
	s.Put("older", "2", t0.Add(-1*time.Hour))
	s.Put("fresh", "3", t0.Add(-1*time.Minute))

	removed := s.Sweep(t0, ttl)

	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, s.Len())
	_, _, ok := s.Get("fresh")
	assert.True(t, ok)
}

func TestStoreSweepIsIdempotent(t *testing.T) {
	s := presence.NewStore[string]()
	t0 := time.Now()

	s.Put("old", "1", t0.Add(-time.Hour))

	assert.Equal(t, 1, s.Sweep(t0, 15*time.Minute))
	assert.Equal(t, 0, s.Sweep(t0, 15*time.Minute))
}

func TestStoreSweepSparesReplacedEntry(t *testing.T) {
	s := presence.NewStore[string]()
	t0 := time.Now()

	s.Put("k", "stale", t0.Add(-time.Hour))
	// Entry replaced with a fresh timestamp before the sweep deletes it must
	// survive: the sweep re-checks timestamps before deleting.
	s.Put("k", "fresh", t0)

	removed := s.Sweep(t0, 15*time.Minute)
	assert.Equal(t, 0, removed)

	v, _, ok := s.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "fresh", v)
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := presence.NewStore[int]()
	now := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := string(rune('a' + n))
				s.Put(key, j, now)
				s.Get(key)
				s.Sweep(now, time.Minute)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 8, s.Len())
}
