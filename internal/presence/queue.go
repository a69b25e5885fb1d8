package presence

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mwhite-dev/punchcard/internal/models"
)

// PendingEntry is an identification annotated with its age, as returned to
// staff polling the queue.
type PendingEntry struct {
	*models.Identification
	ElapsedSeconds int
}

// Queue holds pending identifications awaiting staff action, keyed by a
// random identification id, with a per-(merchant, identifier) index that
// enforces the single-live-entry invariant. Compound operations are
// serialized by mu; the records store keeps its own lock so the sweeper can
// run against it concurrently.
type Queue struct {
	ttl     time.Duration
	mu      sync.Mutex
	records *Store[*models.Identification]
	// index maps merchant|identifier (and its "recent" variant) to the live
	// identification id for that pair.
	index *Store[string]
}

// NewQueue creates a queue whose entries expire after ttl.
func NewQueue(ttl time.Duration) *Queue {
	return &Queue{
		ttl:     ttl,
		records: NewStore[*models.Identification](),
		index:   NewStore[string](),
	}
}

func indexKey(merchantID, identifier string, recent bool) string {
	k := merchantID + "|" + identifier
	if recent {
		k += "|recent"
	}
	return k
}

// Enqueue inserts rec under a freshly generated identification id and
// returns that id. A live entry for the same (merchant, identifier) pair is
// replaced, not duplicated. For recent-duplicate entries, an existing live
// flagged entry absorbs the new one: the existing id is returned and no new
// record is created.
func (q *Queue) Enqueue(rec *models.Identification, now time.Time) string {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := indexKey(rec.MerchantID, rec.Identifier, rec.RecentDuplicate)

	if prevID, insertedAt, ok := q.index.Get(key); ok {
		live := now.Sub(insertedAt) <= q.ttl
		if live && rec.RecentDuplicate {
			return prevID
		}
		q.records.Delete(prevID)
	}

	id := uuid.New().String()
	rec.ID = id
	rec.CreatedAt = now
	q.records.Put(id, rec, now)
	q.index.Put(key, id, now)
	return id
}

// Get returns the identification for id if it exists and has not expired.
// Expired entries are treated as absent; physical removal is left to the
// sweeper.
func (q *Queue) Get(id string, now time.Time) (*models.Identification, bool) {
	rec, insertedAt, ok := q.records.Get(id)
	if !ok || now.Sub(insertedAt) > q.ttl {
		return nil, false
	}
	return rec, true
}

// List returns all non-expired identifications for merchantID, most recent
// first, each annotated with elapsed seconds. Read-time filtering means
// polling never shows stale entries even between sweeps.
func (q *Queue) List(merchantID string, now time.Time) []PendingEntry {
	out := make([]PendingEntry, 0)
	q.records.Range(func(_ string, rec *models.Identification, insertedAt time.Time) {
		if rec.MerchantID != merchantID {
			return
		}
		age := now.Sub(insertedAt)
		if age > q.ttl {
			return
		}
		out = append(out, PendingEntry{
			Identification: rec,
			ElapsedSeconds: int(age.Seconds()),
		})
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Consume atomically removes and returns the identification for merchantID.
// It fails for unknown, already-consumed, expired, and wrong-merchant ids
// alike; the cases are not distinguishable by the caller.
func (q *Queue) Consume(merchantID, id string, now time.Time) (*models.Identification, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if rec, _, ok := q.records.Get(id); !ok || rec.MerchantID != merchantID {
		return nil, false
	}

	rec, insertedAt, ok := q.records.Take(id)
	if !ok {
		return nil, false
	}
	q.dropIndex(rec, id)
	if now.Sub(insertedAt) > q.ttl {
		return nil, false
	}
	return rec, true
}

// Dismiss removes the identification without returning it. Dismissing an
// unknown or already-handled id is a no-op.
func (q *Queue) Dismiss(merchantID, id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	rec, _, ok := q.records.Get(id)
	if !ok || rec.MerchantID != merchantID {
		return
	}
	q.records.Delete(id)
	q.dropIndex(rec, id)
}

// dropIndex clears the index entry for rec if it still points at id. Caller
// holds q.mu.
func (q *Queue) dropIndex(rec *models.Identification, id string) {
	key := indexKey(rec.MerchantID, rec.Identifier, rec.RecentDuplicate)
	if cur, _, ok := q.index.Get(key); ok && cur == id {
		q.index.Delete(key)
	}
}

// Sweep evicts expired records and their index entries.
func (q *Queue) Sweep(now time.Time) int {
	n := q.records.Sweep(now, q.ttl)
	q.index.Sweep(now, q.ttl)
	return n
}
