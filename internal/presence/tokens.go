package presence

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

const tokenBytes = 32 // 256 bits of entropy per token

// Issuer mints opaque single-use capability tokens carrying a payload of
// type P. Resolution is destructive: a token resolves at most once, and
// never after its TTL. Independent issuer instances hold independent stores,
// so a token minted by one can never resolve against another.
//
// Tokens are random and never derived from caller input; callers must not
// log them.
type Issuer[P any] struct {
	ttl   time.Duration
	store *Store[P]
}

// NewIssuer creates an issuer whose tokens expire after ttl.
func NewIssuer[P any](ttl time.Duration) *Issuer[P] {
	return &Issuer[P]{ttl: ttl, store: NewStore[P]()}
}

// Issue mints a fresh token carrying payload.
func (i *Issuer[P]) Issue(payload P, now time.Time) (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate capability token: %w", err)
	}
	token := hex.EncodeToString(buf)
	i.store.Put(token, payload, now)
	return token, nil
}

// Resolve destructively reads the payload for token. Unknown and expired
// tokens are indistinguishable to the caller; expired-but-present tokens are
// deleted here rather than left for the sweeper.
func (i *Issuer[P]) Resolve(token string, now time.Time) (P, bool) {
	payload, insertedAt, ok := i.store.Take(token)
	if !ok || now.Sub(insertedAt) > i.ttl {
		var zero P
		return zero, false
	}
	return payload, true
}

// Sweep evicts unredeemed tokens past their TTL.
func (i *Issuer[P]) Sweep(now time.Time) int {
	return i.store.Sweep(now, i.ttl)
}
