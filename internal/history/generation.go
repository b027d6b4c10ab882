package history

import (
	"sync"
)

// Token identifies one issued fetch against the selection that was
// current when it started.
type Token struct {
	vehicleID string
	gen       uint64
}

// TokenSource guards against stale fetch results. Changing the selected
// vehicle or window does not cancel an in-flight fetch; it issues a new
// token, and the old result is dropped when its token no longer
// matches.
type TokenSource struct {
	mu  sync.Mutex
	gen uint64
	cur map[string]uint64
}

// NewTokenSource returns an empty token source.
func NewTokenSource() *TokenSource {
	return &TokenSource{cur: make(map[string]uint64)}
}

// Issue registers a fetch for the given vehicle, superseding any
// earlier token for it. Window changes go through Issue too, so a
// result fetched for an outdated window can never land.
func (t *TokenSource) Issue(vehicleID string) Token {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen++
	t.cur[vehicleID] = t.gen
	return Token{vehicleID: vehicleID, gen: t.gen}
}

// IsCurrent reports whether the token still matches the latest issue
// for its vehicle. A superseded token means the result must be
// discarded.
func (t *TokenSource) IsCurrent(tok Token) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cur[tok.vehicleID] == tok.gen
}

// Forget drops tracking for a vehicle removed from view.
func (t *TokenSource) Forget(vehicleID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.cur, vehicleID)
}
