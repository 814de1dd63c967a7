package route

import "sync"

// Database is the RouteDatabase collaborator from spec §6: a shared,
// process-wide record of routes that have recently failed to connect.
// ShouldPostpone causes the Selector to defer a route to the tail of its
// search rather than refuse it outright — the route is still tried, just
// last. Grounded on chproxy's internal/topology.Node penalty bookkeeping
// (a small atomic/mutex-guarded counter the selection logic consults),
// simplified to the plain set OkHttp's own RouteDatabase uses: this design
// has no time-based decay, matching spec §4.2's "the selector does not
// reconsider the failed route itself" contract.
type Database struct {
	mu     sync.Mutex
	failed map[string]struct{}
}

// NewDatabase returns an empty Database.
func NewDatabase() *Database {
	return &Database{failed: make(map[string]struct{})}
}

// ShouldPostpone reports whether r previously failed and should be tried
// only after fresher candidates are exhausted.
func (db *Database) ShouldPostpone(r Route) bool {
	db.mu.Lock()
	defer db.mu.Unlock()
	_, bad := db.failed[r.Key()]
	return bad
}

// Failed records r as having failed to connect.
func (db *Database) Failed(r Route) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.failed[r.Key()] = struct{}{}
}

// Succeeded forgets r, if it was ever recorded as failed. Not required by
// spec.md but useful for long-lived clients whose network conditions
// change; the Selector never calls it itself.
func (db *Database) Succeeded(r Route) {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.failed, r.Key())
}
