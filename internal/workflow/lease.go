package workflow

import (
	"sync"
	"time"
)

// leaseTable enforces single-flight processing per document and tracks
// retry deferrals so backoff delays do not block a worker.
type leaseTable struct {
	mu       sync.Mutex
	active   map[string]struct{}
	deferred map[string]time.Time
}

func newLeaseTable() *leaseTable {
	return &leaseTable{
		active:   make(map[string]struct{}),
		deferred: make(map[string]time.Time),
	}
}

// Acquire claims a document for processing. It fails when the document is
// already leased or its retry deferral has not elapsed.
func (t *leaseTable) Acquire(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, held := t.active[id]; held {
		return false
	}
	if until, ok := t.deferred[id]; ok {
		if time.Now().Before(until) {
			return false
		}
		delete(t.deferred, id)
	}
	t.active[id] = struct{}{}
	return true
}

// Release returns a document to the pool of claimable work.
func (t *leaseTable) Release(id string) {
	t.mu.Lock()
	delete(t.active, id)
	t.mu.Unlock()
}

// Defer blocks a document from being re-acquired until the deadline passes.
func (t *leaseTable) Defer(id string, until time.Time) {
	t.mu.Lock()
	t.deferred[id] = until
	t.mu.Unlock()
}

// Held reports whether a document is currently leased.
func (t *leaseTable) Held(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, held := t.active[id]
	return held
}

// Forget drops any deferral state for a document.
func (t *leaseTable) Forget(id string) {
	t.mu.Lock()
	delete(t.deferred, id)
	t.mu.Unlock()
}
