package lockmanager

import (
	"sync"

	"github.com/google/uuid"

	"latchkv/pkg/txn"
)

type lockRequest struct {
	txn     *txn.Transaction
	mode    txn.LockMode
	granted bool
}

// requestQueue is the per-resource FIFO of lock requests, matching
// the original's LockRequestQueue: a single condition variable that
// every waiter blocks on, plus a single "upgrading" slot so only one
// transaction may have an in-flight upgrade on a resource at a time.
type requestQueue struct {
	mu            sync.Mutex
	cond          *sync.Cond
	requests      []*lockRequest
	upgrading     uuid.UUID
	hasUpgrading  bool
}

func newRequestQueue() *requestQueue {
	q := &requestQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// grantedModes returns the lock modes currently granted on the
// resource, excluding the given request.
func (q *requestQueue) grantedModes(except *lockRequest) []txn.LockMode {
	var modes []txn.LockMode
	for _, r := range q.requests {
		if r == except || !r.granted {
			continue
		}
		modes = append(modes, r.mode)
	}
	return modes
}

// tryGrant reports whether req can be granted right now: its mode
// must first be compatible with every other granted request. Past
// that, while a transaction has an upgrade pending on this resource,
// every other transaction is blocked outright regardless of
// fairness — the upgrader gets exclusive consideration until its
// upgrade resolves. Otherwise req's mode must also be compatible with
// every still-ungranted request that arrived earlier (the fairness
// rule that stops a late arrival from cutting the queue).
func (q *requestQueue) tryGrant(req *lockRequest) bool {
	for _, m := range q.grantedModes(req) {
		if !compatible(req.mode, m) {
			return false
		}
	}
	if q.hasUpgrading {
		return q.upgrading == req.txn.ID()
	}
	for _, r := range q.requests {
		if r == req {
			break
		}
		if !r.granted && !compatible(req.mode, r.mode) {
			return false
		}
	}
	return true
}

// snapshot splits the queue into its granted and still-waiting
// requests, used by the deadlock detector to build wait-for edges.
func (q *requestQueue) snapshot() (granted []*lockRequest, waiting []*lockRequest) {
	for _, r := range q.requests {
		if r.granted {
			granted = append(granted, r)
		} else {
			waiting = append(waiting, r)
		}
	}
	return
}
