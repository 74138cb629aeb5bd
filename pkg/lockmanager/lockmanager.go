// Package lockmanager implements hierarchical (IS/IX/S/SIX/X) locking
// over tables and rows, with strict two-phase-locking state
// transitions per isolation level and background deadlock detection.
package lockmanager

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"latchkv/pkg/txn"
)

// Manager grants and releases table and row locks for transactions.
type Manager struct {
	mu         sync.Mutex
	tableLocks map[string]*requestQueue
	rowLocks   map[string]*requestQueue

	txnsMu sync.Mutex
	txns   map[uuid.UUID]*txn.Transaction

	graph *waitsForGraph

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New constructs a Manager and starts its background deadlock
// detector, which rebuilds the wait-for graph and aborts a cycle's
// highest-id transaction every interval.
func New(interval time.Duration) *Manager {
	m := &Manager{
		tableLocks: map[string]*requestQueue{},
		rowLocks:   map[string]*requestQueue{},
		txns:       map[uuid.UUID]*txn.Transaction{},
		graph:      newWaitsForGraph(),
		stopCh:     make(chan struct{}),
	}
	go m.runDetector(interval)
	return m
}

// Stop terminates the background deadlock detector.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// Begin registers and returns a new transaction.
func (m *Manager) Begin(isolation txn.IsolationLevel) *txn.Transaction {
	t := txn.New(isolation)
	m.txnsMu.Lock()
	m.txns[t.ID()] = t
	m.txnsMu.Unlock()
	return t
}

func (m *Manager) tableQueue(table string) *requestQueue {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.tableLocks[table]
	if !ok {
		q = newRequestQueue()
		m.tableLocks[table] = q
	}
	return q
}

func (m *Manager) rowQueue(table, key string) *requestQueue {
	id := table + "/" + key
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.rowLocks[id]
	if !ok {
		q = newRequestQueue()
		m.rowLocks[id] = q
	}
	return q
}

func abort(t *txn.Transaction, reason txn.AbortReason) error {
	t.SetState(txn.Aborted)
	return &txn.AbortError{TxnID: t.ID(), Reason: reason}
}

// checkIsolationTransition enforces which lock modes a transaction
// may still acquire given its current 2PL phase and isolation level.
func checkIsolationTransition(t *txn.Transaction, mode txn.LockMode) error {
	if (mode == txn.Shared || mode == txn.IntentionShared || mode == txn.SharedIntentionExclusive) &&
		t.IsolationLevel() == txn.ReadUncommitted {
		return abort(t, txn.LockSharedOnReadUncommitted)
	}
	if t.State() != txn.Shrinking {
		return nil
	}
	switch t.IsolationLevel() {
	case txn.ReadUncommitted:
		return abort(t, txn.LockOnShrinking)
	case txn.ReadCommitted:
		if mode == txn.IntentionShared || mode == txn.Shared {
			return nil
		}
		return abort(t, txn.LockOnShrinking)
	default: // RepeatableRead
		return abort(t, txn.LockOnShrinking)
	}
}

// LockTable acquires mode on table for t, blocking until granted,
// deadlock-aborted, or rejected outright.
func (m *Manager) LockTable(t *txn.Transaction, mode txn.LockMode, table string) error {
	if err := checkIsolationTransition(t, mode); err != nil {
		return err
	}
	q := m.tableQueue(table)
	q.mu.Lock()
	defer q.mu.Unlock()

	if existing, held := t.TableLockMode(table); held {
		if existing == mode {
			return nil
		}
		if q.hasUpgrading && q.upgrading != t.ID() {
			return abort(t, txn.UpgradeConflict)
		}
		if !upgradeAllowed(existing, mode) {
			return abort(t, txn.IncompatibleUpgrade)
		}
		m.removeGrantedLocked(q, t)
		t.RemoveTableLock(existing, table)
		q.hasUpgrading = true
		q.upgrading = t.ID()
	}

	req := &lockRequest{txn: t, mode: mode}
	q.requests = append(q.requests, req)
	for !req.granted {
		if t.State() == txn.Aborted {
			m.removeRequestLocked(q, req)
			if q.hasUpgrading && q.upgrading == t.ID() {
				q.hasUpgrading = false
			}
			q.cond.Broadcast()
			return &txn.AbortError{TxnID: t.ID(), Reason: txn.Deadlock}
		}
		if q.tryGrant(req) {
			req.granted = true
			break
		}
		q.cond.Wait()
	}
	if q.hasUpgrading && q.upgrading == t.ID() {
		q.hasUpgrading = false
	}
	t.AddTableLock(mode, table)
	q.cond.Broadcast()
	return nil
}

// UnlockTable releases t's lock on table.
func (m *Manager) UnlockTable(t *txn.Transaction, table string) error {
	mode, held := t.TableLockMode(table)
	if !held {
		return abort(t, txn.AttemptedUnlockButNoLockHeld)
	}
	if rows := t.RowLocksOnTable(table); len(rows) > 0 {
		return abort(t, txn.TableUnlockedBeforeUnlockingRows)
	}
	q := m.tableQueue(table)
	q.mu.Lock()
	m.removeGrantedLocked(q, t)
	q.cond.Broadcast()
	q.mu.Unlock()

	t.RemoveTableLock(mode, table)
	transitionOnUnlock(t, mode)
	return nil
}

// LockRow acquires mode (Shared or Exclusive only) on table/key.
func (m *Manager) LockRow(t *txn.Transaction, mode txn.LockMode, table, key string) error {
	if mode != txn.Shared && mode != txn.Exclusive {
		return abort(t, txn.AttemptedIntentionLockOnRow)
	}
	if err := checkIsolationTransition(t, mode); err != nil {
		return err
	}
	tableMode, held := t.TableLockMode(table)
	if !held || !tableModeCompatibleWithRow(tableMode, mode) {
		return abort(t, txn.TableLockNotPresent)
	}

	q := m.rowQueue(table, key)
	q.mu.Lock()
	defer q.mu.Unlock()

	if existing, held := t.RowLockMode(table, key); held {
		if existing == mode {
			return nil
		}
		if q.hasUpgrading && q.upgrading != t.ID() {
			return abort(t, txn.UpgradeConflict)
		}
		if !upgradeAllowed(existing, mode) {
			return abort(t, txn.IncompatibleUpgrade)
		}
		m.removeGrantedLocked(q, t)
		t.RemoveRowLock(existing, table, key)
		q.hasUpgrading = true
		q.upgrading = t.ID()
	}

	req := &lockRequest{txn: t, mode: mode}
	q.requests = append(q.requests, req)
	for !req.granted {
		if t.State() == txn.Aborted {
			m.removeRequestLocked(q, req)
			if q.hasUpgrading && q.upgrading == t.ID() {
				q.hasUpgrading = false
			}
			q.cond.Broadcast()
			return &txn.AbortError{TxnID: t.ID(), Reason: txn.Deadlock}
		}
		if q.tryGrant(req) {
			req.granted = true
			break
		}
		q.cond.Wait()
	}
	if q.hasUpgrading && q.upgrading == t.ID() {
		q.hasUpgrading = false
	}
	t.AddRowLock(mode, table, key)
	q.cond.Broadcast()
	return nil
}

// UnlockRow releases t's row lock on table/key.
func (m *Manager) UnlockRow(t *txn.Transaction, table, key string) error {
	mode, held := t.RowLockMode(table, key)
	if !held {
		return abort(t, txn.AttemptedUnlockButNoLockHeld)
	}
	q := m.rowQueue(table, key)
	q.mu.Lock()
	m.removeGrantedLocked(q, t)
	q.cond.Broadcast()
	q.mu.Unlock()

	t.RemoveRowLock(mode, table, key)
	transitionOnUnlock(t, mode)
	return nil
}

func transitionOnUnlock(t *txn.Transaction, mode txn.LockMode) {
	if mode != txn.Shared && mode != txn.Exclusive {
		return
	}
	if t.IsolationLevel() == txn.ReadCommitted && mode == txn.Shared {
		return
	}
	if t.State() == txn.Growing {
		t.SetState(txn.Shrinking)
	}
}

// removeGrantedLocked drops t's currently granted request from q, for
// both plain unlocks and upgrade-in-place. q.mu must be held.
func (m *Manager) removeGrantedLocked(q *requestQueue, t *txn.Transaction) {
	for i, r := range q.requests {
		if r.txn.ID() == t.ID() && r.granted {
			q.requests = append(q.requests[:i], q.requests[i+1:]...)
			return
		}
	}
}

func (m *Manager) removeRequestLocked(q *requestQueue, req *lockRequest) {
	for i, r := range q.requests {
		if r == req {
			q.requests = append(q.requests[:i], q.requests[i+1:]...)
			return
		}
	}
}

// ReleaseAll drops every lock t holds, used when aborting a
// deadlock victim.
func (m *Manager) ReleaseAll(t *txn.Transaction) {
	for _, ids := range t.AllRowLocks() {
		for _, id := range ids {
			i := indexOfSlash(id)
			m.UnlockRow(t, id[:i], id[i+1:])
		}
	}
	for _, names := range t.AllTableLocks() {
		for _, name := range names {
			m.UnlockTable(t, name)
		}
	}
}

func indexOfSlash(s string) int {
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			return i
		}
	}
	return -1
}
