// Package txn defines the transaction object the lock manager and
// buffer-pool-backed index operations coordinate through: lock
// footprint, isolation level, and two-phase-locking state.
package txn

import (
	"sync"

	"github.com/google/uuid"
)

// LockMode is one of the five hierarchical lock modes.
type LockMode int

const (
	IntentionShared LockMode = iota
	IntentionExclusive
	Shared
	SharedIntentionExclusive
	Exclusive
)

func (m LockMode) String() string {
	switch m {
	case IntentionShared:
		return "IS"
	case IntentionExclusive:
		return "IX"
	case Shared:
		return "S"
	case SharedIntentionExclusive:
		return "SIX"
	case Exclusive:
		return "X"
	default:
		return "UNKNOWN"
	}
}

// IsolationLevel controls which GROWING/SHRINKING transitions are
// permitted for a transaction.
type IsolationLevel int

const (
	ReadUncommitted IsolationLevel = iota
	ReadCommitted
	RepeatableRead
)

// State is a transaction's two-phase-locking state.
type State int

const (
	Growing State = iota
	Shrinking
	Committed
	Aborted
)

// AbortReason enumerates why the lock manager unilaterally aborted a
// transaction.
type AbortReason int

const (
	LockOnShrinking AbortReason = iota
	UpgradeConflict
	IncompatibleUpgrade
	LockSharedOnReadUncommitted
	AttemptedIntentionLockOnRow
	TableLockNotPresent
	TableUnlockedBeforeUnlockingRows
	AttemptedUnlockButNoLockHeld
	Deadlock
)

func (r AbortReason) String() string {
	switch r {
	case LockOnShrinking:
		return "LOCK_ON_SHRINKING"
	case UpgradeConflict:
		return "UPGRADE_CONFLICT"
	case IncompatibleUpgrade:
		return "INCOMPATIBLE_UPGRADE"
	case LockSharedOnReadUncommitted:
		return "LOCK_SHARED_ON_READ_UNCOMMITTED"
	case AttemptedIntentionLockOnRow:
		return "ATTEMPTED_INTENTION_LOCK_ON_ROW"
	case TableLockNotPresent:
		return "TABLE_LOCK_NOT_PRESENT"
	case TableUnlockedBeforeUnlockingRows:
		return "TABLE_UNLOCKED_BEFORE_UNLOCKING_ROWS"
	case AttemptedUnlockButNoLockHeld:
		return "ATTEMPTED_UNLOCK_BUT_NO_LOCK_HELD"
	case Deadlock:
		return "DEADLOCK"
	default:
		return "UNKNOWN"
	}
}

// AbortError is returned by the lock manager whenever it aborts a
// transaction rather than granting or releasing a lock.
type AbortError struct {
	TxnID  uuid.UUID
	Reason AbortReason
}

func (e *AbortError) Error() string {
	return "transaction " + e.TxnID.String() + " aborted: " + e.Reason.String()
}

// Transaction tracks one client's lock footprint and 2PL state.
type Transaction struct {
	mu sync.RWMutex

	id        uuid.UUID
	isolation IsolationLevel
	state     State

	tableLocks map[LockMode]map[string]bool   // mode -> set of table names held in that mode
	rowLocks   map[LockMode]map[string]bool    // mode -> set of "table/key" strings held in that mode (S and X only)
}

// New creates a transaction in the Growing state.
func New(isolation IsolationLevel) *Transaction {
	return &Transaction{
		id:         uuid.New(),
		isolation:  isolation,
		state:      Growing,
		tableLocks: map[LockMode]map[string]bool{},
		rowLocks:   map[LockMode]map[string]bool{},
	}
}

// ID returns the transaction's identifier.
func (t *Transaction) ID() uuid.UUID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.id
}

// State returns the transaction's current 2PL state.
func (t *Transaction) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// SetState updates the transaction's 2PL state.
func (t *Transaction) SetState(s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = s
}

// IsolationLevel returns the transaction's isolation level.
func (t *Transaction) IsolationLevel() IsolationLevel {
	return t.isolation
}

// HasTableLock reports whether the transaction holds table in mode.
func (t *Transaction) HasTableLock(mode LockMode, table string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tableLocks[mode][table]
}

// TableLockMode returns the mode the transaction holds on table, if
// any.
func (t *Transaction) TableLockMode(table string) (LockMode, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, mode := range []LockMode{Exclusive, SharedIntentionExclusive, Shared, IntentionExclusive, IntentionShared} {
		if t.tableLocks[mode][table] {
			return mode, true
		}
	}
	return 0, false
}

// AddTableLock records that the transaction now holds table in mode.
func (t *Transaction) AddTableLock(mode LockMode, table string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tableLocks[mode] == nil {
		t.tableLocks[mode] = map[string]bool{}
	}
	t.tableLocks[mode][table] = true
}

// RemoveTableLock removes mode/table from the transaction's footprint.
func (t *Transaction) RemoveTableLock(mode LockMode, table string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.tableLocks[mode], table)
}

// RowLockMode returns the mode the transaction holds on table/key, if
// any.
func (t *Transaction) RowLockMode(table, key string) (LockMode, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id := table + "/" + key
	if t.rowLocks[Exclusive][id] {
		return Exclusive, true
	}
	if t.rowLocks[Shared][id] {
		return Shared, true
	}
	return 0, false
}

// AddRowLock records that the transaction now holds table/key in mode
// (Shared or Exclusive only).
func (t *Transaction) AddRowLock(mode LockMode, table, key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rowLocks[mode] == nil {
		t.rowLocks[mode] = map[string]bool{}
	}
	t.rowLocks[mode][table+"/"+key] = true
}

// RemoveRowLock removes mode/table/key from the transaction's
// footprint.
func (t *Transaction) RemoveRowLock(mode LockMode, table, key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.rowLocks[mode], table+"/"+key)
}

// RowLocksOnTable returns the "table/key" id of every row lock (in any
// mode) the transaction holds on table, used to reject
// TableUnlockedBeforeUnlockingRows.
func (t *Transaction) RowLocksOnTable(table string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	prefix := table + "/"
	var keys []string
	for _, modeSet := range t.rowLocks {
		for id := range modeSet {
			if len(id) > len(prefix) && id[:len(prefix)] == prefix {
				keys = append(keys, id)
			}
		}
	}
	return keys
}

// AllTableLocks returns every table the transaction holds a lock on,
// across all modes, used during abort cleanup.
func (t *Transaction) AllTableLocks() map[LockMode][]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := map[LockMode][]string{}
	for mode, set := range t.tableLocks {
		for name := range set {
			out[mode] = append(out[mode], name)
		}
	}
	return out
}

// AllRowLocks returns every table/key the transaction holds a row
// lock on, across both modes, used during abort cleanup.
func (t *Transaction) AllRowLocks() map[LockMode][]string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := map[LockMode][]string{}
	for mode, set := range t.rowLocks {
		for id := range set {
			out[mode] = append(out[mode], id)
		}
	}
	return out
}
