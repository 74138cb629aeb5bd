package lockmanager

import (
	"testing"
	"time"

	"latchkv/pkg/txn"
)

func newTestManager() *Manager {
	return New(20 * time.Millisecond)
}

func TestSharedLocksAreCompatible(t *testing.T) {
	m := newTestManager()
	defer m.Stop()
	t1 := m.Begin(txn.RepeatableRead)
	t2 := m.Begin(txn.RepeatableRead)
	if err := m.LockTable(t1, txn.Shared, "accounts"); err != nil {
		t.Fatalf("t1 LockTable: %v", err)
	}
	if err := m.LockTable(t2, txn.Shared, "accounts"); err != nil {
		t.Fatalf("t2 LockTable: %v", err)
	}
}

func TestExclusiveBlocksShared(t *testing.T) {
	m := newTestManager()
	defer m.Stop()
	t1 := m.Begin(txn.RepeatableRead)
	t2 := m.Begin(txn.RepeatableRead)
	if err := m.LockTable(t1, txn.Exclusive, "accounts"); err != nil {
		t.Fatalf("t1 LockTable: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- m.LockTable(t2, txn.Shared, "accounts") }()
	select {
	case <-done:
		t.Fatalf("expected t2 to block while t1 holds X")
	case <-time.After(50 * time.Millisecond):
	}
	m.UnlockTable(t1, "accounts")
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("t2 LockTable after release: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("t2 never got granted after t1 released")
	}
}

func TestUpgradeIsAllowedSToX(t *testing.T) {
	m := newTestManager()
	defer m.Stop()
	t1 := m.Begin(txn.RepeatableRead)
	if err := m.LockTable(t1, txn.Shared, "accounts"); err != nil {
		t.Fatalf("LockTable S: %v", err)
	}
	if err := m.LockTable(t1, txn.Exclusive, "accounts"); err != nil {
		t.Fatalf("upgrade S->X: %v", err)
	}
	mode, _ := t1.TableLockMode("accounts")
	if mode != txn.Exclusive {
		t.Fatalf("mode after upgrade = %v, want Exclusive", mode)
	}
}

func TestIncompatibleUpgradeRejected(t *testing.T) {
	m := newTestManager()
	defer m.Stop()
	t1 := m.Begin(txn.RepeatableRead)
	m.LockTable(t1, txn.Exclusive, "accounts")
	err := m.LockTable(t1, txn.Shared, "accounts")
	abortErr, ok := err.(*txn.AbortError)
	if !ok || abortErr.Reason != txn.IncompatibleUpgrade {
		t.Fatalf("LockTable X->S = %v, want IncompatibleUpgrade", err)
	}
}

func TestRowLockRequiresTableLock(t *testing.T) {
	m := newTestManager()
	defer m.Stop()
	t1 := m.Begin(txn.RepeatableRead)
	err := m.LockRow(t1, txn.Shared, "accounts", "1")
	abortErr, ok := err.(*txn.AbortError)
	if !ok || abortErr.Reason != txn.TableLockNotPresent {
		t.Fatalf("LockRow without table lock = %v, want TableLockNotPresent", err)
	}
}

func TestIntentionLockOnRowRejected(t *testing.T) {
	m := newTestManager()
	defer m.Stop()
	t1 := m.Begin(txn.RepeatableRead)
	m.LockTable(t1, txn.IntentionShared, "accounts")
	err := m.LockRow(t1, txn.IntentionShared, "accounts", "1")
	abortErr, ok := err.(*txn.AbortError)
	if !ok || abortErr.Reason != txn.AttemptedIntentionLockOnRow {
		t.Fatalf("LockRow(IS) = %v, want AttemptedIntentionLockOnRow", err)
	}
}

func TestUnlockTableBeforeRowsRejected(t *testing.T) {
	m := newTestManager()
	defer m.Stop()
	t1 := m.Begin(txn.RepeatableRead)
	m.LockTable(t1, txn.IntentionExclusive, "accounts")
	m.LockRow(t1, txn.Exclusive, "accounts", "1")
	err := m.UnlockTable(t1, "accounts")
	abortErr, ok := err.(*txn.AbortError)
	if !ok || abortErr.Reason != txn.TableUnlockedBeforeUnlockingRows {
		t.Fatalf("UnlockTable with rows held = %v, want TableUnlockedBeforeUnlockingRows", err)
	}
}

func TestReadUncommittedRejectsSharedLock(t *testing.T) {
	m := newTestManager()
	defer m.Stop()
	t1 := m.Begin(txn.ReadUncommitted)
	err := m.LockTable(t1, txn.Shared, "accounts")
	abortErr, ok := err.(*txn.AbortError)
	if !ok || abortErr.Reason != txn.LockSharedOnReadUncommitted {
		t.Fatalf("RU LockTable(S) = %v, want LockSharedOnReadUncommitted", err)
	}
}

func TestLockOnShrinkingRejected(t *testing.T) {
	m := newTestManager()
	defer m.Stop()
	t1 := m.Begin(txn.RepeatableRead)
	m.LockTable(t1, txn.Shared, "accounts")
	m.UnlockTable(t1, "accounts") // enters SHRINKING
	err := m.LockTable(t1, txn.Shared, "other")
	abortErr, ok := err.(*txn.AbortError)
	if !ok || abortErr.Reason != txn.LockOnShrinking {
		t.Fatalf("lock after shrinking = %v, want LockOnShrinking", err)
	}
}

func TestDeadlockDetectionAbortsHigherIDTxn(t *testing.T) {
	m := newTestManager()
	defer m.Stop()
	t1 := m.Begin(txn.RepeatableRead)
	t2 := m.Begin(txn.RepeatableRead)

	if err := m.LockTable(t1, txn.Exclusive, "a"); err != nil {
		t.Fatalf("t1 lock a: %v", err)
	}
	if err := m.LockTable(t2, txn.Exclusive, "b"); err != nil {
		t.Fatalf("t2 lock b: %v", err)
	}

	errCh1 := make(chan error, 1)
	errCh2 := make(chan error, 1)
	go func() { errCh1 <- m.LockTable(t1, txn.Exclusive, "b") }()
	go func() { errCh2 <- m.LockTable(t2, txn.Exclusive, "a") }()

	var got1, got2 error
	select {
	case got1 = <-errCh1:
	case <-time.After(2 * time.Second):
		t.Fatalf("t1 never resolved")
	}
	select {
	case got2 = <-errCh2:
	case <-time.After(2 * time.Second):
		t.Fatalf("t2 never resolved")
	}
	// Exactly one of the two should have been aborted as the deadlock
	// victim (the higher transaction id); the other should succeed.
	aborted := 0
	if got1 != nil {
		aborted++
	}
	if got2 != nil {
		aborted++
	}
	if aborted != 1 {
		t.Fatalf("expected exactly one txn aborted by deadlock detection, got1=%v got2=%v", got1, got2)
	}
	higherIsT1 := less(t2.ID(), t1.ID())
	if higherIsT1 && got1 == nil {
		t.Fatalf("expected t1 (higher id) to be the victim, got1=%v got2=%v", got1, got2)
	}
	if !higherIsT1 && got2 == nil {
		t.Fatalf("expected t2 (higher id) to be the victim, got1=%v got2=%v", got1, got2)
	}
}
