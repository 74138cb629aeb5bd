package bptree

import (
	"math/rand"
	"sync"
	"testing"
)

func newTestTree() *BPlusTree[int64, int64] {
	return New[int64, int64]("test", IntComparator, 4, nil)
}

func TestInsertAndGet(t *testing.T) {
	tree := newTestTree()
	if err := tree.Insert(1, 100); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	v, ok := tree.GetValue(1)
	if !ok || v != 100 {
		t.Fatalf("GetValue(1) = %v, %v, want 100, true", v, ok)
	}
	if _, ok := tree.GetValue(2); ok {
		t.Fatalf("expected key 2 to be absent")
	}
}

func TestDuplicateInsertRejected(t *testing.T) {
	tree := newTestTree()
	if err := tree.Insert(5, 1); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tree.Insert(5, 2); err != ErrDuplicateKey {
		t.Fatalf("Insert duplicate = %v, want ErrDuplicateKey", err)
	}
}

func TestSplitsAndRangeScanOrdered(t *testing.T) {
	tree := newTestTree()
	n := 200
	keys := rand.Perm(n)
	for _, k := range keys {
		if err := tree.Insert(int64(k), int64(k)*10); err != nil {
			t.Fatalf("Insert(%d): %v", k, err)
		}
	}
	it := tree.Begin()
	count := 0
	var prev int64 = -1
	for it.Valid() {
		if it.Key() <= prev {
			t.Fatalf("iteration out of order: %d after %d", it.Key(), prev)
		}
		if it.Value() != it.Key()*10 {
			t.Fatalf("value mismatch at key %d: got %d", it.Key(), it.Value())
		}
		prev = it.Key()
		count++
		it.Next()
	}
	if count != n {
		t.Fatalf("scanned %d entries, want %d", count, n)
	}
}

func TestBeginAtPositionsAtOrAfterKey(t *testing.T) {
	tree := newTestTree()
	for _, k := range []int64{10, 20, 30, 40, 50} {
		tree.Insert(k, k)
	}
	it := tree.BeginAt(25)
	if !it.Valid() || it.Key() != 30 {
		t.Fatalf("BeginAt(25) landed on %v, want 30", it.Key())
	}
	it.Close()
}

func TestDeleteThenLookupMiss(t *testing.T) {
	tree := newTestTree()
	for i := int64(0); i < 50; i++ {
		tree.Insert(i, i)
	}
	for i := int64(0); i < 50; i += 2 {
		if err := tree.Delete(i); err != nil {
			t.Fatalf("Delete(%d): %v", i, err)
		}
	}
	for i := int64(0); i < 50; i++ {
		v, ok := tree.GetValue(i)
		if i%2 == 0 {
			if ok {
				t.Fatalf("key %d should have been deleted, got %d", i, v)
			}
		} else if !ok || v != i {
			t.Fatalf("GetValue(%d) = %d, %v, want %d, true", i, v, ok, i)
		}
	}
}

func TestDeleteMissingKey(t *testing.T) {
	tree := newTestTree()
	tree.Insert(1, 1)
	if err := tree.Delete(2); err != ErrKeyNotFound {
		t.Fatalf("Delete(2) = %v, want ErrKeyNotFound", err)
	}
}

func TestDeleteAllEmptiesTree(t *testing.T) {
	tree := newTestTree()
	for i := int64(0); i < 30; i++ {
		tree.Insert(i, i)
	}
	for i := int64(0); i < 30; i++ {
		if err := tree.Delete(i); err != nil {
			t.Fatalf("Delete(%d): %v", i, err)
		}
	}
	if !tree.IsEmpty() {
		t.Fatalf("expected tree to be empty after deleting every key")
	}
}

func TestConcurrentInsertsAllVisible(t *testing.T) {
	tree := newTestTree()
	var wg sync.WaitGroup
	const perGoroutine = 50
	const goroutines = 8
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(base int64) {
			defer wg.Done()
			for i := int64(0); i < perGoroutine; i++ {
				tree.Insert(base*perGoroutine+i, base*perGoroutine+i)
			}
		}(int64(g))
	}
	wg.Wait()
	for i := int64(0); i < perGoroutine*goroutines; i++ {
		if v, ok := tree.GetValue(i); !ok || v != i {
			t.Fatalf("GetValue(%d) = %d, %v, want %d, true", i, v, ok, i)
		}
	}
}
