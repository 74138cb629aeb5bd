package replacer

import "testing"

func TestEvictPrefersFewerThanKHistory(t *testing.T) {
	r := New(8, 2)
	// Frame 1: two accesses (full history).
	r.RecordAccess(1)
	r.RecordAccess(1)
	r.SetEvictable(1, true)
	// Frame 2: one access (not full).
	r.RecordAccess(2)
	r.SetEvictable(2, true)

	victim, ok := r.Evict()
	if !ok || victim != 2 {
		t.Fatalf("Evict() = %d, %v, want 2, true", victim, ok)
	}
}

func TestEvictTieBreaksByOldestAccess(t *testing.T) {
	r := New(8, 2)
	r.RecordAccess(1) // t=0
	r.RecordAccess(1) // t=1
	r.RecordAccess(2) // t=2
	r.RecordAccess(2) // t=3
	r.SetEvictable(1, true)
	r.SetEvictable(2, true)

	victim, ok := r.Evict()
	if !ok || victim != 1 {
		t.Fatalf("Evict() = %d, %v, want 1, true (oldest k-distance)", victim, ok)
	}
}

func TestNonEvictableNotChosen(t *testing.T) {
	r := New(8, 2)
	r.RecordAccess(1)
	r.RecordAccess(2)
	r.SetEvictable(2, true)

	victim, ok := r.Evict()
	if !ok || victim != 2 {
		t.Fatalf("Evict() = %d, %v, want 2, true", victim, ok)
	}
	if _, ok := r.Evict(); ok {
		t.Fatalf("expected no evictable frames left")
	}
}

func TestSizeTracksEvictableCount(t *testing.T) {
	r := New(8, 2)
	r.RecordAccess(1)
	r.RecordAccess(2)
	if r.Size() != 0 {
		t.Fatalf("Size() = %d, want 0", r.Size())
	}
	r.SetEvictable(1, true)
	r.SetEvictable(2, true)
	if r.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", r.Size())
	}
	r.SetEvictable(1, false)
	if r.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", r.Size())
	}
}

func TestRemoveNonEvictableErrors(t *testing.T) {
	r := New(8, 2)
	r.RecordAccess(1)
	if err := r.Remove(1); err != ErrNotEvictable {
		t.Fatalf("Remove() = %v, want ErrNotEvictable", err)
	}
	r.SetEvictable(1, true)
	if err := r.Remove(1); err != nil {
		t.Fatalf("Remove() = %v, want nil", err)
	}
	if r.Size() != 0 {
		t.Fatalf("Size() = %d, want 0", r.Size())
	}
}

func TestRecordAccessDroppedWhenFull(t *testing.T) {
	r := New(1, 2)
	r.RecordAccess(1)
	r.RecordAccess(2) // capacity 1 already used by frame 1; dropped
	r.SetEvictable(1, true)
	victim, ok := r.Evict()
	if !ok || victim != 1 {
		t.Fatalf("Evict() = %d, %v, want 1, true", victim, ok)
	}
}
