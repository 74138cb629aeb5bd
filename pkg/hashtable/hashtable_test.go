package hashtable

import "testing"

func identityHash(key int32) uint64 { return uint64(uint32(key)) }

func TestInsertFindRemove(t *testing.T) {
	tbl := New[int32, string](2, identityHash)
	tbl.Insert(1, "a")
	tbl.Insert(2, "b")
	if v, ok := tbl.Find(1); !ok || v != "a" {
		t.Fatalf("Find(1) = %v, %v, want a, true", v, ok)
	}
	if !tbl.Remove(1) {
		t.Fatalf("Remove(1) = false, want true")
	}
	if _, ok := tbl.Find(1); ok {
		t.Fatalf("expected 1 to be gone")
	}
}

func TestDirectoryGrowsOnOverflow(t *testing.T) {
	tbl := New[int32, int](2, identityHash)
	for i := int32(0); i < 16; i++ {
		tbl.Insert(i, int(i)*10)
	}
	for i := int32(0); i < 16; i++ {
		v, ok := tbl.Find(i)
		if !ok || v != int(i)*10 {
			t.Fatalf("Find(%d) = %v, %v, want %d, true", i, v, ok, i*10)
		}
	}
	if tbl.GlobalDepth() == 0 {
		t.Fatalf("expected global depth to have grown past 0")
	}
}

func TestOverwriteExistingKey(t *testing.T) {
	tbl := New[int32, string](4, identityHash)
	tbl.Insert(5, "first")
	tbl.Insert(5, "second")
	if v, ok := tbl.Find(5); !ok || v != "second" {
		t.Fatalf("Find(5) = %v, %v, want second, true", v, ok)
	}
	if tbl.NumBuckets() != 1 {
		t.Fatalf("NumBuckets() = %d, want 1 (overwrite should not split)", tbl.NumBuckets())
	}
}
