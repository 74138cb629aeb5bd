package list

import "testing"

func TestPushAndOrder(t *testing.T) {
	l := New[int]()
	l.PushTail(1)
	l.PushTail(2)
	l.PushHead(0)
	var got []int
	for cur := l.PeekHead(); cur != nil; cur = cur.GetNext() {
		got = append(got, cur.GetValue())
	}
	want := []int{0, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if l.Len() != 3 {
		t.Fatalf("len = %d, want 3", l.Len())
	}
}

func TestPopSelfMiddle(t *testing.T) {
	l := New[string]()
	a := l.PushTail("a")
	l.PushTail("b")
	c := l.PushTail("c")
	a.GetNext().PopSelf() // pop "b"
	if l.Len() != 2 {
		t.Fatalf("len = %d, want 2", l.Len())
	}
	if a.GetNext() != c {
		t.Fatalf("expected a.next == c after popping b")
	}
	if c.GetPrev() != a {
		t.Fatalf("expected c.prev == a after popping b")
	}
}

func TestPopHead(t *testing.T) {
	l := New[int]()
	l.PushTail(1)
	l.PushTail(2)
	v, ok := l.PopHead()
	if !ok || v != 1 {
		t.Fatalf("PopHead() = %d, %v, want 1, true", v, ok)
	}
	if l.PeekHead().GetValue() != 2 {
		t.Fatalf("expected head to be 2 after pop")
	}
}

func TestFind(t *testing.T) {
	l := New[int]()
	l.PushTail(10)
	l.PushTail(20)
	l.PushTail(30)
	link := l.Find(func(lk *Link[int]) bool { return lk.GetValue() == 20 })
	if link == nil {
		t.Fatalf("expected to find 20")
	}
}
