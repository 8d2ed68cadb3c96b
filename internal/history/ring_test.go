package history

import "testing"

func TestRing_InsertionOrderUnderCapacity(t *testing.T) {
	r := NewRing[int](5)

	for i := 0; i < 3; i++ {
		if evicted := r.Push(i); evicted {
			t.Fatalf("Push(%d) evicted on a non-full ring", i)
		}
	}

	got := r.Items()
	want := []int{0, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("Items() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Items()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestRing_EvictsOldestFirst(t *testing.T) {
	const capacity = 4

	for n := 0; n <= 3*capacity; n++ {
		r := NewRing[int](capacity)
		for i := 0; i < n; i++ {
			r.Push(i)
		}

		wantLen := n
		if wantLen > capacity {
			wantLen = capacity
		}
		got := r.Items()
		if len(got) != wantLen {
			t.Fatalf("n=%d: Len = %d, want %d", n, len(got), wantLen)
		}
		for i, v := range got {
			if want := n - wantLen + i; v != want {
				t.Errorf("n=%d: Items()[%d] = %d, want %d", n, i, v, want)
			}
		}
	}
}

func TestRing_Last(t *testing.T) {
	r := NewRing[string](2)

	if _, ok := r.Last(); ok {
		t.Error("Last() on empty ring returned ok")
	}

	r.Push("a")
	r.Push("b")
	r.Push("c")

	last, ok := r.Last()
	if !ok || last != "c" {
		t.Errorf("Last() = %q, %v, want %q, true", last, ok, "c")
	}
}

func TestRing_ItemsIsCopy(t *testing.T) {
	r := NewRing[int](3)
	r.Push(1)

	items := r.Items()
	items[0] = 99

	if got := r.Items()[0]; got != 1 {
		t.Errorf("ring mutated through Items() copy: got %d", got)
	}
}

func TestRing_ResetAndStats(t *testing.T) {
	r := NewRing[int](2)
	for i := 0; i < 5; i++ {
		r.Push(i)
	}

	stats := r.Stats()
	if stats.TotalPushed != 5 {
		t.Errorf("TotalPushed = %d, want 5", stats.TotalPushed)
	}
	if stats.Evicted != 3 {
		t.Errorf("Evicted = %d, want 3", stats.Evicted)
	}

	r.Reset()
	if r.Len() != 0 {
		t.Errorf("Len() after Reset = %d, want 0", r.Len())
	}
	r.Push(7)
	if got := r.Items(); len(got) != 1 || got[0] != 7 {
		t.Errorf("Items() after Reset+Push = %v, want [7]", got)
	}
}

func TestNewRing_MinimumCapacity(t *testing.T) {
	r := NewRing[int](0)
	if r.Cap() != 1 {
		t.Errorf("Cap() = %d, want 1", r.Cap())
	}
}
