package ring

import "testing"

func TestPushEvictsOldest(t *testing.T) {
	for capacity := 1; capacity <= 8; capacity++ {
		b := New[int](capacity)
		for i := 0; i <= capacity; i++ {
			b.Push(i)
		}
		items := b.Items()
		if len(items) != capacity {
			t.Fatalf("cap %d: got %d items, want %d", capacity, len(items), capacity)
		}
		// 0 is the single evicted entry; 1..capacity remain in order.
		for i, v := range items {
			if v != i+1 {
				t.Errorf("cap %d: items[%d] = %d, want %d", capacity, i, v, i+1)
			}
		}
	}
}

func TestFillKeepsNewest(t *testing.T) {
	b := New[string](2)
	b.Fill([]string{"a", "b", "c"})
	items := b.Items()
	if len(items) != 2 || items[0] != "b" || items[1] != "c" {
		t.Fatalf("got %v, want [b c]", items)
	}
}

func TestNewestFirst(t *testing.T) {
	b := New[int](3)
	b.Push(1)
	b.Push(2)
	b.Push(3)
	got := b.NewestFirst()
	want := []int{3, 2, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestItemsIsACopy(t *testing.T) {
	b := New[int](2)
	b.Push(1)
	items := b.Items()
	items[0] = 99
	if b.Items()[0] != 1 {
		t.Fatal("Items must not expose internal storage")
	}
}

func TestSetDedupsWithinHorizon(t *testing.T) {
	s := NewSet(3)
	if !s.Add("a") {
		t.Fatal("first add must report new")
	}
	if s.Add("a") {
		t.Fatal("second add must report duplicate")
	}
	if !s.Has("a") {
		t.Fatal("Has must see a recorded id")
	}
}

func TestSetRetiresOldestOnOverflow(t *testing.T) {
	s := NewSet(2)
	s.Add("a")
	s.Add("b")
	s.Add("c")
	if s.Has("a") {
		t.Fatal("oldest id must be retired on overflow")
	}
	if !s.Has("b") || !s.Has("c") {
		t.Fatal("newer ids must survive")
	}
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
	// A retired id counts as new again.
	if !s.Add("a") {
		t.Fatal("re-adding a retired id must report new")
	}
}

func TestTail(t *testing.T) {
	s := []int{1, 2, 3, 4}
	got := Tail(s, 2)
	if len(got) != 2 || got[0] != 3 || got[1] != 4 {
		t.Fatalf("got %v, want [3 4]", got)
	}
	if len(Tail(s, 10)) != 4 {
		t.Fatal("Tail with n >= len must return the full slice")
	}
	if len(Tail(s, 0)) != 0 {
		t.Fatal("Tail with n = 0 must return empty")
	}
}
