package ring

// Buffer is a fixed-capacity collection that evicts the oldest entry on
// overflow. Entries are stored oldest first.
type Buffer[T any] struct {
	capacity int
	items    []T
}

// New creates a Buffer holding at most capacity entries. A capacity below 1
// is treated as 1.
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{capacity: capacity}
}

// Push appends v, evicting the oldest entry when the buffer is full.
func (b *Buffer[T]) Push(v T) {
	b.items = append(b.items, v)
	if len(b.items) > b.capacity {
		b.items = b.items[len(b.items)-b.capacity:]
	}
}

// Fill replaces the contents with items, keeping only the newest entries
// when items exceed the capacity.
func (b *Buffer[T]) Fill(items []T) {
	items = Tail(items, b.capacity)
	b.items = append(b.items[:0:0], items...)
}

// Items returns the entries oldest first as a copy.
func (b *Buffer[T]) Items() []T {
	return append([]T(nil), b.items...)
}

// NewestFirst returns the entries newest first as a copy.
func (b *Buffer[T]) NewestFirst() []T {
	out := make([]T, len(b.items))
	for i, v := range b.items {
		out[len(b.items)-1-i] = v
	}
	return out
}

func (b *Buffer[T]) Len() int { return len(b.items) }

func (b *Buffer[T]) Cap() int { return b.capacity }

// Set is a fixed-capacity membership set for dedup by id. On overflow the
// oldest id is retired, so memory stays bounded on long-lived streams at the
// cost of no longer recognizing duplicates older than the horizon.
type Set struct {
	capacity int
	order    []string
	members  map[string]struct{}
}

// NewSet creates a Set remembering at most capacity ids. A capacity below 1
// is treated as 1.
func NewSet(capacity int) *Set {
	if capacity < 1 {
		capacity = 1
	}
	return &Set{capacity: capacity, members: make(map[string]struct{}, capacity)}
}

// Add records id and reports whether it was newly added.
func (s *Set) Add(id string) bool {
	if _, ok := s.members[id]; ok {
		return false
	}
	s.members[id] = struct{}{}
	s.order = append(s.order, id)
	if len(s.order) > s.capacity {
		delete(s.members, s.order[0])
		s.order = s.order[1:]
	}
	return true
}

// Has reports whether id is still within the horizon.
func (s *Set) Has(id string) bool {
	_, ok := s.members[id]
	return ok
}

func (s *Set) Len() int { return len(s.members) }

// Tail returns the newest n entries of s, preserving order.
func Tail[T any](s []T, n int) []T {
	if n < 0 {
		n = 0
	}
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
