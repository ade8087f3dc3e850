package marc

// Set is an insertion-ordered set of strings. Duplicates are suppressed but
// iteration follows first-insertion order.
type Set struct {
	items []string
	seen  map[string]struct{}
}

// NewSet creates a set holding values.
func NewSet(values ...string) *Set {
	s := &Set{seen: make(map[string]struct{})}
	s.AddAll(values...)
	return s
}

// Add inserts v and reports whether it was new.
func (s *Set) Add(v string) bool {
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[v]; ok {
		return false
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
	return true
}

// AddAll inserts every value in order.
func (s *Set) AddAll(values ...string) {
	for _, v := range values {
		s.Add(v)
	}
}

// Contains reports whether v is present.
func (s *Set) Contains(v string) bool {
	_, ok := s.seen[v]
	return ok
}

// Len returns the number of distinct values.
func (s *Set) Len() int {
	return len(s.items)
}

// Values returns the values in insertion order. The slice is a copy.
func (s *Set) Values() []string {
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}
