package internal

// Set is an unordered collection of distinct values.
type Set[T comparable] struct {
	m map[T]struct{}
}

func NewSet[T comparable]() *Set[T] {
	return &Set[T]{
		m: make(map[T]struct{}),
	}
}

// Add inserts item and reports whether it was not already present.
func (s *Set[T]) Add(item T) bool {
	if _, exists := s.m[item]; exists {
		return false
	}
	s.m[item] = struct{}{}
	return true
}

func (s *Set[T]) Len() int {
	return len(s.m)
}
