package store

import "strconv"

// idSequence mints activity ids from a counter that only moves forward.
// Callers must hold the store lock.
type idSequence struct {
	last uint64
}

func (s *idSequence) next() string {
	s.last++
	return strconv.FormatUint(s.last, 10)
}
