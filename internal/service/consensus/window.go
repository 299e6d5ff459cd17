package consensus

// Set is a set of identifiers.
type Set map[string]struct{}

func NewSet(ids ...string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Window keeps the identifier sets of the last size processed frames.
type Window struct {
	size    int
	entries []Set
}

func NewWindow(size int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{size: size, entries: make([]Set, 0, size)}
}

// Push appends the set of one frame, dropping the oldest when full.
func (w *Window) Push(s Set) {
	if len(w.entries) == w.size {
		copy(w.entries, w.entries[1:])
		w.entries = w.entries[:w.size-1]
	}
	w.entries = append(w.entries, s)
}

// Counts recomputes, from scratch, how many entries contain each identifier.
func (w *Window) Counts() map[string]int {
	counts := make(map[string]int)
	for _, s := range w.entries {
		for id := range s {
			counts[id]++
		}
	}
	return counts
}

// Confirmed returns the identifiers whose count exceeds threshold.
func (w *Window) Confirmed(threshold int) Set {
	confirmed := make(Set)
	for id, n := range w.Counts() {
		if n > threshold {
			confirmed[id] = struct{}{}
		}
	}
	return confirmed
}

func (w *Window) Len() int { return len(w.entries) }
