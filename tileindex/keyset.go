package tileindex

// KeySet is a set of tile keys that remembers insertion order.
// Adding a key twice is a no-op; iteration follows first insertion.
//
// KeySet is not safe for concurrent use.
type KeySet struct {
	index map[string]int
	order []string
}

// NewKeySet creates a set holding keys.
func NewKeySet(keys ...string) *KeySet {
	s := &KeySet{index: make(map[string]int, len(keys))}
	s.AddAll(keys)
	return s
}

// Add inserts key and reports whether it was not already present.
func (s *KeySet) Add(key string) bool {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if _, ok := s.index[key]; ok {
		return false
	}
	s.index[key] = len(s.order)
	s.order = append(s.order, key)
	return true
}

// AddAll inserts every key.
func (s *KeySet) AddAll(keys []string) {
	for _, k := range keys {
		s.Add(k)
	}
}

// Union inserts every key of o, in o's order.
func (s *KeySet) Union(o *KeySet) {
	if o == nil {
		return
	}
	s.AddAll(o.order)
}

// Has reports whether key is in the set.
func (s *KeySet) Has(key string) bool {
	_, ok := s.index[key]
	return ok
}

// Delete removes key and reports whether it was present.
func (s *KeySet) Delete(key string) bool {
	i, ok := s.index[key]
	if !ok {
		return false
	}
	delete(s.index, key)
	s.order = append(s.order[:i], s.order[i+1:]...)
	for j := i; j < len(s.order); j++ {
		s.index[s.order[j]] = j
	}
	return true
}

// Take removes every key for which pick returns true and returns them in
// insertion order. The remaining keys keep their order. It runs in one pass.
func (s *KeySet) Take(pick func(key string) bool) []string {
	var taken []string
	kept := s.order[:0]
	for _, k := range s.order {
		if pick(k) {
			taken = append(taken, k)
			delete(s.index, k)
			continue
		}
		s.index[k] = len(kept)
		kept = append(kept, k)
	}
	clear(s.order[len(kept):])
	s.order = kept
	return taken
}

// Keys returns a copy of the keys in insertion order.
func (s *KeySet) Keys() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of keys.
func (s *KeySet) Len() int {
	return len(s.order)
}

// Clear removes every key.
func (s *KeySet) Clear() {
	clear(s.index)
	s.order = s.order[:0]
}
