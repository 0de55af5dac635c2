package hierarchy

import "container/list"

// lruSet is an ordered set of line keys bounded by a fixed capacity,
// evicting the least-recently-used key on overflow. It is the "doubly
// linked list plus hash map" representation named as an acceptable choice
// in the design notes; akita's own tagging.Set.Visit re-orders a
// LRUQueue on every touch the same way this re-orders a container/list.
type lruSet struct {
	capacity int
	order    *list.List               // front = MRU, back = LRU
	index    map[uint64]*list.Element // line key -> its node in order
}

func newLRUSet(capacity int) *lruSet {
	return &lruSet{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[uint64]*list.Element, capacity),
	}
}

// contains reports whether key currently resides in the set.
func (s *lruSet) contains(key uint64) bool {
	_, ok := s.index[key]
	return ok
}

// touch moves key to the MRU position. The caller must have already
// checked contains(key).
func (s *lruSet) touch(key uint64) {
	elem, ok := s.index[key]
	if !ok {
		return
	}

	s.order.MoveToFront(elem)
}

// insert adds key at the MRU position. If key is already resident, this is
// equivalent to touch and never evicts (the §4.2 ¬contains(key) precondition
// is enforced here rather than trusted of every caller). If the set is full
// and key is not yet resident, it evicts and returns the LRU key first.
func (s *lruSet) insert(key uint64) (evicted uint64, didEvict bool) {
	if elem, ok := s.index[key]; ok {
		s.order.MoveToFront(elem)
		return 0, false
	}

	if s.order.Len() >= s.capacity {
		back := s.order.Back()
		evicted = back.Value.(uint64)
		didEvict = true

		s.order.Remove(back)
		delete(s.index, evicted)
	}

	elem := s.order.PushFront(key)
	s.index[key] = elem

	return evicted, didEvict
}

// remove drops key from the set without reporting it as an evicted key.
// Used by BankedCache.Admit (see cache.go) to take out the victim it
// chose, which need not be the natural LRU key when that one is pinned.
func (s *lruSet) remove(key uint64) {
	elem, ok := s.index[key]
	if !ok {
		return
	}

	s.order.Remove(elem)
	delete(s.index, key)
}

// len returns the number of resident keys.
func (s *lruSet) len() int {
	return s.order.Len()
}

// lru returns the current least-recently-used key, if any.
func (s *lruSet) lru() (uint64, bool) {
	back := s.order.Back()
	if back == nil {
		return 0, false
	}

	return back.Value.(uint64), true
}

// keysOldestFirst returns resident keys ordered from LRU to MRU. Used by
// the cache's admit path when the natural LRU victim is itself pinned
// in-flight and an alternative must be found (spec §4.6 eviction rule).
func (s *lruSet) keysOldestFirst() []uint64 {
	keys := make([]uint64, 0, s.order.Len())
	for elem := s.order.Back(); elem != nil; elem = elem.Prev() {
		keys = append(keys, elem.Value.(uint64))
	}

	return keys
}
