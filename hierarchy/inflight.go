package hierarchy

import "container/heap"

// Origin distinguishes a demand fetch from a prefetch so that retirement
// accounting (useful/wasted) can tell them apart.
type Origin int

const (
	// Demand is a fill issued to satisfy a tier-1 miss directly.
	Demand Origin = iota
	// Prefetch is a fill issued speculatively by the stream prefetcher.
	Prefetch
)

// InFlightEntry describes a line key being transferred from tier-2 into
// tier-1.
type InFlightEntry struct {
	LineKey    uint64
	ReadyCycle uint64
	Origin     Origin
}

// InFlightTable is the set of line keys currently being fetched, ordered
// by arrival cycle. It is built the same way akita's sim.EventQueue
// orders pending events: a container/heap min-heap keyed by the
// completion time, paired with a hash set for O(1) membership (the exact
// structure the design notes suggest for this component).
type InFlightTable struct {
	entries map[uint64]*InFlightEntry
	pending fillHeap
	seq     uint64
}

// NewInFlightTable returns an empty table.
func NewInFlightTable() *InFlightTable {
	t := &InFlightTable{
		entries: make(map[uint64]*InFlightEntry),
	}
	heap.Init(&t.pending)

	return t
}

// Has reports whether lineKey currently has a fill in flight.
func (t *InFlightTable) Has(lineKey uint64) bool {
	_, ok := t.entries[lineKey]
	return ok
}

// Get returns the in-flight entry for lineKey, if any.
func (t *InFlightTable) Get(lineKey uint64) (InFlightEntry, bool) {
	e, ok := t.entries[lineKey]
	if !ok {
		return InFlightEntry{}, false
	}

	return *e, true
}

// Insert adds a new in-flight fill. The caller must ensure lineKey is not
// already in-flight and not already resident in tier-1 (spec §3's
// mutual-exclusion invariant).
func (t *InFlightTable) Insert(lineKey, readyCycle uint64, origin Origin) {
	entry := &InFlightEntry{LineKey: lineKey, ReadyCycle: readyCycle, Origin: origin}
	t.entries[lineKey] = entry

	heap.Push(&t.pending, &fillHeapItem{entry: entry, seq: t.seq})
	t.seq++
}

// MarkUseful reclassifies an in-flight prefetch as useful without waiting
// for it to retire, matching spec §4.4: a demand that observes the key
// while it is still being fetched reclassifies the entry immediately.
func (t *InFlightTable) MarkUseful(lineKey uint64) {
	if e, ok := t.entries[lineKey]; ok {
		e.Origin = Demand
	}
}

// RetireDue removes and returns every entry whose ReadyCycle is at most
// currentCycle, in ready-cycle order (insertion order breaks ties, per
// spec §5 ordering guarantee (b)).
func (t *InFlightTable) RetireDue(currentCycle uint64) []InFlightEntry {
	var due []InFlightEntry

	for t.pending.Len() > 0 && t.pending[0].entry.ReadyCycle <= currentCycle {
		item := heap.Pop(&t.pending).(*fillHeapItem)
		if _, ok := t.entries[item.entry.LineKey]; !ok {
			continue // already removed via RetireOne
		}

		due = append(due, *item.entry)
		delete(t.entries, item.entry.LineKey)
	}

	return due
}

// RetireOne removes and returns a specific line key's in-flight entry,
// regardless of whether its ready cycle is due yet. Used when a demand
// read or write must wait synchronously for its own fill to land before
// the scheduler can move on to the next operation.
func (t *InFlightTable) RetireOne(lineKey uint64) (InFlightEntry, bool) {
	e, ok := t.entries[lineKey]
	if !ok {
		return InFlightEntry{}, false
	}

	delete(t.entries, lineKey)

	return *e, true
}

// Len returns the number of fills currently in flight.
func (t *InFlightTable) Len() int {
	return len(t.entries)
}

// DrainAll removes and returns every remaining in-flight entry, in
// ready-cycle order, regardless of whether its ready cycle has been
// reached. Used once, at the end of a trace, to let the scheduler finish
// accounting for fills nothing will ever wait on again.
func (t *InFlightTable) DrainAll() []InFlightEntry {
	var all []InFlightEntry

	for t.pending.Len() > 0 {
		item := heap.Pop(&t.pending).(*fillHeapItem)
		if _, ok := t.entries[item.entry.LineKey]; !ok {
			continue
		}

		all = append(all, *item.entry)
		delete(t.entries, item.entry.LineKey)
	}

	return all
}

type fillHeapItem struct {
	entry *InFlightEntry
	seq   uint64
}

type fillHeap []*fillHeapItem

func (h fillHeap) Len() int { return len(h) }

func (h fillHeap) Less(i, j int) bool {
	if h[i].entry.ReadyCycle != h[j].entry.ReadyCycle {
		return h[i].entry.ReadyCycle < h[j].entry.ReadyCycle
	}

	return h[i].seq < h[j].seq
}

func (h fillHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *fillHeap) Push(x any) {
	*h = append(*h, x.(*fillHeapItem))
}

func (h *fillHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]

	return item
}
