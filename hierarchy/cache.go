package hierarchy

import "github.com/sarchlab/kvcachesim/simerr"

// ProbeResult is the outcome of a non-mutating probe against a cache.
type ProbeResult int

const (
	// Miss means the line key is not resident.
	Miss ProbeResult = iota
	// Hit means the line key is resident.
	Hit
)

// BankStats are the per-bank hit/miss/eviction counters a cache tracks.
type BankStats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Pinned reports whether a line key must not be evicted right now (e.g.
// because it is in-flight). The cache consults it only when choosing an
// eviction victim; it never consults it for probe/hit accounting.
type Pinned func(lineKey uint64) bool

// BankedCache is an array of LRU sets, one per bank, each with a fixed
// per-bank capacity. It models both tier-1 and tier-2: tier-2 is built
// with a large enough capacity that, for the designed workload, it never
// misses (spec §3).
type BankedCache struct {
	numBanks     int
	bankCapacity int
	banks        []*lruSet
	stats        []BankStats
}

// NewBankedCache builds a cache with numBanks banks, each holding
// bankCapacity lines.
func NewBankedCache(numBanks, bankCapacity int) *BankedCache {
	c := &BankedCache{
		numBanks:     numBanks,
		bankCapacity: bankCapacity,
		banks:        make([]*lruSet, numBanks),
		stats:        make([]BankStats, numBanks),
	}

	for i := range c.banks {
		c.banks[i] = newLRUSet(bankCapacity)
	}

	return c
}

// Probe checks bank b for lineKey without mutating any state. It does not
// update hit/miss counters; callers account hits/misses explicitly once
// they decide how the access is being served (spec §4.3).
func (c *BankedCache) Probe(bank int, lineKey uint64) ProbeResult {
	if c.banks[bank].contains(lineKey) {
		return Hit
	}

	return Miss
}

// Touch refreshes lineKey's recency in bank b. Requires a prior Probe that
// returned Hit for the same key.
func (c *BankedCache) Touch(bank int, lineKey uint64) {
	c.banks[bank].touch(lineKey)
	c.stats[bank].Hits++
}

// CountMiss records a miss against bank b without mutating residency.
func (c *BankedCache) CountMiss(bank int) {
	c.stats[bank].Misses++
}

// Admit inserts lineKey into bank b at MRU position, evicting as needed.
// If the natural LRU victim is pinned (in-flight), the next-oldest
// non-pinned key is evicted instead; if every resident key is pinned,
// admission fails with an InvariantViolation, since the spec treats this
// as a protocol error that cannot occur under correct bookkeeping.
func (c *BankedCache) Admit(bank int, lineKey uint64, cycle uint64, pinned Pinned) (evicted uint64, didEvict bool, err error) {
	set := c.banks[bank]

	if set.len() < c.bankCapacity || set.contains(lineKey) {
		set.insert(lineKey)
		return 0, false, nil
	}

	for _, candidate := range set.keysOldestFirst() {
		if pinned != nil && pinned(candidate) {
			continue
		}

		set.remove(candidate)
		set.insert(lineKey)
		c.stats[bank].Evictions++

		return candidate, true, nil
	}

	return 0, false, &simerr.InvariantViolation{
		Reason:  "no eviction candidate: every resident line in the target bank is pinned in-flight",
		LineKey: lineKey,
		Bank:    bank,
		Cycle:   cycle,
	}
}

// Stats returns a copy of bank b's counters.
func (c *BankedCache) Stats(bank int) BankStats {
	return c.stats[bank]
}

// TotalHits sums hits across all banks.
func (c *BankedCache) TotalHits() uint64 {
	var total uint64
	for _, s := range c.stats {
		total += s.Hits
	}

	return total
}

// TotalMisses sums misses across all banks.
func (c *BankedCache) TotalMisses() uint64 {
	var total uint64
	for _, s := range c.stats {
		total += s.Misses
	}

	return total
}

// NumBanks returns the bank count.
func (c *BankedCache) NumBanks() int {
	return c.numBanks
}
