// Package scheduler ties the tiered cache, the in-flight fill table and
// the prefetcher together into the single-threaded, trace-driven
// algorithm described in spec §4.6. There is no goroutine anywhere in
// this package: "concurrency" is entirely represented by bank busy maps
// and distinct completion cycles, per spec §5.
package scheduler

import (
	"github.com/sarchlab/kvcachesim/config"
	"github.com/sarchlab/kvcachesim/hierarchy"
	"github.com/sarchlab/kvcachesim/metrics"
	"github.com/sarchlab/kvcachesim/prefetch"
	"github.com/sarchlab/kvcachesim/simerr"
	"github.com/sarchlab/kvcachesim/trace"
)

// maxLineKeyBits bounds the line-key space the simulator will serve, a
// stand-in for the physical-address width a real design would fix at
// synthesis time. A byte address whose line-aligned key does not fit
// fails with *simerr.AddressOverflow rather than silently wrapping.
const maxLineKeyBits = 48

const maxLineKey = uint64(1) << maxLineKeyBits

// Simulator runs one trace against a tiered cache and stream prefetcher
// built from a validated Config. It is not safe for concurrent use: Run
// advances an internal cycle counter sequentially and owns every
// structure it touches.
type Simulator struct {
	cfg config.Config

	t1 *hierarchy.BankedCache
	t2 *hierarchy.BankedCache

	inflight *hierarchy.InFlightTable

	t1Busy *hierarchy.BankBusyMap
	t2Busy *hierarchy.BankBusyMap

	pf prefetch.Prefetcher

	rec *metrics.Recorder

	currentCycle uint64

	// prefetchPending tracks line keys whose prefetch-origin outcome is
	// still undetermined: issued but not yet touched by any demand
	// access and not yet evicted. It is cleared to "useful" on a demand
	// hit/consumption or counted "wasted" on eviction first (spec §4.4).
	prefetchPending map[uint64]struct{}
}

// NewSimulator validates cfg and builds a ready-to-run Simulator using
// the stream prefetcher named by cfg's prefetch fields.
func NewSimulator(cfg config.Config) (*Simulator, error) {
	pf := prefetch.NewStreamPrefetcher(cfg.PrefetchTrigger, cfg.PrefetchLookahead, cfg.PrefetchIssueWidth)

	return NewSimulatorWithPrefetcher(cfg, pf)
}

// NewSimulatorWithPrefetcher is like NewSimulator but takes any
// prefetch.Prefetcher implementation, letting callers substitute an
// alternate strategy (or a test double) for the bundled stream FSM, per
// the interface-based extension point spec §9 calls for.
func NewSimulatorWithPrefetcher(cfg config.Config, pf prefetch.Prefetcher) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Simulator{
		cfg:             cfg,
		t1:              hierarchy.NewBankedCache(cfg.NumT1Banks, cfg.T1BankCapacity()),
		t2:              hierarchy.NewBankedCache(cfg.NumT2Banks, cfg.T2BankCapacity()),
		inflight:        hierarchy.NewInFlightTable(),
		t1Busy:          hierarchy.NewBankBusyMap(cfg.NumT1Banks),
		t2Busy:          hierarchy.NewBankBusyMap(cfg.NumT2Banks),
		pf:              pf,
		rec:             metrics.NewRecorder(),
		prefetchPending: make(map[uint64]struct{}),
	}, nil
}

// Builder builds a Simulator through the same chainable, value-receiver
// convention as akita's mem/cache.Builder, wrapping a config.Builder so
// call sites never need to construct a Config directly.
type Builder struct {
	cb config.Builder
	pf prefetch.Prefetcher
}

// NewBuilder returns a Builder seeded with config.DefaultConfig.
func NewBuilder() Builder {
	return Builder{cb: config.MakeBuilder()}
}

// WithT1 sets the tier-1 total line count and bank count.
func (b Builder) WithT1(totalLines, numBanks int) Builder {
	b.cb = b.cb.WithT1(totalLines, numBanks)
	return b
}

// WithT2 sets the tier-2 total line count and bank count.
func (b Builder) WithT2(totalLines, numBanks int) Builder {
	b.cb = b.cb.WithT2(totalLines, numBanks)
	return b
}

// WithLineBytes sets the line size in bytes.
func (b Builder) WithLineBytes(lineBytes int) Builder {
	b.cb = b.cb.WithLineBytes(lineBytes)
	return b
}

// WithLatencies sets the tier-1 and tier-2 service latencies, in cycles.
func (b Builder) WithLatencies(t1, t2 uint64) Builder {
	b.cb = b.cb.WithLatencies(t1, t2)
	return b
}

// WithPrefetcher sets the stream prefetcher's trigger, lookahead and
// issue width parameters.
func (b Builder) WithPrefetcher(trigger, lookahead, issueWidth int) Builder {
	b.cb = b.cb.WithPrefetcher(trigger, lookahead, issueWidth)
	return b
}

// WithMaxCycles sets the optional soft cycle cap. Zero means unbounded.
func (b Builder) WithMaxCycles(maxCycles uint64) Builder {
	b.cb = b.cb.WithMaxCycles(maxCycles)
	return b
}

// WithPrefetcherImpl substitutes a custom prefetch.Prefetcher for the
// bundled stream FSM, e.g. a generated mock in tests that want to drive
// the scheduler from a scripted prefetch decision rather than the real
// state machine.
func (b Builder) WithPrefetcherImpl(pf prefetch.Prefetcher) Builder {
	b.pf = pf
	return b
}

// Build validates the accumulated configuration and returns a ready
// Simulator.
func (b Builder) Build() (*Simulator, error) {
	cfg, err := b.cb.Build()
	if err != nil {
		return nil, err
	}

	if b.pf != nil {
		return NewSimulatorWithPrefetcher(cfg, b.pf)
	}

	return NewSimulator(cfg)
}

// BudgetExceededError wraps *simerr.BudgetExceeded with the metrics
// gathered up to the point the cycle cap tripped, per spec §7's policy
// of attaching current metrics for debugging rather than discarding them.
type BudgetExceededError struct {
	*simerr.BudgetExceeded
	Partial *metrics.Report
}

// Unwrap exposes the underlying *simerr.BudgetExceeded for errors.As.
func (e *BudgetExceededError) Unwrap() error { return e.BudgetExceeded }

// Run drives the simulator through tr in order and returns the final
// metrics report, or the first error encountered. A successful run
// always returns a non-nil report and a nil error.
func (s *Simulator) Run(tr trace.Trace) (*metrics.Report, error) {
	for _, op := range tr {
		lineKey := hierarchy.LineOf(op.ByteAddress, s.cfg.LineBytes)
		if lineKey >= maxLineKey {
			return nil, &simerr.AddressOverflow{ByteAddress: op.ByteAddress}
		}

		if err := s.step(op, lineKey); err != nil {
			return nil, err
		}

		if s.cfg.MaxCycles > 0 && s.currentCycle >= s.cfg.MaxCycles {
			return nil, &BudgetExceededError{
				BudgetExceeded: &simerr.BudgetExceeded{MaxCycles: s.cfg.MaxCycles},
				Partial:        s.rec.Snapshot(),
			}
		}
	}

	if err := s.drain(); err != nil {
		return nil, err
	}
	s.rec.SetFinalCycle(s.currentCycle)

	return s.rec.Snapshot(), nil
}

// step processes a single trace operation, advancing currentCycle per
// spec §4.6.
func (s *Simulator) step(op trace.Operation, lineKey uint64) error {
	issueCycle := s.currentCycle

	for _, e := range s.inflight.RetireDue(issueCycle) {
		if err := s.promote(e, issueCycle); err != nil {
			return err
		}
	}

	b1 := hierarchy.BankT1(lineKey, s.cfg.NumT1Banks)
	b2 := hierarchy.BankT2(lineKey, s.cfg.NumT1Banks, s.cfg.NumT2Banks)

	var completion uint64
	var err error

	switch op.Kind {
	case trace.Read:
		completion, err = s.serveRead(lineKey, b1, b2, issueCycle)
	case trace.Write:
		completion, err = s.serveWrite(lineKey, b1, b2, issueCycle)
		s.rec.WriteCount++
	}
	if err != nil {
		return err
	}

	s.currentCycle = completion

	if op.Kind == trace.Read {
		if err := s.issuePrefetches(lineKey, issueCycle); err != nil {
			return err
		}
	}

	return nil
}

// serveRead resolves a demand read and returns the cycle at which it
// completes.
func (s *Simulator) serveRead(lineKey uint64, b1, b2 int, issueCycle uint64) (uint64, error) {
	if s.t1.Probe(b1, lineKey) == hierarchy.Hit {
		stall := s.hitT1(b1, lineKey, issueCycle)
		latency := s.cfg.T1Latency + stall
		s.rec.RecordLatency(latency)

		return issueCycle + 1, nil
	}

	s.rec.T1Misses++

	readyCycle, err := s.resolveFetch(lineKey, b2, issueCycle)
	if err != nil {
		return 0, err
	}

	if err := s.admitT1(b1, lineKey, readyCycle); err != nil {
		return 0, err
	}

	completion := readyCycle + s.cfg.T1Latency
	s.rec.RecordLatency(completion - issueCycle)

	return completion, nil
}

// serveWrite resolves a write-allocate and returns the cycle at which it
// completes. Writes never contribute a latency sample and never feed the
// prefetcher (spec §4.3, §4.5).
func (s *Simulator) serveWrite(lineKey uint64, b1, b2 int, issueCycle uint64) (uint64, error) {
	if s.t1.Probe(b1, lineKey) == hierarchy.Hit {
		s.hitT1(b1, lineKey, issueCycle)

		return issueCycle + 1, nil
	}

	if entry, ok := s.inflight.Get(lineKey); ok && entry.Origin == hierarchy.Prefetch {
		// Open question resolution: a write that lands on a line still
		// being prefetched counts as a hit once the fill completes,
		// rather than as a miss (spec §9).
		s.markPrefetchUseful(lineKey)
		s.inflight.RetireOne(lineKey)

		if err := s.admitT1(b1, lineKey, entry.ReadyCycle); err != nil {
			return 0, err
		}

		s.rec.T1Hits++

		return entry.ReadyCycle + s.cfg.T1Latency, nil
	}

	s.rec.T1Misses++

	readyCycle, err := s.resolveFetch(lineKey, b2, issueCycle)
	if err != nil {
		return 0, err
	}

	if err := s.admitT1(b1, lineKey, readyCycle); err != nil {
		return 0, err
	}

	return readyCycle + s.cfg.T1Latency, nil
}

// resolveFetch waits for lineKey to become resident in tier-1, whether it
// was already in flight or needs a fresh fetch issued now, and returns
// the cycle the fill becomes ready.
func (s *Simulator) resolveFetch(lineKey uint64, b2 int, issueCycle uint64) (uint64, error) {
	if entry, ok := s.inflight.Get(lineKey); ok {
		if entry.Origin == hierarchy.Prefetch {
			s.markPrefetchUseful(lineKey)
		}

		s.inflight.RetireOne(lineKey)

		return entry.ReadyCycle, nil
	}

	ready, err := s.issueFetch(lineKey, b2, issueCycle, hierarchy.Demand)
	if err != nil {
		return 0, err
	}

	s.inflight.RetireOne(lineKey)

	return ready, nil
}

// hitT1 accounts a tier-1 probe hit: bank arbitration, recency, the hit
// counter and resolving any pending prefetch-usefulness verdict. It
// returns the bank-conflict stall incurred, in cycles.
func (s *Simulator) hitT1(b1 int, lineKey uint64, issueCycle uint64) uint64 {
	s.markPrefetchUseful(lineKey)

	_, stall := s.t1Busy.Reserve(b1, issueCycle)
	if stall > 0 {
		s.rec.BankConflictsT1 += stall
	}

	s.t1.Touch(b1, lineKey)
	s.rec.T1Hits++

	return stall
}

// markPrefetchUseful reclassifies lineKey as a useful prefetch if it is
// currently pending one, and is a no-op otherwise.
func (s *Simulator) markPrefetchUseful(lineKey uint64) {
	if _, pending := s.prefetchPending[lineKey]; pending {
		s.rec.PrefetchesUseful++
		delete(s.prefetchPending, lineKey)
	}
}

// issueFetch arbitrates a tier-2 bank access for lineKey, admits it into
// tier-2's own occupancy tracking, and inserts it into the in-flight
// table. It returns the cycle the fill will be ready.
func (s *Simulator) issueFetch(lineKey uint64, b2 int, issueCycle uint64, origin hierarchy.Origin) (uint64, error) {
	if err := s.accessT2(lineKey, b2, issueCycle); err != nil {
		return 0, err
	}

	start, stall := s.t2Busy.Reserve(b2, issueCycle)
	if stall > 0 {
		s.rec.BankConflictsT2 += stall
	}

	ready := start + s.cfg.T2Latency
	s.inflight.Insert(lineKey, ready, origin)

	if origin == hierarchy.Prefetch {
		s.rec.PrefetchesIssued++
		s.prefetchPending[lineKey] = struct{}{}
	}

	return ready, nil
}

// accessT2 models tier-2 as always-hit by construction (spec §3): a
// line's first access admits it for free, and only a genuine capacity
// failure (every resident line in the target bank still in flight, so
// nothing can be evicted) surfaces as *simerr.Tier2Miss. With
// T2TotalLines sized to at least the trace's distinct line-key count,
// this never triggers.
func (s *Simulator) accessT2(lineKey uint64, b2 int, cycle uint64) error {
	if s.t2.Probe(b2, lineKey) == hierarchy.Hit {
		s.t2.Touch(b2, lineKey)
		s.rec.T2Hits++

		return nil
	}

	if _, _, err := s.t2.Admit(b2, lineKey, cycle, s.inflight.Has); err != nil {
		s.rec.T2Misses++

		return &simerr.Tier2Miss{LineKey: lineKey}
	}

	s.rec.T2Hits++

	return nil
}

// admitT1 installs lineKey into tier-1 at bank b1, charging any evicted
// pending prefetch as wasted.
func (s *Simulator) admitT1(b1 int, lineKey uint64, cycle uint64) error {
	evicted, didEvict, err := s.t1.Admit(b1, lineKey, cycle, s.inflight.Has)
	if err != nil {
		return err
	}

	if didEvict {
		if _, pending := s.prefetchPending[evicted]; pending {
			s.rec.PrefetchesWasted++
			delete(s.prefetchPending, evicted)
		}
	}

	return nil
}

// promote retires a background in-flight fill (one nothing is
// synchronously waiting on) into tier-1. Only prefetch-origin entries
// ever reach this path: a demand-origin entry is always retired
// synchronously by resolveFetch in the same step that issued it.
func (s *Simulator) promote(e hierarchy.InFlightEntry, cycle uint64) error {
	b1 := hierarchy.BankT1(e.LineKey, s.cfg.NumT1Banks)

	return s.admitT1(b1, e.LineKey, cycle)
}

// issuePrefetches feeds lineKey to the prefetcher and issues fetches for
// as many of the returned candidates as the issue width allows, skipping
// any that are already resident or already in flight (spec §4.5).
func (s *Simulator) issuePrefetches(lineKey uint64, issueCycle uint64) error {
	window := s.pf.Observe(lineKey)

	issued := 0
	for _, candidate := range window {
		if issued >= s.cfg.PrefetchIssueWidth {
			break
		}

		b1 := hierarchy.BankT1(candidate, s.cfg.NumT1Banks)
		if s.t1.Probe(b1, candidate) == hierarchy.Hit {
			continue
		}
		if s.inflight.Has(candidate) {
			continue
		}

		b2 := hierarchy.BankT2(candidate, s.cfg.NumT1Banks, s.cfg.NumT2Banks)
		if _, err := s.issueFetch(candidate, b2, issueCycle, hierarchy.Prefetch); err != nil {
			return err
		}

		issued++
	}

	return nil
}

// drain retires every remaining in-flight fill once the trace is
// exhausted, advancing currentCycle to cover them but recording no new
// latency samples, since no demand is waiting on any of them.
func (s *Simulator) drain() error {
	for _, e := range s.inflight.DrainAll() {
		if e.ReadyCycle > s.currentCycle {
			s.currentCycle = e.ReadyCycle
		}

		b1 := hierarchy.BankT1(e.LineKey, s.cfg.NumT1Banks)
		if err := s.admitT1(b1, e.LineKey, e.ReadyCycle); err != nil {
			return err
		}
	}

	return nil
}
