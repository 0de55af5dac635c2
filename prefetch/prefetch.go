// Package prefetch implements the stream prefetcher state machine
// described in spec §4.5, re-expressed per the design notes as a small
// interface with one operation so that alternate strategies (not
// implemented here; only the stream FSM is in scope) could be selected at
// construction time without subclassing.
package prefetch

//go:generate mockgen -destination mocks/prefetcher_mock.go -package mocks github.com/sarchlab/kvcachesim/prefetch Prefetcher

// Prefetcher observes demand reads and decides which line keys are worth
// fetching ahead of the demand stream. It never sees writes: spec §4.5
// restricts training and triggering to reads only.
type Prefetcher interface {
	// Observe records a demand read of lineKey and returns the current
	// window of candidate line keys to prefetch, in ascending order,
	// or nil when the prefetcher is not streaming. The caller (the
	// scheduler) is responsible for skipping candidates already resident
	// or in flight and for capping how many are actually issued.
	Observe(lineKey uint64) []uint64
}

type state int

const (
	idle state = iota
	training
	streaming
)

// StreamPrefetcher detects monotonically increasing, line-aligned access
// runs and, once armed, emits a bounded lookahead window of line keys to
// fetch ahead of the demand stream. Its entire state is four integers
// (state, last, streak, and the constant parameters) and every
// transition is an equality comparison — the "<2K gate" hardware budget
// spec §4.5 calls out as the actual contract under test.
type StreamPrefetcher struct {
	trigger    int
	lookahead  int
	issueWidth int

	st     state
	last   uint64
	hasLst bool
	streak int
}

// NewStreamPrefetcher builds a stream prefetcher with the given trigger
// (consecutive sequential reads required to arm streaming), lookahead
// (width of the prefetch window) and issueWidth (max issues per
// observation — enforced by the caller, not this type, since Observe has
// no notion of "successfully issued").
func NewStreamPrefetcher(trigger, lookahead, issueWidth int) *StreamPrefetcher {
	return &StreamPrefetcher{
		trigger:    trigger,
		lookahead:  lookahead,
		issueWidth: issueWidth,
	}
}

// IssueWidth returns the configured issue width, for callers that want to
// cap issues per observation without threading the config through twice.
func (p *StreamPrefetcher) IssueWidth() int {
	return p.issueWidth
}

// Observe implements Prefetcher.
func (p *StreamPrefetcher) Observe(lineKey uint64) []uint64 {
	switch p.st {
	case idle:
		p.enterTraining(lineKey)

	case training:
		if p.hasLst && lineKey == p.last+1 {
			p.streak++
			p.last = lineKey

			if p.streak >= p.trigger {
				p.st = streaming
			}
		} else {
			p.enterTraining(lineKey)
		}

	case streaming:
		if p.hasLst && lineKey == p.last+1 {
			p.last = lineKey
		} else {
			p.enterTraining(lineKey)
		}
	}

	if p.st != streaming || p.lookahead <= 0 {
		return nil
	}

	window := make([]uint64, p.lookahead)
	for i := 0; i < p.lookahead; i++ {
		window[i] = p.last + uint64(i) + 1
	}

	return window
}

func (p *StreamPrefetcher) enterTraining(lineKey uint64) {
	p.st = training
	p.last = lineKey
	p.hasLst = true
	p.streak = 1
}
