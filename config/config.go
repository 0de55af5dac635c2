// Package config defines the closed, validated configuration record that
// the simulator accepts at construction. There is no attribute bag: every
// recognised option is a named field, and an invalid combination fails
// construction with a *simerr.ConfigError before any simulator exists.
package config

import (
	"math/bits"

	"github.com/sarchlab/kvcachesim/simerr"
)

// Config is the closed set of options recognised by the simulator.
// Zero-value fields are not valid; use Builder (or DefaultConfig) to obtain
// a populated instance.
type Config struct {
	T1TotalLines int
	NumT1Banks   int

	T2TotalLines int
	NumT2Banks   int

	LineBytes int

	T1Latency uint64
	T2Latency uint64

	PrefetchTrigger    int
	PrefetchLookahead  int
	PrefetchIssueWidth int

	// MaxCycles is an optional soft cap on the cycle counter. Zero means
	// unbounded. Reaching it fails the run with *simerr.BudgetExceeded.
	MaxCycles uint64
}

// DefaultConfig returns a Config with every default named in spec §6
// already populated. Capacity fields (T1TotalLines, NumT1Banks,
// T2TotalLines, NumT2Banks) have no sensible default and are left zero;
// callers must set them via the Builder before calling Build.
func DefaultConfig() Config {
	return Config{
		LineBytes:          128,
		T1Latency:          1,
		T2Latency:          3,
		PrefetchTrigger:    2,
		PrefetchLookahead:  16,
		PrefetchIssueWidth: 4,
	}
}

// Validate checks every field recognised in spec §6 and returns the first
// violation found, wrapped as *simerr.ConfigError.
func (c Config) Validate() error {
	if c.T1TotalLines <= 0 {
		return &simerr.ConfigError{Field: "T1TotalLines", Reason: "must be positive"}
	}
	if c.NumT1Banks <= 0 {
		return &simerr.ConfigError{Field: "NumT1Banks", Reason: "must be positive"}
	}
	if c.T1TotalLines%c.NumT1Banks != 0 {
		return &simerr.ConfigError{Field: "NumT1Banks", Reason: "must evenly divide T1TotalLines"}
	}

	if c.T2TotalLines <= 0 {
		return &simerr.ConfigError{Field: "T2TotalLines", Reason: "must be positive"}
	}
	if c.NumT2Banks <= 0 {
		return &simerr.ConfigError{Field: "NumT2Banks", Reason: "must be positive"}
	}
	if c.T2TotalLines%c.NumT2Banks != 0 {
		return &simerr.ConfigError{Field: "NumT2Banks", Reason: "must evenly divide T2TotalLines"}
	}

	if c.LineBytes <= 0 || bits.OnesCount(uint(c.LineBytes)) != 1 {
		return &simerr.ConfigError{Field: "LineBytes", Reason: "must be a power of two"}
	}

	if c.T1Latency == 0 {
		return &simerr.ConfigError{Field: "T1Latency", Reason: "must be a positive cycle count"}
	}
	if c.T2Latency == 0 {
		return &simerr.ConfigError{Field: "T2Latency", Reason: "must be a positive cycle count"}
	}

	if c.PrefetchTrigger <= 0 {
		return &simerr.ConfigError{Field: "PrefetchTrigger", Reason: "must be positive"}
	}
	if c.PrefetchLookahead < 0 {
		return &simerr.ConfigError{Field: "PrefetchLookahead", Reason: "must not be negative"}
	}
	if c.PrefetchIssueWidth < 0 {
		return &simerr.ConfigError{Field: "PrefetchIssueWidth", Reason: "must not be negative"}
	}

	return nil
}

// T1BankCapacity returns the per-bank capacity in lines for tier-1.
func (c Config) T1BankCapacity() int {
	return c.T1TotalLines / c.NumT1Banks
}

// T2BankCapacity returns the per-bank capacity in lines for tier-2.
func (c Config) T2BankCapacity() int {
	return c.T2TotalLines / c.NumT2Banks
}

// Builder builds a Config through a chainable, value-receiver API, the
// same pattern as akita's mem/cache.Builder: each With<Field> call returns
// an updated copy, and Build validates once at the end.
type Builder struct {
	cfg Config
}

// MakeBuilder returns a Builder seeded with DefaultConfig.
func MakeBuilder() Builder {
	return Builder{cfg: DefaultConfig()}
}

// WithT1 sets the tier-1 total line count and bank count.
func (b Builder) WithT1(totalLines, numBanks int) Builder {
	b.cfg.T1TotalLines = totalLines
	b.cfg.NumT1Banks = numBanks
	return b
}

// WithT2 sets the tier-2 total line count and bank count.
func (b Builder) WithT2(totalLines, numBanks int) Builder {
	b.cfg.T2TotalLines = totalLines
	b.cfg.NumT2Banks = numBanks
	return b
}

// WithLineBytes sets the line size in bytes.
func (b Builder) WithLineBytes(lineBytes int) Builder {
	b.cfg.LineBytes = lineBytes
	return b
}

// WithLatencies sets the tier-1 and tier-2 service latencies, in cycles.
func (b Builder) WithLatencies(t1, t2 uint64) Builder {
	b.cfg.T1Latency = t1
	b.cfg.T2Latency = t2
	return b
}

// WithPrefetcher sets the stream prefetcher's trigger, lookahead and issue
// width parameters.
func (b Builder) WithPrefetcher(trigger, lookahead, issueWidth int) Builder {
	b.cfg.PrefetchTrigger = trigger
	b.cfg.PrefetchLookahead = lookahead
	b.cfg.PrefetchIssueWidth = issueWidth
	return b
}

// WithMaxCycles sets the optional soft cycle cap. Zero means unbounded.
func (b Builder) WithMaxCycles(maxCycles uint64) Builder {
	b.cfg.MaxCycles = maxCycles
	return b
}

// Build validates the accumulated configuration and returns it.
func (b Builder) Build() (Config, error) {
	if err := b.cfg.Validate(); err != nil {
		return Config{}, err
	}

	return b.cfg, nil
}
