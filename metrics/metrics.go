// Package metrics accumulates the simulator's counters and read-latency
// series and computes the derived statistics named in spec §4.7. All
// computations are deterministic functions of the recorded counters, and
// the core never imposes a wire format — WriteCSV/WriteJSON below are
// pure, optional marshalling helpers for the one blessed external
// collaborator (report printing, spec §1/§6).
package metrics

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
)

// Recorder accumulates the running counters and the per-read latency
// series while a simulation is in progress. It is owned exclusively by
// the scheduler; a Report snapshot is handed to the caller once the run
// ends (spec §3 Ownership).
type Recorder struct {
	T1Hits   uint64
	T1Misses uint64
	T2Hits   uint64
	T2Misses uint64

	WriteCount uint64

	BankConflictsT1 uint64
	BankConflictsT2 uint64

	PrefetchesIssued uint64
	PrefetchesUseful uint64
	PrefetchesWasted uint64

	latencies []uint64

	finalCycle uint64
}

// NewRecorder returns a zeroed Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// RecordLatency appends one read-completion latency sample, in cycles.
func (r *Recorder) RecordLatency(cycles uint64) {
	r.latencies = append(r.latencies, cycles)
}

// SetFinalCycle records the scheduler's final current_cycle value.
func (r *Recorder) SetFinalCycle(cycle uint64) {
	r.finalCycle = cycle
}

// Snapshot produces an owned, immutable Report from the counters
// accumulated so far. Safe to call mid-run (e.g. to attach partial
// metrics to a BudgetExceeded error) or at the natural end of a trace.
func (r *Recorder) Snapshot() *Report {
	latencies := make([]uint64, len(r.latencies))
	copy(latencies, r.latencies)

	return &Report{
		T1Hits:           r.T1Hits,
		T1Misses:         r.T1Misses,
		T2Hits:           r.T2Hits,
		T2Misses:         r.T2Misses,
		WriteCount:       r.WriteCount,
		BankConflictsT1:  r.BankConflictsT1,
		BankConflictsT2:  r.BankConflictsT2,
		PrefetchesIssued: r.PrefetchesIssued,
		PrefetchesUseful: r.PrefetchesUseful,
		PrefetchesWasted: r.PrefetchesWasted,
		TotalCycles:      r.finalCycle,
		Latencies:        latencies,
	}
}

// Report is the owned, immutable metrics snapshot returned to the caller
// when a run ends (spec §3/§4.7/§6). Its fields are stable: integer
// counters and a latency series in cycle units.
type Report struct {
	T1Hits   uint64
	T1Misses uint64
	T2Hits   uint64
	T2Misses uint64

	WriteCount uint64

	BankConflictsT1 uint64
	BankConflictsT2 uint64

	PrefetchesIssued uint64
	PrefetchesUseful uint64
	PrefetchesWasted uint64

	TotalCycles uint64

	// Latencies is the ordered-by-completion sequence of per-read
	// completion latencies, in cycles.
	Latencies []uint64
}

// HitRateT1 returns t1_hits / (t1_hits + t1_misses), or 0 when there were
// no tier-1 accesses at all.
func (rep *Report) HitRateT1() float64 {
	total := rep.T1Hits + rep.T1Misses
	if total == 0 {
		return 0
	}

	return float64(rep.T1Hits) / float64(total)
}

// PrefetchAccuracy returns prefetches_useful / prefetches_issued, or 0
// when no prefetches were issued.
func (rep *Report) PrefetchAccuracy() float64 {
	if rep.PrefetchesIssued == 0 {
		return 0
	}

	return float64(rep.PrefetchesUseful) / float64(rep.PrefetchesIssued)
}

// PrefetchCoverage returns prefetches_useful / (t1_misses +
// prefetches_useful), or 0 when the denominator is 0.
func (rep *Report) PrefetchCoverage() float64 {
	denom := rep.T1Misses + rep.PrefetchesUseful
	if denom == 0 {
		return 0
	}

	return float64(rep.PrefetchesUseful) / float64(denom)
}

// LatencyPercentile returns the p-th percentile (e.g. 50, 90, 99, 99.9) of
// the read-latency series using linear interpolation on the sorted
// sample, per spec §4.7. A copy of Latencies is sorted internally; the
// Report's own slice order is left untouched.
func (rep *Report) LatencyPercentile(p float64) float64 {
	samples := make([]uint64, len(rep.Latencies))
	copy(samples, rep.Latencies)

	return percentile(samples, p)
}

// WriteCSV marshals the report as a single-row CSV with a header,
// mirroring the column-oriented writer akita's analysis.PerfAnalyzer
// uses for its performance database. This is a pure, optional
// convenience for callers; the core itself does not call it.
func (rep *Report) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)

	header := []string{
		"t1_hits", "t1_misses", "t2_hits", "t2_misses", "write_count",
		"bank_conflicts_t1", "bank_conflicts_t2",
		"prefetches_issued", "prefetches_useful", "prefetches_wasted",
		"total_cycles", "hit_rate_t1", "prefetch_accuracy", "prefetch_coverage",
		"p50", "p90", "p99", "p99.9",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	row := []string{
		fmt.Sprint(rep.T1Hits), fmt.Sprint(rep.T1Misses),
		fmt.Sprint(rep.T2Hits), fmt.Sprint(rep.T2Misses),
		fmt.Sprint(rep.WriteCount),
		fmt.Sprint(rep.BankConflictsT1), fmt.Sprint(rep.BankConflictsT2),
		fmt.Sprint(rep.PrefetchesIssued), fmt.Sprint(rep.PrefetchesUseful),
		fmt.Sprint(rep.PrefetchesWasted),
		fmt.Sprint(rep.TotalCycles),
		fmt.Sprintf("%.6f", rep.HitRateT1()),
		fmt.Sprintf("%.6f", rep.PrefetchAccuracy()),
		fmt.Sprintf("%.6f", rep.PrefetchCoverage()),
		fmt.Sprintf("%.3f", rep.LatencyPercentile(50)),
		fmt.Sprintf("%.3f", rep.LatencyPercentile(90)),
		fmt.Sprintf("%.3f", rep.LatencyPercentile(99)),
		fmt.Sprintf("%.3f", rep.LatencyPercentile(99.9)),
	}
	if err := writer.Write(row); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	writer.Flush()

	return writer.Error()
}

// WriteJSON marshals the full report, including the latency series, as
// JSON.
func (rep *Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(rep)
}
