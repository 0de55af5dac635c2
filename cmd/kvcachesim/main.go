// Command kvcachesim is the thin CLI front-end for the simulator core:
// it wires flags onto a config.Config, reads a trace file, runs it and
// prints the resulting metrics.Report. A .env file, if present, is loaded
// into the process environment at start-up; flag defaults are the
// literals in runCmd and are not read from the environment. This is
// the one blessed external collaborator named in spec §1 — the core
// itself never imports this package.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/kvcachesim/metrics"
	"github.com/sarchlab/kvcachesim/scheduler"
	"github.com/sarchlab/kvcachesim/trace"
)

var flags struct {
	tracePath string
	format    string

	t1TotalLines int
	t1Banks      int
	t2TotalLines int
	t2Banks      int

	lineBytes int
	t1Latency uint64
	t2Latency uint64

	prefetchTrigger    int
	prefetchLookahead  int
	prefetchIssueWidth int

	maxCycles uint64
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
	}

	atexit.Exit(0)
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "kvcachesim",
		Short: "Cycle-accurate simulator for a two-tier on-chip KV-cache hierarchy",
	}

	root.AddCommand(runCmd())

	return root
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a trace file against a configured cache hierarchy and report metrics",
		RunE:  runRun,
	}

	f := cmd.Flags()
	f.StringVar(&flags.tracePath, "trace", "", "path to a CSV trace file (required)")
	f.StringVar(&flags.format, "format", "csv", "report format: csv or json")

	f.IntVar(&flags.t1TotalLines, "t1-total-lines", 4096, "tier-1 total capacity, in lines")
	f.IntVar(&flags.t1Banks, "t1-banks", 8, "tier-1 bank count")
	f.IntVar(&flags.t2TotalLines, "t2-total-lines", 65536, "tier-2 total capacity, in lines")
	f.IntVar(&flags.t2Banks, "t2-banks", 16, "tier-2 bank count")

	f.IntVar(&flags.lineBytes, "line-bytes", 128, "line size, in bytes (power of two)")
	f.Uint64Var(&flags.t1Latency, "t1-latency", 1, "tier-1 service latency, in cycles")
	f.Uint64Var(&flags.t2Latency, "t2-latency", 3, "tier-2 service latency, in cycles")

	f.IntVar(&flags.prefetchTrigger, "prefetch-trigger", 2, "consecutive sequential reads required to arm streaming")
	f.IntVar(&flags.prefetchLookahead, "prefetch-lookahead", 16, "prefetch window width, in lines")
	f.IntVar(&flags.prefetchIssueWidth, "prefetch-issue-width", 4, "max prefetches issued per observed read")

	f.Uint64Var(&flags.maxCycles, "max-cycles", 0, "optional soft cycle cap (0 = unbounded)")

	_ = cmd.MarkFlagRequired("trace")

	return cmd
}

func runRun(cmd *cobra.Command, _ []string) error {
	sim, err := scheduler.NewBuilder().
		WithT1(flags.t1TotalLines, flags.t1Banks).
		WithT2(flags.t2TotalLines, flags.t2Banks).
		WithLineBytes(flags.lineBytes).
		WithLatencies(flags.t1Latency, flags.t2Latency).
		WithPrefetcher(flags.prefetchTrigger, flags.prefetchLookahead, flags.prefetchIssueWidth).
		WithMaxCycles(flags.maxCycles).
		Build()
	if err != nil {
		return err
	}

	f, err := os.Open(flags.tracePath)
	if err != nil {
		return fmt.Errorf("kvcachesim: %w", err)
	}
	defer f.Close()

	tr, err := trace.ReadCSV(f)
	if err != nil {
		return err
	}

	report, runErr := sim.Run(tr)

	var budgetErr *scheduler.BudgetExceededError
	if runErr != nil {
		if errors.As(runErr, &budgetErr) {
			atexit.Register(func() { fmt.Fprintln(os.Stderr, "kvcachesim: cycle budget exceeded, partial metrics follow") })
			report = budgetErr.Partial
		} else {
			return runErr
		}
	}

	if err := writeReport(cmd, report); err != nil {
		return err
	}

	if runErr != nil {
		return runErr
	}

	return nil
}

func writeReport(cmd *cobra.Command, report *metrics.Report) error {
	switch flags.format {
	case "json":
		return report.WriteJSON(cmd.OutOrStdout())
	default:
		return report.WriteCSV(cmd.OutOrStdout())
	}
}
