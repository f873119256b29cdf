// Command replayverify replays a run's decision records against their
// snapshots and reports whether the recomputed risk and selection
// decisions still match what was recorded.
package main

import (
	"flag"
	"fmt"
	"os"

	"decisioncore/internal/replay"
)

func main() {
	var (
		recordsPath = flag.String("records", "", "path to a decision_records_*.jsonl shard or a run directory")
		snapshotDir = flag.String("snapshots", "", "directory of snapshot bundles referenced by artifacts.snapshot_ref")
	)
	flag.Parse()

	if *recordsPath == "" {
		fmt.Fprintln(os.Stderr, "missing -records")
		os.Exit(2)
	}

	report, err := replay.Verify(*recordsPath, *snapshotDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(2)
	}

	fmt.Printf("TOTAL: %d\n", report.Total)
	fmt.Printf("MATCHED: %d\n", report.Matched)
	fmt.Printf("MISMATCHED: %d\n", report.Mismatched)
	fmt.Printf("HASH_MISMATCH: %d\n", report.HashMismatch)
	fmt.Printf("ERRORS: %d\n", report.Errors)

	if report.Mismatched > 0 || report.HashMismatch > 0 || report.Errors > 0 {
		os.Exit(1)
	}
}
