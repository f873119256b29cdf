package replay

import (
	"os"

	"decisioncore/internal/record"
	"decisioncore/internal/selector"
	"decisioncore/internal/snapshot"
	"decisioncore/internal/store"
)

// Report aggregates replay outcomes across every record in one or more
// shards.
type Report struct {
	Total        int
	Matched      int
	Mismatched   int
	HashMismatch int
	Errors       int
}

// Verify loads every record at recordsPath (a single shard or a run
// directory containing decision_records_*.jsonl shards) and replays
// each one, using the snapshot referenced by artifacts.snapshot_ref
// when present, or the record's own embedded inputs otherwise.
func Verify(recordsPath, snapshotDir string) (Report, error) {
	records, loadErrors, err := loadAny(recordsPath)
	if err != nil {
		return Report{}, err
	}

	reg := selector.Default()
	report := Report{Total: len(records), Errors: loadErrors}

	for _, rec := range records {
		bundle, err := snapshotFor(rec, snapshotDir)
		if err != nil {
			report.Errors++
			continue
		}

		outcome, err := One(rec, bundle, reg, ModeStrictCore)
		if err != nil {
			report.Errors++
			continue
		}

		switch {
		case outcome.HashMismatch:
			report.HashMismatch++
		case !outcome.Matched:
			report.Mismatched++
		default:
			report.Matched++
		}
	}

	return report, nil
}

func loadAny(path string) ([]record.Record, int, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, 0, err
	}
	if info.IsDir() {
		return store.LoadRun(path)
	}
	return store.Load(path)
}

func snapshotFor(rec record.Record, snapshotDir string) (snapshot.Bundle, error) {
	if rec.Artifacts.SnapshotRef != "" && snapshotDir != "" {
		return snapshot.Load(snapshotDir, rec.Artifacts.SnapshotRef)
	}
	return snapshot.Bundle{
		SnapshotVersion: snapshot.SchemaVersion,
		DecisionID:      rec.DecisionID,
		Symbol:          rec.Symbol,
		Timeframe:       rec.Timeframe,
		Features:        rec.Inputs.MarketFeatures,
		SelectorInputs:  stringMapToAny(rec.MarketState),
		Config:          rec.Inputs.Config,
	}, nil
}

func stringMapToAny(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

