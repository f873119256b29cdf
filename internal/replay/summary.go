package replay

import (
	"path/filepath"
	"sort"
	"time"

	"decisioncore/internal/store"
)

// Summary aggregates a run directory's shards into risk-state and
// strategy-id counts, the run's time span, and replay verification
// totals across every shard.
type Summary struct {
	GeneratedAt        string         `json:"generated_at"`
	TotalRecords       int            `json:"total_records"`
	ShardsCount        int            `json:"shards_count"`
	RiskStateCounts    map[string]int `json:"risk_state_counts"`
	StrategyIDCounts   map[string]int `json:"strategy_id_counts"`
	NoneCount          int            `json:"none_count"`
	FirstTS            string         `json:"first_ts"`
	LastTS             string         `json:"last_ts"`
	ReplayVerification Report         `json:"replay_verification"`
}

// Summarize scans every decision_records_*.jsonl shard in runDir and
// produces a Summary: per-risk-state and per-strategy-id counts, the
// earliest and latest ts_utc seen, and aggregate replay.Verify totals
// across all shards.
func Summarize(runDir string) (Summary, error) {
	shards, err := filepath.Glob(filepath.Join(runDir, "decision_records_*.jsonl"))
	if err != nil {
		return Summary{}, err
	}
	sort.Strings(shards)

	records, _, err := store.LoadRun(runDir)
	if err != nil {
		return Summary{}, err
	}

	riskCounts := map[string]int{}
	strategyCounts := map[string]int{}
	noneCount := 0
	var firstTS, lastTS string

	for _, rec := range records {
		riskCounts[rec.RiskState]++

		if rec.Selection.StrategyID != nil {
			strategyCounts[*rec.Selection.StrategyID]++
		} else {
			noneCount++
		}

		if rec.TsUTC != "" {
			if firstTS == "" || rec.TsUTC < firstTS {
				firstTS = rec.TsUTC
			}
			if lastTS == "" || rec.TsUTC > lastTS {
				lastTS = rec.TsUTC
			}
		}
	}

	var totals Report
	for _, shard := range shards {
		r, err := Verify(shard, "")
		if err != nil {
			return Summary{}, err
		}
		totals.Total += r.Total
		totals.Matched += r.Matched
		totals.Mismatched += r.Mismatched
		totals.HashMismatch += r.HashMismatch
		totals.Errors += r.Errors
	}

	return Summary{
		GeneratedAt:        time.Now().UTC().Format(time.RFC3339),
		TotalRecords:       len(records),
		ShardsCount:        len(shards),
		RiskStateCounts:    riskCounts,
		StrategyIDCounts:   strategyCounts,
		NoneCount:          noneCount,
		FirstTS:            firstTS,
		LastTS:             lastTS,
		ReplayVerification: totals,
	}, nil
}
