// Package replay implements the offline verifier: re-running the risk
// and selector stages from a record's referenced snapshot data and
// checking the result against what was recorded.
package replay

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"decisioncore/internal/coreerr"
	"decisioncore/internal/record"
	"decisioncore/internal/risk"
	"decisioncore/internal/selector"
	"decisioncore/internal/snapshot"
)

// Mode controls how much of a record's hash partitioning a replay must
// reproduce to count as matched.
type Mode string

const (
	// ModeStrictCore requires only core_hash (inputs/selection/outcome)
	// to reproduce.
	ModeStrictCore Mode = "strict-core"
	// ModeStrictFull additionally requires content_hash to reproduce.
	ModeStrictFull Mode = "strict-full"
)

// MissingConfigError reports that a record's risk_mode is "computed"
// but no risk_config was recorded to recompute the decision from.
type MissingConfigError struct {
	Path string
}

func (e *MissingConfigError) Error() string {
	return fmt.Sprintf("replay: missing config at %s", e.Path)
}

func (e *MissingConfigError) Unwrap() error { return coreerr.ErrMissingConfig }

// Diff names one field where the replayed record disagrees with the
// recorded one.
type Diff struct {
	Path     string `json:"path"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// Outcome is the result of replaying a single record.
type Outcome struct {
	Matched      bool
	HashMismatch bool
	Diffs        []Diff
	Replayed     record.Record
}

// One replays a single record against snap under reg, in the given
// mode. It recomputes the risk decision when rec's risk_mode is
// "computed" (failing closed via MissingConfigError if no risk_config
// was recorded), re-runs selection from snap's selector inputs, and
// compares the result's hashes and key fields against rec.
func One(rec record.Record, snap snapshot.Bundle, reg *selector.Registry, mode Mode) (Outcome, error) {
	riskState := rec.Inputs.RiskState
	var riskDecision risk.Decision

	switch record.RiskMode(rec.Inputs.RiskMode) {
	case record.RiskModeComputed:
		cfg, err := riskConfigFrom(rec.Inputs.Config)
		if err != nil {
			return Outcome{}, err
		}
		payload, err := json.Marshal(snap.RiskInputs)
		if err != nil {
			return Outcome{}, fmt.Errorf("replay: marshaling snapshot risk inputs: %w", err)
		}
		riskDecision, _ = risk.Veto(payload, cfg)
		riskState = string(riskDecision.State)
	default:
		riskDecision = risk.Decision{State: risk.State(riskState), InputsDigest: rec.InputsDigest}
	}

	market := marketStateFrom(snap.SelectorInputs, rec.MarketState)
	sel := selector.Select(reg, market, risk.State(riskState), rec.Timeframe)

	params := record.Params{
		RunID:          rec.RunID,
		Seq:            rec.Seq,
		DecisionID:     rec.DecisionID,
		TsUTC:          mustParseTime(rec.TsUTC),
		Symbol:         rec.Symbol,
		Timeframe:      rec.Timeframe,
		CodeVersion:    rec.CodeVersion,
		RunContext:     rec.RunContext,
		Artifacts:      rec.Artifacts,
		MarketState:    market,
		MarketFeatures: mapOrFallback(snap.Features, rec.Inputs.MarketFeatures),
		RiskDecision:   riskDecision,
		RiskMode:       record.RiskMode(rec.Inputs.RiskMode),
		RiskConfig:     nonNilAny(rec.Inputs.Config),
		Selection:      sel,
		Outcome:        rec.Outcome,
	}

	replayed, err := record.Assemble(params)
	if err != nil {
		return Outcome{}, fmt.Errorf("replay: assembling replay record: %w", err)
	}

	diffs := diffRecords(rec, replayed)
	hashMismatch := rec.Hashes.CoreHash != replayed.Hashes.CoreHash ||
		rec.MarketStateHash != replayed.MarketStateHash
	if mode == ModeStrictFull {
		hashMismatch = hashMismatch || rec.Hashes.ContentHash != replayed.Hashes.ContentHash
	}

	return Outcome{
		Matched:      !hashMismatch && len(diffs) == 0,
		HashMismatch: hashMismatch,
		Diffs:        diffs,
		Replayed:     replayed,
	}, nil
}

func riskConfigFrom(config map[string]any) (risk.Config, error) {
	raw, ok := config["risk_config"]
	if !ok {
		return risk.Config{}, &MissingConfigError{Path: "inputs.config.risk_config"}
	}
	blob, err := json.Marshal(raw)
	if err != nil {
		return risk.Config{}, fmt.Errorf("replay: marshaling risk_config: %w", err)
	}

	var wire struct {
		MissingRed     float64 `json:"missing_red"`
		ATRYellow      float64 `json:"atr_yellow"`
		ATRRed         float64 `json:"atr_red"`
		RVolYellow     float64 `json:"rvol_yellow"`
		RVolRed        float64 `json:"rvol_red"`
		NoMetricsState string  `json:"no_metrics_state"`
		ConfigVersion  string  `json:"config_version"`
		PackID         string  `json:"pack_id"`
		PackVersion    string  `json:"pack_version"`
	}
	if err := json.Unmarshal(blob, &wire); err != nil {
		return risk.Config{}, fmt.Errorf("replay: decoding risk_config: %w", err)
	}

	noMetrics := risk.Yellow
	if wire.NoMetricsState == string(risk.Red) {
		noMetrics = risk.Red
	}

	return risk.Config{
		MissingRed:     wire.MissingRed,
		ATRYellow:      wire.ATRYellow,
		ATRRed:         wire.ATRRed,
		RVolYellow:     wire.RVolYellow,
		RVolRed:        wire.RVolRed,
		NoMetricsState: noMetrics,
		ConfigVersion:  wire.ConfigVersion,
		PackID:         wire.PackID,
		PackVersion:    wire.PackVersion,
	}, nil
}

func marketStateFrom(selectorInputs map[string]any, fallback map[string]string) selector.MarketState {
	if len(selectorInputs) == 0 {
		return selector.MarketState(fallback)
	}
	out := make(selector.MarketState, len(selectorInputs))
	for k, v := range selectorInputs {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

func nonNilAny(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func mapOrFallback(m, fallback map[string]any) map[string]any {
	if len(m) > 0 {
		return m
	}
	return nonNilAny(fallback)
}

func mustParseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func diffRecords(want, got record.Record) []Diff {
	var diffs []Diff
	add := func(path, expected, actual string) {
		if expected != actual {
			diffs = append(diffs, Diff{Path: path, Expected: expected, Actual: actual})
		}
	}

	add("inputs.risk_state", want.Inputs.RiskState, got.Inputs.RiskState)
	add("selection.strategy_id", strPtr(want.Selection.StrategyID), strPtr(got.Selection.StrategyID))
	add("selection.reasons", fmt.Sprint(want.Selection.Reasons), fmt.Sprint(got.Selection.Reasons))
	add("selection.rules_fired", fmt.Sprint(want.Selection.RulesFired), fmt.Sprint(got.Selection.RulesFired))
	add("hashes.core_hash", want.Hashes.CoreHash, got.Hashes.CoreHash)

	sort.SliceStable(diffs, func(i, j int) bool {
		return pathDepth(diffs[i].Path) > pathDepth(diffs[j].Path)
	})

	return diffs
}

func pathDepth(path string) int {
	return strings.Count(path, ".") + 1
}

func strPtr(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}
