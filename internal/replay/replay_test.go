package replay_test

import (
	"errors"
	"testing"
	"time"

	"decisioncore/internal/coreerr"
	"decisioncore/internal/record"
	"decisioncore/internal/replay"
	"decisioncore/internal/risk"
	"decisioncore/internal/selector"
	"decisioncore/internal/snapshot"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func factRecord(t *testing.T, market selector.MarketState, riskState risk.State) record.Record {
	t.Helper()
	reg := selector.Default()
	sel := selector.Select(reg, market, riskState, "1h")

	rec, err := record.Assemble(record.Params{
		RunID:        "run-1",
		Seq:          0,
		DecisionID:   uuid.NewString(),
		TsUTC:        time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Symbol:       "BTCUSD",
		Timeframe:    "1h",
		MarketState:  market,
		RiskDecision: risk.Decision{State: riskState, InputsDigest: "sha256:deadbeef"},
		RiskMode:     record.RiskModeFact,
		Selection:    sel,
		Outcome:      record.Outcome{Decision: "proceed", Allowed: true},
	})
	require.NoError(t, err)
	return rec
}

func TestReplayMatchesWhenNothingChanged(t *testing.T) {
	rec := factRecord(t, selector.MarketState{"trend_state": "UP"}, risk.Green)
	reg := selector.Default()

	bundle := snapshot.Bundle{
		SnapshotVersion: snapshot.SchemaVersion,
		SelectorInputs:  map[string]any{"trend_state": "UP"},
	}
	outcome, err := replay.One(rec, bundle, reg, replay.ModeStrictCore)
	require.NoError(t, err)
	assert.True(t, outcome.Matched)
	assert.False(t, outcome.HashMismatch)
	assert.Empty(t, outcome.Diffs)
}

func TestReplayDetectsSelectionMismatchFromDivergentSnapshot(t *testing.T) {
	rec := factRecord(t, selector.MarketState{"trend_state": "UP"}, risk.Green)
	reg := selector.Default()

	bundle := snapshot.Bundle{
		SnapshotVersion: snapshot.SchemaVersion,
		SelectorInputs:  map[string]any{"trend_state": "RANGE"},
	}
	outcome, err := replay.One(rec, bundle, reg, replay.ModeStrictCore)
	require.NoError(t, err)
	assert.False(t, outcome.Matched)

	var strategyDiff *replay.Diff
	for i := range outcome.Diffs {
		if outcome.Diffs[i].Path == "selection.strategy_id" {
			strategyDiff = &outcome.Diffs[i]
		}
	}
	require.NotNil(t, strategyDiff)
}

func TestReplayFailsClosedOnMissingRiskConfig(t *testing.T) {
	reg := selector.Default()
	sel := selector.Select(reg, selector.MarketState{"trend_state": "UP"}, risk.Green, "1h")

	rec, err := record.Assemble(record.Params{
		RunID:        "run-1",
		DecisionID:   uuid.NewString(),
		TsUTC:        time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Symbol:       "BTCUSD",
		Timeframe:    "1h",
		MarketState:  selector.MarketState{"trend_state": "UP"},
		RiskDecision: risk.Decision{State: risk.Green},
		RiskMode:     record.RiskModeComputed,
		RiskConfig:   map[string]any{},
		Selection:    sel,
		Outcome:      record.Outcome{Decision: "proceed", Allowed: true},
	})
	require.NoError(t, err)

	bundle := snapshot.Bundle{
		SnapshotVersion: snapshot.SchemaVersion,
		RiskInputs: map[string]any{
			"symbol": "BTCUSD", "timeframe": "1h", "as_of": "2026-01-01T00:00:00Z",
			"timestamps_valid": true, "latest_metrics_valid": true,
		},
	}

	_, err = replay.One(rec, bundle, reg, replay.ModeStrictCore)
	require.Error(t, err)
	var mcErr *replay.MissingConfigError
	require.ErrorAs(t, err, &mcErr)
	assert.Contains(t, mcErr.Error(), "inputs.config.risk_config")
	assert.True(t, errors.Is(err, coreerr.ErrMissingConfig))
}

func TestReplayRecomputesComputedRiskDecision(t *testing.T) {
	reg := selector.Default()
	cfg, err := risk.Pack("L3_BALANCED")
	require.NoError(t, err)

	raw := risk.RawInputs{
		Symbol: "BTCUSD", Timeframe: "1h", AsOf: "2026-01-01T00:00:00Z",
		TimestampsValid: true, LatestMetricsValid: true,
	}
	in, err := risk.Validate(raw)
	require.NoError(t, err)
	rd := risk.Evaluate(in, cfg)

	sel := selector.Select(reg, selector.MarketState{"trend_state": "UP"}, rd.State, "1h")

	rec, err := record.Assemble(record.Params{
		RunID:        "run-1",
		DecisionID:   uuid.NewString(),
		TsUTC:        time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Symbol:       "BTCUSD",
		Timeframe:    "1h",
		MarketState:  selector.MarketState{"trend_state": "UP"},
		RiskDecision: rd,
		RiskMode:     record.RiskModeComputed,
		RiskConfig: map[string]any{
			"risk_config": map[string]any{
				"missing_red": cfg.MissingRed,
				"atr_yellow":  cfg.ATRYellow,
				"atr_red":     cfg.ATRRed,
				"rvol_yellow": cfg.RVolYellow,
				"rvol_red":    cfg.RVolRed,
			},
		},
		Selection: sel,
		Outcome:   record.Outcome{Decision: "proceed", Allowed: true},
	})
	require.NoError(t, err)

	bundle := snapshot.Bundle{
		SnapshotVersion: snapshot.SchemaVersion,
		SelectorInputs:  map[string]any{"trend_state": "UP"},
		RiskInputs: map[string]any{
			"symbol": "BTCUSD", "timeframe": "1h", "as_of": "2026-01-01T00:00:00Z",
			"missing_fraction": 0.0, "timestamps_valid": true, "latest_metrics_valid": true,
			"invalid_index": false, "invalid_close": false,
		},
		Config: rec.Inputs.Config,
	}

	outcome, err := replay.One(rec, bundle, reg, replay.ModeStrictCore)
	require.NoError(t, err)
	assert.True(t, outcome.Matched)
}
