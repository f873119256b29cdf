// Package driver wires the per-event pipeline: idempotency guard, risk
// evaluation, strategy selection, record assembly, and the durable
// append — the orchestration C0 sits above C2 through C5/C9.
package driver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"decisioncore/internal/canon"
	"decisioncore/internal/idempotency"
	"decisioncore/internal/record"
	"decisioncore/internal/risk"
	"decisioncore/internal/selector"
	"decisioncore/internal/store"
)

// Event is one inbound unit of work: risk inputs plus the market state
// and timeframe the selector needs.
type Event struct {
	IdempotencyKey string
	Symbol         string
	Timeframe      string
	RiskInputs     risk.RawInputs
	RiskConfig     risk.Config
	MarketState    selector.MarketState
	MarketFeatures map[string]any
	CodeVersion    record.CodeVersion
	RunContext     record.RunContext
	Artifacts      record.Artifacts
}

// Driver processes events against one run's writer, registry, and
// idempotency store. It owns no state beyond those three references;
// callers are responsible for opening and closing them.
type Driver struct {
	Writer   *store.Writer
	Registry *selector.Registry
	Idem     *idempotency.Store
}

// Process guards idempotency.key against duplicate delivery, then runs
// C2 (risk), C3 (selection), C4 (assembly), and C5 (append) for a new
// event. If the key has already been processed, the previously
// recorded record is decoded and returned unchanged — the pipeline
// never re-executes a side effect for a key it has already seen.
func (d *Driver) Process(ctx context.Context, ev Event) (record.Record, error) {
	if existing, ok, err := d.lookup(ctx, ev.IdempotencyKey); err != nil {
		return record.Record{}, err
	} else if ok {
		return existing, nil
	}

	payload, err := json.Marshal(ev.RiskInputs)
	if err != nil {
		return record.Record{}, fmt.Errorf("driver: marshaling risk inputs: %w", err)
	}
	riskDecision, _ := risk.Veto(payload, ev.RiskConfig)

	selection := selector.Select(d.Registry, ev.MarketState, riskDecision.State, ev.Timeframe)

	rec, err := d.Writer.Append(record.Params{
		DecisionID:     ev.IdempotencyKey,
		TsUTC:          time.Now().UTC(),
		Symbol:         ev.Symbol,
		Timeframe:      ev.Timeframe,
		CodeVersion:    ev.CodeVersion,
		RunContext:     ev.RunContext,
		Artifacts:      ev.Artifacts,
		MarketState:    ev.MarketState,
		MarketFeatures: ev.MarketFeatures,
		RiskDecision:   riskDecision,
		RiskMode:       record.RiskModeComputed,
		RiskConfig: map[string]any{
			"risk_config": riskConfigToMap(ev.RiskConfig),
		},
		Selection: selection,
		Outcome: record.Outcome{
			Decision: string(selection.Status),
			Allowed:  riskDecision.State.Permission() != risk.Block,
		},
	})
	if err != nil {
		return record.Record{}, fmt.Errorf("driver: appending record: %w", err)
	}

	if d.Idem != nil {
		encoded, err := canon.Encode(record.ToCanonical(rec))
		if err != nil {
			return record.Record{}, fmt.Errorf("driver: encoding record for idempotency store: %w", err)
		}
		if err := d.Idem.Put(ctx, ev.IdempotencyKey, encoded); err != nil {
			return record.Record{}, fmt.Errorf("driver: recording idempotency key: %w", err)
		}
	}

	return rec, nil
}

func (d *Driver) lookup(ctx context.Context, key string) (record.Record, bool, error) {
	if d.Idem == nil {
		return record.Record{}, false, nil
	}
	blob, ok, err := d.Idem.Get(ctx, key)
	if err != nil {
		return record.Record{}, false, fmt.Errorf("driver: checking idempotency key: %w", err)
	}
	if !ok {
		return record.Record{}, false, nil
	}
	var rec record.Record
	if err := json.Unmarshal(blob, &rec); err != nil {
		return record.Record{}, false, fmt.Errorf("driver: decoding idempotent record: %w", err)
	}
	return rec, true, nil
}

func riskConfigToMap(cfg risk.Config) map[string]any {
	return map[string]any{
		"missing_red":      cfg.MissingRed,
		"atr_yellow":       cfg.ATRYellow,
		"atr_red":          cfg.ATRRed,
		"rvol_yellow":      cfg.RVolYellow,
		"rvol_red":         cfg.RVolRed,
		"no_metrics_state": string(cfg.NoMetricsState),
		"config_version":   cfg.ConfigVersion,
		"pack_id":          cfg.PackID,
		"pack_version":     cfg.PackVersion,
	}
}
