package record

import (
	"time"

	"decisioncore/internal/canon"
	"decisioncore/internal/risk"
	"decisioncore/internal/selector"
)

// Params carries everything Assemble needs beyond the pure C2/C3 outputs.
type Params struct {
	RunID       string
	Seq         int
	DecisionID  string
	TsUTC       time.Time
	Symbol      string
	Timeframe   string
	CodeVersion CodeVersion
	RunContext  RunContext
	Artifacts   Artifacts

	MarketState    selector.MarketState
	MarketFeatures map[string]any
	RiskDecision   risk.Decision
	RiskMode       RiskMode
	RiskConfig     map[string]any
	Selection      selector.Selection
	Outcome        Outcome
}

// Assemble builds the decision record from a risk decision and a
// selection, computing the hash partitioning described in §4.4: build
// inputs, build normalized selection, then inputs_hash, core_hash, and
// content_hash in that order.
func Assemble(p Params) (Record, error) {
	ms := map[string]string(p.MarketState)

	rec := Record{
		SchemaVersion:   SchemaVersion,
		RunID:           p.RunID,
		Seq:             p.Seq,
		DecisionID:      p.DecisionID,
		TsUTC:           p.TsUTC.UTC().Format(time.RFC3339Nano),
		Symbol:          p.Symbol,
		Timeframe:       p.Timeframe,
		RiskState:       string(p.RiskDecision.State),
		MarketState:     ms,
		CodeVersion:     p.CodeVersion,
		RunContext:      p.RunContext,
		Artifacts:       p.Artifacts,
		Inputs: Inputs{
			MarketFeatures: p.MarketFeatures,
			RiskState:      string(p.RiskDecision.State),
			SelectorInputs: anyMap(stringMapToAny(ms)),
			Config:         p.RiskConfig,
			RiskMode:       p.RiskMode,
		},
		Selection:       toSelectionView(p.Selection),
		InputsDigest:    p.RiskDecision.InputsDigest,
		Outcome:         p.Outcome,
		NumericPolicyID: canon.NumericPolicyID,
	}

	marketStateHash, err := canon.Digest(marketStateValue(ms))
	if err != nil {
		return Record{}, err
	}
	rec.MarketStateHash = marketStateHash

	inputsHash, err := canon.Digest(inputsValue(rec.Inputs))
	if err != nil {
		return Record{}, err
	}

	coreHash, err := canon.Digest(CoreView(rec))
	if err != nil {
		return Record{}, err
	}

	rec.Hashes = Hashes{InputsHash: inputsHash, CoreHash: coreHash}

	contentHash, err := canon.Digest(WithoutHashes(rec))
	if err != nil {
		return Record{}, err
	}
	rec.Hashes.ContentHash = contentHash

	return rec, nil
}

func toSelectionView(s selector.Selection) SelectionView {
	return SelectionView{
		Selected:   s.Selected,
		StrategyID: s.StrategyID,
		EngineID:   s.EngineID,
		Status:     string(s.Status),
		Reasons:    s.Reasons,
		RulesFired: s.RulesFired,
	}
}

func stringMapToAny(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
