package record

import (
	"sort"

	"decisioncore/internal/canon"
)

func marketStateValue(ms map[string]string) canon.Value {
	obj := make(canon.Object, len(ms))
	for k, v := range ms {
		obj[k] = canon.String(v)
	}
	return obj
}

func stringArray(ss []string) canon.Array {
	arr := make(canon.Array, len(ss))
	for i, s := range ss {
		arr[i] = canon.String(s)
	}
	return arr
}

func nullableString(s *string) canon.Value {
	if s == nil {
		return canon.Null{}
	}
	return canon.String(*s)
}

func mustCanon(v any) canon.Value {
	cv, err := canon.FromGo(v)
	if err != nil {
		// Callers only ever pass map[string]any/[]any trees already built
		// from validated inputs; a conversion failure here means the
		// caller constructed a record from non-canonical Go data, which
		// is a programming error, not a runtime condition to recover from.
		panic("record: " + err.Error())
	}
	return cv
}

func inputsValue(in Inputs) canon.Value {
	return canon.Object{
		"market_features": mustCanon(anyMap(in.MarketFeatures)),
		"risk_state":       canon.String(in.RiskState),
		"selector_inputs":  mustCanon(anyMap(in.SelectorInputs)),
		"config":           mustCanon(anyMap(in.Config)),
		"risk_mode":        canon.String(string(in.RiskMode)),
	}
}

func anyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func selectionValue(sel SelectionView, normalize bool) canon.Value {
	reasons := sel.Reasons
	rulesFired := sel.RulesFired
	if normalize {
		reasons = sortedStrings(reasons)
		rulesFired = sortedStrings(rulesFired)
	}
	return canon.Object{
		"selected":    canon.Bool(sel.Selected),
		"strategy_id": nullableString(sel.StrategyID),
		"engine_id":   nullableString(sel.EngineID),
		"status":      canon.String(sel.Status),
		"reasons":     stringArray(reasons),
		"rules_fired": stringArray(rulesFired),
	}
}

func outcomeValue(o Outcome) canon.Value {
	return canon.Object{
		"decision": canon.String(o.Decision),
		"allowed":  canon.Bool(o.Allowed),
		"notes":    canon.String(o.Notes),
	}
}

func codeVersionValue(c CodeVersion) canon.Value {
	return canon.Object{
		"git_commit": canon.String(c.GitCommit),
		"dirty":      canon.Bool(c.Dirty),
	}
}

func runContextValue(r RunContext) canon.Value {
	return canon.Object{
		"seed":                 canon.Int(r.Seed),
		"language_runtime_tag": canon.String(r.LanguageRuntimeTag),
		"platform":             canon.String(r.Platform),
	}
}

func artifactsValue(a Artifacts) canon.Value {
	return canon.Object{
		"snapshot_ref": canon.String(a.SnapshotRef),
		"features_ref": canon.String(a.FeaturesRef),
	}
}

// CoreView returns the replay-comparable subset of rec: inputs,
// selection (normalized for hashing), and outcome. This is the subtree
// core_hash digests.
func CoreView(rec Record) canon.Value {
	return canon.Object{
		"inputs":    inputsValue(rec.Inputs),
		"selection": selectionValue(rec.Selection, true),
		"outcome":   outcomeValue(rec.Outcome),
	}
}

// WithoutHashes returns the canonical value of rec with the hashes
// section excluded — the subtree content_hash digests.
func WithoutHashes(rec Record) canon.Value {
	return canon.Object{
		"schema_version":    canon.String(rec.SchemaVersion),
		"run_id":             canon.String(rec.RunID),
		"seq":                canon.Int(int64(rec.Seq)),
		"decision_id":        canon.String(rec.DecisionID),
		"ts_utc":             canon.String(rec.TsUTC),
		"symbol":             canon.String(rec.Symbol),
		"timeframe":          canon.String(rec.Timeframe),
		"risk_state":         canon.String(rec.RiskState),
		"market_state":       marketStateValue(rec.MarketState),
		"market_state_hash":  canon.String(rec.MarketStateHash),
		"code_version":       codeVersionValue(rec.CodeVersion),
		"run_context":        runContextValue(rec.RunContext),
		"artifacts":          artifactsValue(rec.Artifacts),
		"inputs":             inputsValue(rec.Inputs),
		"selection":           selectionValue(rec.Selection, false),
		"inputs_digest":      canon.String(rec.InputsDigest),
		"outcome":            outcomeValue(rec.Outcome),
		"numeric_policy_id":  canon.String(rec.NumericPolicyID),
	}
}

// ToCanonical returns the full canonical value of rec, hashes included —
// this is what gets encoded to the shard line.
func ToCanonical(rec Record) canon.Value {
	full, ok := WithoutHashes(rec).(canon.Object)
	if !ok {
		panic("record: WithoutHashes did not return an Object")
	}
	out := make(canon.Object, len(full)+1)
	for k, v := range full {
		out[k] = v
	}
	out["hashes"] = canon.Object{
		"inputs_hash":  canon.String(rec.Hashes.InputsHash),
		"core_hash":    canon.String(rec.Hashes.CoreHash),
		"content_hash": canon.String(rec.Hashes.ContentHash),
	}
	return out
}

func sortedStrings(in []string) []string {
	out := append([]string{}, in...)
	sort.Strings(out)
	return out
}
