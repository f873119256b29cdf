package selector

import (
	"sort"

	"decisioncore/internal/risk"
)

// Select runs the registry-ordered candidate cascade and returns the
// first profile whose structural preconditions and engine applicability
// both hold. Pure; deterministic for a frozen registry.
func Select(reg *Registry, market MarketState, riskState risk.State, timeframe string) Selection {
	if riskState == risk.Red {
		return Selection{
			Selected:   false,
			StrategyID: nil,
			EngineID:   nil,
			Status:     StatusRiskVeto,
			Reasons:    []string{reasonRiskVetoRed},
			RulesFired: []string{reasonRiskVetoRed},
		}
	}

	var prior []string
	candidates := reg.profilesInOrder()
	if riskState == risk.Yellow {
		prior = append(prior, reasonRiskLimitYellow)
		filtered := make([]Profile, 0, len(candidates))
		for _, p := range candidates {
			if p.Conservative {
				filtered = append(filtered, p)
			}
		}
		candidates = filtered
	}

	for _, p := range candidates {
		okProfile, profileReasons := profileApplicable(p, market)
		if !okProfile {
			continue
		}
		engine, err := reg.mustEngineFor(p)
		if err != nil {
			continue
		}
		okEngine, engineReasons := engine.Applicable(market, timeframe)
		if !okEngine {
			continue
		}

		strategyID := p.StrategyID
		engineID := p.EngineID
		reasons := append(append(append([]string{}, prior...), profileReasons...), engineReasons...)
		reasons = append(reasons, selectedReason(strategyID))

		return Selection{
			Selected:   true,
			StrategyID: &strategyID,
			EngineID:   &engineID,
			Status:     StatusSelected,
			Reasons:    reasons,
			RulesFired: reasons,
		}
	}

	reasons := append(append([]string{}, prior...), reasonNoApplicableStrategy)
	return Selection{
		Selected:   false,
		StrategyID: nil,
		EngineID:   nil,
		Status:     StatusNoApplicable,
		Reasons:    reasons,
		RulesFired: reasons,
	}
}

// profileApplicable checks required_market_keys then required_conditions,
// mirroring the engine-level check shape so both failure classes produce
// the PROFILE_* reason codes spec.md names.
func profileApplicable(p Profile, market MarketState) (bool, []string) {
	if missing := missingKeys(market, p.RequiredMarketKeys...); len(missing) > 0 {
		return false, []string{"PROFILE_MISSING_KEYS:" + joinKeys(missing)}
	}
	keys := make([]string, 0, len(p.RequiredConditions))
	for k := range p.RequiredConditions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if market[k] != p.RequiredConditions[k] {
			return false, []string{"PROFILE_CONDITION_MISMATCH:" + k}
		}
	}
	return true, []string{"PROFILE_OK"}
}

func sortedCopy(in []string) []string {
	out := append([]string{}, in...)
	sort.Strings(out)
	return out
}
