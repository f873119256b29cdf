package risk

import "decisioncore/internal/canon"

// Evaluate runs the ordered rule cascade against already-validated
// inputs. Pure; no I/O. First matching rule wins, except the
// validity-gate rule (1) which accumulates every triggered reason in
// enumerated order rather than stopping at the first.
func Evaluate(in Inputs, cfg Config) Decision {
	snapshot := snapshotOf(in)
	digest := inputsDigest(in)

	if reasons := validityReasons(in); len(reasons) > 0 {
		return Decision{State: Red, Reasons: reasons, Snapshot: snapshot, ConfigVersion: cfg.ConfigVersion, InputsDigest: digest}
	}

	if in.MissingFraction > cfg.MissingRed {
		return Decision{State: Red, Reasons: []string{ReasonMissingFractionExceed}, Snapshot: snapshot, ConfigVersion: cfg.ConfigVersion, InputsDigest: digest}
	}

	if !in.LatestMetricsValid {
		return Decision{State: Red, Reasons: []string{ReasonMissingMetrics}, Snapshot: snapshot, ConfigVersion: cfg.ConfigVersion, InputsDigest: digest}
	}

	if in.ATRPct == nil && in.RealizedVol == nil {
		return Decision{State: cfg.NoMetricsState, Reasons: []string{ReasonNoMetrics}, Snapshot: snapshot, ConfigVersion: cfg.ConfigVersion, InputsDigest: digest}
	}

	state, reasons := bandEvaluate(in, cfg)
	return Decision{State: state, Reasons: reasons, Snapshot: snapshot, ConfigVersion: cfg.ConfigVersion, InputsDigest: digest}
}

// validityReasons returns, in the closed set's enumerated order, every
// hard-validity reason that fires for in.
func validityReasons(in Inputs) []string {
	var reasons []string
	if !in.TimestampsValid {
		reasons = append(reasons, ReasonInvalidTimestamps)
	}
	if in.InvalidIndex {
		reasons = append(reasons, ReasonInvalidIndex)
	}
	if in.InvalidClose {
		reasons = append(reasons, ReasonInvalidClose)
	}
	return reasons
}

// bandEvaluate classifies atr_pct and realized_vol independently against
// their yellow/red thresholds, then takes the worst band across both.
func bandEvaluate(in Inputs, cfg Config) (State, []string) {
	var reasons []string
	worst := Green

	if in.ATRPct != nil {
		switch {
		case *in.ATRPct >= cfg.ATRRed:
			reasons = append(reasons, ReasonATRAboveRed)
			worst = worsen(worst, Red)
		case *in.ATRPct >= cfg.ATRYellow:
			reasons = append(reasons, ReasonATRAboveYellow)
			worst = worsen(worst, Yellow)
		}
	}

	if in.RealizedVol != nil {
		switch {
		case *in.RealizedVol >= cfg.RVolRed:
			reasons = append(reasons, ReasonRealizedVolAboveRed)
			worst = worsen(worst, Red)
		case *in.RealizedVol >= cfg.RVolYellow:
			reasons = append(reasons, ReasonRealizedVolAboveYellow)
			worst = worsen(worst, Yellow)
		}
	}

	return worst, reasons
}

func worsen(a, b State) State {
	rank := map[State]int{Green: 0, Yellow: 1, Red: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

func snapshotOf(in Inputs) map[string]any {
	return map[string]any{
		"symbol":               in.Symbol,
		"timeframe":            in.Timeframe,
		"as_of":                in.AsOf.Format("2006-01-02T15:04:05.999999999Z"),
		"atr_pct":              in.ATRPct,
		"realized_vol":         in.RealizedVol,
		"missing_fraction":     in.MissingFraction,
		"timestamps_valid":     in.TimestampsValid,
		"latest_metrics_valid": in.LatestMetricsValid,
		"invalid_index":        in.InvalidIndex,
		"invalid_close":        in.InvalidClose,
	}
}

func inputsDigest(in Inputs) string {
	obj := canon.Object{
		"symbol":               canon.String(in.Symbol),
		"timeframe":            canon.String(in.Timeframe),
		"as_of":                canon.String(in.AsOf.Format("2006-01-02T15:04:05.999999999Z")),
		"missing_fraction":     canon.Decimal(in.MissingFraction),
		"timestamps_valid":     canon.Bool(in.TimestampsValid),
		"latest_metrics_valid": canon.Bool(in.LatestMetricsValid),
		"invalid_index":        canon.Bool(in.InvalidIndex),
		"invalid_close":        canon.Bool(in.InvalidClose),
	}
	if in.ATRPct != nil {
		obj["atr_pct"] = canon.Decimal(*in.ATRPct)
	} else {
		obj["atr_pct"] = canon.Null{}
	}
	if in.RealizedVol != nil {
		obj["realized_vol"] = canon.Decimal(*in.RealizedVol)
	} else {
		obj["realized_vol"] = canon.Null{}
	}
	digest, err := canon.Digest(obj)
	if err != nil {
		// Inputs was constructed by Validate and can only hold finite
		// floats; this is unreachable, but fail loudly rather than hide it.
		panic("risk: inputs digest: " + err.Error())
	}
	return digest
}
