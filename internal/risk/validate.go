package risk

import (
	"fmt"
	"strings"
	"time"

	"decisioncore/internal/coreerr"
)

// ErrInvalidInputs is the sentinel every validation failure wraps. Veto
// turns any validation failure into the synthetic RED decision.
var ErrInvalidInputs = coreerr.ErrInvalidInputs

// Validate normalizes and checks a RawInputs payload against the §3
// contract: non-empty symbol/timeframe, a parseable as_of timestamp,
// non-negative-or-absent atr_pct/realized_vol, and missing_fraction in
// [0,1]. Any violation returns ErrInvalidInputs.
func Validate(raw RawInputs) (Inputs, error) {
	if strings.TrimSpace(raw.Symbol) == "" {
		return Inputs{}, fmt.Errorf("%w: symbol is empty", ErrInvalidInputs)
	}
	if strings.TrimSpace(raw.Timeframe) == "" {
		return Inputs{}, fmt.Errorf("%w: timeframe is empty", ErrInvalidInputs)
	}
	asOf, err := parseAsOf(raw.AsOf)
	if err != nil {
		return Inputs{}, fmt.Errorf("%w: as_of %q: %v", ErrInvalidInputs, raw.AsOf, err)
	}
	if raw.ATRPct != nil && *raw.ATRPct < 0 {
		return Inputs{}, fmt.Errorf("%w: atr_pct is negative", ErrInvalidInputs)
	}
	if raw.RealizedVol != nil && *raw.RealizedVol < 0 {
		return Inputs{}, fmt.Errorf("%w: realized_vol is negative", ErrInvalidInputs)
	}
	if raw.MissingFraction < 0 || raw.MissingFraction > 1 {
		return Inputs{}, fmt.Errorf("%w: missing_fraction %v out of [0,1]", ErrInvalidInputs, raw.MissingFraction)
	}

	return Inputs{
		Symbol:             raw.Symbol,
		Timeframe:          raw.Timeframe,
		AsOf:               asOf,
		ATRPct:             raw.ATRPct,
		RealizedVol:        raw.RealizedVol,
		MissingFraction:    raw.MissingFraction,
		TimestampsValid:    raw.TimestampsValid,
		LatestMetricsValid: raw.LatestMetricsValid,
		InvalidIndex:       raw.InvalidIndex,
		InvalidClose:       raw.InvalidClose,
	}, nil
}

// parseAsOf accepts ISO-8601 UTC timestamps with a trailing "Z" or an
// explicit numeric offset, normalizing both to UTC.
func parseAsOf(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("not ISO-8601 with Z or numeric offset")
}
