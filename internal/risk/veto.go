package risk

import (
	"encoding/json"
	"errors"
)

// Veto is the fail-closed entry point: it validates raw, and on any
// violation (schema or field-level) returns a synthetic RED decision
// with reason invalid_inputs instead of propagating the error. Callers
// that need to distinguish "rejected" from "evaluated" check the
// returned bool.
//
// ok is false exactly when raw failed validation and the returned
// Decision is the synthetic fail-closed one.
func Veto(payload []byte, cfg Config) (decision Decision, ok bool) {
	if err := ValidateSchema(payload); err != nil {
		return syntheticRed(payload, cfg), false
	}

	var raw RawInputs
	if err := json.Unmarshal(payload, &raw); err != nil {
		return syntheticRed(payload, cfg), false
	}

	in, err := Validate(raw)
	if err != nil {
		if errors.Is(err, ErrInvalidInputs) {
			return syntheticRed(payload, cfg), false
		}
		return syntheticRed(payload, cfg), false
	}

	return Evaluate(in, cfg), true
}

// syntheticRed builds the best-effort fail-closed record: whatever of
// the raw payload can still be recovered is carried in the snapshot so
// an auditor can see what was rejected, but the state and reason are
// fixed regardless.
func syntheticRed(payload []byte, cfg Config) Decision {
	snapshot := map[string]any{}
	var loose map[string]any
	if json.Unmarshal(payload, &loose) == nil {
		snapshot = loose
	}
	return Decision{
		State:         Red,
		Reasons:       []string{ReasonInvalidInputs},
		Snapshot:      snapshot,
		ConfigVersion: cfg.ConfigVersion,
		InputsDigest:  "",
	}
}
