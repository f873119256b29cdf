// Package coreerr defines the error-kind sentinels shared across every
// core component, per the error taxonomy: kinds, not type hierarchies.
// Every package that can fail in one of these ways wraps the matching
// sentinel with fmt.Errorf("%w: ...") so callers can errors.Is against a
// stable value regardless of which component produced it.
package coreerr

import "errors"

var (
	// ErrInvalidInputs: a risk-inputs payload failed validation. The
	// fail-closed contract says this never reaches a caller as a bare
	// error from the driver — risk.Veto converts it into a synthetic RED
	// decision — but lower-level validators still return it so callers
	// that bypass Veto can distinguish the failure kind.
	ErrInvalidInputs = errors.New("invalid_inputs")

	// ErrMissingConfig: replay in "computed" risk_mode without the
	// required config subtree. The wrapping error's message carries the
	// missing field path.
	ErrMissingConfig = errors.New("missing_config")

	// ErrSchemaMismatch: an unknown record or store schema version.
	// Never attempt best-effort migration inside the core.
	ErrSchemaMismatch = errors.New("schema_mismatch")

	// ErrHashMismatch: a stored hash did not equal its recomputed value.
	// Counted by the replay verifier; never fatal to the verifier's run.
	ErrHashMismatch = errors.New("hash_mismatch")
)
