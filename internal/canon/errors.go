package canon

import (
	"errors"
	"fmt"
)

// ErrNonCanonicalValue is the sentinel for any value the encoder cannot
// represent: non-finite floats, non-string mapping keys, or unsupported
// Go types reaching the encoder by mistake.
var ErrNonCanonicalValue = errors.New("non_canonical_value")

// PathError wraps ErrNonCanonicalValue (or another sentinel) with the
// location of the offending node, e.g. "inputs.market_features.atr_pct".
type PathError struct {
	Path string
	Err  error
}

func (e *PathError) Error() string {
	if e.Path == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: at %s", e.Err, e.Path)
}

func (e *PathError) Unwrap() error { return e.Err }

func pathErrf(path string, err error, format string, args ...any) error {
	return &PathError{Path: path, Err: fmt.Errorf("%w: %s", err, fmt.Sprintf(format, args...))}
}
