// Package canon implements the canonical value universe and the
// deterministic byte encoding every other component hashes against.
//
// A Value is a closed, tagged sum type rather than a bag of any — the
// encoder switches on a fixed set of concrete variants instead of
// reflecting over arbitrary Go data, so the set of things that can ever
// reach the wire is enumerable at compile time.
package canon

// Value is implemented by exactly the variants below. It is intentionally
// unexported-sealed: callers build values with the constructors in this
// file, never by declaring new implementations.
type Value interface {
	value()
}

// Null represents the JSON null literal.
type Null struct{}

func (Null) value() {}

// Bool is a canonical boolean.
type Bool bool

func (Bool) value() {}

// Int is a canonical integer, emitted in shortest decimal form with no
// decimal point, regardless of its numeric value.
type Int int64

func (Int) value() {}

// Decimal is a canonical fractional number. It is always emitted through
// the fixed 8-fractional-digit encoding (see EncodeFractional) even when
// its value happens to be integral — the encoder distinguishes integer
// from fractional by this static kind, never by inspecting the number.
type Decimal float64

func (Decimal) value() {}

// String is a canonical UTF-8 string.
type String string

func (String) value() {}

// Array is an ordered sequence of canonical values.
type Array []Value

func (Array) value() {}

// Object is a mapping from string keys to canonical values. Input order
// is not significant — Encode always emits keys in ascending lexical
// order by UTF-8 code point, so two Objects built from the same key/value
// pairs in different orders encode identically.
type Object map[string]Value

func (Object) value() {}

// FromGo converts a restricted set of plain Go values (nil, bool, int,
// int64, float64, string, []any, map[string]any, and Value itself) into
// the canonical Value universe. It exists for call sites that assemble
// values from decoded JSON or from struct fields; it never guesses at a
// numeric kind beyond the Go static type it is given.
func FromGo(v any) (Value, error) {
	return fromGo(v, "")
}

func fromGo(v any, path string) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case int:
		return Int(x), nil
	case int64:
		return Int(x), nil
	case float64:
		return Decimal(x), nil
	case string:
		return String(x), nil
	case []any:
		arr := make(Array, 0, len(x))
		for i, e := range x {
			cv, err := fromGo(e, indexPath(path, i))
			if err != nil {
				return nil, err
			}
			arr = append(arr, cv)
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(x))
		for k, e := range x {
			cv, err := fromGo(e, keyPath(path, k))
			if err != nil {
				return nil, err
			}
			obj[k] = cv
		}
		return obj, nil
	default:
		return nil, pathErrf(path, ErrNonCanonicalValue, "unsupported Go type %T", v)
	}
}

func keyPath(base, key string) string {
	if base == "" {
		return key
	}
	return base + "." + key
}

func indexPath(base string, idx int) string {
	return base + bracketIndex(idx)
}
