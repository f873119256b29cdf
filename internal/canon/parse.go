package canon

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Parse decodes canonically-encoded JSON bytes back into a Value tree.
// Numbers without a decimal point decode as Int; numbers with one
// decode as Decimal, preserving the Int/Decimal distinction Encode
// relies on rather than collapsing both into float64.
func Parse(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNonCanonicalValue, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after top-level value", ErrNonCanonicalValue)
	}
	return parseAny(raw, "")
}

func parseAny(v any, path string) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(x), nil
	case json.Number:
		return parseNumber(x, path)
	case string:
		return String(x), nil
	case []any:
		arr := make(Array, 0, len(x))
		for i, e := range x {
			cv, err := parseAny(e, indexPath(path, i))
			if err != nil {
				return nil, err
			}
			arr = append(arr, cv)
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(x))
		for k, e := range x {
			cv, err := parseAny(e, keyPath(path, k))
			if err != nil {
				return nil, err
			}
			obj[k] = cv
		}
		return obj, nil
	default:
		return nil, pathErrf(path, ErrNonCanonicalValue, "unsupported JSON type %T", v)
	}
}

func parseNumber(n json.Number, path string) (Value, error) {
	s := n.String()
	if !strings.Contains(s, ".") {
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, pathErrf(path, ErrNonCanonicalValue, "integer out of range: %s", s)
		}
		return Int(i), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, pathErrf(path, ErrNonCanonicalValue, "malformed decimal: %s", s)
	}
	return Decimal(f), nil
}

// ToGo converts a Value tree back into plain Go data (nil, bool,
// int64, float64, string, []any, map[string]any) for callers that need
// to hand the result to code outside the canon package.
func ToGo(v Value) any {
	switch x := v.(type) {
	case nil:
		return nil
	case Null:
		return nil
	case Bool:
		return bool(x)
	case Int:
		return int64(x)
	case Decimal:
		return float64(x)
	case String:
		return string(x)
	case Array:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = ToGo(e)
		}
		return out
	case Object:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = ToGo(e)
		}
		return out
	default:
		return nil
	}
}
