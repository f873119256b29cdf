package canon

import (
	"fmt"
	"math"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Encode renders v to its canonical byte encoding. It is total over the
// canonical value universe: it fails only for non-finite Decimals,
// non-string Object keys (impossible given Object's type, kept only so
// the error path documents the rule from the spec), or a Value variant
// outside the closed set in value.go.
func Encode(v Value) ([]byte, error) {
	var buf strings.Builder
	if err := encodeInto(&buf, v, ""); err != nil {
		return nil, err
	}
	return []byte(buf.String()), nil
}

func encodeInto(buf *strings.Builder, v Value, path string) error {
	switch x := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case Null:
		buf.WriteString("null")
		return nil
	case Bool:
		if x {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case Int:
		buf.WriteString(strconv.FormatInt(int64(x), 10))
		return nil
	case Decimal:
		s, err := EncodeFractional(float64(x))
		if err != nil {
			return &PathError{Path: path, Err: err}
		}
		buf.WriteString(s)
		return nil
	case String:
		return encodeString(buf, string(x))
	case Array:
		buf.WriteByte('[')
		for i, e := range x {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeInto(buf, e, indexPath(path, i)); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case Object:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeString(buf, k); err != nil {
				return &PathError{Path: keyPath(path, k), Err: ErrNonCanonicalValue}
			}
			buf.WriteByte(':')
			if err := encodeInto(buf, x[k], keyPath(path, k)); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	default:
		return pathErrf(path, ErrNonCanonicalValue, "unsupported value kind %T", v)
	}
}

// encodeString writes the minimal JSON escape set with ensure_ascii=false
// semantics: non-ASCII bytes pass through untouched after NFC
// normalization, so two Unicode-equivalent strings never hash differently.
func encodeString(buf *strings.Builder, s string) error {
	s = norm.NFC.String(s)
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		default:
			if r < 0x20 {
				fmt.Fprintf(buf, `\u%04x`, r)
			} else {
				buf.WriteRune(r)
			}
		}
	}
	buf.WriteByte('"')
	return nil
}

// EncodeFractional rounds x to 8 fractional digits using half-up rounding
// and renders it in the fixed-point form the encoder requires. Negative
// zero, and any magnitude that rounds to zero, normalize to
// "0.00000000" with no sign.
func EncodeFractional(x float64) (string, error) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return "", fmt.Errorf("%w: non-finite float %v", ErrNonCanonicalValue, x)
	}

	neg := math.Signbit(x)
	s := strconv.FormatFloat(math.Abs(x), 'f', -1, 64)

	intPart := s
	fracPart := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart = s[:i]
		fracPart = s[i+1:]
	}
	for len(fracPart) < 9 {
		fracPart += "0"
	}
	keep, round := fracPart[:8], fracPart[8]

	digits := new(big.Int)
	digits.SetString(intPart+keep, 10)
	if round >= '5' {
		digits.Add(digits, big.NewInt(1))
	}

	out := digits.String()
	for len(out) < 9 {
		out = "0" + out
	}
	intRes, fracRes := out[:len(out)-8], out[len(out)-8:]

	allZero := isAllZeroDigits(intRes) && isAllZeroDigits(fracRes)
	sign := ""
	if neg && !allZero {
		sign = "-"
	}
	return sign + intRes + "." + fracRes, nil
}

func isAllZeroDigits(s string) bool {
	for _, c := range s {
		if c != '0' {
			return false
		}
	}
	return true
}

func bracketIndex(i int) string {
	return "[" + strconv.Itoa(i) + "]"
}
