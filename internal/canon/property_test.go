//go:build property
// +build property

package canon_test

import (
	"sort"
	"strconv"
	"testing"

	"decisioncore/internal/canon"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestCanonicalDeterminism verifies encode(v) == encode(shuffle_keys(v))
// for arbitrary string-keyed objects of strings.
func TestCanonicalDeterminism(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("key order never affects the canonical encoding", prop.ForAll(
		func(keys []string, values []string) bool {
			n := len(keys)
			if len(values) < n {
				n = len(values)
			}
			obj := make(canon.Object, n)
			for i := 0; i < n; i++ {
				if keys[i] == "" {
					continue
				}
				obj[keys[i]] = canon.String(values[i])
			}

			ks := make([]string, 0, len(obj))
			for k := range obj {
				ks = append(ks, k)
			}
			sort.Sort(sort.Reverse(sort.StringSlice(ks)))
			shuffled := make(canon.Object, len(obj))
			for _, k := range ks {
				shuffled[k] = obj[k]
			}

			a, errA := canon.Encode(obj)
			b, errB := canon.Encode(shuffled)
			if errA != nil || errB != nil {
				return errA != nil && errB != nil
			}
			return string(a) == string(b)
		},
		gen.SliceOf(gen.AlphaString()),
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}

// TestDigestEqualValuesEqualDigestProperty verifies digest(a) == digest(b)
// whenever a and b are built from the same key/value pairs.
func TestDigestEqualValuesEqualDigestProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("equal canonical values digest identically", prop.ForAll(
		func(k1, k2, v1, v2 string) bool {
			if k1 == k2 || k1 == "" || k2 == "" {
				return true
			}
			a := canon.Object{k1: canon.String(v1), k2: canon.String(v2)}
			b := canon.Object{k2: canon.String(v2), k1: canon.String(v1)}

			da, err1 := canon.Digest(a)
			db, err2 := canon.Digest(b)
			if err1 != nil || err2 != nil {
				return false
			}
			return da == db
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

// TestEncodeFractionalRoundTripStability verifies EncodeFractional is
// idempotent: rounding an already-8-digit value never changes it further.
func TestEncodeFractionalRoundTripStability(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("encoding an 8-digit-rounded value is a fixed point", prop.ForAll(
		func(cents int64) bool {
			x := float64(cents) / 1e8
			once, err := canon.EncodeFractional(x)
			if err != nil {
				return false
			}
			y, err := strconv.ParseFloat(once, 64)
			if err != nil {
				return false
			}
			reparsed, err := canon.EncodeFractional(y)
			if err != nil {
				return false
			}
			return once == reparsed
		},
		gen.Int64Range(-1_000_000_000, 1_000_000_000),
	))

	properties.TestingRun(t)
}
