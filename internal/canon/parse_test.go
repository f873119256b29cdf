package canon_test

import (
	"testing"

	"decisioncore/internal/canon"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoundTripsEncode(t *testing.T) {
	v := canon.Object{
		"a": canon.Int(1),
		"b": canon.Decimal(1.5),
		"c": canon.String("hi"),
		"d": canon.Array{canon.Bool(true), canon.Null{}},
	}
	encoded, err := canon.Encode(v)
	require.NoError(t, err)

	parsed, err := canon.Parse(encoded)
	require.NoError(t, err)

	reEncoded, err := canon.Encode(parsed)
	require.NoError(t, err)
	assert.Equal(t, encoded, reEncoded)
}

func TestParseDistinguishesIntFromDecimal(t *testing.T) {
	parsed, err := canon.Parse([]byte(`{"i":3,"d":3.00000000}`))
	require.NoError(t, err)
	obj := parsed.(canon.Object)

	_, isInt := obj["i"].(canon.Int)
	assert.True(t, isInt)

	_, isDecimal := obj["d"].(canon.Decimal)
	assert.True(t, isDecimal)
}

func TestToGoConvertsBackToPlainValues(t *testing.T) {
	v := canon.Object{"n": canon.Int(42), "s": canon.String("x")}
	got := canon.ToGo(v).(map[string]any)
	assert.Equal(t, int64(42), got["n"])
	assert.Equal(t, "x", got["s"])
}
