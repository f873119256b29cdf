package driver_test

import (
	"context"
	"testing"

	"decisioncore/internal/driver"
	"decisioncore/internal/idempotency"
	"decisioncore/internal/risk"
	"decisioncore/internal/selector"
	"decisioncore/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDriver(t *testing.T) *driver.Driver {
	t.Helper()
	ctx := context.Background()

	dir := t.TempDir()
	w, err := store.Open(dir, "run-1", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	db, err := idempotency.OpenDB(t.TempDir() + "/idem.sqlite")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	idem, err := idempotency.Open(ctx, db)
	require.NoError(t, err)

	return &driver.Driver{Writer: w, Registry: selector.Default(), Idem: idem}
}

func sampleEvent(key string) driver.Event {
	cfg, _ := risk.Pack("L3_BALANCED")
	atr := 0.001
	rvol := 0.001
	return driver.Event{
		IdempotencyKey: key,
		Symbol:         "BTCUSD",
		Timeframe:      "1h",
		RiskInputs: risk.RawInputs{
			Symbol: "BTCUSD", Timeframe: "1h", AsOf: "2026-01-01T00:00:00Z",
			ATRPct: &atr, RealizedVol: &rvol,
			TimestampsValid: true, LatestMetricsValid: true,
		},
		RiskConfig:  cfg,
		MarketState: selector.MarketState{"trend_state": "UP"},
	}
}

func TestProcessAppendsANewRecord(t *testing.T) {
	d := newDriver(t)
	rec, err := d.Process(context.Background(), sampleEvent("evt-1"))
	require.NoError(t, err)
	assert.Equal(t, "evt-1", rec.DecisionID)
	assert.Equal(t, "GREEN", rec.RiskState)
}

func TestProcessIsIdempotentOnRepeatedKey(t *testing.T) {
	d := newDriver(t)
	ctx := context.Background()

	rec1, err := d.Process(ctx, sampleEvent("evt-1"))
	require.NoError(t, err)

	rec2, err := d.Process(ctx, sampleEvent("evt-1"))
	require.NoError(t, err)

	assert.Equal(t, rec1.Hashes.ContentHash, rec2.Hashes.ContentHash)
	assert.Equal(t, rec1.Seq, rec2.Seq)
}

func TestProcessAdvancesSeqForDistinctKeys(t *testing.T) {
	d := newDriver(t)
	ctx := context.Background()

	rec1, err := d.Process(ctx, sampleEvent("evt-1"))
	require.NoError(t, err)
	rec2, err := d.Process(ctx, sampleEvent("evt-2"))
	require.NoError(t, err)

	assert.NotEqual(t, rec1.Seq, rec2.Seq)
}
