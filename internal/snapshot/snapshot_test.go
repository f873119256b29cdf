package snapshot_test

import (
	"os"
	"path/filepath"
	"testing"

	"decisioncore/internal/coreerr"
	"decisioncore/internal/snapshot"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBundle() snapshot.Bundle {
	return snapshot.Bundle{
		SnapshotVersion: snapshot.SchemaVersion,
		DecisionID:      "d1",
		Symbol:          "BTCUSD",
		Timeframe:       "1h",
		MarketData:      map[string]any{"trend_state": "UP"},
		Features:        map[string]any{"atr_pct": 0.02},
		RiskInputs:      map[string]any{"missing_fraction": 0.0},
		Config:          map[string]any{"pack_id": "L3_BALANCED"},
		SelectorInputs:  map[string]any{"trend_state": "UP"},
	}
}

func TestWriteThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	b := sampleBundle()

	hash, err := snapshot.Write(dir, b)
	require.NoError(t, err)
	assert.Regexp(t, `^sha256:[0-9a-f]{64}$`, hash)

	loaded, err := snapshot.Load(dir, hash)
	require.NoError(t, err)
	assert.Equal(t, b.DecisionID, loaded.DecisionID)
	assert.Equal(t, b.Symbol, loaded.Symbol)
}

func TestWriteIsIdempotentForIdenticalBundle(t *testing.T) {
	dir := t.TempDir()
	b := sampleBundle()

	h1, err := snapshot.Write(dir, b)
	require.NoError(t, err)
	h2, err := snapshot.Write(dir, b)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestLoadRejectsTamperedContent(t *testing.T) {
	dir := t.TempDir()
	b := sampleBundle()
	hash, err := snapshot.Write(dir, b)
	require.NoError(t, err)

	path := filepath.Join(dir, "sha256_"+hash[len("sha256:"):]+".json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	tampered := append(data, ' ')
	require.NoError(t, os.Chmod(path, 0o644))
	require.NoError(t, os.WriteFile(path, tampered, 0o444))

	_, err = snapshot.Load(dir, hash)
	require.ErrorIs(t, err, coreerr.ErrHashMismatch)
}

func TestHashDeterministicRegardlessOfMapConstructionOrder(t *testing.T) {
	b1 := sampleBundle()
	b2 := sampleBundle()
	b2.Config = map[string]any{"pack_id": "L3_BALANCED"}

	h1, err := snapshot.Hash(b1)
	require.NoError(t, err)
	h2, err := snapshot.Hash(b2)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}
