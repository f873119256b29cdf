// Package snapshot implements the content-addressed, write-once bundle
// store that replay reads reference data from.
package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"decisioncore/internal/canon"
	"decisioncore/internal/coreerr"
)

const SchemaVersion = "snapshot.v1"

// Bundle is the reference data a replay re-executes a decision against.
type Bundle struct {
	SnapshotVersion string         `json:"snapshot_version"`
	DecisionID      string         `json:"decision_id"`
	Symbol          string         `json:"symbol"`
	Timeframe       string         `json:"timeframe"`
	MarketData      map[string]any `json:"market_data"`
	Features        map[string]any `json:"features"`
	RiskInputs      map[string]any `json:"risk_inputs"`
	Config          map[string]any `json:"config"`
	SelectorInputs  map[string]any `json:"selector_inputs"`
}

func canonicalValue(b Bundle) (canon.Value, error) {
	raw := map[string]any{
		"snapshot_version": b.SnapshotVersion,
		"decision_id":      b.DecisionID,
		"symbol":           b.Symbol,
		"timeframe":        b.Timeframe,
		"market_data":      nonNil(b.MarketData),
		"features":         nonNil(b.Features),
		"risk_inputs":      nonNil(b.RiskInputs),
		"config":           nonNil(b.Config),
		"selector_inputs":  nonNil(b.SelectorInputs),
	}
	return canon.FromGo(raw)
}

func nonNil(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// Hash computes the content-addressing digest of b.
func Hash(b Bundle) (string, error) {
	v, err := canonicalValue(b)
	if err != nil {
		return "", fmt.Errorf("snapshot: canonicalizing bundle: %w", err)
	}
	return canon.Digest(v)
}

func fileName(hash string) string {
	return strings.ReplaceAll(hash, ":", "_") + ".json"
}

// Write stores b under dir, named by its content hash, and returns the
// hash. The file is made read-only on creation; writing the same
// bundle twice is a no-op, since the filename (hence content) is
// already fixed by the hash.
func Write(dir string, b Bundle) (hash string, err error) {
	hash, err = Hash(b)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("snapshot: creating snapshot directory: %w", err)
	}

	path := filepath.Join(dir, fileName(hash))
	if _, statErr := os.Stat(path); statErr == nil {
		return hash, nil
	}

	v, err := canonicalValue(b)
	if err != nil {
		return "", fmt.Errorf("snapshot: canonicalizing bundle: %w", err)
	}
	body, err := canon.Encode(v)
	if err != nil {
		return "", fmt.Errorf("snapshot: encoding bundle: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, body, 0o444); err != nil {
		return "", fmt.Errorf("snapshot: writing bundle: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("snapshot: finalizing bundle: %w", err)
	}

	return hash, nil
}

// Load reads the snapshot named hash from dir and verifies its
// filename-to-content relationship, rejecting tampering.
func Load(dir, hash string) (Bundle, error) {
	path := filepath.Join(dir, fileName(hash))
	body, err := os.ReadFile(path)
	if err != nil {
		return Bundle{}, fmt.Errorf("snapshot: reading bundle: %w", err)
	}

	actual := canon.DigestBytes(body)
	if actual != hash {
		return Bundle{}, fmt.Errorf("%w: snapshot %s has content digest %s", coreerr.ErrHashMismatch, hash, actual)
	}

	b, err := decode(body)
	if err != nil {
		return Bundle{}, fmt.Errorf("snapshot: decoding bundle: %w", err)
	}
	return b, nil
}

func decode(body []byte) (Bundle, error) {
	v, err := canon.Parse(body)
	if err != nil {
		return Bundle{}, err
	}
	obj, ok := v.(canon.Object)
	if !ok {
		return Bundle{}, fmt.Errorf("%w: snapshot body is not an object", coreerr.ErrSchemaMismatch)
	}

	b := Bundle{
		SnapshotVersion: stringField(obj, "snapshot_version"),
		DecisionID:      stringField(obj, "decision_id"),
		Symbol:          stringField(obj, "symbol"),
		Timeframe:       stringField(obj, "timeframe"),
		MarketData:      mapField(obj, "market_data"),
		Features:        mapField(obj, "features"),
		RiskInputs:      mapField(obj, "risk_inputs"),
		Config:          mapField(obj, "config"),
		SelectorInputs:  mapField(obj, "selector_inputs"),
	}
	if b.SnapshotVersion != SchemaVersion {
		return Bundle{}, fmt.Errorf("%w: unsupported snapshot_version %q", coreerr.ErrSchemaMismatch, b.SnapshotVersion)
	}
	return b, nil
}

func stringField(obj canon.Object, key string) string {
	s, _ := obj[key].(canon.String)
	return string(s)
}

func mapField(obj canon.Object, key string) map[string]any {
	child, ok := obj[key].(canon.Object)
	if !ok {
		return map[string]any{}
	}
	return canon.ToGo(child).(map[string]any)
}
