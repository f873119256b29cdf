package risk

import (
	_ "embed"
	"fmt"
	"sync"

	"decisioncore/internal/coreerr"
	"gopkg.in/yaml.v3"
)

//go:embed packs/presets.yaml
var presetsYAML []byte

type presetFile struct {
	Packs []presetEntry `yaml:"packs"`
}

type presetEntry struct {
	PackID         string  `yaml:"pack_id"`
	PackVersion    string  `yaml:"pack_version"`
	ConfigVersion  string  `yaml:"config_version"`
	MissingRed     float64 `yaml:"missing_red"`
	ATRYellow      float64 `yaml:"atr_yellow"`
	ATRRed         float64 `yaml:"atr_red"`
	RVolYellow     float64 `yaml:"rvol_yellow"`
	RVolRed        float64 `yaml:"rvol_red"`
	NoMetricsState string  `yaml:"no_metrics_state"`
}

var (
	packsOnce sync.Once
	packs     map[string]Config
	packsErr  error
)

func loadPacks() (map[string]Config, error) {
	packsOnce.Do(func() {
		var f presetFile
		if err := yaml.Unmarshal(presetsYAML, &f); err != nil {
			packsErr = fmt.Errorf("risk: parse packs/presets.yaml: %w", err)
			return
		}
		packs = make(map[string]Config, len(f.Packs))
		for _, p := range f.Packs {
			state := Yellow
			if p.NoMetricsState == string(Red) {
				state = Red
			}
			packs[p.PackID] = Config{
				MissingRed:     p.MissingRed,
				ATRYellow:      p.ATRYellow,
				ATRRed:         p.ATRRed,
				RVolYellow:     p.RVolYellow,
				RVolRed:        p.RVolRed,
				NoMetricsState: state,
				ConfigVersion:  p.ConfigVersion,
				PackID:         p.PackID,
				PackVersion:    p.PackVersion,
			}
		}
	})
	return packs, packsErr
}

// Pack resolves a named preset ("L1_CONSERVATIVE", "L3_BALANCED",
// "L5_AGGRESSIVE") to its Config. Unknown pack IDs are a hard
// schema_mismatch-class error: the core never guesses at thresholds.
func Pack(id string) (Config, error) {
	all, err := loadPacks()
	if err != nil {
		return Config{}, err
	}
	cfg, ok := all[id]
	if !ok {
		return Config{}, fmt.Errorf("%w: unknown risk pack %q", coreerr.ErrSchemaMismatch, id)
	}
	return cfg, nil
}
