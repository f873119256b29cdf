package selector

import "fmt"

// Registry holds profiles in registration order and the engines they
// bind to. It is an explicit dependency constructed once by the caller
// (per Design Notes §9: "take the registry as an explicit dependency;
// ordering is declared at registration time and frozen on first use"),
// never a package-level global.
type Registry struct {
	profiles []Profile
	engines  map[string]Engine
	frozen   bool
}

// NewRegistry returns an empty, unfrozen registry.
func NewRegistry() *Registry {
	return &Registry{engines: make(map[string]Engine)}
}

// RegisterEngine adds an engine under its own ID. Panics if called after
// Freeze — registration order must be fully declared before first use.
func (r *Registry) RegisterEngine(e Engine) {
	if r.frozen {
		panic("selector: RegisterEngine called on a frozen registry")
	}
	r.engines[e.ID()] = e
}

// RegisterProfile appends a profile. Candidate enumeration order in
// Select is exactly registration order.
func (r *Registry) RegisterProfile(p Profile) {
	if r.frozen {
		panic("selector: RegisterProfile called on a frozen registry")
	}
	r.profiles = append(r.profiles, p)
}

// Freeze locks the registry against further registration. Select works
// on frozen and unfrozen registries alike; Freeze exists purely to catch
// accidental late registration from concurrent goroutines.
func (r *Registry) Freeze() { r.frozen = true }

func (r *Registry) profilesInOrder() []Profile {
	return r.profiles
}

func (r *Registry) engine(id string) (Engine, bool) {
	e, ok := r.engines[id]
	return e, ok
}

// Default returns the built-in registry: the trend, mean-reversion, and
// breakout engines from the original strategy engines, plus a defensive
// conservative fallback profile, registered in a fixed priority order
// and frozen.
func Default() *Registry {
	r := NewRegistry()
	r.RegisterEngine(trendEngine{})
	r.RegisterEngine(meanRevertEngine{})
	r.RegisterEngine(breakoutEngine{})
	r.RegisterEngine(defensiveEngine{})

	r.RegisterProfile(Profile{
		StrategyID:         "TREND_FOLLOW",
		EngineID:           "trend",
		Conservative:       false,
		RequiredMarketKeys: []string{"trend_state"},
	})
	r.RegisterProfile(Profile{
		StrategyID:         "MEAN_REVERT",
		EngineID:           "mean_revert",
		Conservative:       false,
		RequiredMarketKeys: []string{"trend_state"},
	})
	r.RegisterProfile(Profile{
		StrategyID:         "BREAKOUT",
		EngineID:           "breakout",
		Conservative:       false,
		RequiredMarketKeys: []string{"volatility_regime"},
	})
	r.RegisterProfile(Profile{
		StrategyID:   "DEFENSIVE",
		EngineID:     "defensive",
		Conservative: true,
	})

	r.Freeze()
	return r
}

func (r *Registry) mustEngineFor(p Profile) (Engine, error) {
	e, ok := r.engine(p.EngineID)
	if !ok {
		return nil, fmt.Errorf("selector: profile %q references unregistered engine %q", p.StrategyID, p.EngineID)
	}
	return e, nil
}
