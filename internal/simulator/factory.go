package simulator

import (
	"fmt"

	"github.com/GoSim-25-26J-441/doc-simulation/internal/cache"
	"github.com/GoSim-25-26J-441/doc-simulation/pkg/config"
)

// FromConfig builds the simulator selected by cfg.Simulator.
// When caching is enabled responses go to store, or to a fresh memory cache if store is nil.
// The returned close function releases any connection the simulator owns.
func FromConfig(cfg *config.SimulationConfig, store cache.Cache) (Simulator, func() error, error) {
	var (
		sim     Simulator
		closeFn = func() error { return nil }
	)

	switch cfg.Simulator.Type {
	case "linear", "":
		sim = NewLinearModel(cfg)
	case "remote":
		r, err := DialRemote(cfg.Simulator.RemoteAddr)
		if err != nil {
			return nil, nil, err
		}
		sim = r
		closeFn = r.Close
	default:
		return nil, nil, fmt.Errorf("unknown simulator type %q", cfg.Simulator.Type)
	}

	if cfg.Simulator.Cache {
		if store == nil {
			store = cache.NewMemory(0)
		}
		sim = NewCached(sim, store, Namespace(cfg))
	}
	return sim, closeFn, nil
}

// Namespace identifies the model parameters that make a cached response reusable
func Namespace(cfg *config.SimulationConfig) string {
	return fmt.Sprintf("%s|%s|%+v|%+v|%+v",
		cfg.Simulator.Type, cfg.Simulator.RemoteAddr, cfg.Simulator, cfg.EDUnit, cfg.Seawater)
}
