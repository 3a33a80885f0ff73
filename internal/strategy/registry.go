package strategy

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"autotrader/internal/regime"
	"autotrader/internal/repository"
)

// Registry resolves strategy ids to instances. Registration is validated
// up front so a misconfigured id fails at startup, not deep in a tick.
type Registry struct {
	Logger *zap.Logger

	defaultID string
	byName    map[string]Strategy
	order     []string
}

func NewRegistry(logger *zap.Logger, defaultID string) *Registry {
	return &Registry{
		Logger:    logger,
		defaultID: defaultID,
		byName:    map[string]Strategy{},
	}
}

func (r *Registry) Register(s Strategy) error {
	if r == nil || s == nil {
		return fmt.Errorf("nil registry or strategy")
	}
	name := strings.TrimSpace(s.Name())
	if name == "" {
		return fmt.Errorf("strategy with empty name")
	}
	if _, ok := r.byName[name]; ok {
		return fmt.Errorf("duplicate strategy %q", name)
	}
	r.byName[name] = s
	r.order = append(r.order, name)
	return nil
}

// Validate must be called after all registrations; it checks that the
// configured default actually exists.
func (r *Registry) Validate() error {
	if r == nil {
		return fmt.Errorf("nil registry")
	}
	if _, ok := r.byName[r.defaultID]; !ok {
		return fmt.Errorf("default strategy %q is not registered", r.defaultID)
	}
	return nil
}

// Resolve returns the strategy for id, falling back to the default for
// unknown ids. The fallback is logged; it covers stale ids left in user
// settings after a strategy is retired.
func (r *Registry) Resolve(id string) Strategy {
	if r == nil {
		return nil
	}
	if s, ok := r.byName[strings.TrimSpace(id)]; ok {
		return s
	}
	if r.Logger != nil {
		r.Logger.Warn("unknown strategy id, using default",
			zap.String("strategy", id),
			zap.String("default", r.defaultID),
		)
	}
	return r.byName[r.defaultID]
}

// Names returns registered ids in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// SelectAuto picks the best strategy for the current regime: each
// candidate is scored by its declared regime fit plus its recent backtest
// win rate, highest total wins. Ties resolve to the earlier registration.
func (r *Registry) SelectAuto(reg regime.Regime, records []repository.StrategyRecord) Strategy {
	if r == nil || len(r.byName) == 0 {
		return nil
	}
	winRates := map[string]float64{}
	for _, rec := range records {
		winRates[rec.Strategy] = rec.WinRate()
	}
	type scored struct {
		name  string
		score float64
		idx   int
	}
	candidates := make([]scored, 0, len(r.order))
	for i, name := range r.order {
		s := r.byName[name]
		winRate, ok := winRates[name]
		if !ok {
			// No history yet; neutral prior.
			winRate = 0.5
		}
		candidates = append(candidates, scored{
			name:  name,
			score: s.RegimeFit(reg) + winRate,
			idx:   i,
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].idx < candidates[j].idx
	})
	return r.byName[candidates[0].name]
}
