// Package routing wires a problem.Model into the route search engine.
package routing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fleetroute/internal/model"
	"fleetroute/internal/opt"
	"fleetroute/internal/problem"
)

// Dimension names registered on every engine model.
const (
	CapacityDimension = "Capacity"
	TimeDimension     = "Time"
)

// Depot is the virtual index every route starts and ends at.
const Depot = 0

// DefaultHorizon bounds the cumulative route time in seconds.
const DefaultHorizon int64 = 30000

// Config carries the engine knobs of one run.
type Config struct {
	Horizon          int64
	TimeLimit        time.Duration
	Strategy         opt.FirstSolutionStrategy
	Seed             int64
	MaxIterations    int
	InitTemp         float64
	Cooling          float64
	RemovalWeights   []float64
	InsertionWeights []float64
}

// DefaultConfig is a ten second cheapest-arc search over a 30000s horizon.
func DefaultConfig() Config {
	p := opt.DefaultSearchParameters()
	return Config{
		Horizon:   DefaultHorizon,
		TimeLimit: p.TimeLimit,
		Strategy:  p.FirstSolutionStrategy,
		Cooling:   p.Cooling,
	}
}

// ConfigFromOptions overlays request options on DefaultConfig. Zero values
// keep the defaults.
func ConfigFromOptions(o model.SolverOptions) (Config, error) {
	cfg := DefaultConfig()
	if o.TimeBudgetMs < 0 {
		return cfg, fmt.Errorf("routing: negative time budget %d: %w", o.TimeBudgetMs, model.ErrInvalidConfiguration)
	}
	if o.TimeBudgetMs > 0 {
		cfg.TimeLimit = time.Duration(o.TimeBudgetMs) * time.Millisecond
	}
	if o.Horizon < 0 {
		return cfg, fmt.Errorf("routing: negative horizon %d: %w", o.Horizon, model.ErrInvalidConfiguration)
	}
	if o.Horizon > 0 {
		cfg.Horizon = o.Horizon
	}
	s, err := opt.ParseStrategy(o.Strategy)
	if err != nil {
		return cfg, fmt.Errorf("routing: %v: %w", err, model.ErrInvalidConfiguration)
	}
	cfg.Strategy = s
	cfg.Seed = o.Seed
	cfg.MaxIterations = o.MaxIterations
	cfg.InitTemp = o.InitTemp
	if o.Cooling > 0 {
		cfg.Cooling = o.Cooling
	}
	for _, w := range [][]float64{o.RemovalWeights, o.InsertionWeights} {
		if len(w) != 0 && len(w) != 2 {
			return cfg, fmt.Errorf("routing: operator weights need 2 entries, got %d: %w", len(w), model.ErrInvalidConfiguration)
		}
	}
	cfg.RemovalWeights = o.RemovalWeights
	cfg.InsertionWeights = o.InsertionWeights
	return cfg, nil
}

// NewModel registers the distance arc cost and the Capacity and Time
// dimensions for pm on a fresh engine model.
func NewModel(pm *problem.Model, cfg Config) (*opt.Model, error) {
	if cfg.Horizon <= 0 {
		return nil, fmt.Errorf("routing: horizon %d: %w", cfg.Horizon, model.ErrInvalidConfiguration)
	}
	m, err := opt.NewModel(pm.NumUnits(), pm.NumVehicles(), Depot)
	if err != nil {
		return nil, fmt.Errorf("routing: %v: %w", err, model.ErrInvalidConfiguration)
	}
	m.SetArcCostEvaluatorOfAllVehicles(pm.DistanceBetween)

	demand := func(from, _ int) int64 { return pm.DemandAt(from) }
	if err := m.AddDimensionWithVehicleCapacity(demand, 0, pm.Capacities(), true, CapacityDimension); err != nil {
		return nil, fmt.Errorf("routing: %v: %w", err, model.ErrInvalidConfiguration)
	}
	// Waiting is allowed up to the horizon and the start time floats.
	if err := m.AddDimension(pm.TimeBetween, cfg.Horizon, cfg.Horizon, false, TimeDimension); err != nil {
		return nil, fmt.Errorf("routing: %v: %w", err, model.ErrInvalidConfiguration)
	}
	return m, nil
}

// SearchParameters translates cfg into engine parameters.
func SearchParameters(cfg Config) opt.SearchParameters {
	p := opt.DefaultSearchParameters()
	p.FirstSolutionStrategy = cfg.Strategy
	if cfg.TimeLimit > 0 {
		p.TimeLimit = cfg.TimeLimit
	}
	p.Seed = cfg.Seed
	p.IterationsLimit = cfg.MaxIterations
	p.InitialTemp = cfg.InitTemp
	if cfg.Cooling > 0 {
		p.Cooling = cfg.Cooling
	}
	p.InitialRemovalWeights = cfg.RemovalWeights
	p.InitialInsertionWeights = cfg.InsertionWeights
	return p
}

// Solve runs the engine on pm. A failed search wraps both model.ErrNoSolution
// and opt.ErrNoSolution.
func Solve(ctx context.Context, pm *problem.Model, cfg Config) (*opt.Assignment, opt.Metrics, error) {
	m, err := NewModel(pm, cfg)
	if err != nil {
		return nil, opt.Metrics{}, err
	}
	asg, mx, err := opt.Solve(ctx, m, SearchParameters(cfg))
	if err != nil {
		if errors.Is(err, opt.ErrNoSolution) {
			return nil, mx, fmt.Errorf("routing: %w: %w", model.ErrNoSolution, err)
		}
		return nil, mx, fmt.Errorf("routing: %w", err)
	}
	return asg, mx, nil
}
