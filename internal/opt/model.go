package opt

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSolution is returned by Solve when no assignment visiting every
	// node within all dimension bounds was found inside the time budget.
	ErrNoSolution = errors.New("opt: no solution found")
	// ErrInvalidModel reports a model that cannot be searched.
	ErrInvalidModel = errors.New("opt: invalid model")
)

// Evaluator returns the transit from one node to another. Solve calls
// evaluators from a single goroutine.
type Evaluator func(from, to int) int64

// Dimension is a quantity accumulated along each route. The cumul at the
// next node is cumul + Transit(prev, next) + slack with slack in [0, SlackMax],
// and it must never exceed the vehicle's capacity.
type Dimension struct {
	Name                string
	Transit             Evaluator
	SlackMax            int64
	Capacities          []int64
	FixStartCumulToZero bool
}

// Model describes a vehicle routing problem over nodes 0..NumNodes-1. Every
// vehicle starts and ends at the depot and every other node must be visited
// exactly once.
type Model struct {
	numNodes    int
	numVehicles int
	depot       int
	arcCost     Evaluator
	dims        []Dimension
}

func NewModel(numNodes, numVehicles, depot int) (*Model, error) {
	if numNodes <= 0 {
		return nil, fmt.Errorf("new model: %d nodes: %w", numNodes, ErrInvalidModel)
	}
	if numVehicles <= 0 {
		return nil, fmt.Errorf("new model: %d vehicles: %w", numVehicles, ErrInvalidModel)
	}
	if depot < 0 || depot >= numNodes {
		return nil, fmt.Errorf("new model: depot %d outside [0,%d): %w", depot, numNodes, ErrInvalidModel)
	}
	return &Model{numNodes: numNodes, numVehicles: numVehicles, depot: depot}, nil
}

// SetArcCostEvaluatorOfAllVehicles sets the objective's arc cost. The cost
// structure is the same for every vehicle.
func (m *Model) SetArcCostEvaluatorOfAllVehicles(e Evaluator) { m.arcCost = e }

// AddDimensionWithVehicleCapacity adds a dimension with one capacity per vehicle.
func (m *Model) AddDimensionWithVehicleCapacity(transit Evaluator, slackMax int64, capacities []int64, fixStartCumulToZero bool, name string) error {
	if transit == nil {
		return fmt.Errorf("add dimension %q: nil transit: %w", name, ErrInvalidModel)
	}
	if len(capacities) != m.numVehicles {
		return fmt.Errorf("add dimension %q: %d capacities for %d vehicles: %w", name, len(capacities), m.numVehicles, ErrInvalidModel)
	}
	if slackMax < 0 {
		return fmt.Errorf("add dimension %q: negative slack: %w", name, ErrInvalidModel)
	}
	if _, ok := m.Dimension(name); ok {
		return fmt.Errorf("add dimension %q: duplicate name: %w", name, ErrInvalidModel)
	}
	m.dims = append(m.dims, Dimension{
		Name:                name,
		Transit:             transit,
		SlackMax:            slackMax,
		Capacities:          append([]int64(nil), capacities...),
		FixStartCumulToZero: fixStartCumulToZero,
	})
	return nil
}

// AddDimension adds a dimension where every vehicle shares the same capacity.
func (m *Model) AddDimension(transit Evaluator, slackMax, capacity int64, fixStartCumulToZero bool, name string) error {
	caps := make([]int64, m.numVehicles)
	for i := range caps {
		caps[i] = capacity
	}
	return m.AddDimensionWithVehicleCapacity(transit, slackMax, caps, fixStartCumulToZero, name)
}

// Dimension looks up a dimension by name.
func (m *Model) Dimension(name string) (Dimension, bool) {
	for _, d := range m.dims {
		if d.Name == name {
			return d, true
		}
	}
	return Dimension{}, false
}

func (m *Model) NumNodes() int    { return m.numNodes }
func (m *Model) NumVehicles() int { return m.numVehicles }
func (m *Model) Depot() int       { return m.depot }

func (m *Model) validate() error {
	if m == nil {
		return fmt.Errorf("solve: nil model: %w", ErrInvalidModel)
	}
	if m.arcCost == nil {
		return fmt.Errorf("solve: arc cost evaluator not set: %w", ErrInvalidModel)
	}
	return nil
}
