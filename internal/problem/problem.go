// Package problem holds the immutable routing problem: physical matrices,
// fleet capacities and the virtual unit map, with lookups keyed by virtual
// index.
package problem

import (
	"fmt"

	"fleetroute/internal/demand"
	"fleetroute/internal/model"
)

// Model is read-only after construction and safe to share between goroutines.
type Model struct {
	names      []string
	distance   [][]int64
	time       [][]int64
	capacities []int64
	split      demand.Split
}

// Validate checks the shape of an input before anything is decomposed.
func Validate(in model.Input) error {
	n := len(in.Names)
	if n == 0 {
		return fmt.Errorf("validate: empty location list: %w", model.ErrInvalidConfiguration)
	}
	if len(in.Demands) != n {
		return fmt.Errorf("validate: %d demands for %d locations: %w", len(in.Demands), n, model.ErrInvalidConfiguration)
	}
	if err := validateMatrix("distance", in.Distance, n); err != nil {
		return err
	}
	if err := validateMatrix("time", in.Time, n); err != nil {
		return err
	}
	if len(in.Capacities) == 0 {
		return fmt.Errorf("validate: empty fleet: %w", model.ErrInvalidConfiguration)
	}
	for v, c := range in.Capacities {
		if c <= 0 {
			return fmt.Errorf("validate: vehicle %d capacity %d must be positive: %w", v, c, model.ErrInvalidConfiguration)
		}
	}
	return nil
}

func validateMatrix(name string, m [][]int64, n int) error {
	if len(m) != n {
		return fmt.Errorf("validate: %s matrix has %d rows, want %d: %w", name, len(m), n, model.ErrInvalidConfiguration)
	}
	for i, row := range m {
		if len(row) != n {
			return fmt.Errorf("validate: %s matrix row %d has %d columns, want %d: %w", name, i, len(row), n, model.ErrInvalidConfiguration)
		}
		for j, v := range row {
			if v < 0 {
				return fmt.Errorf("validate: %s[%d][%d]=%d is negative: %w", name, i, j, v, model.ErrInvalidConfiguration)
			}
		}
	}
	return nil
}

// New wraps a validated input and an existing decomposition of its demands.
func New(in model.Input, split demand.Split) (*Model, error) {
	if err := Validate(in); err != nil {
		return nil, fmt.Errorf("problem: %w", err)
	}
	if split.Locations() != len(in.Names) {
		return nil, fmt.Errorf("problem: split covers %d locations, input has %d: %w", split.Locations(), len(in.Names), model.ErrInvalidConfiguration)
	}
	caps := make([]int64, len(in.Capacities))
	for i, c := range in.Capacities {
		caps[i] = int64(c)
	}
	return &Model{
		names:      append([]string(nil), in.Names...),
		distance:   in.Distance,
		time:       in.Time,
		capacities: caps,
		split:      split,
	}, nil
}

// Build validates the input, decomposes demand with the minimum fleet
// capacity and returns the model.
func Build(in model.Input) (*Model, error) {
	if err := Validate(in); err != nil {
		return nil, fmt.Errorf("problem: %w", err)
	}
	bound, err := demand.MinCapacity(in.Capacities)
	if err != nil {
		return nil, fmt.Errorf("problem: %w", err)
	}
	split, err := demand.Decompose(bound, in.Demands)
	if err != nil {
		return nil, fmt.Errorf("problem: %w", err)
	}
	return New(in, split)
}

// DistanceBetween returns distance[phys(from)][phys(to)]. Indices outside
// [0, NumUnits()) panic with ErrIndexOutOfRange.
func (m *Model) DistanceBetween(from, to int) int64 {
	return m.distance[m.split.Physical(from)][m.split.Physical(to)]
}

// TimeBetween returns time[phys(from)][phys(to)].
func (m *Model) TimeBetween(from, to int) int64 {
	return m.time[m.split.Physical(from)][m.split.Physical(to)]
}

// DemandAt is the quantity of the virtual unit, not the location's raw demand.
func (m *Model) DemandAt(v int) int64 {
	return int64(m.split.Quantity(v))
}

func (m *Model) NumUnits() int    { return m.split.Len() }
func (m *Model) NumVehicles() int { return len(m.capacities) }

// Capacity of vehicle v.
func (m *Model) Capacity(v int) int64 {
	if v < 0 || v >= len(m.capacities) {
		panic(fmt.Errorf("problem: vehicle %d outside [0,%d): %w", v, len(m.capacities), model.ErrIndexOutOfRange))
	}
	return m.capacities[v]
}

// Capacities returns a copy of the per-vehicle capacities.
func (m *Model) Capacities() []int64 { return append([]int64(nil), m.capacities...) }

// PhysicalIndex maps a virtual index to its location.
func (m *Model) PhysicalIndex(v int) int { return m.split.Physical(v) }

// LocationName is the display name of the location owning virtual index v.
func (m *Model) LocationName(v int) string { return m.names[m.split.Physical(v)] }

func (m *Model) Split() demand.Split { return m.split }

// TotalDemand sums all virtual quantities.
func (m *Model) TotalDemand() int64 { return int64(m.split.Total()) }
