package opt

import "fmt"

// Assignment is the read-only result of Solve. Positions along a vehicle's
// route run from 0 (start depot) to len(Route(v))-1 (end depot).
type Assignment struct {
	routes    [][]int
	cumuls    map[string][][]int64
	arcCost   Evaluator
	objective int64
}

// ObjectiveValue is the summed arc cost of all routes.
func (a *Assignment) ObjectiveValue() int64 { return a.objective }

func (a *Assignment) NumVehicles() int { return len(a.routes) }

// IsVehicleUsed reports whether the vehicle visits at least one node.
func (a *Assignment) IsVehicleUsed(v int) bool { return len(a.routes[v]) > 2 }

// Route returns a copy of the vehicle's node sequence, depot at both ends.
func (a *Assignment) Route(v int) []int { return append([]int(nil), a.routes[v]...) }

// Start is the node at position 0.
func (a *Assignment) Start(v int) int { return a.routes[v][0] }

// IsEnd reports whether pos is the vehicle's terminal position.
func (a *Assignment) IsEnd(v, pos int) bool { return pos >= len(a.routes[v])-1 }

// Next returns the node after position pos; ok is false at the end.
func (a *Assignment) Next(v, pos int) (node int, ok bool) {
	r := a.routes[v]
	if pos < 0 || pos+1 >= len(r) {
		return 0, false
	}
	return r[pos+1], true
}

// CumulValue is the named dimension's cumul at a route position, using the
// earliest feasible schedule.
func (a *Assignment) CumulValue(dimension string, v, pos int) (int64, error) {
	per, ok := a.cumuls[dimension]
	if !ok {
		return 0, fmt.Errorf("cumul value: unknown dimension %q", dimension)
	}
	if v < 0 || v >= len(per) {
		return 0, fmt.Errorf("cumul value: vehicle %d outside [0,%d)", v, len(per))
	}
	if pos < 0 || pos >= len(per[v]) {
		return 0, fmt.Errorf("cumul value: position %d outside route of vehicle %d", pos, v)
	}
	return per[v][pos], nil
}

// ArcCostForVehicle returns the cost of travelling from one node to another.
// Costs are homogeneous across vehicles; an unused vehicle costs nothing.
func (a *Assignment) ArcCostForVehicle(from, to, v int) int64 {
	if !a.IsVehicleUsed(v) {
		return 0
	}
	return a.arcCost(from, to)
}
