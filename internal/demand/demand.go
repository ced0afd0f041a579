// Package demand splits raw per-location demand into capacity-bounded
// virtual units and keeps the virtual → physical index map.
package demand

import (
	"fmt"

	"fleetroute/internal/model"
)

// Split is the result of a decomposition. Quantities and ToPhysical are
// indexed by virtual index and have the same length.
type Split struct {
	Bound      int
	Quantities []int
	ToPhysical []int

	// first[loc] is the first virtual index owned by loc; units of a location
	// are contiguous so first[loc+1] ends the range.
	first []int
}

// Decompose emits, for every location in order, floor(d/bound) units of bound
// followed by one unit of d mod bound when the remainder is non-zero. A
// location with zero demand gets exactly one unit of quantity 0, so virtual
// index 0 is always the depot's zero unit.
func Decompose(bound int, raw []int) (Split, error) {
	if bound <= 0 {
		return Split{}, fmt.Errorf("decompose: capacity bound %d must be positive: %w", bound, model.ErrInvalidConfiguration)
	}
	if len(raw) == 0 {
		return Split{}, fmt.Errorf("decompose: empty demand list: %w", model.ErrInvalidConfiguration)
	}
	if raw[0] != 0 {
		return Split{}, fmt.Errorf("decompose: depot demand must be 0, got %d: %w", raw[0], model.ErrInvalidConfiguration)
	}

	n := 0
	for loc, d := range raw {
		if d < 0 {
			return Split{}, fmt.Errorf("decompose: location %d has negative demand %d: %w", loc, d, model.ErrInvalidConfiguration)
		}
		n += unitCount(d, bound)
	}

	s := Split{
		Bound:      bound,
		Quantities: make([]int, 0, n),
		ToPhysical: make([]int, 0, n),
		first:      make([]int, len(raw)+1),
	}
	for loc, d := range raw {
		s.first[loc] = len(s.Quantities)
		if d == 0 {
			s.emit(loc, 0)
			continue
		}
		for i := 0; i < d/bound; i++ {
			s.emit(loc, bound)
		}
		if rem := d % bound; rem > 0 {
			s.emit(loc, rem)
		}
	}
	s.first[len(raw)] = len(s.Quantities)
	return s, nil
}

func (s *Split) emit(loc, qty int) {
	s.Quantities = append(s.Quantities, qty)
	s.ToPhysical = append(s.ToPhysical, loc)
}

func unitCount(d, bound int) int {
	if d == 0 {
		return 1
	}
	n := d / bound
	if d%bound > 0 {
		n++
	}
	return n
}

// Len is the number of virtual units.
func (s Split) Len() int { return len(s.Quantities) }

// Locations is the number of physical locations that were decomposed.
func (s Split) Locations() int {
	if len(s.first) == 0 {
		return 0
	}
	return len(s.first) - 1
}

// Physical returns the location owning virtual index v. It panics with
// ErrIndexOutOfRange when v is outside [0, Len()).
func (s Split) Physical(v int) int {
	s.check(v)
	return s.ToPhysical[v]
}

// Quantity returns the demand carried by virtual index v.
func (s Split) Quantity(v int) int {
	s.check(v)
	return s.Quantities[v]
}

// Units returns the virtual indices owned by loc, in emission order.
func (s Split) Units(loc int) []int {
	if loc < 0 || loc >= s.Locations() {
		panic(fmt.Errorf("demand: location %d outside [0,%d): %w", loc, s.Locations(), model.ErrIndexOutOfRange))
	}
	out := make([]int, 0, s.first[loc+1]-s.first[loc])
	for v := s.first[loc]; v < s.first[loc+1]; v++ {
		out = append(out, v)
	}
	return out
}

// LocationTotal sums the quantities of every unit owned by loc.
func (s Split) LocationTotal(loc int) int {
	total := 0
	for _, v := range s.Units(loc) {
		total += s.Quantities[v]
	}
	return total
}

// Total sums all virtual quantities.
func (s Split) Total() int {
	total := 0
	for _, q := range s.Quantities {
		total += q
	}
	return total
}

func (s Split) check(v int) {
	if v < 0 || v >= len(s.Quantities) {
		panic(fmt.Errorf("demand: virtual index %d outside [0,%d): %w", v, len(s.Quantities), model.ErrIndexOutOfRange))
	}
}

// MinCapacity returns the smallest capacity in the fleet, the bound used for
// decomposition so that every unit fits every vehicle.
func MinCapacity(caps []int) (int, error) {
	if len(caps) == 0 {
		return 0, fmt.Errorf("min capacity: empty fleet: %w", model.ErrInvalidConfiguration)
	}
	min := caps[0]
	for _, c := range caps[1:] {
		if c < min {
			min = c
		}
	}
	if min <= 0 {
		return 0, fmt.Errorf("min capacity: capacity %d must be positive: %w", min, model.ErrInvalidConfiguration)
	}
	return min, nil
}
