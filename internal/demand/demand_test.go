package demand

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetroute/internal/model"
)

func TestDecomposeSplitsFullUnitsBeforeRemainder(t *testing.T) {
	s, err := Decompose(20, []int{0, 37, 60})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 20, 17, 20, 20, 20}, s.Quantities)
	assert.Equal(t, []int{0, 1, 1, 2, 2, 2}, s.ToPhysical)
	assert.Equal(t, []int{1, 2}, s.Units(1))
	assert.Equal(t, []int{3, 4, 5}, s.Units(2))
	assert.Equal(t, 6, s.Len())
	assert.Equal(t, 3, s.Locations())
}

func TestDecomposeExactMultipleHasNoRemainderUnit(t *testing.T) {
	s, err := Decompose(4, []int{0, 4, 8, 3})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 4, 4, 4, 3}, s.Quantities)
	assert.Equal(t, []int{0, 1, 2, 2, 3}, s.ToPhysical)
}

func TestDecomposeZeroDemandLocationKeepsOneUnit(t *testing.T) {
	s, err := Decompose(5, []int{0, 0, 7})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 5, 2}, s.Quantities)
	assert.Equal(t, []int{1}, s.Units(1))
	assert.Equal(t, 0, s.LocationTotal(1))
}

func TestDecomposeRejectsInvalidConfiguration(t *testing.T) {
	cases := []struct {
		name  string
		bound int
		raw   []int
	}{
		{"zero bound", 0, []int{0, 3}},
		{"negative bound", -2, []int{0, 3}},
		{"empty demands", 4, nil},
		{"depot demand", 4, []int{2, 3}},
		{"negative demand", 4, []int{0, -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decompose(tc.bound, tc.raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, model.ErrInvalidConfiguration), "got %v", err)
		})
	}
}

func TestDecomposeProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for iter := 0; iter < 200; iter++ {
		bound := 1 + rng.Intn(25)
		raw := make([]int, 1+rng.Intn(12))
		for i := 1; i < len(raw); i++ {
			raw[i] = rng.Intn(120)
		}

		s, err := Decompose(bound, raw)
		require.NoError(t, err)

		// depot invariant
		require.Equal(t, 0, s.Physical(0))
		require.Equal(t, 0, s.Quantity(0))

		seen := make([]int, len(raw))
		prev := 0
		for v := 0; v < s.Len(); v++ {
			loc := s.Physical(v)
			require.GreaterOrEqual(t, loc, prev, "units must follow location order")
			prev = loc
			seen[loc]++
			q := s.Quantity(v)
			if raw[loc] == 0 {
				require.Equal(t, 0, q)
				continue
			}
			require.GreaterOrEqual(t, q, 1)
			require.LessOrEqual(t, q, bound)
		}
		for loc, d := range raw {
			require.Equal(t, d, s.LocationTotal(loc), "lossless at location %d", loc)
			require.GreaterOrEqual(t, seen[loc], 1)
			require.Len(t, s.Units(loc), seen[loc])
		}

		again, err := Decompose(bound, raw)
		require.NoError(t, err)
		require.Equal(t, s.Quantities, again.Quantities)
	}
}

func TestSplitPanicsOutsideRange(t *testing.T) {
	s, err := Decompose(3, []int{0, 5})
	require.NoError(t, err)

	for _, v := range []int{-1, s.Len()} {
		func() {
			defer func() {
				r := recover()
				require.NotNil(t, r)
				err, ok := r.(error)
				require.True(t, ok)
				assert.ErrorIs(t, err, model.ErrIndexOutOfRange)
			}()
			s.Quantity(v)
		}()
	}
}

func TestMinCapacity(t *testing.T) {
	got, err := MinCapacity([]int{20, 20, 12, 4, 4})
	require.NoError(t, err)
	assert.Equal(t, 4, got)

	_, err = MinCapacity(nil)
	assert.ErrorIs(t, err, model.ErrInvalidConfiguration)

	_, err = MinCapacity([]int{5, 0})
	assert.ErrorIs(t, err, model.ErrInvalidConfiguration)
}
