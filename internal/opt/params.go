package opt

import (
	"fmt"
	"strings"
	"time"
)

// FirstSolutionStrategy selects how the seed solution is built.
type FirstSolutionStrategy int

const (
	// PathCheapestArc extends one route at a time from the depot by the
	// cheapest feasible arc.
	PathCheapestArc FirstSolutionStrategy = iota
	// ParallelCheapestInsertion inserts the globally cheapest (node, vehicle,
	// position) until every node is placed.
	ParallelCheapestInsertion
)

func (s FirstSolutionStrategy) String() string {
	switch s {
	case PathCheapestArc:
		return "PATH_CHEAPEST_ARC"
	case ParallelCheapestInsertion:
		return "PARALLEL_CHEAPEST_INSERTION"
	}
	return fmt.Sprintf("FirstSolutionStrategy(%d)", int(s))
}

// ParseStrategy accepts the upper snake case names, case-insensitively. The
// empty string selects PathCheapestArc.
func ParseStrategy(s string) (FirstSolutionStrategy, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "PATH_CHEAPEST_ARC":
		return PathCheapestArc, nil
	case "PARALLEL_CHEAPEST_INSERTION":
		return ParallelCheapestInsertion, nil
	}
	return 0, fmt.Errorf("unknown first solution strategy %q", s)
}

// SearchParameters bound and tune a Solve call.
type SearchParameters struct {
	FirstSolutionStrategy   FirstSolutionStrategy
	TimeLimit               time.Duration
	Seed                    int64     // 0 picks a time based seed
	IterationsLimit         int       // optional iteration cap
	InitialTemp             float64   // initial temperature for SA, 0 derives it from the seed cost
	Cooling                 float64   // cooling factor per iteration
	InitialRemovalWeights   []float64 // [random, shaw]
	InitialInsertionWeights []float64 // [greedy, regret2]
}

// DefaultSearchParameters mirrors the batch run defaults: cheapest arc seed
// and a ten second budget.
func DefaultSearchParameters() SearchParameters {
	return SearchParameters{
		FirstSolutionStrategy: PathCheapestArc,
		TimeLimit:             10 * time.Second,
		Cooling:               0.995,
	}
}
