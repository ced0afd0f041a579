package opt

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"
)

// solution keeps the visited nodes of every vehicle; the depot is implicit
// at both ends of each route.
type solution struct {
	routes [][]int
	cost   int64
}

func (s solution) clone() solution {
	out := solution{routes: make([][]int, len(s.routes)), cost: s.cost}
	for i, r := range s.routes {
		out.routes[i] = append([]int(nil), r...)
	}
	return out
}

type Metrics struct {
	Strategy              string
	RemovalSelects        [2]int // random, shaw
	InsertSelects         [2]int // greedy, regret2
	Iterations            int
	Improvements          int
	AcceptedWorse         int
	RepairFailures        int
	FirstCost             int64
	BestCost              int64
	FinalRemovalWeights   [2]float64
	FinalInsertionWeights [2]float64
	Snapshots             []WeightSnapshot
	Elapsed               time.Duration
}

type WeightSnapshot struct {
	Iteration int
	Removal   [2]float64
	Insertion [2]float64
}

type search struct {
	m     *Model
	nodes []int // every node except the depot
}

func newSearch(m *Model) *search {
	s := &search{m: m, nodes: make([]int, 0, m.numNodes-1)}
	for n := 0; n < m.numNodes; n++ {
		if n != m.depot {
			s.nodes = append(s.nodes, n)
		}
	}
	return s
}

// Solve builds a first solution with the selected strategy and improves it
// with an ALNS loop (random/shaw removal, greedy/regret-2 insertion, intra
// route 2-opt and relocate, simulated annealing acceptance) until the time
// limit, the iteration cap or ctx ends the search. It returns the best
// assignment seen, or ErrNoSolution when no feasible first solution exists.
func Solve(ctx context.Context, m *Model, p SearchParameters) (*Assignment, Metrics, error) {
	start := time.Now()
	if err := m.validate(); err != nil {
		return nil, Metrics{}, err
	}
	if p.TimeLimit <= 0 {
		p.TimeLimit = DefaultSearchParameters().TimeLimit
	}
	seed := p.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	deadline := start.Add(p.TimeLimit)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	s := newSearch(m)
	mx := Metrics{Strategy: p.FirstSolutionStrategy.String()}
	curr, ok := s.firstSolution(p.FirstSolutionStrategy)
	if !ok {
		mx.Elapsed = time.Since(start)
		return nil, mx, fmt.Errorf("solve: %s left nodes unassigned: %w", p.FirstSolutionStrategy, ErrNoSolution)
	}
	curr = s.localSearch(curr)
	best := curr.clone()
	mx.FirstCost = curr.cost
	mx.BestCost = best.cost

	// operator weights (removal + insertion)
	remW := []float64{1, 1}
	insW := []float64{1, 1}
	if len(p.InitialRemovalWeights) == 2 {
		remW = []float64{p.InitialRemovalWeights[0], p.InitialRemovalWeights[1]}
	}
	if len(p.InitialInsertionWeights) == 2 {
		insW = []float64{p.InitialInsertionWeights[0], p.InitialInsertionWeights[1]}
	}
	temp := p.InitialTemp
	if temp <= 0 {
		temp = 0.01*float64(curr.cost) + 1
	}
	cool := 0.995
	if p.Cooling > 0 && p.Cooling < 1 {
		cool = p.Cooling
	}
	maxRemove := len(s.nodes) / 10
	if maxRemove < 3 {
		maxRemove = 3
	}
	if maxRemove > len(s.nodes) {
		maxRemove = len(s.nodes)
	}
	snapshotEvery := 50
	snapshot := func() {
		if mx.Iterations%snapshotEvery == 0 {
			mx.Snapshots = append(mx.Snapshots, WeightSnapshot{Iteration: mx.Iterations, Removal: [2]float64{remW[0], remW[1]}, Insertion: [2]float64{insW[0], insW[1]}})
		}
	}

	for maxRemove > 0 && time.Now().Before(deadline) && ctx.Err() == nil {
		if p.IterationsLimit > 0 && mx.Iterations >= p.IterationsLimit {
			break
		}
		mx.Iterations++
		k := 1 + rng.Intn(maxRemove)
		op := selectOp(remW, rng)
		mx.RemovalSelects[op]++
		ip := selectOp(insW, rng)
		mx.InsertSelects[ip]++

		var removed []int
		switch op {
		case 0:
			removed = s.randomRemoval(curr, k, rng)
		case 1:
			removed = s.shawRemoval(curr, k, rng)
		}
		cand := removeNodes(curr, removed)
		var left []int
		switch ip {
		case 0:
			cand, left = s.greedyInsert(cand, removed)
		case 1:
			cand, left = s.regretInsert(cand, removed)
		}
		if len(left) > 0 {
			// repair could not place every node; the candidate is infeasible
			mx.RepairFailures++
			remW[op] = math.Max(0.01, remW[op]*0.999)
			insW[ip] = math.Max(0.01, insW[ip]*0.999)
			temp *= cool
			snapshot()
			continue
		}
		cand = s.localSearch(cand)

		delta := float64(cand.cost - curr.cost)
		if delta < 0 || rng.Float64() < math.Exp(-delta/(temp+1e-9)) {
			curr = cand
			if curr.cost < best.cost {
				best = curr.clone()
				remW[op] += 0.1
				insW[ip] += 0.1
				mx.Improvements++
				mx.BestCost = best.cost
			} else if delta > 0 {
				remW[op] += 0.01
				insW[ip] += 0.01
				mx.AcceptedWorse++
			}
		} else {
			remW[op] = math.Max(0.01, remW[op]*0.999)
			insW[ip] = math.Max(0.01, insW[ip]*0.999)
		}
		temp *= cool
		snapshot()
	}
	mx.FinalRemovalWeights = [2]float64{remW[0], remW[1]}
	mx.FinalInsertionWeights = [2]float64{insW[0], insW[1]}
	mx.Elapsed = time.Since(start)
	return s.assignment(best), mx, nil
}

func (s *search) firstSolution(strategy FirstSolutionStrategy) (solution, bool) {
	empty := solution{routes: make([][]int, s.m.numVehicles)}
	var (
		sol  solution
		left []int
	)
	switch strategy {
	case ParallelCheapestInsertion:
		sol, left = s.greedyInsert(empty, s.nodes)
	default:
		sol, left = s.pathCheapestArc(empty)
		if len(left) > 0 {
			sol, left = s.greedyInsert(sol, left)
		}
	}
	return sol, len(left) == 0
}

// pathCheapestArc fills vehicles in order, each time following the cheapest
// arc from the route's last node to an unvisited node that keeps the route
// feasible.
func (s *search) pathCheapestArc(sol solution) (solution, []int) {
	used := make([]bool, s.m.numNodes)
	left := len(s.nodes)
	for v := range sol.routes {
		cur := s.m.depot
		for left > 0 {
			best := -1
			bestCost := int64(math.MaxInt64)
			for _, n := range s.nodes {
				if used[n] {
					continue
				}
				c := s.m.arcCost(cur, n)
				if c >= bestCost {
					continue
				}
				if !s.feasibleInsert(v, sol.routes[v], n, len(sol.routes[v])) {
					continue
				}
				best, bestCost = n, c
			}
			if best < 0 {
				break
			}
			sol.routes[v] = append(sol.routes[v], best)
			used[best] = true
			left--
			cur = best
		}
	}
	var rest []int
	for _, n := range s.nodes {
		if !used[n] {
			rest = append(rest, n)
		}
	}
	sol.cost = s.cost(sol)
	return sol, rest
}

// greedyInsert inserts nodes by cheapest feasible (node, vehicle, position)
// and returns the nodes it could not place.
func (s *search) greedyInsert(sol solution, nodes []int) (solution, []int) {
	pending := append([]int(nil), nodes...)
	for len(pending) > 0 {
		bestI, bestV, bestPos := -1, -1, -1
		bestDelta := int64(math.MaxInt64)
		for i, n := range pending {
			for v, r := range sol.routes {
				for pos := 0; pos <= len(r); pos++ {
					d := s.insertDelta(r, n, pos)
					if d >= bestDelta {
						continue
					}
					if !s.feasibleInsert(v, r, n, pos) {
						continue
					}
					bestI, bestV, bestPos, bestDelta = i, v, pos, d
				}
			}
		}
		if bestI < 0 {
			break
		}
		sol.routes[bestV] = insertAt(sol.routes[bestV], pending[bestI], bestPos)
		pending = append(pending[:bestI], pending[bestI+1:]...)
	}
	sol.cost = s.cost(sol)
	return sol, pending
}

// regretInsert places first the node whose best and second best feasible
// insertions differ the most.
func (s *search) regretInsert(sol solution, nodes []int) (solution, []int) {
	pending := append([]int(nil), nodes...)
	for len(pending) > 0 {
		pick, pickV, pickPos := -1, -1, -1
		pickRegret := -1.0
		pickBest := int64(math.MaxInt64)
		for i, n := range pending {
			best1, best2 := int64(math.MaxInt64), int64(math.MaxInt64)
			bv, bpos := -1, -1
			for v, r := range sol.routes {
				for pos := 0; pos <= len(r); pos++ {
					d := s.insertDelta(r, n, pos)
					if d >= best2 {
						continue
					}
					if !s.feasibleInsert(v, r, n, pos) {
						continue
					}
					if d < best1 {
						best2 = best1
						best1, bv, bpos = d, v, pos
					} else {
						best2 = d
					}
				}
			}
			if bv < 0 {
				continue
			}
			regret := math.Inf(1)
			if best2 != math.MaxInt64 {
				regret = float64(best2 - best1)
			}
			if regret > pickRegret || (regret == pickRegret && best1 < pickBest) {
				pick, pickV, pickPos, pickRegret, pickBest = i, bv, bpos, regret, best1
			}
		}
		if pick < 0 {
			break
		}
		sol.routes[pickV] = insertAt(sol.routes[pickV], pending[pick], pickPos)
		pending = append(pending[:pick], pending[pick+1:]...)
	}
	sol.cost = s.cost(sol)
	return sol, pending
}

func (s *search) randomRemoval(sol solution, k int, rng *rand.Rand) []int {
	all := assigned(sol)
	if k > len(all) {
		k = len(all)
	}
	for i := 0; i < k; i++ {
		j := i + rng.Intn(len(all)-i)
		all[i], all[j] = all[j], all[i]
	}
	return all[:k]
}

// shawRemoval removes a random seed node and the k-1 nodes closest to it by
// round trip arc cost. Units of the same location sit at zero distance and
// tend to leave together.
func (s *search) shawRemoval(sol solution, k int, rng *rand.Rand) []int {
	all := assigned(sol)
	if len(all) == 0 {
		return nil
	}
	seed := all[rng.Intn(len(all))]
	type pair struct {
		node  int
		score int64
	}
	rel := make([]pair, 0, len(all)-1)
	for _, n := range all {
		if n == seed {
			continue
		}
		rel = append(rel, pair{node: n, score: s.m.arcCost(seed, n) + s.m.arcCost(n, seed)})
	}
	sort.SliceStable(rel, func(i, j int) bool { return rel[i].score < rel[j].score })
	removed := []int{seed}
	for i := 0; i < len(rel) && len(removed) < k; i++ {
		removed = append(removed, rel[i].node)
	}
	return removed
}

func assigned(sol solution) []int {
	var out []int
	for _, r := range sol.routes {
		out = append(out, r...)
	}
	return out
}

// removeNodes always returns fresh route slices so the caller can mutate the
// result without touching sol.
func removeNodes(sol solution, removed []int) solution {
	rm := make(map[int]bool, len(removed))
	for _, n := range removed {
		rm[n] = true
	}
	out := solution{routes: make([][]int, len(sol.routes))}
	for i, r := range sol.routes {
		out.routes[i] = make([]int, 0, len(r))
		for _, n := range r {
			if !rm[n] {
				out.routes[i] = append(out.routes[i], n)
			}
		}
	}
	return out
}

func insertAt(route []int, n, pos int) []int {
	out := make([]int, 0, len(route)+1)
	out = append(out, route[:pos]...)
	out = append(out, n)
	return append(out, route[pos:]...)
}

func (s *search) insertDelta(route []int, n, pos int) int64 {
	depot := s.m.depot
	if len(route) == 0 {
		return s.m.arcCost(depot, n) + s.m.arcCost(n, depot)
	}
	prev, next := depot, depot
	if pos > 0 {
		prev = route[pos-1]
	}
	if pos < len(route) {
		next = route[pos]
	}
	return s.m.arcCost(prev, n) + s.m.arcCost(n, next) - s.m.arcCost(prev, next)
}

func (s *search) routeCost(route []int) int64 {
	if len(route) == 0 {
		return 0
	}
	prev := s.m.depot
	var c int64
	for _, n := range route {
		c += s.m.arcCost(prev, n)
		prev = n
	}
	return c + s.m.arcCost(prev, s.m.depot)
}

func (s *search) cost(sol solution) int64 {
	var total int64
	for _, r := range sol.routes {
		total += s.routeCost(r)
	}
	return total
}

// feasible checks every dimension along depot -> route -> depot using the
// earliest schedule: start cumul 0 and no slack. Transits are non-negative,
// so any feasible schedule implies this one is feasible.
func (s *search) feasible(v int, route []int) bool {
	if len(route) == 0 {
		return true
	}
	for _, d := range s.m.dims {
		limit := d.Capacities[v]
		var cumul int64
		prev := s.m.depot
		for _, n := range route {
			cumul += d.Transit(prev, n)
			if cumul > limit {
				return false
			}
			prev = n
		}
		if cumul+d.Transit(prev, s.m.depot) > limit {
			return false
		}
	}
	return true
}

// feasibleInsert is feasible(v, insertAt(route, n, pos)) without allocating.
func (s *search) feasibleInsert(v int, route []int, n, pos int) bool {
	for _, d := range s.m.dims {
		limit := d.Capacities[v]
		var cumul int64
		prev := s.m.depot
		for i := 0; i <= len(route); i++ {
			if i == pos {
				cumul += d.Transit(prev, n)
				if cumul > limit {
					return false
				}
				prev = n
			}
			if i == len(route) {
				break
			}
			cumul += d.Transit(prev, route[i])
			if cumul > limit {
				return false
			}
			prev = route[i]
		}
		if cumul+d.Transit(prev, s.m.depot) > limit {
			return false
		}
	}
	return true
}

func (s *search) assignment(sol solution) *Assignment {
	depot := s.m.depot
	a := &Assignment{
		routes:    make([][]int, len(sol.routes)),
		cumuls:    make(map[string][][]int64, len(s.m.dims)),
		arcCost:   s.m.arcCost,
		objective: sol.cost,
	}
	for v, r := range sol.routes {
		full := make([]int, 0, len(r)+2)
		full = append(full, depot)
		full = append(full, r...)
		a.routes[v] = append(full, depot)
	}
	for _, d := range s.m.dims {
		per := make([][]int64, len(a.routes))
		for v, full := range a.routes {
			c := make([]int64, len(full))
			// unused vehicles keep all-zero cumuls
			if len(full) > 2 {
				for i := 1; i < len(full); i++ {
					c[i] = c[i-1] + d.Transit(full[i-1], full[i])
				}
			}
			per[v] = c
		}
		a.cumuls[d.Name] = per
	}
	return a
}

func selectOp(weights []float64, rng *rand.Rand) int {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		return 0
	}
	r := rng.Float64() * sum
	acc := 0.0
	for i, w := range weights {
		acc += w
		if r <= acc {
			return i
		}
	}
	return len(weights) - 1
}
