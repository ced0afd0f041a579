package opt

// localSearch applies intra-route 2-opt and relocate moves to every route
// and refreshes the solution cost.
func (s *search) localSearch(sol solution) solution {
	for v := range sol.routes {
		r := s.twoOpt(v, sol.routes[v])
		sol.routes[v] = s.relocate(v, r)
	}
	sol.cost = s.cost(sol)
	return sol
}

// twoOpt reverses route segments while that lowers the route cost and keeps
// every dimension within bounds.
func (s *search) twoOpt(v int, route []int) []int {
	n := len(route)
	if n < 2 {
		return route
	}
	best := route
	bestCost := s.routeCost(route)
	improved := true
	for improved {
		improved = false
		for i := 0; i < n-1; i++ {
			for k := i + 1; k < n; k++ {
				cand := twoOptSwap(best, i, k)
				c := s.routeCost(cand)
				if c < bestCost && s.feasible(v, cand) {
					best, bestCost = cand, c
					improved = true
				}
			}
		}
	}
	return best
}

func twoOptSwap(ord []int, i, k int) []int {
	out := make([]int, len(ord))
	copy(out, ord[:i])
	// reverse i..k
	pos := i
	for j := k; j >= i; j-- {
		out[pos] = ord[j]
		pos++
	}
	copy(out[pos:], ord[k+1:])
	return out
}

// relocate moves single nodes to another position of the same route.
func (s *search) relocate(v int, route []int) []int {
	n := len(route)
	if n < 2 {
		return route
	}
	best := route
	bestCost := s.routeCost(route)
	improved := true
	for improved {
		improved = false
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if i == j {
					continue
				}
				cand := moveNode(best, i, j)
				c := s.routeCost(cand)
				if c < bestCost && s.feasible(v, cand) {
					best, bestCost = cand, c
					improved = true
				}
			}
		}
	}
	return best
}

// moveNode removes ord[i] and reinserts it so that it ends at index j.
func moveNode(ord []int, i, j int) []int {
	node := ord[i]
	rest := make([]int, 0, len(ord)-1)
	rest = append(rest, ord[:i]...)
	rest = append(rest, ord[i+1:]...)
	return insertAt(rest, node, j)
}
