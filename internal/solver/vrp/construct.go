package vrp

import "sort"

// bestInsertion finds the cheapest feasible position for a node across all
// vehicles. Ties resolve to the lower vehicle then the earlier position so
// construction is deterministic. Returns nil when no placement is feasible.
type insertion struct {
	vehicle int
	seq     []int
	plan    *routePlan
	delta   int64
}

func bestInsertion(s *solution, ni int) *insertion {
	var best *insertion
	for v := range s.m.vehicles {
		for pos := 0; pos <= len(s.routes[v]); pos++ {
			seq := insertAt(s.routes[v], pos, ni)
			plan := s.m.propagate(v, seq)
			if plan == nil {
				continue
			}
			delta := plan.cost - s.plans[v].cost
			if best == nil || delta < best.delta {
				best = &insertion{vehicle: v, seq: seq, plan: plan, delta: delta}
			}
		}
	}
	return best
}

// construct builds the initial solution. Fixed-time nodes are seeded first in
// chronological order and must all land somewhere; a fixed node with no
// feasible slot makes the whole problem infeasible. Remaining nodes are
// added greedily by cheapest insertion, most urgent priority first, and are
// only served when serving costs less than dropping.
func construct(m *Model) (*solution, error) {
	s := newSolution(m)

	var fixed, floating []int
	for i := range m.nodes {
		if m.nodes[i].mandatory() {
			fixed = append(fixed, i)
		} else {
			floating = append(floating, i)
		}
	}

	sort.Slice(fixed, func(a, b int) bool {
		na, nb := &m.nodes[fixed[a]], &m.nodes[fixed[b]]
		if na.fixedAt != nb.fixedAt {
			return na.fixedAt < nb.fixedAt
		}
		return na.id < nb.id
	})
	for _, ni := range fixed {
		ins := bestInsertion(s, ni)
		if ins == nil {
			m.logger.Warn("fixed-time item has no feasible slot",
				"item_id", m.nodes[ni].id)
			return nil, ErrNoSolution
		}
		s.apply(ins.vehicle, ins.seq, ins.plan)
	}

	sort.SliceStable(floating, func(a, b int) bool {
		na, nb := &m.nodes[floating[a]], &m.nodes[floating[b]]
		if na.priority != nb.priority {
			return na.priority < nb.priority
		}
		return na.item < nb.item
	})
	for _, ni := range floating {
		ins := bestInsertion(s, ni)
		if ins == nil || ins.delta >= m.nodes[ni].penalty {
			continue
		}
		s.apply(ins.vehicle, ins.seq, ins.plan)
	}

	return s, nil
}
