package vrp

// solution pairs every vehicle's visit sequence with its evaluated timeline.
// Nodes absent from all routes are dropped; droppable drops pay their
// penalty, which keeps solutions with different service sets comparable.
type solution struct {
	m      *Model
	routes [][]int
	plans  []*routePlan
}

func newSolution(m *Model) *solution {
	s := &solution{
		m:      m,
		routes: make([][]int, len(m.vehicles)),
		plans:  make([]*routePlan, len(m.vehicles)),
	}
	for v := range m.vehicles {
		s.plans[v] = m.propagate(v, nil)
	}
	return s
}

func (s *solution) clone() *solution {
	c := &solution{
		m:      s.m,
		routes: make([][]int, len(s.routes)),
		plans:  make([]*routePlan, len(s.plans)),
	}
	for v := range s.routes {
		c.routes[v] = append([]int(nil), s.routes[v]...)
		c.plans[v] = s.plans[v]
	}
	return c
}

// served returns which nodes appear on some route.
func (s *solution) served() []bool {
	out := make([]bool, len(s.m.nodes))
	for _, route := range s.routes {
		for _, ni := range route {
			out[ni] = true
		}
	}
	return out
}

// cost is the solve objective: route costs plus the drop penalty of every
// unserved node. Mandatory nodes never contribute here because construction
// fails outright when one cannot be placed.
func (s *solution) cost() int64 {
	total := int64(0)
	for _, plan := range s.plans {
		total += plan.cost
	}
	served := s.served()
	for i := range s.m.nodes {
		if !served[i] {
			total += s.m.nodes[i].penalty
		}
	}
	return total
}

// apply replaces one vehicle's route with an already-propagated plan.
func (s *solution) apply(v int, seq []int, plan *routePlan) {
	s.routes[v] = seq
	s.plans[v] = plan
}

// insertAt builds a copy of seq with node ni inserted at pos.
func insertAt(seq []int, pos, ni int) []int {
	out := make([]int, 0, len(seq)+1)
	out = append(out, seq[:pos]...)
	out = append(out, ni)
	out = append(out, seq[pos:]...)
	return out
}

// removeAt builds a copy of seq without position pos.
func removeAt(seq []int, pos int) []int {
	out := make([]int, 0, len(seq)-1)
	out = append(out, seq[:pos]...)
	out = append(out, seq[pos+1:]...)
	return out
}
