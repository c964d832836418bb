package vrp

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// bruteForceLimit is the largest route size that gets exhaustive reordering;
// factorial growth makes anything bigger pointless.
const bruteForceLimit = 8

// SolveHeuristic is the in-process fallback: fixed-time seeding, then
// nearest-neighbor appends per vehicle, then exhaustive reordering of small
// routes. It shares the model, timeline, and response contract with Solve
// but never runs the guided improvement loop, so it is cheap and fully
// predictable. It is used when the optimizer service is unreachable and in
// environments without one.
func SolveHeuristic(ctx context.Context, req *Request, opts Options) (*Response, error) {
	logger := opts.logger()
	started := time.Now()

	if len(req.Items) == 0 {
		return &Response{
			Status:            StatusSuccess,
			Message:           "No items to schedule.",
			Routes:            []Route{},
			UnassignedItemIDs: []string{},
		}, nil
	}
	if len(req.Technicians) == 0 {
		return errorResponse("No technicians available for scheduling.", req), nil
	}

	m, err := BuildModel(req, opts)
	if err != nil {
		return nil, err
	}

	sol, err := constructHeuristic(m)
	if err != nil {
		return errorResponse("No feasible schedule: a fixed-time item cannot be placed.", req), nil
	}

	for v := range sol.routes {
		if ctx.Err() != nil {
			break
		}
		if n := len(sol.routes[v]); n > 1 && n <= bruteForceLimit {
			bruteForceRoute(m, sol, v)
		}
	}

	resp := renderSolution(m, req, sol)
	logger.Info("heuristic solve finished",
		slog.String("status", resp.Status),
		slog.Int("routes", len(resp.Routes)),
		slog.Int("unassigned", len(resp.UnassignedItemIDs)),
		slog.Duration("elapsed", time.Since(started)))
	return resp, nil
}

// constructHeuristic seeds fixed-time nodes exactly like construct, then
// grows each route nearest-first. Unlike the cost-based construction it
// skips ineligible vehicles outright, so no post-validation surprises are
// possible on the fallback path.
func constructHeuristic(m *Model) (*solution, error) {
	s := newSolution(m)

	var fixed []int
	remaining := make(map[int]bool, len(m.nodes))
	for i := range m.nodes {
		if m.nodes[i].mandatory() {
			fixed = append(fixed, i)
		} else {
			remaining[i] = true
		}
	}

	sortFixedChronological(m, fixed)
	for _, ni := range fixed {
		ins := bestEligibleInsertion(s, ni)
		if ins == nil {
			return nil, ErrNoSolution
		}
		s.apply(ins.vehicle, ins.seq, ins.plan)
	}

	for v := range m.vehicles {
		for {
			ni, seq, plan := nearestFeasibleAppend(m, s, v, remaining)
			if ni < 0 {
				break
			}
			s.apply(v, seq, plan)
			delete(remaining, ni)
		}
	}
	return s, nil
}

// bestEligibleInsertion is bestInsertion restricted to eligible vehicles.
func bestEligibleInsertion(s *solution, ni int) *insertion {
	var best *insertion
	for v := range s.m.vehicles {
		if !s.m.nodes[ni].eligible[v] {
			continue
		}
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

func sortFixedChronological(m *Model, fixed []int) {
	for i := 1; i < len(fixed); i++ {
		for j := i; j > 0; j-- {
			a, b := &m.nodes[fixed[j-1]], &m.nodes[fixed[j]]
			if a.fixedAt < b.fixedAt || (a.fixedAt == b.fixedAt && a.id <= b.id) {
				break
			}
			fixed[j-1], fixed[j] = fixed[j], fixed[j-1]
		}
	}
}

// nearestFeasibleAppend picks the eligible unrouted node closest to the
// route's current tail and appends it when the timeline still closes. Ties
// resolve to the lower node index.
func nearestFeasibleAppend(m *Model, s *solution, v int, remaining map[int]bool) (int, []int, *routePlan) {
	tail := m.vehicles[v].startLoc
	if n := len(s.routes[v]); n > 0 {
		tail = m.nodes[s.routes[v][n-1]].loc
	}

	bestNode := -1
	var bestTravel int64
	var bestSeq []int
	var bestPlan *routePlan
	for ni := range m.nodes {
		if !remaining[ni] || !m.nodes[ni].eligible[v] {
			continue
		}
		travel := m.arcSeconds(tail, m.nodes[ni].loc)
		if travel >= m.infeasibleCost {
			continue
		}
		if bestNode >= 0 && travel >= bestTravel {
			continue
		}
		seq := insertAt(s.routes[v], len(s.routes[v]), ni)
		plan := m.propagate(v, seq)
		if plan == nil {
			continue
		}
		bestNode, bestTravel, bestSeq, bestPlan = ni, travel, seq, plan
	}
	return bestNode, bestSeq, bestPlan
}

// bruteForceRoute tries every ordering of one route and keeps the cheapest
// feasible one. Fixed-time nodes are free to move position; the timeline
// rejects any ordering that misses their pinned start.
func bruteForceRoute(m *Model, s *solution, v int) {
	base := append([]int(nil), s.routes[v]...)
	bestSeq := s.routes[v]
	bestPlan := s.plans[v]

	permute(base, 0, func(seq []int) {
		plan := m.propagate(v, seq)
		if plan == nil {
			return
		}
		if plan.cost < bestPlan.cost {
			bestSeq = append([]int(nil), seq...)
			bestPlan = plan
		}
	})
	s.apply(v, bestSeq, bestPlan)
}

// permute visits all permutations of seq[k:] in place.
func permute(seq []int, k int, visit func([]int)) {
	if k == len(seq) {
		visit(seq)
		return
	}
	for i := k; i < len(seq); i++ {
		seq[k], seq[i] = seq[i], seq[k]
		permute(seq, k+1, visit)
		seq[k], seq[i] = seq[i], seq[k]
	}
}

// renderSolution converts a solution to the wire response. Shared by the
// heuristic path; Solve keeps its own extraction because it also runs
// eligibility revalidation driven by arc-cost placement.
func renderSolution(m *Model, req *Request, sol *solution) *Response {
	emitted := make(map[string]bool, len(req.Items))
	routes := make([]Route, 0, len(m.vehicles))
	for v := range m.vehicles {
		plan := sol.plans[v]
		if len(plan.stops) == 0 {
			continue
		}
		stops := make([]Stop, 0, len(plan.stops))
		for _, st := range plan.stops {
			n := &m.nodes[st.node]
			stops = append(stops, Stop{
				ItemID:         n.id,
				ArrivalTimeISO: FormatISOTime(m.epoch + st.arrival),
				StartTimeISO:   FormatISOTime(m.epoch + st.start),
				EndTimeISO:     FormatISOTime(m.epoch + st.end),
			})
			emitted[n.id] = true
		}
		routes = append(routes, Route{
			TechnicianID:           m.vehicles[v].id,
			Stops:                  stops,
			TotalTravelTimeSeconds: plan.travelTotal,
			TotalDurationSeconds:   plan.stops[len(plan.stops)-1].end - plan.stops[0].arrival,
		})
	}

	unassigned := make([]string, 0)
	for _, item := range req.Items {
		if !emitted[item.ID] {
			unassigned = append(unassigned, item.ID)
		}
	}

	resp := &Response{Routes: routes, UnassignedItemIDs: unassigned}
	switch {
	case len(routes) == 0:
		resp.Status = StatusError
		resp.Message = "No feasible schedule found."
	case len(unassigned) == 0:
		resp.Status = StatusSuccess
		resp.Message = fmt.Sprintf("All %d items scheduled.", len(req.Items))
	default:
		resp.Status = StatusPartial
		resp.Message = fmt.Sprintf("Scheduled %d of %d items; %d left unassigned.",
			len(req.Items)-len(unassigned), len(req.Items), len(unassigned))
	}
	return resp
}
