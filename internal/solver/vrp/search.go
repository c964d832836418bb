package vrp

import (
	"context"
	"log/slog"
	"time"
)

// maxStaleRounds bounds penalization rounds that fail to improve the best
// solution, so small instances return well before the wall clock expires.
const maxStaleRounds = 48

type arcKey struct {
	from int
	to   int
}

// searcher runs guided local search: plain first-improvement descent over
// relocate, swap, two-opt, reinsert, and drop moves, with arc penalties added
// at each local optimum so descent can escape it. The procedure is fully
// deterministic; repeated solves of the same request walk the same path.
type searcher struct {
	m         *Model
	ctx       context.Context
	deadline  time.Time
	penalties map[arcKey]int64
	lambda    int64
	logSearch bool
}

// improve refines the constructed solution until the deadline, the context,
// or the stale-round cap stops it. It always returns the best solution seen
// under the true objective, never the augmented one.
func improve(ctx context.Context, m *Model, s *solution, opts Options) *solution {
	if len(m.nodes) == 0 {
		return s
	}
	sr := &searcher{
		m:         m,
		ctx:       ctx,
		deadline:  time.Now().Add(opts.timeLimit()),
		penalties: make(map[arcKey]int64),
		lambda:    lambdaFor(m),
		logSearch: opts.LogSearch,
	}

	best := s.clone()
	bestCost := best.cost()
	cur := s
	stale := 0
	rounds := 0

	for !sr.expired() {
		if sr.improveStep(cur) {
			if c := cur.cost(); c < bestCost {
				best = cur.clone()
				bestCost = c
				stale = 0
			}
			continue
		}
		// Local optimum under the augmented objective.
		if c := cur.cost(); c < bestCost {
			best = cur.clone()
			bestCost = c
			stale = 0
		}
		if bestCost == 0 {
			break
		}
		sr.penalize(cur)
		rounds++
		stale++
		if sr.logSearch {
			m.logger.Info("guided local search round",
				slog.Int("round", rounds),
				slog.Int64("current_cost", cur.cost()),
				slog.Int64("best_cost", bestCost),
				slog.Int("penalized_arcs", len(sr.penalties)))
		}
		if stale > maxStaleRounds {
			break
		}
	}
	return best
}

func (sr *searcher) expired() bool {
	if sr.ctx != nil && sr.ctx.Err() != nil {
		return true
	}
	return !time.Now().Before(sr.deadline)
}

func (sr *searcher) improveStep(s *solution) bool {
	if sr.relocate(s) {
		return true
	}
	if sr.swap(s) {
		return true
	}
	if sr.twoOpt(s) {
		return true
	}
	if sr.reinsert(s) {
		return true
	}
	return sr.drop(s)
}

// augRoute is the route cost plus lambda-weighted penalties of its arcs.
func (sr *searcher) augRoute(v int, seq []int, plan *routePlan) int64 {
	cost := plan.cost
	for _, arc := range routeArcs(sr.m, v, seq) {
		if p := sr.penalties[arc]; p > 0 {
			cost += sr.lambda * p
		}
	}
	return cost
}

func (sr *searcher) relocate(s *solution) bool {
	for v := range s.routes {
		if sr.expired() {
			return false
		}
		baseAug := sr.augRoute(v, s.routes[v], s.plans[v])
		for i := 0; i < len(s.routes[v]); i++ {
			ni := s.routes[v][i]
			removedSeq := removeAt(s.routes[v], i)
			removedPlan := sr.m.propagate(v, removedSeq)
			if removedPlan == nil {
				continue
			}
			removedAug := sr.augRoute(v, removedSeq, removedPlan)
			for v2 := range s.routes {
				targetSeq := s.routes[v2]
				targetAug := sr.augRoute(v2, s.routes[v2], s.plans[v2])
				if v2 == v {
					targetSeq = removedSeq
					targetAug = removedAug
				}
				for pos := 0; pos <= len(targetSeq); pos++ {
					if v2 == v && pos == i {
						continue
					}
					cand := insertAt(targetSeq, pos, ni)
					plan := sr.m.propagate(v2, cand)
					if plan == nil {
						continue
					}
					var delta int64
					if v2 == v {
						delta = sr.augRoute(v, cand, plan) - baseAug
					} else {
						delta = removedAug - baseAug +
							sr.augRoute(v2, cand, plan) - targetAug
					}
					if delta < 0 {
						if v2 == v {
							s.apply(v, cand, plan)
						} else {
							s.apply(v, removedSeq, removedPlan)
							s.apply(v2, cand, plan)
						}
						return true
					}
				}
			}
		}
	}
	return false
}

func (sr *searcher) swap(s *solution) bool {
	for va := range s.routes {
		if sr.expired() {
			return false
		}
		for i := 0; i < len(s.routes[va]); i++ {
			for vb := va; vb < len(s.routes); vb++ {
				jStart := 0
				if vb == va {
					jStart = i + 1
				}
				for j := jStart; j < len(s.routes[vb]); j++ {
					if sr.trySwap(s, va, i, vb, j) {
						return true
					}
				}
			}
		}
	}
	return false
}

func (sr *searcher) trySwap(s *solution, va, i, vb, j int) bool {
	if va == vb {
		seq := append([]int(nil), s.routes[va]...)
		seq[i], seq[j] = seq[j], seq[i]
		plan := sr.m.propagate(va, seq)
		if plan == nil {
			return false
		}
		delta := sr.augRoute(va, seq, plan) - sr.augRoute(va, s.routes[va], s.plans[va])
		if delta >= 0 {
			return false
		}
		s.apply(va, seq, plan)
		return true
	}

	seqA := append([]int(nil), s.routes[va]...)
	seqB := append([]int(nil), s.routes[vb]...)
	seqA[i], seqB[j] = seqB[j], seqA[i]
	planA := sr.m.propagate(va, seqA)
	if planA == nil {
		return false
	}
	planB := sr.m.propagate(vb, seqB)
	if planB == nil {
		return false
	}
	delta := sr.augRoute(va, seqA, planA) - sr.augRoute(va, s.routes[va], s.plans[va]) +
		sr.augRoute(vb, seqB, planB) - sr.augRoute(vb, s.routes[vb], s.plans[vb])
	if delta >= 0 {
		return false
	}
	s.apply(va, seqA, planA)
	s.apply(vb, seqB, planB)
	return true
}

func (sr *searcher) twoOpt(s *solution) bool {
	for v := range s.routes {
		if sr.expired() {
			return false
		}
		route := s.routes[v]
		baseAug := sr.augRoute(v, route, s.plans[v])
		for i := 0; i < len(route)-1; i++ {
			for j := i + 1; j < len(route); j++ {
				cand := reverseSegment(route, i, j)
				plan := sr.m.propagate(v, cand)
				if plan == nil {
					continue
				}
				if sr.augRoute(v, cand, plan)-baseAug < 0 {
					s.apply(v, cand, plan)
					return true
				}
			}
		}
	}
	return false
}

func (sr *searcher) reinsert(s *solution) bool {
	served := s.served()
	for ni := range s.m.nodes {
		if served[ni] {
			continue
		}
		if sr.expired() {
			return false
		}
		penalty := s.m.nodes[ni].penalty
		for v := range s.routes {
			baseAug := sr.augRoute(v, s.routes[v], s.plans[v])
			for pos := 0; pos <= len(s.routes[v]); pos++ {
				cand := insertAt(s.routes[v], pos, ni)
				plan := sr.m.propagate(v, cand)
				if plan == nil {
					continue
				}
				if sr.augRoute(v, cand, plan)-baseAug-penalty < 0 {
					s.apply(v, cand, plan)
					return true
				}
			}
		}
	}
	return false
}

func (sr *searcher) drop(s *solution) bool {
	for v := range s.routes {
		if sr.expired() {
			return false
		}
		baseAug := sr.augRoute(v, s.routes[v], s.plans[v])
		for i := 0; i < len(s.routes[v]); i++ {
			ni := s.routes[v][i]
			if s.m.nodes[ni].mandatory() {
				continue
			}
			cand := removeAt(s.routes[v], i)
			plan := sr.m.propagate(v, cand)
			if plan == nil {
				continue
			}
			if sr.augRoute(v, cand, plan)-baseAug+s.m.nodes[ni].penalty < 0 {
				s.apply(v, cand, plan)
				return true
			}
		}
	}
	return false
}

// penalize bumps the penalty of the highest-utility arcs in the current
// solution, where utility is travel seconds discounted by prior penalties.
// This is the guiding step that makes descent leave a local optimum.
func (sr *searcher) penalize(s *solution) {
	seen := make(map[arcKey]bool)
	var worstUtil float64
	var worst []arcKey
	for v := range s.routes {
		for _, arc := range routeArcs(sr.m, v, s.routes[v]) {
			if seen[arc] {
				continue
			}
			seen[arc] = true
			seconds := sr.m.arcSeconds(arc.from, arc.to)
			if seconds <= 0 || seconds >= sr.m.infeasibleCost {
				continue
			}
			util := float64(seconds) / float64(1+sr.penalties[arc])
			switch {
			case util > worstUtil:
				worstUtil = util
				worst = worst[:0]
				worst = append(worst, arc)
			case util == worstUtil:
				worst = append(worst, arc)
			}
		}
	}
	for _, arc := range worst {
		sr.penalties[arc]++
	}
}

func routeArcs(m *Model, v int, seq []int) []arcKey {
	if len(seq) == 0 {
		return nil
	}
	vc := &m.vehicles[v]
	arcs := make([]arcKey, 0, len(seq)+1)
	prev := vc.startLoc
	for _, ni := range seq {
		loc := m.nodes[ni].loc
		arcs = append(arcs, arcKey{from: prev, to: loc})
		prev = loc
	}
	return append(arcs, arcKey{from: prev, to: vc.endLoc})
}

func reverseSegment(seq []int, i, j int) []int {
	out := append([]int(nil), seq...)
	for l, r := i, j; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	return out
}

// lambdaFor scales arc penalties relative to typical travel so the guidance
// term neither dominates nor vanishes.
func lambdaFor(m *Model) int64 {
	var sum, n int64
	for _, row := range m.travel {
		for _, seconds := range row {
			if seconds > 0 && seconds < m.infeasibleCost {
				sum += seconds
				n++
			}
		}
	}
	if n == 0 {
		return 1
	}
	return sum/(n*8) + 1
}
