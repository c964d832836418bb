package vrp

// stopTimes carries one visit's reconstructed times in relative seconds.
// arrival is the naive arrival (previous departure plus raw travel), start is
// the service start after waiting out breaks and time constraints, end is
// start plus service.
type stopTimes struct {
	node    int
	arrival int64
	start   int64
	end     int64
	travel  int64
}

// routePlan is the evaluated timeline of one vehicle's visit sequence.
type routePlan struct {
	vehicle     int
	stops       []stopTimes
	travelTotal int64
	endCumul    int64
	// cost is travel plus eligibility surcharges; the search minimizes it
	// together with drop penalties.
	cost int64
}

// propagate walks a visit sequence forward with zero slack: each activity
// starts as early as breaks, earliest-start bounds, and fixed times allow.
// It returns nil when the sequence is infeasible for the vehicle: a fixed
// time that cannot be met exactly, a break overlapping a pinned service, a
// missing travel arc, or a return to depot after the window closes.
func (m *Model) propagate(v int, seq []int) *routePlan {
	vc := &m.vehicles[v]
	plan := &routePlan{vehicle: v, endCumul: vc.windowStart}
	if len(seq) == 0 {
		return plan
	}

	plan.stops = make([]stopTimes, 0, len(seq))
	prevLoc := vc.startLoc
	prevDeparture := vc.windowStart

	for _, ni := range seq {
		n := &m.nodes[ni]
		travel := m.arcSeconds(prevLoc, n.loc)
		if travel >= m.infeasibleCost {
			return nil
		}

		// Travel cannot overlap a break; it resumes after.
		travelStart := fitActivity(prevDeparture, travel, vc.breaks)
		start := travelStart + travel
		if n.earliest > start {
			start = n.earliest
		}
		if n.mandatory() {
			if start > n.fixedAt {
				return nil
			}
			start = n.fixedAt
		}
		adjusted := fitActivity(start, n.service, vc.breaks)
		if n.mandatory() && adjusted != start {
			// The pinned service collides with a break.
			return nil
		}
		start = adjusted
		end := start + n.service
		if end > m.capacity {
			return nil
		}

		plan.stops = append(plan.stops, stopTimes{
			node:    ni,
			arrival: prevDeparture + travel,
			start:   start,
			end:     end,
			travel:  travel,
		})
		plan.travelTotal += travel
		plan.cost += travel
		if !n.eligible[v] {
			plan.cost += m.infeasibleCost
		}
		prevLoc = n.loc
		prevDeparture = end
	}

	returnTravel := m.arcSeconds(prevLoc, vc.endLoc)
	if returnTravel >= m.infeasibleCost {
		return nil
	}
	returnStart := fitActivity(prevDeparture, returnTravel, vc.breaks)
	plan.endCumul = returnStart + returnTravel
	if plan.endCumul > vc.windowEnd || plan.endCumul > m.capacity {
		return nil
	}
	plan.travelTotal += returnTravel
	plan.cost += returnTravel
	return plan
}

// fitActivity returns the earliest start at or after t such that the
// activity [start, start+duration) overlaps no break. Breaks must be sorted
// by start; each push moves t past the conflicting break and the remaining
// intervals are re-tested in order.
func fitActivity(t, duration int64, breaks []breakInterval) int64 {
	for _, b := range breaks {
		if b.end() <= t {
			continue
		}
		if b.start >= t+duration {
			break
		}
		t = b.end()
	}
	return t
}
