package vrp

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// itemState walks each item through the solve. Pending items either get
// placed on a route and emitted in the response, or end dropped (priced out
// by their penalty) or infeasible (unservable, or on a route that failed
// post-validation).
type itemState uint8

const (
	statePending itemState = iota
	statePlaced
	stateEmitted
	stateDropped
	stateInfeasible
)

// Solve runs the full pipeline: validate and normalize, construct, improve,
// extract. The returned error is non-nil only for malformed input; every
// solver-side failure is reported inside the Response so callers can always
// act on a status.
func Solve(ctx context.Context, req *Request, opts Options) (*Response, error) {
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

	states := make([]itemState, len(req.Items))
	for _, idx := range m.unservable {
		states[idx] = stateInfeasible
	}

	sol, err := construct(m)
	if err != nil {
		logger.Warn("constructing initial routes failed",
			slog.String("reason", err.Error()))
		return errorResponse("No feasible schedule: a fixed-time item cannot be placed.", req), nil
	}
	sol = improve(ctx, m, sol, opts)

	for _, route := range sol.routes {
		for _, ni := range route {
			states[m.nodes[ni].item] = statePlaced
		}
	}

	routes := make([]Route, 0, len(m.vehicles))
	for v := range m.vehicles {
		plan := sol.plans[v]
		if len(plan.stops) == 0 {
			continue
		}

		// Eligibility is modeled as arc cost, so a pathological instance can
		// still land an item on the wrong vehicle. That invalidates the
		// whole route rather than just the stop.
		valid := true
		for _, ni := range sol.routes[v] {
			if !m.nodes[ni].eligible[v] {
				logger.Error("route failed eligibility validation, discarding",
					slog.String("technician_id", m.vehicles[v].id),
					slog.String("item_id", m.nodes[ni].id))
				valid = false
			}
		}
		if !valid {
			for _, ni := range sol.routes[v] {
				states[m.nodes[ni].item] = stateInfeasible
			}
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
			states[n.item] = stateEmitted
		}
		routes = append(routes, Route{
			TechnicianID:           m.vehicles[v].id,
			Stops:                  stops,
			TotalTravelTimeSeconds: plan.travelTotal,
			TotalDurationSeconds:   plan.stops[len(plan.stops)-1].end - plan.stops[0].arrival,
		})
	}

	unassigned := make([]string, 0)
	for i, item := range req.Items {
		if states[i] == stateEmitted {
			continue
		}
		if states[i] == statePending {
			states[i] = stateDropped
		}
		unassigned = append(unassigned, item.ID)
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

	logger.Info("optimize-schedule solve finished",
		slog.String("status", resp.Status),
		slog.Int("routes", len(routes)),
		slog.Int("unassigned", len(unassigned)),
		slog.Duration("elapsed", time.Since(started)))
	return resp, nil
}
