package services

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/fieldworks-io/dispatch/internal/optimizer"
	"github.com/fieldworks-io/dispatch/internal/scheduling/domain"
	"github.com/fieldworks-io/dispatch/internal/solver/vrp"
	"github.com/fieldworks-io/dispatch/pkg/observability"
)

// TechnicianPlan reports one technician's routing outcome for a cycle.
type TechnicianPlan struct {
	TechnicianID uuid.UUID
	DaysPlanned  int
	UnitsPlanned int
	Unscheduled  []*domain.SchedulableUnit
}

// RouteEngine rebuilds one technician's multi-day schedule from scratch. It
// walks the planning horizon day by day: fixed-time units are pinned to
// their matching day, remaining capacity is filled with the highest-priority
// dynamic units that plausibly fit, and the day is handed to the optimizer
// for final ordering. A day whose solve fails keeps its fixed units at their
// pinned times and pushes everything else to the next day, so a solver
// outage degrades the schedule instead of emptying it.
type RouteEngine struct {
	store        domain.Store
	units        *UnitBuilder
	travel       domain.TravelProvider
	availability domain.AvailabilityProvider
	optimizer    optimizer.Optimizer
	horizonDays  int
	metrics      observability.Metrics
	logger       *slog.Logger
}

// NewRouteEngine creates a route engine planning the given number of days
// ahead.
func NewRouteEngine(
	store domain.Store,
	units *UnitBuilder,
	travel domain.TravelProvider,
	availability domain.AvailabilityProvider,
	opt optimizer.Optimizer,
	horizonDays int,
	metrics observability.Metrics,
	logger *slog.Logger,
) *RouteEngine {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RouteEngine{
		store:        store,
		units:        units,
		travel:       travel,
		availability: availability,
		optimizer:    opt,
		horizonDays:  horizonDays,
		metrics:      metrics,
		logger:       logger,
	}
}

// PlanTechnician clears the technician's schedule and rebuilds it from their
// currently assigned jobs. Units that fit nowhere within the horizon come
// back in the plan's Unscheduled list; their jobs keep their assignment but
// lose their ETAs downstream.
func (e *RouteEngine) PlanTechnician(ctx context.Context, tech *domain.Technician) (*TechnicianPlan, error) {
	plan := &TechnicianPlan{TechnicianID: tech.ID()}

	var jobs []*domain.Job
	err := withRetry(ctx, storeRetryAttempts, storeRetryBackoff, func() error {
		var loadErr error
		jobs, loadErr = e.store.AssignedJobs(ctx, tech.ID())
		return loadErr
	})
	if err != nil {
		return nil, err
	}

	tech.Schedule().Clear()

	fixedQueue, dynamicQueue := partitionUnits(e.units.Build(jobs))

	for day := 1; day <= e.horizonDays && len(fixedQueue)+len(dynamicQueue) > 0; day++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		avail, err := e.availability.Availability(ctx, tech, day)
		if err != nil {
			e.logger.Warn("availability lookup failed, skipping day",
				slog.String("technician_id", tech.ID().String()),
				slog.Int("day", day),
				slog.String("error", err.Error()))
			continue
		}
		if avail == nil || !avail.IsWorkable() {
			continue
		}
		breaks, err := e.availability.Unavailabilities(ctx, tech, day)
		if err != nil {
			e.logger.Warn("unavailability lookup failed, skipping day",
				slog.String("technician_id", tech.ID().String()),
				slog.Int("day", day),
				slog.String("error", err.Error()))
			continue
		}

		var dayFixed []*domain.SchedulableUnit
		dayFixed, fixedQueue = splitFixedForDay(fixedQueue, avail.StartTime)
		placedFixed, rejected := e.validateFixed(tech, day, dayFixed, avail)
		plan.Unscheduled = append(plan.Unscheduled, rejected...)

		trialed := e.trialFit(ctx, tech, day, avail, placedFixed, dynamicQueue)
		if len(placedFixed)+len(trialed) == 0 {
			continue
		}

		visits := e.solveDay(ctx, tech, day, avail, breaks, placedFixed, trialed)
		if len(visits) > 0 {
			tech.Schedule().Commit(day, visits...)
			plan.DaysPlanned++
			plan.UnitsPlanned += len(visits)
		}

		scheduled := make(map[string]bool, len(visits))
		for _, visit := range visits {
			scheduled[visit.Unit.ID] = true
		}
		dynamicQueue = dropUnits(dynamicQueue, scheduled)
	}

	leftovers := make([]*domain.SchedulableUnit, 0, len(fixedQueue)+len(dynamicQueue))
	leftovers = append(leftovers, fixedQueue...)
	leftovers = append(leftovers, dynamicQueue...)
	for _, unit := range leftovers {
		e.logger.Warn("unit does not fit within planning horizon",
			slog.String("technician_id", tech.ID().String()),
			slog.String("unit_id", unit.ID),
			slog.String("order_id", unit.OrderID.String()))
	}
	plan.Unscheduled = append(plan.Unscheduled, leftovers...)

	e.metrics.Counter(observability.MetricUnitsScheduled, int64(plan.UnitsPlanned))
	e.metrics.Counter(observability.MetricUnitsUnscheduled, int64(len(plan.Unscheduled)))
	return plan, nil
}

// partitionUnits splits units into the fixed-time queue, ordered by pinned
// time, and the dynamic queue, ordered by priority, then longest first, then
// unit id for a stable total order.
func partitionUnits(units []*domain.SchedulableUnit) (fixed, dynamic []*domain.SchedulableUnit) {
	for _, unit := range units {
		if unit.FixedScheduleTime != nil {
			fixed = append(fixed, unit)
		} else {
			dynamic = append(dynamic, unit)
		}
	}
	sort.Slice(fixed, func(i, j int) bool {
		if !fixed[i].FixedScheduleTime.Equal(*fixed[j].FixedScheduleTime) {
			return fixed[i].FixedScheduleTime.Before(*fixed[j].FixedScheduleTime)
		}
		return fixed[i].ID < fixed[j].ID
	})
	sort.Slice(dynamic, func(i, j int) bool {
		if dynamic[i].Priority != dynamic[j].Priority {
			return dynamic[i].Priority < dynamic[j].Priority
		}
		if dynamic[i].Duration != dynamic[j].Duration {
			return dynamic[i].Duration > dynamic[j].Duration
		}
		return dynamic[i].ID < dynamic[j].ID
	})
	return fixed, dynamic
}

// splitFixedForDay pulls the units pinned to the given calendar day (UTC)
// out of the queue.
func splitFixedForDay(queue []*domain.SchedulableUnit, dayStart time.Time) (today, rest []*domain.SchedulableUnit) {
	y, m, d := dayStart.UTC().Date()
	for _, unit := range queue {
		uy, um, ud := unit.FixedScheduleTime.UTC().Date()
		if uy == y && um == m && ud == d {
			today = append(today, unit)
		} else {
			rest = append(rest, unit)
		}
	}
	return today, rest
}

// validateFixed keeps the fixed units that fit inside the day window without
// colliding with an earlier fixed unit. Rejected units are unschedulable for
// good: their pinned date never comes around again.
func (e *RouteEngine) validateFixed(tech *domain.Technician, day int, units []*domain.SchedulableUnit, avail *domain.DailyAvailability) (placed, rejected []*domain.SchedulableUnit) {
	var lastEnd time.Time
	for _, unit := range units {
		start := *unit.FixedScheduleTime
		end := start.Add(unit.Duration)
		switch {
		case start.Before(avail.StartTime) || end.After(avail.EndTime):
			e.logger.Warn("fixed unit falls outside the day window",
				slog.String("technician_id", tech.ID().String()),
				slog.Int("day", day),
				slog.String("unit_id", unit.ID),
				slog.Time("fixed_time", start))
			rejected = append(rejected, unit)
		case len(placed) > 0 && start.Before(lastEnd):
			e.logger.Warn("fixed unit overlaps an earlier fixed unit",
				slog.String("technician_id", tech.ID().String()),
				slog.Int("day", day),
				slog.String("unit_id", unit.ID),
				slog.Time("fixed_time", start))
			rejected = append(rejected, unit)
		default:
			placed = append(placed, unit)
			lastEnd = end
		}
	}
	return placed, rejected
}

// trialFit greedily checks which dynamic units plausibly fit into the day's
// remaining gaps, travel included. It is a capacity filter for building the
// solver request, not a final placement; the solver reorders whatever passes.
func (e *RouteEngine) trialFit(ctx context.Context, tech *domain.Technician, day int, avail *domain.DailyAvailability, placedFixed, queue []*domain.SchedulableUnit) []*domain.SchedulableUnit {
	gaps := make([]freeWindow, 0, len(placedFixed)+1)
	cursor := avail.StartTime
	from := tech.StartLocationForDay(day)
	for _, unit := range placedFixed {
		start := *unit.FixedScheduleTime
		if start.After(cursor) {
			gaps = append(gaps, freeWindow{start: cursor, end: start, from: from})
		}
		cursor = start.Add(unit.Duration)
		from = unit.Location
	}
	if cursor.Before(avail.EndTime) {
		gaps = append(gaps, freeWindow{start: cursor, end: avail.EndTime, from: from})
	}

	var trialed []*domain.SchedulableUnit
	for _, unit := range queue {
		for gi := range gaps {
			gap := &gaps[gi]
			travelSeconds, ok := e.travel.TravelSeconds(ctx, gap.from, unit.Location)
			if !ok {
				continue
			}
			start := gap.start.Add(time.Duration(travelSeconds) * time.Second)
			if earliest := unit.EarliestStartTime; earliest != nil && earliest.After(start) {
				start = *earliest
			}
			if start.Add(unit.Duration).After(gap.end) {
				continue
			}
			trialed = append(trialed, unit)
			gap.start = start.Add(unit.Duration)
			gap.from = unit.Location
			break
		}
	}
	return trialed
}

// solveDay builds the single-day routing request, runs the optimizer, and
// returns the validated visits to commit. Any solve failure or contract
// violation in the response degrades to the fixed units at their pinned
// times.
func (e *RouteEngine) solveDay(ctx context.Context, tech *domain.Technician, day int, avail *domain.DailyAvailability, breaks []domain.Unavailability, placedFixed, trialed []*domain.SchedulableUnit) []domain.ScheduledUnit {
	req, byID := e.buildDayRequest(ctx, tech, day, avail, breaks, placedFixed, trialed)

	resp, err := e.optimizer.OptimizeDay(ctx, req)
	if err != nil {
		e.logger.Warn("day solve failed, committing fixed units only",
			slog.String("technician_id", tech.ID().String()),
			slog.Int("day", day),
			slog.String("error", err.Error()))
		return fixedOnlyVisits(placedFixed)
	}
	if resp.Status == vrp.StatusError {
		e.logger.Warn("solver returned error status, committing fixed units only",
			slog.String("technician_id", tech.ID().String()),
			slog.Int("day", day),
			slog.String("message", resp.Message))
		return fixedOnlyVisits(placedFixed)
	}

	visits, ok := e.visitsFromResponse(resp, byID, avail, placedFixed)
	if !ok {
		e.logger.Error("solver response violates day constraints, committing fixed units only",
			slog.String("technician_id", tech.ID().String()),
			slog.Int("day", day))
		return fixedOnlyVisits(placedFixed)
	}
	return visits
}

// buildDayRequest translates one day into the solver wire format: dense
// location indices keyed by address identity, a single vehicle spanning the
// day window, and a travel matrix restricted to the addresses in play.
// Missing matrix entries stay missing; the solver treats those arcs as
// infeasible.
func (e *RouteEngine) buildDayRequest(ctx context.Context, tech *domain.Technician, day int, avail *domain.DailyAvailability, breaks []domain.Unavailability, placedFixed, trialed []*domain.SchedulableUnit) (*vrp.Request, map[string]*domain.SchedulableUnit) {
	indexByAddr := make(map[uuid.UUID]int)
	var addrs []domain.Address
	indexOf := func(addr domain.Address) int {
		if idx, ok := indexByAddr[addr.ID]; ok {
			return idx
		}
		idx := len(addrs)
		indexByAddr[addr.ID] = idx
		addrs = append(addrs, addr)
		return idx
	}

	techID := tech.ID().String()
	startIdx := indexOf(tech.StartLocationForDay(day))
	endIdx := indexOf(tech.HomeLocation())

	units := make([]*domain.SchedulableUnit, 0, len(placedFixed)+len(trialed))
	units = append(units, placedFixed...)
	units = append(units, trialed...)

	byID := make(map[string]*domain.SchedulableUnit, len(units))
	items := make([]vrp.Item, 0, len(units))
	for _, unit := range units {
		byID[unit.ID] = unit
		item := vrp.Item{
			ID:                    unit.ID,
			LocationIndex:         indexOf(unit.Location),
			DurationSeconds:       int64(unit.Duration / time.Second),
			Priority:              unit.Priority,
			EligibleTechnicianIDs: []string{techID},
		}
		if unit.EarliestStartTime != nil {
			item.EarliestStartTimeISO = vrp.FormatISOTime(unit.EarliestStartTime.Unix())
		}
		if unit.FixedScheduleTime != nil {
			item.IsFixedTime = true
			item.FixedTimeISO = vrp.FormatISOTime(unit.FixedScheduleTime.Unix())
		}
		items = append(items, item)
	}

	locations := make([]vrp.Location, len(addrs))
	for i := range addrs {
		locations[i] = vrp.Location{Index: i}
	}

	matrix := make(vrp.TravelMatrix, len(addrs))
	for i, fromAddr := range addrs {
		row := make(map[int]int64, len(addrs))
		for j, toAddr := range addrs {
			if seconds, ok := e.travel.TravelSeconds(ctx, fromAddr, toAddr); ok {
				row[j] = seconds
			}
		}
		matrix[i] = row
	}

	specs := make([]vrp.UnavailabilitySpec, 0, len(breaks))
	for _, b := range breaks {
		specs = append(specs, vrp.UnavailabilitySpec{
			TechnicianID:    techID,
			StartTimeISO:    vrp.FormatISOTime(b.StartTime.Unix()),
			DurationSeconds: int64(b.Duration / time.Second),
		})
	}

	req := &vrp.Request{
		Locations: locations,
		Technicians: []vrp.TechnicianSpec{{
			ID:                   techID,
			StartLocationIndex:   startIdx,
			EndLocationIndex:     endIdx,
			EarliestStartTimeISO: vrp.FormatISOTime(avail.StartTime.Unix()),
			LatestEndTimeISO:     vrp.FormatISOTime(avail.EndTime.Unix()),
		}},
		Items:                      items,
		TechnicianUnavailabilities: specs,
		TravelTimeMatrix:           matrix,
	}
	return req, byID
}

// visitsFromResponse converts solver stops back into scheduled units,
// verifying the solver honored the day: every stop inside the window, no
// overlap, and every pre-placed fixed unit present at exactly its pinned
// time. Any violation discards the whole response.
func (e *RouteEngine) visitsFromResponse(resp *vrp.Response, byID map[string]*domain.SchedulableUnit, avail *domain.DailyAvailability, placedFixed []*domain.SchedulableUnit) ([]domain.ScheduledUnit, bool) {
	var visits []domain.ScheduledUnit
	var prevEnd time.Time
	seen := make(map[string]bool)

	for _, route := range resp.Routes {
		for _, stop := range route.Stops {
			unit, ok := byID[stop.ItemID]
			if !ok {
				return nil, false
			}
			arrival, err := vrp.ParseISOTime(stop.ArrivalTimeISO)
			if err != nil {
				return nil, false
			}
			start, err := vrp.ParseISOTime(stop.StartTimeISO)
			if err != nil {
				return nil, false
			}
			end, err := vrp.ParseISOTime(stop.EndTimeISO)
			if err != nil {
				return nil, false
			}
			if start.Before(avail.StartTime) || end.After(avail.EndTime) {
				return nil, false
			}
			if len(visits) > 0 && start.Before(prevEnd) {
				return nil, false
			}
			if unit.FixedScheduleTime != nil && !start.Equal(*unit.FixedScheduleTime) {
				return nil, false
			}
			visits = append(visits, domain.ScheduledUnit{
				Unit:        unit,
				ArrivalTime: arrival,
				StartTime:   start,
				EndTime:     end,
			})
			prevEnd = end
			seen[stop.ItemID] = true
		}
	}

	for _, unit := range placedFixed {
		if !seen[unit.ID] {
			return nil, false
		}
	}
	return visits, true
}

// fixedOnlyVisits is the degraded day: fixed units at their pinned times,
// nothing else.
func fixedOnlyVisits(fixed []*domain.SchedulableUnit) []domain.ScheduledUnit {
	visits := make([]domain.ScheduledUnit, 0, len(fixed))
	for _, unit := range fixed {
		start := *unit.FixedScheduleTime
		visits = append(visits, domain.ScheduledUnit{
			Unit:        unit,
			ArrivalTime: start,
			StartTime:   start,
			EndTime:     start.Add(unit.Duration),
		})
	}
	return visits
}

// dropUnits filters the queue down to units not in the scheduled set.
func dropUnits(queue []*domain.SchedulableUnit, scheduled map[string]bool) []*domain.SchedulableUnit {
	if len(scheduled) == 0 {
		return queue
	}
	kept := queue[:0]
	for _, unit := range queue {
		if !scheduled[unit.ID] {
			kept = append(kept, unit)
		}
	}
	return kept
}
