package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/fieldworks-io/dispatch/internal/scheduling/domain"
)

// freeWindow is one open span of a technician's day together with the
// location the technician departs from to reach whatever fills it.
type freeWindow struct {
	start time.Time
	end   time.Time
	from  domain.Address
}

// ETAEstimator answers "when could this technician realistically start this
// unit?" without running the solver. It walks the technician's committed
// schedule day by day and slots the unit into the first gap that absorbs
// travel, duration, and the unit's earliest-start bound. The answer is an
// admissibility estimate for assignment decisions, not a final route; the
// route engine still re-solves every day it touches.
type ETAEstimator struct {
	travel       domain.TravelProvider
	availability domain.AvailabilityProvider
	horizonDays  int
	logger       *slog.Logger
}

// NewETAEstimator creates an estimator that searches the given number of
// days ahead.
func NewETAEstimator(travel domain.TravelProvider, availability domain.AvailabilityProvider, horizonDays int, logger *slog.Logger) *ETAEstimator {
	if logger == nil {
		logger = slog.Default()
	}
	return &ETAEstimator{
		travel:       travel,
		availability: availability,
		horizonDays:  horizonDays,
		logger:       logger,
	}
}

// EarliestStart returns the earliest feasible service start for the unit on
// the technician's current schedule, or nil when no day within the horizon
// can take it. A unit longer than the technician's longest working day is
// rejected outright. Days whose availability cannot be loaded are skipped
// with a warning rather than failing the estimate.
func (e *ETAEstimator) EarliestStart(ctx context.Context, tech *domain.Technician, unit *domain.SchedulableUnit) (*time.Time, error) {
	if tech == nil || unit == nil || e.horizonDays <= 0 {
		return nil, nil
	}

	days := make([]*domain.DailyAvailability, e.horizonDays)
	var maxDaily time.Duration
	for day := 1; day <= e.horizonDays; day++ {
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
		days[day-1] = avail
		if avail != nil && avail.TotalDuration > maxDaily {
			maxDaily = avail.TotalDuration
		}
	}
	if unit.Duration > maxDaily {
		return nil, nil
	}

	for day := 1; day <= e.horizonDays; day++ {
		avail := days[day-1]
		if avail == nil || !avail.IsWorkable() {
			continue
		}
		for _, w := range e.dayWindows(tech, day, avail) {
			travelSeconds, ok := e.travel.TravelSeconds(ctx, w.from, unit.Location)
			if !ok {
				continue
			}
			start := w.start.Add(time.Duration(travelSeconds) * time.Second)
			if earliest := unit.EarliestStartTime; earliest != nil && earliest.After(start) {
				start = *earliest
			}
			if !start.Add(unit.Duration).After(w.end) {
				found := start
				return &found, nil
			}
		}
	}
	return nil, nil
}

// dayWindows carves the day's working window around the visits already
// committed to it. A visit that starts before the previous one ended is a
// schedule conflict; it is logged and ignored for window purposes so one bad
// commit cannot wedge every later estimate.
func (e *ETAEstimator) dayWindows(tech *domain.Technician, day int, avail *domain.DailyAvailability) []freeWindow {
	visits := tech.Schedule().Day(day)
	windows := make([]freeWindow, 0, len(visits)+1)

	cursor := avail.StartTime
	from := tech.StartLocationForDay(day)
	for _, visit := range visits {
		if visit.StartTime.Before(cursor) {
			e.logger.Warn("overlapping scheduled units, ignoring later one for gap calculation",
				slog.String("technician_id", tech.ID().String()),
				slog.Int("day", day),
				slog.String("unit_id", visit.Unit.ID))
			continue
		}
		if visit.StartTime.After(cursor) {
			windows = append(windows, freeWindow{start: cursor, end: visit.StartTime, from: from})
		}
		cursor = visit.EndTime
		from = visit.Unit.Location
	}
	if cursor.Before(avail.EndTime) {
		windows = append(windows, freeWindow{start: cursor, end: avail.EndTime, from: from})
	}
	return windows
}
