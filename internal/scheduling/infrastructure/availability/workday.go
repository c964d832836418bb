// Package availability derives per-day technician working windows for the
// planning horizon and surfaces stored unavailabilities as hard breaks.
package availability

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/fieldworks-io/dispatch/internal/scheduling/domain"
)

// UnavailabilitySource fetches stored breaks for a technician inside a time
// span. The persistence layer implements it.
type UnavailabilitySource interface {
	UnavailabilitiesFor(ctx context.Context, technicianID uuid.UUID, from, to time.Time) ([]domain.Unavailability, error)
}

// WorkdayProvider projects each technician's configured workday hours onto
// calendar days counted from an anchor date. Day 1 is the anchor itself.
type WorkdayProvider struct {
	anchor time.Time
	source UnavailabilitySource
}

// NewWorkdayProvider creates a provider anchored at the given date. The
// anchor is truncated to midnight UTC; source may be nil when no breaks are
// tracked.
func NewWorkdayProvider(anchor time.Time, source UnavailabilitySource) *WorkdayProvider {
	anchor = anchor.UTC()
	anchor = time.Date(anchor.Year(), anchor.Month(), anchor.Day(), 0, 0, 0, 0, time.UTC)
	return &WorkdayProvider{anchor: anchor, source: source}
}

func (p *WorkdayProvider) dayWindow(tech *domain.Technician, dayNumber int) (time.Time, time.Time) {
	date := p.anchor.AddDate(0, 0, dayNumber-1)
	start := date.Add(time.Duration(tech.WorkdayStartHour()) * time.Hour)
	end := date.Add(time.Duration(tech.WorkdayEndHour()) * time.Hour)
	return start, end
}

// Availability implements domain.AvailabilityProvider. The returned total
// duration is the window span net of break overlap; a day whose breaks
// swallow the whole window is still returned and reports as not workable.
func (p *WorkdayProvider) Availability(ctx context.Context, tech *domain.Technician, dayNumber int) (*domain.DailyAvailability, error) {
	start, end := p.dayWindow(tech, dayNumber)
	if !end.After(start) {
		return nil, nil
	}

	total := end.Sub(start)
	breaks, err := p.Unavailabilities(ctx, tech, dayNumber)
	if err != nil {
		return nil, err
	}
	for _, b := range breaks {
		total -= overlapDuration(start, end, b)
	}
	if total < 0 {
		total = 0
	}

	return &domain.DailyAvailability{
		DayNumber:     dayNumber,
		StartTime:     start,
		EndTime:       end,
		TotalDuration: total,
	}, nil
}

// Unavailabilities implements domain.AvailabilityProvider. Only breaks that
// overlap the day's working window are returned, sorted by start.
func (p *WorkdayProvider) Unavailabilities(ctx context.Context, tech *domain.Technician, dayNumber int) ([]domain.Unavailability, error) {
	if p.source == nil {
		return nil, nil
	}
	start, end := p.dayWindow(tech, dayNumber)
	breaks, err := p.source.UnavailabilitiesFor(ctx, tech.ID(), start, end)
	if err != nil {
		return nil, err
	}

	overlapping := breaks[:0]
	for _, b := range breaks {
		if b.Overlaps(start, end) {
			overlapping = append(overlapping, b)
		}
	}
	sort.Slice(overlapping, func(i, j int) bool {
		return overlapping[i].StartTime.Before(overlapping[j].StartTime)
	})
	return overlapping, nil
}

func overlapDuration(start, end time.Time, b domain.Unavailability) time.Duration {
	s := b.StartTime
	if s.Before(start) {
		s = start
	}
	e := b.EndTime()
	if e.After(end) {
		e = end
	}
	if !e.After(s) {
		return 0
	}
	return e.Sub(s)
}
