package domain

import (
	"time"

	"github.com/google/uuid"
)

// DailyAvailability is one technician working day inside the planning
// horizon. TotalDuration is workable time net of deducted breaks and may be
// shorter than the window span.
type DailyAvailability struct {
	DayNumber     int
	StartTime     time.Time
	EndTime       time.Time
	TotalDuration time.Duration
}

// IsWorkable reports whether the day has usable capacity.
func (a DailyAvailability) IsWorkable() bool {
	return a.TotalDuration > 0 && a.EndTime.After(a.StartTime)
}

// Window returns the span between the day's start and end.
func (a DailyAvailability) Window() time.Duration {
	return a.EndTime.Sub(a.StartTime)
}

// Contains reports whether t falls within the day's window.
func (a DailyAvailability) Contains(t time.Time) bool {
	return !t.Before(a.StartTime) && !t.After(a.EndTime)
}

// Unavailability is a hard break with a fixed start and duration. The
// technician performs no service and no travel while it runs.
type Unavailability struct {
	ID           uuid.UUID
	TechnicianID uuid.UUID
	StartTime    time.Time
	Duration     time.Duration
}

// EndTime returns the instant the break ends.
func (u Unavailability) EndTime() time.Time {
	return u.StartTime.Add(u.Duration)
}

// Overlaps reports whether the break intersects the half-open span
// [start, end).
func (u Unavailability) Overlaps(start, end time.Time) bool {
	return u.StartTime.Before(end) && u.EndTime().After(start)
}
