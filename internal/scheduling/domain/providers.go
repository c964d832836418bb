package domain

import "context"

// TravelProvider returns travel time in seconds between two addresses. The
// boolean is false when no route exists; callers must treat that as
// infeasible, never as zero. Symmetry is not guaranteed.
type TravelProvider interface {
	TravelSeconds(ctx context.Context, from, to Address) (int64, bool)
}

// AvailabilityProvider yields working windows and hard breaks per technician
// day. A nil availability means the technician does not work that day.
type AvailabilityProvider interface {
	Availability(ctx context.Context, tech *Technician, dayNumber int) (*DailyAvailability, error)
	Unavailabilities(ctx context.Context, tech *Technician, dayNumber int) ([]Unavailability, error)
}
