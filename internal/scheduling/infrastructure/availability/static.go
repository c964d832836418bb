package availability

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fieldworks-io/dispatch/internal/scheduling/domain"
)

// StaticSource is an in-memory UnavailabilitySource for tests and seeded
// environments.
type StaticSource struct {
	breaks map[uuid.UUID][]domain.Unavailability
}

// NewStaticSource creates an empty source.
func NewStaticSource() *StaticSource {
	return &StaticSource{breaks: make(map[uuid.UUID][]domain.Unavailability)}
}

// Add records a break for a technician.
func (s *StaticSource) Add(technicianID uuid.UUID, start time.Time, duration time.Duration) {
	s.breaks[technicianID] = append(s.breaks[technicianID], domain.Unavailability{
		ID:           uuid.New(),
		TechnicianID: technicianID,
		StartTime:    start,
		Duration:     duration,
	})
}

// UnavailabilitiesFor implements UnavailabilitySource.
func (s *StaticSource) UnavailabilitiesFor(_ context.Context, technicianID uuid.UUID, from, to time.Time) ([]domain.Unavailability, error) {
	var out []domain.Unavailability
	for _, b := range s.breaks[technicianID] {
		if b.Overlaps(from, to) {
			out = append(out, b)
		}
	}
	return out, nil
}
