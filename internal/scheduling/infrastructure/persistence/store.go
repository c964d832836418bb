package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fieldworks-io/dispatch/internal/scheduling/domain"
)

// Store is the full surface of a dispatch database: the planning reads and
// writes from domain.Store, the break lookups the availability provider
// needs, and the write helpers seeding and intake tooling use.
type Store interface {
	domain.Store

	// UnavailabilitiesFor returns stored breaks overlapping [from, to).
	UnavailabilitiesFor(ctx context.Context, technicianID uuid.UUID, from, to time.Time) ([]domain.Unavailability, error)

	SaveAddress(ctx context.Context, address domain.Address) error
	SaveTechnician(ctx context.Context, technician *domain.Technician) error
	SaveJob(ctx context.Context, job *domain.Job) error
	SaveUnavailability(ctx context.Context, u domain.Unavailability) error
	SaveEquipmentRequirement(ctx context.Context, ymmID, serviceID int64, models ...string) error
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
