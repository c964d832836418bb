package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ETAUpdate carries the schedule times written back to one job after a
// planning cycle. Nil fields clear the stored value.
type ETAUpdate struct {
	EstimatedSched    *time.Time
	EstimatedSchedEnd *time.Time
	CustomerETAStart  *time.Time
	CustomerETAEnd    *time.Time
}

// Store is the narrow persistence surface the engine plans against. Every
// update is idempotent: replaying a cycle's writes must be safe.
type Store interface {
	// ActiveTechnicians returns every technician eligible for planning,
	// equipment loadout included.
	ActiveTechnicians(ctx context.Context) ([]*Technician, error)

	// PendingJobs returns schedulable jobs awaiting assignment.
	PendingJobs(ctx context.Context) ([]*Job, error)

	// AssignedJobs returns the movable jobs currently owned by a technician.
	AssignedJobs(ctx context.Context, technicianID uuid.UUID) ([]*Job, error)

	// EquipmentRequirements resolves the equipment models a vehicle and
	// service combination demands.
	EquipmentRequirements(ctx context.Context, ymmID int64, serviceIDs []int64) ([]string, error)

	// UpdateJobAssignment writes a job's owner and status. A nil technician
	// clears the assignment.
	UpdateJobAssignment(ctx context.Context, jobID uuid.UUID, technicianID *uuid.UUID, status JobStatus) error

	// UpdateJobETAs writes schedule times for many jobs at once.
	UpdateJobETAs(ctx context.Context, updates map[uuid.UUID]ETAUpdate) error

	// UpdateJobFixedSchedule pins or clears a job's fixed start time.
	UpdateJobFixedSchedule(ctx context.Context, jobID uuid.UUID, fixedTime *time.Time) error
}
