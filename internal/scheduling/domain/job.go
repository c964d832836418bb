package domain

import (
	"errors"
	"sort"
	"time"

	sharedDomain "github.com/fieldworks-io/dispatch/internal/shared/domain"
	"github.com/google/uuid"
)

var (
	ErrMissingLocation = errors.New("job requires a location")
	ErrInvalidDuration = errors.New("job duration must not be negative")
	ErrInvalidPriority = errors.New("job priority must be at least 1")
	ErrJobImmutable    = errors.New("job is no longer movable by the planner")
)

// JobStatus tracks a job through the dispatch lifecycle. The planner only
// touches jobs up to and including the assigned stage; everything beyond is
// field progress and immutable to planning.
type JobStatus string

const (
	JobStatusPendingReview JobStatus = "pending_review"
	JobStatusAssigned      JobStatus = "assigned"
	JobStatusEnRoute       JobStatus = "en_route"
	JobStatusInProgress    JobStatus = "in_progress"
	JobStatusCompleted     JobStatus = "completed"
	JobStatusCancelled     JobStatus = "cancelled"
)

// Job is a single service visit at a customer location. Jobs sharing an order
// are scheduled back to back as one unit whenever a single technician can
// cover them.
type Job struct {
	sharedDomain.BaseAggregateRoot
	orderID              uuid.UUID
	location             Address
	ymmID                int64
	serviceIDs           []int64
	priority             int
	duration             time.Duration
	requiredEquipment    map[string]struct{}
	fixedAssignment      bool
	fixedScheduleTime    *time.Time
	earliestStartTime    *time.Time
	status               JobStatus
	assignedTechnicianID *uuid.UUID
	estimatedSched       *time.Time
	estimatedSchedEnd    *time.Time
	customerETAStart     *time.Time
	customerETAEnd       *time.Time
}

// NewJob creates a pending job. Lower priority numbers are more urgent.
func NewJob(orderID uuid.UUID, location Address, priority int, duration time.Duration) (*Job, error) {
	if location.IsZero() {
		return nil, ErrMissingLocation
	}
	if duration < 0 {
		return nil, ErrInvalidDuration
	}
	if priority < 1 {
		return nil, ErrInvalidPriority
	}

	return &Job{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		orderID:           orderID,
		location:          location,
		priority:          priority,
		duration:          duration,
		requiredEquipment: make(map[string]struct{}),
		status:            JobStatusPendingReview,
	}, nil
}

// Getters
func (j *Job) OrderID() uuid.UUID               { return j.orderID }
func (j *Job) Location() Address                { return j.location }
func (j *Job) YMMID() int64                     { return j.ymmID }
func (j *Job) Priority() int                    { return j.priority }
func (j *Job) Duration() time.Duration          { return j.duration }
func (j *Job) FixedAssignment() bool            { return j.fixedAssignment }
func (j *Job) FixedScheduleTime() *time.Time    { return j.fixedScheduleTime }
func (j *Job) EarliestStartTime() *time.Time    { return j.earliestStartTime }
func (j *Job) Status() JobStatus                { return j.status }
func (j *Job) AssignedTechnicianID() *uuid.UUID { return j.assignedTechnicianID }
func (j *Job) EstimatedSched() *time.Time       { return j.estimatedSched }
func (j *Job) EstimatedSchedEnd() *time.Time    { return j.estimatedSchedEnd }
func (j *Job) CustomerETAStart() *time.Time     { return j.customerETAStart }
func (j *Job) CustomerETAEnd() *time.Time       { return j.customerETAEnd }

// ServiceIDs returns the services booked on this job.
func (j *Job) ServiceIDs() []int64 {
	ids := make([]int64, len(j.serviceIDs))
	copy(ids, j.serviceIDs)
	return ids
}

// RequiredEquipment returns the equipment models this job demands, sorted.
func (j *Job) RequiredEquipment() []string {
	models := make([]string, 0, len(j.requiredEquipment))
	for model := range j.requiredEquipment {
		models = append(models, model)
	}
	sort.Strings(models)
	return models
}

// SetVehicleServices records the vehicle and booked services used to resolve
// equipment requirements.
func (j *Job) SetVehicleServices(ymmID int64, serviceIDs []int64) {
	j.ymmID = ymmID
	j.serviceIDs = make([]int64, len(serviceIDs))
	copy(j.serviceIDs, serviceIDs)
	j.Touch()
}

// RequireEquipment adds equipment models to the job's requirement set.
func (j *Job) RequireEquipment(models ...string) {
	for _, model := range models {
		if model == "" {
			continue
		}
		j.requiredEquipment[model] = struct{}{}
	}
	j.Touch()
}

// SetFixedScheduleTime pins the job's start to an exact instant.
func (j *Job) SetFixedScheduleTime(t time.Time) {
	fixed := t.UTC()
	j.fixedScheduleTime = &fixed
	j.Touch()
	j.AddDomainEvent(NewJobScheduleFixed(j))
}

// ClearFixedScheduleTime removes the pinned start.
func (j *Job) ClearFixedScheduleTime() {
	j.fixedScheduleTime = nil
	j.Touch()
	j.AddDomainEvent(NewJobScheduleFixed(j))
}

// SetEarliestStartTime records the soft lower bound on the job's start.
func (j *Job) SetEarliestStartTime(t time.Time) {
	earliest := t.UTC()
	j.earliestStartTime = &earliest
	j.Touch()
}

// MarkFixedAssignment freezes the job: the planner must leave its technician
// and times untouched.
func (j *Job) MarkFixedAssignment() {
	j.fixedAssignment = true
	j.Touch()
}

// IsSchedulable reports whether the planner may still move this job.
func (j *Job) IsSchedulable() bool {
	if j.fixedAssignment {
		return false
	}
	return j.status == JobStatusPendingReview || j.status == JobStatusAssigned
}

// Assign hands the job to a technician and advances it to assigned.
func (j *Job) Assign(technicianID uuid.UUID) error {
	if !j.IsSchedulable() {
		return ErrJobImmutable
	}

	j.assignedTechnicianID = &technicianID
	j.status = JobStatusAssigned
	j.Touch()

	j.AddDomainEvent(NewJobAssigned(j, technicianID))

	return nil
}

// Unassign returns the job to the review queue.
func (j *Job) Unassign() error {
	if !j.IsSchedulable() {
		return ErrJobImmutable
	}

	j.assignedTechnicianID = nil
	j.status = JobStatusPendingReview
	j.Touch()
	return nil
}

// SetETAs writes the back-propagated schedule times. Nil values clear the
// corresponding field.
func (j *Job) SetETAs(sched, schedEnd, customerStart, customerEnd *time.Time) {
	j.estimatedSched = sched
	j.estimatedSchedEnd = schedEnd
	j.customerETAStart = customerStart
	j.customerETAEnd = customerEnd
	j.Touch()

	j.AddDomainEvent(NewJobETAsUpdated(j))
}

// RehydrateJob recreates a job from persisted state.
func RehydrateJob(
	id uuid.UUID,
	orderID uuid.UUID,
	location Address,
	ymmID int64,
	serviceIDs []int64,
	priority int,
	duration time.Duration,
	requiredEquipment []string,
	status JobStatus,
	assignedTechnicianID *uuid.UUID,
	fixedAssignment bool,
	fixedScheduleTime *time.Time,
	earliestStartTime *time.Time,
	estimatedSched *time.Time,
	estimatedSchedEnd *time.Time,
	customerETAStart *time.Time,
	customerETAEnd *time.Time,
	createdAt, updatedAt time.Time,
) *Job {
	equipment := make(map[string]struct{}, len(requiredEquipment))
	for _, model := range requiredEquipment {
		equipment[model] = struct{}{}
	}

	services := make([]int64, len(serviceIDs))
	copy(services, serviceIDs)

	baseEntity := sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt)

	return &Job{
		BaseAggregateRoot:    sharedDomain.RehydrateBaseAggregateRoot(baseEntity, 0),
		orderID:              orderID,
		location:             location,
		ymmID:                ymmID,
		serviceIDs:           services,
		priority:             priority,
		duration:             duration,
		requiredEquipment:    equipment,
		fixedAssignment:      fixedAssignment,
		fixedScheduleTime:    fixedScheduleTime,
		earliestStartTime:    earliestStartTime,
		status:               status,
		assignedTechnicianID: assignedTechnicianID,
		estimatedSched:       estimatedSched,
		estimatedSchedEnd:    estimatedSchedEnd,
		customerETAStart:     customerETAStart,
		customerETAEnd:       customerETAEnd,
	}
}
