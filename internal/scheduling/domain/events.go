package domain

import (
	"time"

	sharedDomain "github.com/fieldworks-io/dispatch/internal/shared/domain"
	"github.com/google/uuid"
)

const (
	JobAggregateType = "Job"

	RoutingKeyJobAssigned      = "dispatch.job.assigned"
	RoutingKeyJobETAsUpdated   = "dispatch.job.etas_updated"
	RoutingKeyJobScheduleFixed = "dispatch.job.schedule_fixed"
)

// JobAssigned is emitted when the planner hands a job to a technician.
type JobAssigned struct {
	sharedDomain.BaseEvent
	JobID        uuid.UUID `json:"job_id"`
	OrderID      uuid.UUID `json:"order_id"`
	TechnicianID uuid.UUID `json:"technician_id"`
	Status       string    `json:"status"`
}

// NewJobAssigned creates a JobAssigned event.
func NewJobAssigned(job *Job, technicianID uuid.UUID) JobAssigned {
	return JobAssigned{
		BaseEvent:    sharedDomain.NewBaseEvent(job.ID(), JobAggregateType, RoutingKeyJobAssigned),
		JobID:        job.ID(),
		OrderID:      job.OrderID(),
		TechnicianID: technicianID,
		Status:       string(JobStatusAssigned),
	}
}

// JobETAsUpdated is emitted when the route engine back-propagates times.
type JobETAsUpdated struct {
	sharedDomain.BaseEvent
	JobID             uuid.UUID  `json:"job_id"`
	TechnicianID      *uuid.UUID `json:"technician_id,omitempty"`
	EstimatedSched    *time.Time `json:"estimated_sched,omitempty"`
	EstimatedSchedEnd *time.Time `json:"estimated_sched_end,omitempty"`
	CustomerETAStart  *time.Time `json:"customer_eta_start,omitempty"`
	CustomerETAEnd    *time.Time `json:"customer_eta_end,omitempty"`
}

// NewJobETAsUpdated creates a JobETAsUpdated event from the job's current
// schedule fields.
func NewJobETAsUpdated(job *Job) JobETAsUpdated {
	return JobETAsUpdated{
		BaseEvent:         sharedDomain.NewBaseEvent(job.ID(), JobAggregateType, RoutingKeyJobETAsUpdated),
		JobID:             job.ID(),
		TechnicianID:      job.AssignedTechnicianID(),
		EstimatedSched:    job.EstimatedSched(),
		EstimatedSchedEnd: job.EstimatedSchedEnd(),
		CustomerETAStart:  job.CustomerETAStart(),
		CustomerETAEnd:    job.CustomerETAEnd(),
	}
}

// JobScheduleFixed is emitted when a job's start time is pinned or cleared.
type JobScheduleFixed struct {
	sharedDomain.BaseEvent
	JobID     uuid.UUID  `json:"job_id"`
	FixedTime *time.Time `json:"fixed_time,omitempty"`
}

// NewJobScheduleFixed creates a JobScheduleFixed event.
func NewJobScheduleFixed(job *Job) JobScheduleFixed {
	return JobScheduleFixed{
		BaseEvent: sharedDomain.NewBaseEvent(job.ID(), JobAggregateType, RoutingKeyJobScheduleFixed),
		JobID:     job.ID(),
		FixedTime: job.FixedScheduleTime(),
	}
}
