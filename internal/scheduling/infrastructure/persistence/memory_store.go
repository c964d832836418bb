// Package persistence provides the job and technician stores behind the
// planning engine: PostgreSQL for shared deployments, SQLite for zero-config
// local mode, and an in-memory variant for tests. All write operations are
// idempotent so a replayed plan cycle never corrupts state.
package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fieldworks-io/dispatch/internal/scheduling/domain"
	"github.com/google/uuid"
)

type requirementKey struct {
	ymmID     int64
	serviceID int64
}

// MemoryStore is an in-memory domain.Store. It also serves technician breaks,
// so a single instance can back both the planner's persistence and its
// availability source.
type MemoryStore struct {
	mu               sync.RWMutex
	technicians      map[uuid.UUID]*domain.Technician
	technicianOrder  []uuid.UUID
	jobs             map[uuid.UUID]*domain.Job
	jobOrder         []uuid.UUID
	requirements     map[requirementKey][]string
	unavailabilities []domain.Unavailability
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		technicians:  make(map[uuid.UUID]*domain.Technician),
		jobs:         make(map[uuid.UUID]*domain.Job),
		requirements: make(map[requirementKey][]string),
	}
}

// AddTechnician registers a technician.
func (s *MemoryStore) AddTechnician(technician *domain.Technician) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.technicians[technician.ID()]; !ok {
		s.technicianOrder = append(s.technicianOrder, technician.ID())
	}
	s.technicians[technician.ID()] = technician
}

// AddJob registers a job. Reads return jobs in insertion order.
func (s *MemoryStore) AddJob(job *domain.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID()]; !ok {
		s.jobOrder = append(s.jobOrder, job.ID())
	}
	s.jobs[job.ID()] = job
}

// AddEquipmentRequirement maps a vehicle/service pair to equipment models.
func (s *MemoryStore) AddEquipmentRequirement(ymmID, serviceID int64, models ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := requirementKey{ymmID: ymmID, serviceID: serviceID}
	s.requirements[key] = append(s.requirements[key], models...)
}

// AddUnavailability registers a technician break.
func (s *MemoryStore) AddUnavailability(u domain.Unavailability) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unavailabilities = append(s.unavailabilities, u)
}

// Job returns the stored job, or nil when unknown. Test inspection hook.
func (s *MemoryStore) Job(id uuid.UUID) *domain.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jobs[id]
}

// ActiveTechnicians implements domain.Store.
func (s *MemoryStore) ActiveTechnicians(ctx context.Context) ([]*domain.Technician, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	technicians := make([]*domain.Technician, 0, len(s.technicianOrder))
	for _, id := range s.technicianOrder {
		if tech := s.technicians[id]; tech.IsActive() {
			technicians = append(technicians, tech)
		}
	}
	return technicians, nil
}

// PendingJobs implements domain.Store.
func (s *MemoryStore) PendingJobs(ctx context.Context) ([]*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var jobs []*domain.Job
	for _, id := range s.jobOrder {
		job := s.jobs[id]
		if job.Status() == domain.JobStatusPendingReview && !job.FixedAssignment() {
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

// AssignedJobs implements domain.Store.
func (s *MemoryStore) AssignedJobs(ctx context.Context, technicianID uuid.UUID) ([]*domain.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var jobs []*domain.Job
	for _, id := range s.jobOrder {
		job := s.jobs[id]
		if job.Status() != domain.JobStatusAssigned || job.FixedAssignment() {
			continue
		}
		if owner := job.AssignedTechnicianID(); owner != nil && *owner == technicianID {
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

// EquipmentRequirements implements domain.Store.
func (s *MemoryStore) EquipmentRequirements(ctx context.Context, ymmID int64, serviceIDs []int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, serviceID := range serviceIDs {
		for _, model := range s.requirements[requirementKey{ymmID: ymmID, serviceID: serviceID}] {
			seen[model] = struct{}{}
		}
	}

	models := make([]string, 0, len(seen))
	for model := range seen {
		models = append(models, model)
	}
	sort.Strings(models)
	return models, nil
}

// UpdateJobAssignment implements domain.Store.
func (s *MemoryStore) UpdateJobAssignment(ctx context.Context, jobID uuid.UUID, technicianID *uuid.UUID, status domain.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutateJob(jobID, func(rec *jobRecord) {
		rec.technicianID = technicianID
		rec.status = status
	})
}

// UpdateJobETAs implements domain.Store.
func (s *MemoryStore) UpdateJobETAs(ctx context.Context, updates map[uuid.UUID]domain.ETAUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for jobID, update := range updates {
		err := s.mutateJob(jobID, func(rec *jobRecord) {
			rec.estimatedSched = update.EstimatedSched
			rec.estimatedSchedEnd = update.EstimatedSchedEnd
			rec.customerETAStart = update.CustomerETAStart
			rec.customerETAEnd = update.CustomerETAEnd
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// UpdateJobFixedSchedule implements domain.Store.
func (s *MemoryStore) UpdateJobFixedSchedule(ctx context.Context, jobID uuid.UUID, fixedTime *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutateJob(jobID, func(rec *jobRecord) {
		rec.fixedScheduleTime = fixedTime
	})
}

// UnavailabilitiesFor implements availability.UnavailabilitySource.
func (s *MemoryStore) UnavailabilitiesFor(ctx context.Context, technicianID uuid.UUID, from, to time.Time) ([]domain.Unavailability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var breaks []domain.Unavailability
	for _, u := range s.unavailabilities {
		if u.TechnicianID == technicianID && u.Overlaps(from, to) {
			breaks = append(breaks, u)
		}
	}
	sort.Slice(breaks, func(i, j int) bool {
		return breaks[i].StartTime.Before(breaks[j].StartTime)
	})
	return breaks, nil
}

// jobRecord mirrors the mutable columns a job update may touch.
type jobRecord struct {
	status            domain.JobStatus
	technicianID      *uuid.UUID
	fixedScheduleTime *time.Time
	estimatedSched    *time.Time
	estimatedSchedEnd *time.Time
	customerETAStart  *time.Time
	customerETAEnd    *time.Time
}

// mutateJob rebuilds the stored job with the record changes applied, the same
// blind column write the SQL stores perform. Caller holds the write lock.
func (s *MemoryStore) mutateJob(jobID uuid.UUID, mutate func(rec *jobRecord)) error {
	job, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}

	rec := jobRecord{
		status:            job.Status(),
		technicianID:      job.AssignedTechnicianID(),
		fixedScheduleTime: job.FixedScheduleTime(),
		estimatedSched:    job.EstimatedSched(),
		estimatedSchedEnd: job.EstimatedSchedEnd(),
		customerETAStart:  job.CustomerETAStart(),
		customerETAEnd:    job.CustomerETAEnd(),
	}
	mutate(&rec)

	s.jobs[jobID] = domain.RehydrateJob(
		job.ID(),
		job.OrderID(),
		job.Location(),
		job.YMMID(),
		job.ServiceIDs(),
		job.Priority(),
		job.Duration(),
		job.RequiredEquipment(),
		rec.status,
		rec.technicianID,
		job.FixedAssignment(),
		rec.fixedScheduleTime,
		job.EarliestStartTime(),
		rec.estimatedSched,
		rec.estimatedSchedEnd,
		rec.customerETAStart,
		rec.customerETAEnd,
		job.CreatedAt(),
		time.Now().UTC(),
	)
	return nil
}
