package domain

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

var ErrEmptyUnit = errors.New("unit must contain at least one job")

// SchedulableUnit is the indivisible scheduling atom: one or more jobs from
// the same order, served back to back at a single location by one technician.
type SchedulableUnit struct {
	ID                   string
	OrderID              uuid.UUID
	Jobs                 []*Job
	Location             Address
	Priority             int
	Duration             time.Duration
	RequiredEquipment    []string
	FixedAssignment      bool
	FixedScheduleTime    *time.Time
	EarliestStartTime    *time.Time
	AssignedTechnicianID *uuid.UUID
}

// BuildUnit derives the scheduling atom for one order's jobs. Aggregation
// tolerates inconsistent input and reports what it papered over as warnings:
// mismatched locations fall back to the first job's, distinct fixed times
// collapse to the earliest, and disagreeing assignments are dropped.
func BuildUnit(orderID uuid.UUID, jobs []*Job) (*SchedulableUnit, []string, error) {
	if len(jobs) == 0 {
		return nil, nil, ErrEmptyUnit
	}

	var warnings []string

	unit := &SchedulableUnit{
		ID:       "unit-" + orderID.String(),
		OrderID:  orderID,
		Jobs:     jobs,
		Location: jobs[0].Location(),
		Priority: jobs[0].Priority(),
	}

	equipment := make(map[string]struct{})
	fixedTimes := make(map[time.Time]struct{})
	assignments := make(map[uuid.UUID]struct{})

	for _, job := range jobs {
		if !job.Location().Equals(unit.Location) {
			warnings = append(warnings, fmt.Sprintf("job %s is at a different location than order %s; using the first job's", job.ID(), orderID))
		}
		if job.Priority() < unit.Priority {
			unit.Priority = job.Priority()
		}
		unit.Duration += job.Duration()
		for _, model := range job.RequiredEquipment() {
			equipment[model] = struct{}{}
		}
		if job.FixedAssignment() {
			unit.FixedAssignment = true
		}

		if fixed := job.FixedScheduleTime(); fixed != nil {
			fixedTimes[fixed.UTC()] = struct{}{}
			if unit.FixedScheduleTime == nil || fixed.Before(*unit.FixedScheduleTime) {
				t := fixed.UTC()
				unit.FixedScheduleTime = &t
			}
		}

		if earliest := job.EarliestStartTime(); earliest != nil {
			if unit.EarliestStartTime == nil || earliest.After(*unit.EarliestStartTime) {
				t := earliest.UTC()
				unit.EarliestStartTime = &t
			}
		}

		if techID := job.AssignedTechnicianID(); techID != nil {
			assignments[*techID] = struct{}{}
		}
	}

	unit.RequiredEquipment = make([]string, 0, len(equipment))
	for model := range equipment {
		unit.RequiredEquipment = append(unit.RequiredEquipment, model)
	}
	sort.Strings(unit.RequiredEquipment)

	if len(fixedTimes) > 1 {
		warnings = append(warnings, fmt.Sprintf("order %s carries %d distinct fixed times; keeping the earliest", orderID, len(fixedTimes)))
	}

	switch len(assignments) {
	case 0:
	case 1:
		for techID := range assignments {
			id := techID
			unit.AssignedTechnicianID = &id
		}
	default:
		warnings = append(warnings, fmt.Sprintf("order %s spans jobs assigned to %d different technicians; leaving the unit unassigned", orderID, len(assignments)))
	}

	return unit, warnings, nil
}

// JobIDs returns the unit's job identifiers in execution order.
func (u *SchedulableUnit) JobIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(u.Jobs))
	for i, job := range u.Jobs {
		ids[i] = job.ID()
	}
	return ids
}

// IsFixedTime reports whether the unit's start is pinned to an instant.
func (u *SchedulableUnit) IsFixedTime() bool {
	return u.FixedScheduleTime != nil
}
