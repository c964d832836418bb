package domain

import (
	"sort"
	"time"
)

// ScheduledUnit is a unit committed to a day together with its solved times.
// ArrivalTime may precede StartTime when the technician waits out a fixed
// start or an earliest-start bound.
type ScheduledUnit struct {
	Unit        *SchedulableUnit
	ArrivalTime time.Time
	StartTime   time.Time
	EndTime     time.Time
}

// Schedule is a technician's multi-day plan: day number to the ordered
// visits committed for that day.
type Schedule struct {
	days map[int][]ScheduledUnit
}

// NewSchedule creates an empty schedule.
func NewSchedule() *Schedule {
	return &Schedule{days: make(map[int][]ScheduledUnit)}
}

// Commit adds visits to a day, keeping the day ordered by start time.
func (s *Schedule) Commit(dayNumber int, visits ...ScheduledUnit) {
	if len(visits) == 0 {
		return
	}
	s.days[dayNumber] = append(s.days[dayNumber], visits...)
	day := s.days[dayNumber]
	sort.Slice(day, func(i, j int) bool {
		return day[i].StartTime.Before(day[j].StartTime)
	})
}

// Day returns the visits committed for a day in start-time order.
func (s *Schedule) Day(dayNumber int) []ScheduledUnit {
	visits := s.days[dayNumber]
	out := make([]ScheduledUnit, len(visits))
	copy(out, visits)
	return out
}

// Days returns the day numbers holding at least one visit, ascending.
func (s *Schedule) Days() []int {
	days := make([]int, 0, len(s.days))
	for day, visits := range s.days {
		if len(visits) > 0 {
			days = append(days, day)
		}
	}
	sort.Ints(days)
	return days
}

// UnitCount returns the total number of committed visits.
func (s *Schedule) UnitCount() int {
	count := 0
	for _, visits := range s.days {
		count += len(visits)
	}
	return count
}

// ScheduledDurationOn returns the sum of unit durations committed for a day.
func (s *Schedule) ScheduledDurationOn(dayNumber int) time.Duration {
	total := time.Duration(0)
	for _, visit := range s.days[dayNumber] {
		total += visit.Unit.Duration
	}
	return total
}

// HasOverlaps reports whether any two visits on a day intersect.
func (s *Schedule) HasOverlaps(dayNumber int) bool {
	visits := s.days[dayNumber]
	for i := 1; i < len(visits); i++ {
		if visits[i].StartTime.Before(visits[i-1].EndTime) {
			return true
		}
	}
	return false
}

// Clear wipes the whole plan. Called at the start of a planning cycle.
func (s *Schedule) Clear() {
	s.days = make(map[int][]ScheduledUnit)
}
