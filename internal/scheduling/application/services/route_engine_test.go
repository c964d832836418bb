package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldworks-io/dispatch/internal/optimizer"
	"github.com/fieldworks-io/dispatch/internal/scheduling/domain"
	"github.com/fieldworks-io/dispatch/internal/scheduling/infrastructure/persistence"
	"github.com/fieldworks-io/dispatch/internal/scheduling/infrastructure/travel"
	"github.com/fieldworks-io/dispatch/internal/solver/vrp"
)

type failingOptimizer struct{ err error }

func (f *failingOptimizer) OptimizeDay(context.Context, *vrp.Request) (*vrp.Response, error) {
	return nil, f.err
}

func newRouteEngine(store *persistence.MemoryStore, m *travel.Matrix, opt optimizer.Optimizer, horizonDays int) *RouteEngine {
	return NewRouteEngine(store, NewUnitBuilder(testLogger()), m, workdays(store), opt, horizonDays, nil, testLogger())
}

func heuristicSolver() *optimizer.Heuristic {
	return optimizer.NewHeuristic(vrp.Options{}, testLogger())
}

// assignedJob creates a job already owned by the technician and registers it.
func assignedJob(t *testing.T, store *persistence.MemoryStore, tech *domain.Technician, loc domain.Address, priority int, duration time.Duration) *domain.Job {
	t.Helper()
	job := newJob(t, uuid.New(), loc, priority, duration)
	require.NoError(t, job.Assign(tech.ID()))
	store.AddJob(job)
	return job
}

func TestPlanTechnicianRoutesSingleDay(t *testing.T) {
	store := persistence.NewMemoryStore()
	tech := newTech(t, "router")
	store.AddTechnician(tech)

	locA := domain.NewAddress(33.45, -112.07)
	locB := domain.NewAddress(33.50, -112.10)
	assignedJob(t, store, tech, locA, 2, 2*time.Hour)
	assignedJob(t, store, tech, locB, 2, 2*time.Hour)

	m := travel.NewMatrix(nil)
	linkAll(m, 600, tech.HomeLocation(), locA, locB)

	plan, err := newRouteEngine(store, m, heuristicSolver(), 7).PlanTechnician(context.Background(), tech)

	require.NoError(t, err)
	assert.Equal(t, 1, plan.DaysPlanned)
	assert.Equal(t, 2, plan.UnitsPlanned)
	assert.Empty(t, plan.Unscheduled)

	visits := tech.Schedule().Day(1)
	require.Len(t, visits, 2)
	assert.False(t, tech.Schedule().HasOverlaps(1))
	assert.False(t, visits[0].StartTime.Before(dayAt(1, 8, 10)))
	assert.False(t, visits[1].EndTime.After(dayAt(1, 17, 0)))
}

func TestPlanTechnicianSpillsToNextDay(t *testing.T) {
	store := persistence.NewMemoryStore()
	tech := newTech(t, "router")
	store.AddTechnician(tech)

	locA := domain.NewAddress(33.45, -112.07)
	locB := domain.NewAddress(33.50, -112.10)
	locC := domain.NewAddress(33.55, -112.02)
	assignedJob(t, store, tech, locA, 2, 4*time.Hour)
	assignedJob(t, store, tech, locB, 2, 4*time.Hour)
	assignedJob(t, store, tech, locC, 2, 4*time.Hour)

	m := travel.NewMatrix(nil)
	linkAll(m, 300, tech.HomeLocation(), locA, locB, locC)

	plan, err := newRouteEngine(store, m, heuristicSolver(), 7).PlanTechnician(context.Background(), tech)

	require.NoError(t, err)
	assert.Equal(t, 2, plan.DaysPlanned)
	assert.Equal(t, 3, plan.UnitsPlanned)
	assert.Empty(t, plan.Unscheduled)
	assert.Len(t, tech.Schedule().Day(1), 2)
	assert.Len(t, tech.Schedule().Day(2), 1)
}

func TestPlanTechnicianPinsFixedUnit(t *testing.T) {
	store := persistence.NewMemoryStore()
	tech := newTech(t, "router")
	store.AddTechnician(tech)

	locF := domain.NewAddress(33.45, -112.07)
	locD := domain.NewAddress(33.50, -112.10)
	fixed := assignedJob(t, store, tech, locF, 2, 2*time.Hour)
	fixed.SetFixedScheduleTime(dayAt(1, 10, 0))
	assignedJob(t, store, tech, locD, 2, 2*time.Hour)

	m := travel.NewMatrix(nil)
	linkAll(m, 300, tech.HomeLocation(), locF, locD)

	plan, err := newRouteEngine(store, m, heuristicSolver(), 7).PlanTechnician(context.Background(), tech)

	require.NoError(t, err)
	assert.Empty(t, plan.Unscheduled)

	visits := tech.Schedule().Day(1)
	require.Len(t, visits, 2)
	assert.True(t, visits[0].StartTime.Equal(dayAt(1, 10, 0)), "fixed visit got %s", visits[0].StartTime)
	assert.Equal(t, "unit-"+fixed.OrderID().String(), visits[0].Unit.ID)
	assert.True(t, visits[1].StartTime.Equal(dayAt(1, 12, 5)), "dynamic visit got %s", visits[1].StartTime)
}

func TestPlanTechnicianRejectsFixedOutsideWindow(t *testing.T) {
	store := persistence.NewMemoryStore()
	tech := newTech(t, "router")
	store.AddTechnician(tech)

	locF := domain.NewAddress(33.45, -112.07)
	locD := domain.NewAddress(33.50, -112.10)
	fixed := assignedJob(t, store, tech, locF, 2, time.Hour)
	fixed.SetFixedScheduleTime(dayAt(1, 6, 0))
	assignedJob(t, store, tech, locD, 2, 2*time.Hour)

	m := travel.NewMatrix(nil)
	linkAll(m, 300, tech.HomeLocation(), locF, locD)

	plan, err := newRouteEngine(store, m, heuristicSolver(), 7).PlanTechnician(context.Background(), tech)

	require.NoError(t, err)
	require.Len(t, plan.Unscheduled, 1)
	assert.Equal(t, "unit-"+fixed.OrderID().String(), plan.Unscheduled[0].ID)

	visits := tech.Schedule().Day(1)
	require.Len(t, visits, 1)
	assert.True(t, visits[0].StartTime.Equal(dayAt(1, 8, 5)))
}

func TestPlanTechnicianFallsBackToFixedOnlyOnSolverError(t *testing.T) {
	store := persistence.NewMemoryStore()
	tech := newTech(t, "router")
	store.AddTechnician(tech)

	locF := domain.NewAddress(33.45, -112.07)
	locD := domain.NewAddress(33.50, -112.10)
	fixed := assignedJob(t, store, tech, locF, 2, 2*time.Hour)
	fixed.SetFixedScheduleTime(dayAt(1, 10, 0))
	dynamic := assignedJob(t, store, tech, locD, 2, 2*time.Hour)

	m := travel.NewMatrix(nil)
	linkAll(m, 300, tech.HomeLocation(), locF, locD)

	solver := &failingOptimizer{err: errors.New("solver unreachable")}
	plan, err := newRouteEngine(store, m, solver, 3).PlanTechnician(context.Background(), tech)

	require.NoError(t, err)
	assert.Equal(t, 1, plan.DaysPlanned)
	assert.Equal(t, 1, plan.UnitsPlanned)

	visits := tech.Schedule().Day(1)
	require.Len(t, visits, 1)
	assert.True(t, visits[0].StartTime.Equal(dayAt(1, 10, 0)))

	require.Len(t, plan.Unscheduled, 1)
	assert.Equal(t, "unit-"+dynamic.OrderID().String(), plan.Unscheduled[0].ID)
}

func TestPlanTechnicianRoutesAroundBreak(t *testing.T) {
	store := persistence.NewMemoryStore()
	tech := newTech(t, "router")
	store.AddTechnician(tech)
	store.AddUnavailability(domain.Unavailability{
		ID:           uuid.New(),
		TechnicianID: tech.ID(),
		StartTime:    dayAt(1, 12, 0),
		Duration:     time.Hour,
	})

	locA := domain.NewAddress(33.45, -112.07)
	locB := domain.NewAddress(33.50, -112.10)
	assignedJob(t, store, tech, locA, 2, 3*time.Hour)
	assignedJob(t, store, tech, locB, 2, 3*time.Hour)

	m := travel.NewMatrix(nil)
	linkAll(m, 300, tech.HomeLocation(), locA, locB)

	plan, err := newRouteEngine(store, m, heuristicSolver(), 7).PlanTechnician(context.Background(), tech)

	require.NoError(t, err)
	assert.Empty(t, plan.Unscheduled)

	visits := tech.Schedule().Day(1)
	require.Len(t, visits, 2)
	assert.True(t, visits[0].StartTime.Equal(dayAt(1, 8, 5)), "got %s", visits[0].StartTime)
	assert.True(t, visits[1].StartTime.Equal(dayAt(1, 13, 0)), "second visit must wait out the break, got %s", visits[1].StartTime)
}
