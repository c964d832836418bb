package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldworks-io/dispatch/internal/scheduling/domain"
	"github.com/fieldworks-io/dispatch/internal/scheduling/infrastructure/persistence"
	"github.com/fieldworks-io/dispatch/internal/scheduling/infrastructure/travel"
	"github.com/fieldworks-io/dispatch/internal/shared/infrastructure/eventbus"
)

func newPlanner(store *persistence.MemoryStore, m *travel.Matrix, horizonDays int) *AssignmentPlanner {
	est := NewETAEstimator(m, workdays(nil), horizonDays, testLogger())
	return NewAssignmentPlanner(store, NewUnitBuilder(testLogger()), est, eventbus.NewNoopPublisher(nil), nil, testLogger())
}

func TestPlanAssignsJobToFastestTechnician(t *testing.T) {
	store := persistence.NewMemoryStore()
	near := newTech(t, "near")
	far := newTech(t, "far")
	store.AddTechnician(near)
	store.AddTechnician(far)

	loc := domain.NewAddress(33.47, -112.03)
	job := newJob(t, uuid.New(), loc, 2, 2*time.Hour)
	store.AddJob(job)

	m := travel.NewMatrix(nil)
	m.Set(near.HomeLocation().ID, loc.ID, 600)
	m.Set(far.HomeLocation().ID, loc.ID, 3600)

	outcome, err := newPlanner(store, m, 7).Plan(context.Background(), []*domain.Job{job}, []*domain.Technician{near, far})

	require.NoError(t, err)
	assert.Equal(t, 1, outcome.JobsAssigned)
	assert.Empty(t, outcome.Unassigned)

	stored := store.Job(job.ID())
	require.NotNil(t, stored.AssignedTechnicianID())
	assert.Equal(t, near.ID(), *stored.AssignedTechnicianID())
	assert.Equal(t, domain.JobStatusAssigned, stored.Status())
}

func TestPlanPrefersLowerTechnicianIDOnTie(t *testing.T) {
	store := persistence.NewMemoryStore()
	alpha := newTech(t, "alpha")
	beta := newTech(t, "beta")
	store.AddTechnician(alpha)
	store.AddTechnician(beta)

	loc := domain.NewAddress(33.47, -112.03)
	job := newJob(t, uuid.New(), loc, 2, 2*time.Hour)
	store.AddJob(job)

	m := travel.NewMatrix(nil)
	m.Set(alpha.HomeLocation().ID, loc.ID, 600)
	m.Set(beta.HomeLocation().ID, loc.ID, 600)

	_, err := newPlanner(store, m, 7).Plan(context.Background(), []*domain.Job{job}, []*domain.Technician{alpha, beta})
	require.NoError(t, err)

	expected := alpha.ID()
	if beta.ID().String() < alpha.ID().String() {
		expected = beta.ID()
	}
	stored := store.Job(job.ID())
	require.NotNil(t, stored.AssignedTechnicianID())
	assert.Equal(t, expected, *stored.AssignedTechnicianID())
}

func TestPlanKeepsOrderTogetherWhenCombinedNotWorse(t *testing.T) {
	store := persistence.NewMemoryStore()
	tech := newTech(t, "solo")
	store.AddTechnician(tech)

	orderID := uuid.New()
	loc := domain.NewAddress(33.47, -112.03)
	first := newJob(t, orderID, loc, 2, time.Hour)
	second := newJob(t, orderID, loc, 2, time.Hour)
	store.AddJob(first)
	store.AddJob(second)

	m := travel.NewMatrix(nil)
	m.Set(tech.HomeLocation().ID, loc.ID, 600)

	outcome, err := newPlanner(store, m, 7).Plan(context.Background(), []*domain.Job{first, second}, []*domain.Technician{tech})

	require.NoError(t, err)
	assert.Equal(t, 2, outcome.JobsAssigned)
	assert.Equal(t, 1, outcome.OrdersCombined)
	assert.Zero(t, outcome.OrdersSplit)
	for _, job := range []*domain.Job{first, second} {
		stored := store.Job(job.ID())
		require.NotNil(t, stored.AssignedTechnicianID())
		assert.Equal(t, tech.ID(), *stored.AssignedTechnicianID())
	}
}

func TestPlanSplitsOrderWhenEveryJobIndividuallyEarlier(t *testing.T) {
	store := persistence.NewMemoryStore()
	tech := newTech(t, "busy")
	store.AddTechnician(tech)

	// Day 1 is blocked until 14:00, leaving a three hour tail. The whole
	// order needs all three hours plus travel and spills to day 2; each job
	// alone fits the tail today.
	locV := domain.NewAddress(33.40, -112.00)
	blocker := mustUnit(t, newJob(t, uuid.New(), locV, 2, 6*time.Hour))
	tech.Schedule().Commit(1, domain.ScheduledUnit{
		Unit: blocker, ArrivalTime: dayAt(1, 8, 0), StartTime: dayAt(1, 8, 0), EndTime: dayAt(1, 14, 0),
	})

	orderID := uuid.New()
	locJ := domain.NewAddress(33.47, -112.03)
	first := newJob(t, orderID, locJ, 2, 90*time.Minute)
	second := newJob(t, orderID, locJ, 2, 90*time.Minute)
	store.AddJob(first)
	store.AddJob(second)

	m := travel.NewMatrix(nil)
	m.Set(locV.ID, locJ.ID, 600)
	m.Set(tech.HomeLocation().ID, locJ.ID, 600)

	outcome, err := newPlanner(store, m, 7).Plan(context.Background(), []*domain.Job{first, second}, []*domain.Technician{tech})

	require.NoError(t, err)
	assert.Equal(t, 2, outcome.JobsAssigned)
	assert.Equal(t, 1, outcome.OrdersSplit)
	assert.Zero(t, outcome.OrdersCombined)
}

func TestPlanReportsIneligibleJob(t *testing.T) {
	store := persistence.NewMemoryStore()
	tech := newTech(t, "bare")
	store.AddTechnician(tech)

	loc := domain.NewAddress(33.47, -112.03)
	job := newJob(t, uuid.New(), loc, 2, time.Hour)
	job.RequireEquipment("crane")
	store.AddJob(job)

	m := travel.NewMatrix(nil)
	m.Set(tech.HomeLocation().ID, loc.ID, 600)

	outcome, err := newPlanner(store, m, 7).Plan(context.Background(), []*domain.Job{job}, []*domain.Technician{tech})

	require.NoError(t, err)
	assert.Zero(t, outcome.JobsAssigned)
	require.Len(t, outcome.Unassigned, 1)
	assert.Equal(t, job.ID(), outcome.Unassigned[0].JobID)
	assert.Equal(t, "no eligible technician", outcome.Unassigned[0].Reason)

	stored := store.Job(job.ID())
	assert.Equal(t, domain.JobStatusPendingReview, stored.Status())
	assert.Nil(t, stored.AssignedTechnicianID())
}

func TestPlanReportsInfeasibleJob(t *testing.T) {
	store := persistence.NewMemoryStore()
	tech := newTech(t, "stranded")
	store.AddTechnician(tech)

	loc := domain.NewAddress(33.47, -112.03)
	job := newJob(t, uuid.New(), loc, 2, time.Hour)
	store.AddJob(job)

	// No travel entries at all: the technician is eligible but can never
	// reach the job.
	outcome, err := newPlanner(store, travel.NewMatrix(nil), 3).Plan(context.Background(), []*domain.Job{job}, []*domain.Technician{tech})

	require.NoError(t, err)
	require.Len(t, outcome.Unassigned, 1)
	assert.Equal(t, "no feasible slot within planning horizon", outcome.Unassigned[0].Reason)
}
