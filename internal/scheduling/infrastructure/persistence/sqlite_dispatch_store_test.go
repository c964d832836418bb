package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/fieldworks-io/dispatch/internal/scheduling/domain"
	"github.com/fieldworks-io/dispatch/internal/shared/infrastructure/database"
	"github.com/fieldworks-io/dispatch/internal/shared/infrastructure/database/sqlite"
	"github.com/fieldworks-io/dispatch/internal/shared/infrastructure/migrations"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	ctx := context.Background()

	conn, err := sqlite.NewConnection(ctx, database.Config{
		SQLitePath: filepath.Join(t.TempDir(), "dispatch.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	sqliteConn, ok := conn.(*sqlite.Connection)
	require.True(t, ok)
	require.NoError(t, migrations.RunSQLiteMigrations(ctx, sqliteConn.DB()))

	return NewSQLiteStore(conn)
}

func newStoreTechnician(t *testing.T, name string, equipment ...string) *domain.Technician {
	t.Helper()
	home := domain.NewAddress(37.7749, -122.4194)
	current := domain.NewAddress(37.8044, -122.2712)
	tech, err := domain.NewTechnician(name, home, current)
	require.NoError(t, err)
	tech.AddEquipment(equipment...)
	return tech
}

func newStoreJob(t *testing.T, priority int, duration time.Duration) *domain.Job {
	t.Helper()
	job, err := domain.NewJob(uuid.New(), domain.NewAddress(37.7858, -122.4064), priority, duration)
	require.NoError(t, err)
	return job
}

func findJob(t *testing.T, jobs []*domain.Job, id uuid.UUID) *domain.Job {
	t.Helper()
	for _, job := range jobs {
		if job.ID() == id {
			return job
		}
	}
	t.Fatalf("job %s not in result set", id)
	return nil
}

func TestSQLiteStoreActiveTechnicians(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()

	active := newStoreTechnician(t, "Ada", "lift-9000", "diag-scanner")
	require.NoError(t, active.SetWorkday(7, 16))
	inactive := newStoreTechnician(t, "Ben")
	inactive.Deactivate()

	require.NoError(t, store.SaveTechnician(ctx, active))
	require.NoError(t, store.SaveTechnician(ctx, inactive))

	technicians, err := store.ActiveTechnicians(ctx)
	require.NoError(t, err)
	require.Len(t, technicians, 1)

	got := technicians[0]
	assert.Equal(t, active.ID(), got.ID())
	assert.Equal(t, "Ada", got.Name())
	assert.Equal(t, []string{"diag-scanner", "lift-9000"}, got.Equipment())
	assert.Equal(t, 7, got.WorkdayStartHour())
	assert.Equal(t, 16, got.WorkdayEndHour())
	assert.Equal(t, active.HomeLocation().ID, got.HomeLocation().ID)
	assert.InDelta(t, active.HomeLocation().Lat, got.HomeLocation().Lat, 1e-9)
	assert.Equal(t, active.CurrentLocation().ID, got.CurrentLocation().ID)
}

func TestSQLiteStoreTechnicianWithoutCurrentLocation(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()

	home := domain.NewAddress(40.7128, -74.0060)
	tech, err := domain.NewTechnician("Cleo", home, domain.Address{})
	require.NoError(t, err)
	require.NoError(t, store.SaveTechnician(ctx, tech))

	technicians, err := store.ActiveTechnicians(ctx)
	require.NoError(t, err)
	require.Len(t, technicians, 1)

	got := technicians[0]
	assert.True(t, got.CurrentLocation().IsZero())
	assert.Equal(t, home.ID, got.StartLocationForDay(1).ID)
}

func TestSQLiteStorePendingJobs(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()

	pending := newStoreJob(t, 2, 90*time.Minute)
	pending.SetVehicleServices(77, []int64{3, 11})
	pending.RequireEquipment("lift-9000")
	earliest := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	pending.SetEarliestStartTime(earliest)

	assigned := newStoreJob(t, 5, time.Hour)
	require.NoError(t, assigned.Assign(uuid.New()))

	frozen := newStoreJob(t, 5, time.Hour)
	frozen.MarkFixedAssignment()

	require.NoError(t, store.SaveJob(ctx, pending))
	require.NoError(t, store.SaveJob(ctx, assigned))
	require.NoError(t, store.SaveJob(ctx, frozen))

	jobs, err := store.PendingJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)

	got := findJob(t, jobs, pending.ID())
	assert.Equal(t, pending.OrderID(), got.OrderID())
	assert.Equal(t, int64(77), got.YMMID())
	assert.Equal(t, []int64{3, 11}, got.ServiceIDs())
	assert.Equal(t, []string{"lift-9000"}, got.RequiredEquipment())
	assert.Equal(t, 2, got.Priority())
	assert.Equal(t, 90*time.Minute, got.Duration())
	assert.Equal(t, domain.JobStatusPendingReview, got.Status())
	require.NotNil(t, got.EarliestStartTime())
	assert.True(t, earliest.Equal(*got.EarliestStartTime()))
	assert.Nil(t, got.AssignedTechnicianID())
}

func TestSQLiteStoreAssignedJobs(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()

	techA := uuid.New()
	techB := uuid.New()

	mine := newStoreJob(t, 3, time.Hour)
	require.NoError(t, mine.Assign(techA))

	theirs := newStoreJob(t, 3, time.Hour)
	require.NoError(t, theirs.Assign(techB))

	frozen := newStoreJob(t, 3, time.Hour)
	require.NoError(t, frozen.Assign(techA))
	frozen.MarkFixedAssignment()

	require.NoError(t, store.SaveJob(ctx, mine))
	require.NoError(t, store.SaveJob(ctx, theirs))
	require.NoError(t, store.SaveJob(ctx, frozen))

	jobs, err := store.AssignedJobs(ctx, techA)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, mine.ID(), jobs[0].ID())
	require.NotNil(t, jobs[0].AssignedTechnicianID())
	assert.Equal(t, techA, *jobs[0].AssignedTechnicianID())
}

func TestSQLiteStoreUpdateJobAssignment(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()

	job := newStoreJob(t, 4, time.Hour)
	require.NoError(t, store.SaveJob(ctx, job))

	techID := uuid.New()
	require.NoError(t, store.UpdateJobAssignment(ctx, job.ID(), &techID, domain.JobStatusAssigned))

	jobs, err := store.AssignedJobs(ctx, techID)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, domain.JobStatusAssigned, jobs[0].Status())

	// Clearing the technician returns the job to the review queue.
	require.NoError(t, store.UpdateJobAssignment(ctx, job.ID(), nil, domain.JobStatusPendingReview))

	pending, err := store.PendingJobs(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Nil(t, pending[0].AssignedTechnicianID())

	err = store.UpdateJobAssignment(ctx, uuid.New(), &techID, domain.JobStatusAssigned)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestSQLiteStoreUpdateJobETAs(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()

	first := newStoreJob(t, 4, time.Hour)
	second := newStoreJob(t, 4, time.Hour)
	stale := time.Date(2025, 5, 30, 9, 0, 0, 0, time.UTC)
	second.SetETAs(&stale, &stale, &stale, &stale)
	require.NoError(t, store.SaveJob(ctx, first))
	require.NoError(t, store.SaveJob(ctx, second))

	sched := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	schedEnd := sched.Add(time.Hour)
	etaEnd := sched.Add(time.Hour)

	require.NoError(t, store.UpdateJobETAs(ctx, map[uuid.UUID]domain.ETAUpdate{
		first.ID(): {
			EstimatedSched:    &sched,
			EstimatedSchedEnd: &schedEnd,
			CustomerETAStart:  &sched,
			CustomerETAEnd:    &etaEnd,
		},
		second.ID(): {},
	}))

	jobs, err := store.PendingJobs(ctx)
	require.NoError(t, err)

	got := findJob(t, jobs, first.ID())
	require.NotNil(t, got.EstimatedSched())
	assert.True(t, sched.Equal(*got.EstimatedSched()))
	require.NotNil(t, got.EstimatedSchedEnd())
	assert.True(t, schedEnd.Equal(*got.EstimatedSchedEnd()))
	require.NotNil(t, got.CustomerETAEnd())
	assert.True(t, etaEnd.Equal(*got.CustomerETAEnd()))

	cleared := findJob(t, jobs, second.ID())
	assert.Nil(t, cleared.EstimatedSched())
	assert.Nil(t, cleared.CustomerETAStart())

	err = store.UpdateJobETAs(ctx, map[uuid.UUID]domain.ETAUpdate{uuid.New(): {}})
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestSQLiteStoreUpdateJobFixedSchedule(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()

	job := newStoreJob(t, 4, time.Hour)
	require.NoError(t, store.SaveJob(ctx, job))

	fixed := time.Date(2025, 6, 3, 14, 0, 0, 0, time.UTC)
	require.NoError(t, store.UpdateJobFixedSchedule(ctx, job.ID(), &fixed))

	jobs, err := store.PendingJobs(ctx)
	require.NoError(t, err)
	got := findJob(t, jobs, job.ID())
	require.NotNil(t, got.FixedScheduleTime())
	assert.True(t, fixed.Equal(*got.FixedScheduleTime()))

	require.NoError(t, store.UpdateJobFixedSchedule(ctx, job.ID(), nil))

	jobs, err = store.PendingJobs(ctx)
	require.NoError(t, err)
	assert.Nil(t, findJob(t, jobs, job.ID()).FixedScheduleTime())
}

func TestSQLiteStoreEquipmentRequirements(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveEquipmentRequirement(ctx, 77, 3, "lift-9000", "diag-scanner"))
	require.NoError(t, store.SaveEquipmentRequirement(ctx, 77, 11, "lift-9000", "torque-wrench"))
	require.NoError(t, store.SaveEquipmentRequirement(ctx, 88, 3, "crane"))

	models, err := store.EquipmentRequirements(ctx, 77, []int64{3, 11})
	require.NoError(t, err)
	assert.Equal(t, []string{"diag-scanner", "lift-9000", "torque-wrench"}, models)

	models, err = store.EquipmentRequirements(ctx, 99, []int64{3})
	require.NoError(t, err)
	assert.Empty(t, models)
}

func TestSQLiteStoreUnavailabilitiesFor(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()

	techID := uuid.New()
	lunch := domain.Unavailability{
		ID:           uuid.New(),
		TechnicianID: techID,
		StartTime:    time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC),
		Duration:     time.Hour,
	}
	nextWeek := domain.Unavailability{
		ID:           uuid.New(),
		TechnicianID: techID,
		StartTime:    time.Date(2025, 6, 9, 12, 0, 0, 0, time.UTC),
		Duration:     time.Hour,
	}
	otherTech := domain.Unavailability{
		ID:           uuid.New(),
		TechnicianID: uuid.New(),
		StartTime:    time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC),
		Duration:     time.Hour,
	}

	require.NoError(t, store.SaveUnavailability(ctx, lunch))
	require.NoError(t, store.SaveUnavailability(ctx, nextWeek))
	require.NoError(t, store.SaveUnavailability(ctx, otherTech))

	from := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 2, 17, 0, 0, 0, time.UTC)

	breaks, err := store.UnavailabilitiesFor(ctx, techID, from, to)
	require.NoError(t, err)
	require.Len(t, breaks, 1)
	assert.Equal(t, lunch.ID, breaks[0].ID)
	assert.True(t, lunch.StartTime.Equal(breaks[0].StartTime))
	assert.Equal(t, time.Hour, breaks[0].Duration)
}

func TestSQLiteStoreSaveJobIsIdempotent(t *testing.T) {
	store := setupSQLiteStore(t)
	ctx := context.Background()

	job := newStoreJob(t, 4, time.Hour)
	job.RequireEquipment("lift-9000")
	require.NoError(t, store.SaveJob(ctx, job))
	require.NoError(t, store.SaveJob(ctx, job))

	job.RequireEquipment("diag-scanner")
	require.NoError(t, store.SaveJob(ctx, job))

	jobs, err := store.PendingJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, []string{"diag-scanner", "lift-9000"}, jobs[0].RequiredEquipment())
}

func TestBoolToInt64(t *testing.T) {
	assert.Equal(t, int64(1), boolToInt64(true))
	assert.Equal(t, int64(0), boolToInt64(false))
}
