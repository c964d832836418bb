package persistence_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/fieldworks-io/dispatch/internal/scheduling/domain"
	"github.com/fieldworks-io/dispatch/internal/scheduling/infrastructure/persistence"
	"github.com/fieldworks-io/dispatch/internal/shared/infrastructure/database"
	"github.com/fieldworks-io/dispatch/internal/shared/infrastructure/database/postgres"
	"github.com/fieldworks-io/dispatch/internal/shared/infrastructure/migrations"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupPostgresStore connects to the database named by TEST_DATABASE_URL,
// applies the schema and wipes the scheduling tables.
func setupPostgresStore(t *testing.T) *persistence.PostgresStore {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	conn, err := postgres.NewConnection(ctx, database.Config{URL: dbURL})
	if err != nil {
		t.Skipf("Failed to connect to test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := conn.Ping(ctx); err != nil {
		t.Skipf("Failed to ping test database: %v", err)
	}

	require.NoError(t, migrations.RunPostgresMigrations(ctx, conn))

	for _, table := range []string{
		"job_services", "job_equipment_requirements", "jobs", "orders",
		"technician_unavailabilities", "technician_equipment", "technicians",
		"equipment_requirements", "addresses",
	} {
		_, _ = conn.Exec(ctx, "DELETE FROM "+table)
	}

	return persistence.NewPostgresStore(conn)
}

func TestPostgresStoreTechnicianRoundTrip(t *testing.T) {
	store := setupPostgresStore(t)
	ctx := context.Background()

	home := domain.NewAddress(37.7749, -122.4194)
	tech, err := domain.NewTechnician("Ada", home, domain.NewAddress(37.8044, -122.2712))
	require.NoError(t, err)
	tech.AddEquipment("lift-9000", "diag-scanner")
	require.NoError(t, tech.SetWorkday(7, 16))

	require.NoError(t, store.SaveTechnician(ctx, tech))
	require.NoError(t, store.SaveTechnician(ctx, tech))

	technicians, err := store.ActiveTechnicians(ctx)
	require.NoError(t, err)
	require.Len(t, technicians, 1)

	got := technicians[0]
	assert.Equal(t, tech.ID(), got.ID())
	assert.Equal(t, []string{"diag-scanner", "lift-9000"}, got.Equipment())
	assert.Equal(t, 7, got.WorkdayStartHour())
	assert.Equal(t, home.ID, got.HomeLocation().ID)
}

func TestPostgresStoreJobLifecycle(t *testing.T) {
	store := setupPostgresStore(t)
	ctx := context.Background()

	job, err := domain.NewJob(uuid.New(), domain.NewAddress(37.7858, -122.4064), 2, 90*time.Minute)
	require.NoError(t, err)
	job.SetVehicleServices(77, []int64{3, 11})
	job.RequireEquipment("lift-9000")
	require.NoError(t, store.SaveJob(ctx, job))

	pending, err := store.PendingJobs(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, []int64{3, 11}, pending[0].ServiceIDs())

	techID := uuid.New()
	require.NoError(t, store.UpdateJobAssignment(ctx, job.ID(), &techID, domain.JobStatusAssigned))

	assigned, err := store.AssignedJobs(ctx, techID)
	require.NoError(t, err)
	require.Len(t, assigned, 1)

	sched := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	schedEnd := sched.Add(90 * time.Minute)
	require.NoError(t, store.UpdateJobETAs(ctx, map[uuid.UUID]domain.ETAUpdate{
		job.ID(): {EstimatedSched: &sched, EstimatedSchedEnd: &schedEnd},
	}))

	assigned, err = store.AssignedJobs(ctx, techID)
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	require.NotNil(t, assigned[0].EstimatedSched())
	assert.True(t, sched.Equal(*assigned[0].EstimatedSched()))

	err = store.UpdateJobAssignment(ctx, uuid.New(), &techID, domain.JobStatusAssigned)
	assert.ErrorIs(t, err, persistence.ErrJobNotFound)
}

func TestPostgresStoreEquipmentRequirements(t *testing.T) {
	store := setupPostgresStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveEquipmentRequirement(ctx, 77, 3, "lift-9000"))
	require.NoError(t, store.SaveEquipmentRequirement(ctx, 77, 11, "torque-wrench"))

	models, err := store.EquipmentRequirements(ctx, 77, []int64{3, 11})
	require.NoError(t, err)
	assert.Equal(t, []string{"lift-9000", "torque-wrench"}, models)
}

func TestPostgresStoreUnavailabilitiesFor(t *testing.T) {
	store := setupPostgresStore(t)
	ctx := context.Background()

	techID := uuid.New()
	lunch := domain.Unavailability{
		ID:           uuid.New(),
		TechnicianID: techID,
		StartTime:    time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC),
		Duration:     time.Hour,
	}
	require.NoError(t, store.SaveUnavailability(ctx, lunch))

	from := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 2, 17, 0, 0, 0, time.UTC)

	breaks, err := store.UnavailabilitiesFor(ctx, techID, from, to)
	require.NoError(t, err)
	require.Len(t, breaks, 1)
	assert.Equal(t, lunch.ID, breaks[0].ID)
}
