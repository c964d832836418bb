package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldworks-io/dispatch/internal/scheduling/domain"
)

func TestBuildGroupsJobsByOrder(t *testing.T) {
	builder := NewUnitBuilder(testLogger())
	orderA := uuid.New()
	orderB := uuid.New()
	locA := domain.NewAddress(33.45, -112.07)
	locB := domain.NewAddress(33.50, -112.10)

	units := builder.Build([]*domain.Job{
		newJob(t, orderA, locA, 2, time.Hour),
		newJob(t, orderB, locB, 1, 30*time.Minute),
		newJob(t, orderA, locA, 3, 2*time.Hour),
	})

	require.Len(t, units, 2)
	assert.Equal(t, "unit-"+orderA.String(), units[0].ID)
	assert.Len(t, units[0].Jobs, 2)
	assert.Equal(t, 2, units[0].Priority)
	assert.Equal(t, 3*time.Hour, units[0].Duration)
	assert.Equal(t, "unit-"+orderB.String(), units[1].ID)
	assert.Len(t, units[1].Jobs, 1)
}

func TestBuildKeepsEarliestFixedTimeOnDisagreement(t *testing.T) {
	builder := NewUnitBuilder(testLogger())
	orderID := uuid.New()
	loc := domain.NewAddress(33.45, -112.07)

	early := dayAt(1, 9, 0)
	late := dayAt(1, 13, 0)
	first := newJob(t, orderID, loc, 2, time.Hour)
	first.SetFixedScheduleTime(late)
	second := newJob(t, orderID, loc, 2, time.Hour)
	second.SetFixedScheduleTime(early)

	units := builder.Build([]*domain.Job{first, second})

	require.Len(t, units, 1)
	require.NotNil(t, units[0].FixedScheduleTime)
	assert.True(t, units[0].FixedScheduleTime.Equal(early))
}

func TestBuildMergesEquipmentAcrossJobs(t *testing.T) {
	builder := NewUnitBuilder(testLogger())
	orderID := uuid.New()
	loc := domain.NewAddress(33.45, -112.07)

	first := newJob(t, orderID, loc, 2, time.Hour)
	first.RequireEquipment("tpms-tool")
	second := newJob(t, orderID, loc, 2, time.Hour)
	second.RequireEquipment("lift-2t", "tpms-tool")

	units := builder.Build([]*domain.Job{first, second})

	require.Len(t, units, 1)
	assert.Equal(t, []string{"lift-2t", "tpms-tool"}, units[0].RequiredEquipment)
}
