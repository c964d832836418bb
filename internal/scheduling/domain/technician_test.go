package domain_test

import (
	"testing"
	"time"

	"github.com/fieldworks-io/dispatch/internal/scheduling/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTechnician(t *testing.T, equipment ...string) *domain.Technician {
	t.Helper()
	tech, err := domain.NewTechnician("Dana", domain.NewAddress(33.30, -111.84), domain.NewAddress(33.45, -112.07))
	require.NoError(t, err)
	tech.AddEquipment(equipment...)
	return tech
}

func TestNewTechnician(t *testing.T) {
	home := domain.NewAddress(33.30, -111.84)
	current := domain.NewAddress(33.45, -112.07)

	tech, err := domain.NewTechnician("Dana", home, current)

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, tech.ID())
	assert.Equal(t, "Dana", tech.Name())
	assert.True(t, tech.IsActive())
	assert.True(t, home.Equals(tech.HomeLocation()))
	assert.True(t, current.Equals(tech.CurrentLocation()))
	assert.Equal(t, domain.DefaultWorkdayStartHour, tech.WorkdayStartHour())
	assert.Equal(t, domain.DefaultWorkdayEndHour, tech.WorkdayEndHour())
	assert.Empty(t, tech.Equipment())
	assert.Equal(t, 0, tech.Schedule().UnitCount())
}

func TestNewTechnician_Validation(t *testing.T) {
	home := domain.NewAddress(33.30, -111.84)

	t.Run("empty name", func(t *testing.T) {
		_, err := domain.NewTechnician("", home, home)
		assert.ErrorIs(t, err, domain.ErrMissingTechnicianName)
	})

	t.Run("missing home location", func(t *testing.T) {
		_, err := domain.NewTechnician("Dana", domain.Address{}, home)
		assert.ErrorIs(t, err, domain.ErrMissingLocation)
	})
}

func TestTechnician_CanHandle(t *testing.T) {
	tech := newTestTechnician(t, "tq_prog", "immo_tool", "adas_rig")

	tests := []struct {
		name     string
		required []string
		want     bool
	}{
		{name: "no requirements", required: nil, want: true},
		{name: "subset", required: []string{"tq_prog"}, want: true},
		{name: "full set", required: []string{"adas_rig", "immo_tool", "tq_prog"}, want: true},
		{name: "missing one", required: []string{"tq_prog", "keycutter"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := newTestJob(t, 5, time.Hour)
			job.RequireEquipment(tt.required...)
			assert.Equal(t, tt.want, tech.CanHandle(job))
		})
	}
}

func TestTechnician_CoversEquipment(t *testing.T) {
	tech := newTestTechnician(t, "tq_prog")

	assert.True(t, tech.CoversEquipment(nil))
	assert.True(t, tech.CoversEquipment([]string{"tq_prog"}))
	assert.False(t, tech.CoversEquipment([]string{"tq_prog", "immo_tool"}))
}

func TestTechnician_Equipment_Sorted(t *testing.T) {
	tech := newTestTechnician(t, "tq_prog", "adas_rig", "immo_tool", "adas_rig")

	assert.Equal(t, []string{"adas_rig", "immo_tool", "tq_prog"}, tech.Equipment())
}

func TestTechnician_StartLocationForDay(t *testing.T) {
	home := domain.NewAddress(33.30, -111.84)
	current := domain.NewAddress(33.45, -112.07)
	tech, err := domain.NewTechnician("Dana", home, current)
	require.NoError(t, err)

	assert.True(t, current.Equals(tech.StartLocationForDay(1)))
	assert.True(t, home.Equals(tech.StartLocationForDay(2)))
	assert.True(t, home.Equals(tech.StartLocationForDay(14)))
}

func TestTechnician_StartLocationForDay_NoCurrentLocation(t *testing.T) {
	home := domain.NewAddress(33.30, -111.84)
	tech, err := domain.NewTechnician("Dana", home, domain.Address{})
	require.NoError(t, err)

	assert.True(t, home.Equals(tech.StartLocationForDay(1)))
}

func TestTechnician_SetWorkday(t *testing.T) {
	tech := newTestTechnician(t)

	require.NoError(t, tech.SetWorkday(7, 16))
	assert.Equal(t, 7, tech.WorkdayStartHour())
	assert.Equal(t, 16, tech.WorkdayEndHour())

	assert.ErrorIs(t, tech.SetWorkday(16, 7), domain.ErrInvalidWorkday)
	assert.ErrorIs(t, tech.SetWorkday(-1, 8), domain.ErrInvalidWorkday)
	assert.ErrorIs(t, tech.SetWorkday(8, 25), domain.ErrInvalidWorkday)
}

func TestTechnician_Deactivate(t *testing.T) {
	tech := newTestTechnician(t)

	tech.Deactivate()

	assert.False(t, tech.IsActive())
}

func TestRehydrateTechnician(t *testing.T) {
	id := uuid.New()
	home := domain.NewAddress(33.30, -111.84)
	createdAt := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)

	tech := domain.RehydrateTechnician(
		id, "Dana", true, home, home,
		[]string{"tq_prog"}, 7, 15,
		createdAt, createdAt,
	)

	assert.Equal(t, id, tech.ID())
	assert.Equal(t, []string{"tq_prog"}, tech.Equipment())
	assert.Equal(t, 7, tech.WorkdayStartHour())
	assert.Equal(t, 15, tech.WorkdayEndHour())
}

func TestRehydrateTechnician_InvalidWorkdayFallsBack(t *testing.T) {
	home := domain.NewAddress(33.30, -111.84)

	tech := domain.RehydrateTechnician(
		uuid.New(), "Dana", true, home, home,
		nil, 0, 0,
		time.Now(), time.Now(),
	)

	assert.Equal(t, domain.DefaultWorkdayStartHour, tech.WorkdayStartHour())
	assert.Equal(t, domain.DefaultWorkdayEndHour, tech.WorkdayEndHour())
}
