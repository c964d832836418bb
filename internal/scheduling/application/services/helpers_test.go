package services

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fieldworks-io/dispatch/internal/scheduling/domain"
	"github.com/fieldworks-io/dispatch/internal/scheduling/infrastructure/availability"
	"github.com/fieldworks-io/dispatch/internal/scheduling/infrastructure/travel"
)

// testAnchor is planning day 1 for the whole package: 2025-03-10 UTC, with
// the default 08:00-17:00 workday.
var testAnchor = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// dayAt returns a clock time on the given planning day.
func dayAt(day, hour, minute int) time.Time {
	return testAnchor.AddDate(0, 0, day-1).
		Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func newTech(t *testing.T, name string) *domain.Technician {
	t.Helper()
	home := domain.NewAddress(33.4484, -112.0740)
	tech, err := domain.NewTechnician(name, home, home)
	require.NoError(t, err)
	return tech
}

func newJob(t *testing.T, orderID uuid.UUID, loc domain.Address, priority int, duration time.Duration) *domain.Job {
	t.Helper()
	job, err := domain.NewJob(orderID, loc, priority, duration)
	require.NoError(t, err)
	return job
}

func mustUnit(t *testing.T, jobs ...*domain.Job) *domain.SchedulableUnit {
	t.Helper()
	require.NotEmpty(t, jobs)
	unit, _, err := domain.BuildUnit(jobs[0].OrderID(), jobs)
	require.NoError(t, err)
	return unit
}

// linkAll records the same travel time for every directed pair of the given
// addresses, with free self arcs.
func linkAll(m *travel.Matrix, seconds int64, addrs ...domain.Address) {
	for _, from := range addrs {
		for _, to := range addrs {
			if from.ID == to.ID {
				m.Set(from.ID, to.ID, 0)
				continue
			}
			m.Set(from.ID, to.ID, seconds)
		}
	}
}

func workdays(source availability.UnavailabilitySource) *availability.WorkdayProvider {
	return availability.NewWorkdayProvider(testAnchor, source)
}
