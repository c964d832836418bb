package vrp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseISOTime(t *testing.T) {
	t.Run("trailing Z", func(t *testing.T) {
		parsed, err := ParseISOTime("2025-06-02T08:00:00Z")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC), parsed)
	})

	t.Run("explicit offset", func(t *testing.T) {
		parsed, err := ParseISOTime("2025-06-02T08:00:00+02:00")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2025, 6, 2, 6, 0, 0, 0, time.UTC), parsed)
	})

	t.Run("fractional seconds", func(t *testing.T) {
		parsed, err := ParseISOTime("2025-06-02T08:00:00.250Z")
		require.NoError(t, err)
		assert.Equal(t, 2025, parsed.Year())
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ParseISOTime("next tuesday")
		assert.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ParseISOTime("  ")
		assert.Error(t, err)
	})
}

func TestFormatISOTimeEmitsUTCZ(t *testing.T) {
	epoch := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC).Unix()
	assert.Equal(t, "2025-06-02T08:10:00Z", FormatISOTime(epoch+600))
}

func TestTravelMatrixSeconds(t *testing.T) {
	m := TravelMatrix{0: {1: 600, 2: -5}}

	seconds, ok := m.Seconds(0, 1)
	assert.True(t, ok)
	assert.Equal(t, int64(600), seconds)

	_, ok = m.Seconds(0, 2)
	assert.False(t, ok, "negative entries are invalid")

	_, ok = m.Seconds(0, 9)
	assert.False(t, ok, "missing column")

	_, ok = m.Seconds(7, 0)
	assert.False(t, ok, "missing row")
}

func TestFitActivityChainsOverlappingBreaks(t *testing.T) {
	breaks := []breakInterval{
		{start: 100, duration: 50},
		{start: 140, duration: 30},
	}
	assert.Equal(t, int64(170), fitActivity(90, 20, breaks))
}

func TestFitActivityBackToBackIsAllowed(t *testing.T) {
	breaks := []breakInterval{{start: 120, duration: 60}}
	// Activity ends exactly where the break starts.
	assert.Equal(t, int64(100), fitActivity(100, 20, breaks))
	// Activity starts exactly where the break ends.
	assert.Equal(t, int64(180), fitActivity(180, 20, breaks))
}

func TestBuildModelClampsInvertedWindow(t *testing.T) {
	req := twoJobRequest()
	req.Technicians[0].EarliestStartTimeISO = "2025-06-02T17:00:00Z"
	req.Technicians[0].LatestEndTimeISO = "2025-06-02T08:00:00Z"

	m, err := BuildModel(req, testOptions())
	require.NoError(t, err)
	assert.Equal(t, m.vehicles[0].windowStart, m.vehicles[0].windowEnd)
}

func TestBuildModelIgnoresFixedTimeBeforeEpoch(t *testing.T) {
	req := twoJobRequest()
	req.Items[0].IsFixedTime = true
	req.Items[0].FixedTimeISO = "2025-06-01T08:00:00Z" // day before the window

	m, err := BuildModel(req, testOptions())
	require.NoError(t, err)
	for _, n := range m.nodes {
		if n.id == "J1" {
			assert.False(t, n.mandatory(), "unreachable fixed time must not pin the item")
		}
	}
}

func TestBuildModelCapacityFloor(t *testing.T) {
	m, err := BuildModel(twoJobRequest(), testOptions())
	require.NoError(t, err)
	// Nine working hours plus twelve hours of slack is under a day, so the
	// floor applies.
	assert.Equal(t, int64(24*3600), m.capacity)
}

func TestBuildModelDepotItemIsUnservable(t *testing.T) {
	req := twoJobRequest()
	req.Items[0].LocationIndex = 0 // the depot itself

	m, err := BuildModel(req, testOptions())
	require.NoError(t, err)
	require.Len(t, m.unservable, 1)
	assert.Equal(t, 0, m.unservable[0])
	require.Len(t, m.nodes, 1)
	assert.Equal(t, "J2", m.nodes[0].id)
}

func TestBuildModelPenaltyScalesWithPriorityDistance(t *testing.T) {
	req := twoJobRequest()
	req.Items[0].Priority = 1
	req.Items[1].Priority = 4

	m, err := BuildModel(req, testOptions())
	require.NoError(t, err)
	require.Len(t, m.nodes, 2)
	assert.Equal(t, int64(400000), m.nodes[0].penalty, "most urgent pays 4x base")
	assert.Equal(t, int64(100000), m.nodes[1].penalty)
}

func TestBuildModelSkipsUnknownTechnicianBreaks(t *testing.T) {
	req := twoJobRequest()
	req.TechnicianUnavailabilities = []UnavailabilitySpec{
		{TechnicianID: "nobody", StartTimeISO: "2025-06-02T12:00:00Z", DurationSeconds: 600},
		{TechnicianID: "T1", StartTimeISO: "2025-06-02T12:00:00Z", DurationSeconds: 0},
	}

	m, err := BuildModel(req, testOptions())
	require.NoError(t, err)
	assert.Empty(t, m.vehicles[0].breaks)
}

func TestPropagateReportsNaiveArrival(t *testing.T) {
	req := twoJobRequest()
	req.Items[0].EarliestStartTimeISO = "2025-06-02T09:00:00Z"
	m, err := BuildModel(req, testOptions())
	require.NoError(t, err)

	var ni int
	for i := range m.nodes {
		if m.nodes[i].id == "J1" {
			ni = i
		}
	}
	plan := m.propagate(0, []int{ni})
	require.NotNil(t, plan)
	require.Len(t, plan.stops, 1)
	// Arrival stays at the naive travel-based instant even though service
	// waits for the earliest start.
	assert.Equal(t, int64(600), plan.stops[0].arrival)
	assert.Equal(t, int64(3600), plan.stops[0].start)
	assert.Equal(t, int64(7200), plan.stops[0].end)
}

func TestPropagateRejectsLateReturn(t *testing.T) {
	req := twoJobRequest()
	req.Technicians[0].LatestEndTimeISO = "2025-06-02T09:00:00Z" // 3600s window
	m, err := BuildModel(req, testOptions())
	require.NoError(t, err)

	// One hour of service plus 1200s travel cannot close by 09:00.
	assert.Nil(t, m.propagate(0, []int{0}))
}
