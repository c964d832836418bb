package optimizer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldworks-io/dispatch/internal/solver/vrp"
	"github.com/fieldworks-io/dispatch/pkg/observability"
)

type stubOptimizer struct {
	resp  *vrp.Response
	err   error
	calls int
}

func (s *stubOptimizer) OptimizeDay(ctx context.Context, req *vrp.Request) (*vrp.Response, error) {
	s.calls++
	return s.resp, s.err
}

func TestFailoverPrefersPrimary(t *testing.T) {
	primary := &stubOptimizer{resp: cannedResponse()}
	fallback := &stubOptimizer{resp: &vrp.Response{Status: vrp.StatusError}}
	f := NewFailover(primary, fallback, observability.NoopMetrics{}, testLogger())

	resp, err := f.OptimizeDay(context.Background(), dayRequest())
	require.NoError(t, err)
	assert.Equal(t, vrp.StatusSuccess, resp.Status)
	assert.Equal(t, 1, primary.calls)
	assert.Zero(t, fallback.calls)
}

func TestFailoverFallsBackWhenPrimaryDown(t *testing.T) {
	primary := &stubOptimizer{err: ErrSolverUnavailable}
	fallback := &stubOptimizer{resp: cannedResponse()}
	metrics := observability.NewInMemoryMetrics()
	f := NewFailover(primary, fallback, metrics, testLogger())

	resp, err := f.OptimizeDay(context.Background(), dayRequest())
	require.NoError(t, err)
	assert.Equal(t, vrp.StatusSuccess, resp.Status)
	assert.Equal(t, 1, fallback.calls)
	assert.Equal(t, int64(1), metrics.GetCounter(observability.MetricSolveFallbacks))
}

func TestFailoverDoesNotHideRejectedRequests(t *testing.T) {
	primary := &stubOptimizer{err: &RequestRejectedError{Message: "unknown location index 7"}}
	fallback := &stubOptimizer{resp: cannedResponse()}
	f := NewFailover(primary, fallback, observability.NoopMetrics{}, testLogger())

	_, err := f.OptimizeDay(context.Background(), dayRequest())
	require.Error(t, err)

	var rejected *RequestRejectedError
	assert.True(t, errors.As(err, &rejected))
	assert.Zero(t, fallback.calls, "a rejected request must surface, not fail over")
}

func TestFailoverToRealHeuristic(t *testing.T) {
	primary := &stubOptimizer{err: errors.New("connection refused")}
	heuristic := NewHeuristic(vrp.Options{TimeLimit: 100 * time.Millisecond}, testLogger())
	f := NewFailover(primary, heuristic, observability.NoopMetrics{}, testLogger())

	resp, err := f.OptimizeDay(context.Background(), dayRequest())
	require.NoError(t, err)
	assert.Equal(t, vrp.StatusSuccess, resp.Status)
	require.Len(t, resp.Routes, 1)
	assert.Equal(t, "item-1", resp.Routes[0].Stops[0].ItemID)
}
