package optimizer

import (
	"context"
	"errors"
	"log/slog"

	"github.com/fieldworks-io/dispatch/internal/solver/vrp"
	"github.com/fieldworks-io/dispatch/pkg/observability"
)

// Failover tries the primary optimizer and falls back to the secondary when
// the primary is unreachable. Request rejections do not fail over: a request
// the service calls malformed would only have its defect hidden by the
// heuristic.
type Failover struct {
	primary  Optimizer
	fallback Optimizer
	metrics  observability.Metrics
	logger   *slog.Logger
}

// NewFailover wires a primary and fallback optimizer together.
func NewFailover(primary, fallback Optimizer, metrics observability.Metrics, logger *slog.Logger) *Failover {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &Failover{primary: primary, fallback: fallback, metrics: metrics, logger: logger}
}

// OptimizeDay delegates to the primary, then the fallback.
func (f *Failover) OptimizeDay(ctx context.Context, req *vrp.Request) (*vrp.Response, error) {
	resp, err := f.primary.OptimizeDay(ctx, req)
	if err == nil {
		return resp, nil
	}

	var rejected *RequestRejectedError
	if errors.As(err, &rejected) {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, err
	}

	f.metrics.Counter(observability.MetricSolveFallbacks, 1)
	f.logger.Warn("optimizer service failed, using heuristic fallback",
		slog.String("error", err.Error()))
	return f.fallback.OptimizeDay(ctx, req)
}
