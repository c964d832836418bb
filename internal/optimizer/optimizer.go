// Package optimizer connects the planning engine to a day-route solver. The
// production path is the HTTP optimization service behind a circuit breaker;
// a pure in-process heuristic serves as the failover and as the default in
// environments without the service.
package optimizer

import (
	"context"

	"github.com/fieldworks-io/dispatch/internal/solver/vrp"
)

// Optimizer produces routes for one day's worth of schedulable units.
type Optimizer interface {
	OptimizeDay(ctx context.Context, req *vrp.Request) (*vrp.Response, error)
}
