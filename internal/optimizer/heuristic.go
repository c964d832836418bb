package optimizer

import (
	"context"
	"log/slog"

	"github.com/fieldworks-io/dispatch/internal/solver/vrp"
)

// Heuristic runs the in-process nearest-neighbor solver. It needs no network
// and is the engine's answer when the optimization service is down.
type Heuristic struct {
	opts vrp.Options
}

// NewHeuristic creates the in-process optimizer.
func NewHeuristic(opts vrp.Options, logger *slog.Logger) *Heuristic {
	if logger != nil {
		opts.Logger = logger
	}
	return &Heuristic{opts: opts}
}

// OptimizeDay solves the day with the heuristic pipeline.
func (h *Heuristic) OptimizeDay(ctx context.Context, req *vrp.Request) (*vrp.Response, error) {
	return vrp.SolveHeuristic(ctx, req, h.opts)
}
