package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/fieldworks-io/dispatch/internal/solver/vrp"
	"github.com/fieldworks-io/dispatch/pkg/observability"
)

// OptimizeHandler serves optimize-schedule requests. Malformed payloads get a
// 400; everything else, including internal failures, comes back as a 200 with
// a status field so the engine always has a verdict to act on.
type OptimizeHandler struct {
	opts    vrp.Options
	metrics observability.Metrics
	logger  *slog.Logger
}

// NewOptimizeHandler creates the handler. opts carries the solver wall-clock
// limit and search logging toggle from configuration.
func NewOptimizeHandler(opts vrp.Options, metrics observability.Metrics, logger *slog.Logger) *OptimizeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	opts.Logger = logger
	return &OptimizeHandler{opts: opts, metrics: metrics, logger: logger}
}

// OptimizeSchedule decodes the routing request, solves it, and writes the
// result. A panic anywhere in the solve is converted to a status=error
// response with every item unassigned; no exception escapes the handler.
func (h *OptimizeHandler) OptimizeSchedule(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	h.metrics.Counter(observability.MetricSolveRequests, 1)

	var req vrp.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.metrics.Counter(observability.MetricSolveErrors, 1, observability.T("kind", "decode"))
		h.logger.WarnContext(r.Context(), "rejecting malformed optimize request",
			slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			h.metrics.Counter(observability.MetricSolveErrors, 1, observability.T("kind", "panic"))
			h.logger.ErrorContext(r.Context(), "solver panicked, returning full-unassigned result",
				slog.Any("panic", rec))
			writeJSON(w, http.StatusOK, internalErrorResponse(&req))
		}
	}()

	h.logger.InfoContext(r.Context(), "optimize-schedule request received",
		slog.Int("locations", len(req.Locations)),
		slog.Int("technicians", len(req.Technicians)),
		slog.Int("items", len(req.Items)),
		slog.Int("fixed_constraints", len(req.FixedConstraints)),
		slog.Int("unavailabilities", len(req.TechnicianUnavailabilities)))

	resp, err := vrp.Solve(r.Context(), &req, h.opts)
	if err != nil {
		// Solve only errors on invalid input.
		h.metrics.Counter(observability.MetricSolveErrors, 1, observability.T("kind", "validation"))
		h.logger.WarnContext(r.Context(), "optimize request failed validation",
			slog.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.metrics.Timing(observability.MetricSolveDuration, time.Since(started))
	h.metrics.Counter(observability.MetricSolveDropped, int64(len(resp.UnassignedItemIDs)))
	h.logger.InfoContext(r.Context(), "optimize-schedule request served",
		slog.String("status", resp.Status),
		slog.Int("routes", len(resp.Routes)),
		slog.Int("unassigned", len(resp.UnassignedItemIDs)),
		slog.Duration("elapsed", time.Since(started)))
	writeJSON(w, http.StatusOK, resp)
}

func internalErrorResponse(req *vrp.Request) *vrp.Response {
	ids := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		ids = append(ids, item.ID)
	}
	return &vrp.Response{
		Status:            vrp.StatusError,
		Message:           "Internal solver failure.",
		Routes:            []vrp.Route{},
		UnassignedItemIDs: ids,
	}
}
