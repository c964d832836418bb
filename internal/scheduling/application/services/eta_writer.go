package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fieldworks-io/dispatch/internal/scheduling/domain"
	"github.com/fieldworks-io/dispatch/internal/shared/infrastructure/eventbus"
	"github.com/fieldworks-io/dispatch/pkg/observability"
)

// ETAReport summarizes one back-propagation pass for a technician.
type ETAReport struct {
	JobsUpdated int
	JobsCleared int
}

// ETAWriter pushes a freshly solved schedule back onto the jobs. Jobs inside
// a unit are serviced consecutively, so each gets a sequential slice of the
// unit's window; the customer-facing window opens at the estimated start and
// spans the configured width. Jobs whose unit fit nowhere get their ETAs
// cleared rather than left stale.
type ETAWriter struct {
	store     domain.Store
	publisher eventbus.Publisher
	window    time.Duration
	metrics   observability.Metrics
	logger    *slog.Logger
}

// NewETAWriter creates a writer with the given customer ETA window width.
func NewETAWriter(store domain.Store, publisher eventbus.Publisher, window time.Duration, metrics observability.Metrics, logger *slog.Logger) *ETAWriter {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ETAWriter{store: store, publisher: publisher, window: window, metrics: metrics, logger: logger}
}

// WriteSchedule persists ETAs for everything the plan scheduled and clears
// them for everything it could not. The write is one batched store call;
// event publishing afterwards is best effort and never fails the cycle.
func (w *ETAWriter) WriteSchedule(ctx context.Context, tech *domain.Technician, plan *TechnicianPlan) (*ETAReport, error) {
	report := &ETAReport{}
	updates := make(map[uuid.UUID]domain.ETAUpdate)
	jobsByID := make(map[uuid.UUID]*domain.Job)

	schedule := tech.Schedule()
	for _, day := range schedule.Days() {
		for _, visit := range schedule.Day(day) {
			cursor := visit.StartTime
			for _, job := range visit.Unit.Jobs {
				sched := cursor
				schedEnd := cursor.Add(job.Duration())
				customerStart := sched
				customerEnd := sched.Add(w.window)
				updates[job.ID()] = domain.ETAUpdate{
					EstimatedSched:    &sched,
					EstimatedSchedEnd: &schedEnd,
					CustomerETAStart:  &customerStart,
					CustomerETAEnd:    &customerEnd,
				}
				jobsByID[job.ID()] = job
				cursor = schedEnd
				report.JobsUpdated++
			}
		}
	}

	for _, unit := range plan.Unscheduled {
		for _, job := range unit.Jobs {
			if _, scheduled := updates[job.ID()]; scheduled {
				continue
			}
			updates[job.ID()] = domain.ETAUpdate{}
			jobsByID[job.ID()] = job
			report.JobsCleared++
		}
	}

	if len(updates) == 0 {
		return report, nil
	}

	err := withRetry(ctx, storeRetryAttempts, storeRetryBackoff, func() error {
		return w.store.UpdateJobETAs(ctx, updates)
	})
	if err != nil {
		return nil, err
	}

	for jobID, update := range updates {
		job := jobsByID[jobID]
		job.SetETAs(update.EstimatedSched, update.EstimatedSchedEnd, update.CustomerETAStart, update.CustomerETAEnd)
		publishRaisedEvents(ctx, w.publisher, w.metrics, w.logger, job)
	}

	w.metrics.Counter(observability.MetricETAsWritten, int64(report.JobsUpdated))
	w.logger.Info("etas written",
		slog.String("technician_id", tech.ID().String()),
		slog.Int("jobs_updated", report.JobsUpdated),
		slog.Int("jobs_cleared", report.JobsCleared))
	return report, nil
}
