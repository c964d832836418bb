// Package services implements the planning pipeline: grouping jobs into
// units, deciding which technician owns each order, routing every
// technician's days through the optimizer, and writing the resulting ETAs
// back onto the jobs. PlanCycle strings the stages together; each stage is
// also usable on its own.
package services

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/fieldworks-io/dispatch/internal/scheduling/domain"
	"github.com/fieldworks-io/dispatch/internal/shared/infrastructure/eventbus"
	"github.com/fieldworks-io/dispatch/pkg/observability"
)

// CycleReport is the outcome of one full planning cycle.
type CycleReport struct {
	CycleID          uuid.UUID
	StartedAt        time.Time
	Elapsed          time.Duration
	Technicians      int
	PendingJobs      int
	JobsAssigned     int
	OrdersCombined   int
	OrdersSplit      int
	Unassigned       []UnassignedJob
	UnitsScheduled   int
	UnitsUnscheduled int
	ETAsWritten      int
	ETAsCleared      int
	TechnicianErrors int
	PerTechnician    map[string]int
}

// PlanCycle runs the whole pipeline over a fresh snapshot: load technicians
// and pending jobs, assign, route, back-propagate. A failure planning one
// technician is contained to that technician; the cycle carries on and
// reports it.
type PlanCycle struct {
	store     domain.Store
	planner   *AssignmentPlanner
	router    *RouteEngine
	writer    *ETAWriter
	publisher eventbus.Publisher
	metrics   observability.Metrics
	logger    *slog.Logger
}

// NewPlanCycle creates the cycle orchestrator.
func NewPlanCycle(
	store domain.Store,
	planner *AssignmentPlanner,
	router *RouteEngine,
	writer *ETAWriter,
	publisher eventbus.Publisher,
	metrics observability.Metrics,
	logger *slog.Logger,
) *PlanCycle {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PlanCycle{
		store:     store,
		planner:   planner,
		router:    router,
		writer:    writer,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
}

// Run executes one planning cycle. It returns an error only when the
// snapshot itself cannot be loaded; everything downstream degrades per
// technician instead of failing the cycle.
func (c *PlanCycle) Run(ctx context.Context) (*CycleReport, error) {
	report := &CycleReport{
		CycleID:       uuid.New(),
		StartedAt:     time.Now().UTC(),
		PerTechnician: make(map[string]int),
	}
	logger := c.logger.With(slog.String("cycle_id", report.CycleID.String()))
	logger.Info("planning cycle started")

	var techs []*domain.Technician
	err := withRetry(ctx, storeRetryAttempts, storeRetryBackoff, func() error {
		var loadErr error
		techs, loadErr = c.store.ActiveTechnicians(ctx)
		return loadErr
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(techs, func(i, j int) bool {
		return techs[i].ID().String() < techs[j].ID().String()
	})

	var jobs []*domain.Job
	err = withRetry(ctx, storeRetryAttempts, storeRetryBackoff, func() error {
		var loadErr error
		jobs, loadErr = c.store.PendingJobs(ctx)
		return loadErr
	})
	if err != nil {
		return nil, err
	}
	report.Technicians = len(techs)
	report.PendingJobs = len(jobs)

	c.resolveEquipment(ctx, jobs, logger)

	outcome, err := c.planner.Plan(ctx, jobs, techs)
	if err != nil {
		return nil, err
	}
	report.JobsAssigned = outcome.JobsAssigned
	report.OrdersCombined = outcome.OrdersCombined
	report.OrdersSplit = outcome.OrdersSplit
	report.Unassigned = outcome.Unassigned

	for _, tech := range techs {
		techCtx := observability.WithTechnicianID(ctx, tech.ID().String())

		timer := observability.StartTimer("route_technician").WithMetrics(c.metrics)
		plan, err := c.router.PlanTechnician(techCtx, tech)
		timer.StopWithError(err)
		if err != nil {
			report.TechnicianErrors++
			logger.Error("technician routing failed",
				slog.String("technician_id", tech.ID().String()),
				slog.String("error", err.Error()))
			continue
		}
		report.UnitsScheduled += plan.UnitsPlanned
		report.UnitsUnscheduled += len(plan.Unscheduled)
		report.PerTechnician[tech.ID().String()] = plan.UnitsPlanned

		etas, err := c.writer.WriteSchedule(techCtx, tech, plan)
		if err != nil {
			report.TechnicianErrors++
			logger.Error("eta write failed",
				slog.String("technician_id", tech.ID().String()),
				slog.String("error", err.Error()))
			continue
		}
		report.ETAsWritten += etas.JobsUpdated
		report.ETAsCleared += etas.JobsCleared
	}

	report.Elapsed = time.Since(report.StartedAt)
	c.publishCompleted(ctx, report, logger)

	c.metrics.Counter(observability.MetricPlanCycles, 1)
	c.metrics.Timing(observability.MetricPlanDuration, report.Elapsed)
	logger.Info("planning cycle finished",
		slog.Int("technicians", report.Technicians),
		slog.Int("pending_jobs", report.PendingJobs),
		slog.Int("jobs_assigned", report.JobsAssigned),
		slog.Int("jobs_unassigned", len(report.Unassigned)),
		slog.Int("units_scheduled", report.UnitsScheduled),
		slog.Int("units_unscheduled", report.UnitsUnscheduled),
		slog.Int("technician_errors", report.TechnicianErrors),
		slog.Duration("elapsed", report.Elapsed))
	return report, nil
}

// resolveEquipment fills in required equipment for jobs that carry none,
// using the vehicle and service mapping. A lookup failure degrades to "no
// requirement" so one missing mapping row cannot park a job forever.
func (c *PlanCycle) resolveEquipment(ctx context.Context, jobs []*domain.Job, logger *slog.Logger) {
	for _, job := range jobs {
		if len(job.RequiredEquipment()) > 0 || job.YMMID() == 0 || len(job.ServiceIDs()) == 0 {
			continue
		}
		var models []string
		err := withRetry(ctx, storeRetryAttempts, storeRetryBackoff, func() error {
			var lookupErr error
			models, lookupErr = c.store.EquipmentRequirements(ctx, job.YMMID(), job.ServiceIDs())
			return lookupErr
		})
		if err != nil {
			logger.Warn("equipment requirements lookup failed, treating job as unrestricted",
				slog.String("job_id", job.ID().String()),
				slog.Int64("ymm_id", job.YMMID()),
				slog.String("error", err.Error()))
			continue
		}
		if len(models) > 0 {
			job.RequireEquipment(models...)
		}
	}
}

// publishCompleted emits the cycle summary event. Publish failures are
// logged by the event helper and otherwise ignored.
func (c *PlanCycle) publishCompleted(ctx context.Context, report *CycleReport, logger *slog.Logger) {
	event := eventbus.PlanCompletedEvent{
		CycleID:          report.CycleID.String(),
		Technicians:      report.Technicians,
		JobsAssigned:     report.JobsAssigned,
		JobsUnassigned:   len(report.Unassigned),
		UnitsScheduled:   report.UnitsScheduled,
		UnitsUnscheduled: report.UnitsUnscheduled,
		DurationMillis:   report.Elapsed.Milliseconds(),
		PerTechnician:    report.PerTechnician,
	}
	if err := eventbus.PublishEvent(ctx, c.publisher, logger, eventbus.RoutingKeyPlanCompleted, event); err == nil {
		c.metrics.Counter(observability.MetricEventsPublished, 1)
	}
}
