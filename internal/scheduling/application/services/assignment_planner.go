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

// UnassignedJob records one job the planner could not place, with a
// human-readable reason for the cycle report.
type UnassignedJob struct {
	JobID  uuid.UUID
	Reason string
}

// AssignmentOutcome summarizes one planner pass.
type AssignmentOutcome struct {
	JobsAssigned   int
	OrdersCombined int
	OrdersSplit    int
	Unassigned     []UnassignedJob
}

// AssignmentPlanner decides which technician owns each pending job. Jobs on
// the same order are compared two ways: serviced together by one technician,
// or split across the individually fastest technicians. The order is split
// only when every one of its jobs would start strictly earlier on its own;
// otherwise one technician takes the whole order. Ties between technicians
// go to the lexicographically lowest technician id.
type AssignmentPlanner struct {
	store     domain.Store
	units     *UnitBuilder
	eta       *ETAEstimator
	publisher eventbus.Publisher
	metrics   observability.Metrics
	logger    *slog.Logger
}

// NewAssignmentPlanner creates a planner.
func NewAssignmentPlanner(store domain.Store, units *UnitBuilder, eta *ETAEstimator, publisher eventbus.Publisher, metrics observability.Metrics, logger *slog.Logger) *AssignmentPlanner {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AssignmentPlanner{store: store, units: units, eta: eta, publisher: publisher, metrics: metrics, logger: logger}
}

// candidate is a technician able to take a unit, with the earliest start the
// estimator found for it.
type candidate struct {
	tech *domain.Technician
	eta  time.Time
}

// Plan assigns the given pending jobs across the given technicians and
// persists every accepted assignment. Jobs it cannot place stay
// pending_review and are reported in the outcome. Technician iteration order
// is normalized so reruns over the same snapshot assign identically.
func (p *AssignmentPlanner) Plan(ctx context.Context, jobs []*domain.Job, technicians []*domain.Technician) (*AssignmentOutcome, error) {
	outcome := &AssignmentOutcome{}

	techs := make([]*domain.Technician, 0, len(technicians))
	for _, tech := range technicians {
		if tech != nil && tech.IsActive() {
			techs = append(techs, tech)
		}
	}
	sort.Slice(techs, func(i, j int) bool {
		return techs[i].ID().String() < techs[j].ID().String()
	})

	schedulable := make([]*domain.Job, 0, len(jobs))
	for _, job := range jobs {
		if job == nil {
			continue
		}
		if !job.IsSchedulable() || job.FixedAssignment() || job.AssignedTechnicianID() != nil {
			continue
		}
		schedulable = append(schedulable, job)
	}

	groups := make(map[uuid.UUID][]*domain.Job, len(schedulable))
	orderIDs := make([]uuid.UUID, 0, len(schedulable))
	for _, job := range schedulable {
		orderID := job.OrderID()
		if _, seen := groups[orderID]; !seen {
			orderIDs = append(orderIDs, orderID)
		}
		groups[orderID] = append(groups[orderID], job)
	}

	for _, orderID := range orderIDs {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}
		p.planOrder(ctx, orderID, groups[orderID], techs, outcome)
	}

	p.metrics.Counter(observability.MetricJobsAssigned, int64(outcome.JobsAssigned))
	p.metrics.Counter(observability.MetricJobsUnassigned, int64(len(outcome.Unassigned)))
	return outcome, nil
}

// planOrder resolves one order's jobs. Multi-job orders compute both the
// combined placement and the per-job placements before deciding.
func (p *AssignmentPlanner) planOrder(ctx context.Context, orderID uuid.UUID, jobs []*domain.Job, techs []*domain.Technician, outcome *AssignmentOutcome) {
	individual := make([]*candidate, len(jobs))
	individualComplete := true
	anyEligible := make([]bool, len(jobs))
	for i, job := range jobs {
		unit, _, err := domain.BuildUnit(orderID, []*domain.Job{job})
		if err != nil {
			individualComplete = false
			continue
		}
		individual[i], anyEligible[i] = p.bestFor(ctx, unit, techs, job)
		if individual[i] == nil {
			individualComplete = false
		}
	}

	var combined *candidate
	if len(jobs) > 1 {
		if unit := p.combinedUnit(orderID, jobs); unit != nil {
			combined, _ = p.bestFor(ctx, unit, techs, nil)
		}
	}

	splitWins := combined != nil && individualComplete && p.maxETA(individual).Before(combined.eta)

	switch {
	case combined != nil && !splitWins:
		outcome.OrdersCombined++
		for _, job := range jobs {
			p.commit(ctx, job, combined.tech, outcome)
		}
	case individualComplete && len(individual) > 0:
		if len(jobs) > 1 {
			outcome.OrdersSplit++
			p.logger.Info("splitting order across technicians",
				slog.String("order_id", orderID.String()),
				slog.Int("jobs", len(jobs)))
		}
		for i, job := range jobs {
			p.commit(ctx, job, individual[i].tech, outcome)
		}
	default:
		for i, job := range jobs {
			if individual[i] != nil {
				p.commit(ctx, job, individual[i].tech, outcome)
				continue
			}
			reason := "no eligible technician"
			if anyEligible[i] {
				reason = "no feasible slot within planning horizon"
			}
			outcome.Unassigned = append(outcome.Unassigned, UnassignedJob{JobID: job.ID(), Reason: reason})
			p.logger.Warn("job left unassigned",
				slog.String("job_id", job.ID().String()),
				slog.String("order_id", orderID.String()),
				slog.String("reason", reason))
		}
	}
}

// combinedUnit builds the whole-order unit, or nil when aggregation fails.
func (p *AssignmentPlanner) combinedUnit(orderID uuid.UUID, jobs []*domain.Job) *domain.SchedulableUnit {
	units := p.units.Build(jobs)
	if len(units) != 1 {
		return nil
	}
	return units[0]
}

// bestFor finds the technician with the strictly earliest start for the
// unit. job narrows eligibility to a single job's requirements when set;
// otherwise the unit's merged equipment list is checked. The boolean reports
// whether any technician was eligible at all, feasible slot or not.
func (p *AssignmentPlanner) bestFor(ctx context.Context, unit *domain.SchedulableUnit, techs []*domain.Technician, job *domain.Job) (*candidate, bool) {
	var best *candidate
	eligible := false
	for _, tech := range techs {
		if job != nil {
			if !tech.CanHandle(job) {
				continue
			}
		} else if !tech.CoversEquipment(unit.RequiredEquipment) {
			continue
		}
		eligible = true
		start, err := p.eta.EarliestStart(ctx, tech, unit)
		if err != nil {
			p.logger.Warn("eta estimate failed",
				slog.String("technician_id", tech.ID().String()),
				slog.String("unit_id", unit.ID),
				slog.String("error", err.Error()))
			continue
		}
		if start == nil {
			continue
		}
		if best == nil || start.Before(best.eta) {
			best = &candidate{tech: tech, eta: *start}
		}
	}
	return best, eligible
}

// maxETA returns the latest of the candidates' starts. Callers guarantee the
// slice is complete.
func (p *AssignmentPlanner) maxETA(candidates []*candidate) time.Time {
	var max time.Time
	for _, c := range candidates {
		if c != nil && c.eta.After(max) {
			max = c.eta
		}
	}
	return max
}

// commit records the assignment on the aggregate and persists it. A write
// that still fails after retries rolls the job back to pending so the next
// cycle retries it from scratch.
func (p *AssignmentPlanner) commit(ctx context.Context, job *domain.Job, tech *domain.Technician, outcome *AssignmentOutcome) {
	if err := job.Assign(tech.ID()); err != nil {
		outcome.Unassigned = append(outcome.Unassigned, UnassignedJob{JobID: job.ID(), Reason: err.Error()})
		p.logger.Warn("assignment rejected by job state",
			slog.String("job_id", job.ID().String()),
			slog.String("error", err.Error()))
		return
	}
	techID := tech.ID()
	err := withRetry(ctx, storeRetryAttempts, storeRetryBackoff, func() error {
		return p.store.UpdateJobAssignment(ctx, job.ID(), &techID, domain.JobStatusAssigned)
	})
	if err != nil {
		if uerr := job.Unassign(); uerr != nil {
			p.logger.Error("rollback after failed assignment write",
				slog.String("job_id", job.ID().String()),
				slog.String("error", uerr.Error()))
		}
		// The write never landed, so the raised JobAssigned must not leak
		// into a later drain.
		job.ClearDomainEvents()
		outcome.Unassigned = append(outcome.Unassigned, UnassignedJob{JobID: job.ID(), Reason: "assignment write failed"})
		p.logger.Error("assignment write failed after retries",
			slog.String("job_id", job.ID().String()),
			slog.String("technician_id", techID.String()),
			slog.String("error", err.Error()))
		return
	}
	outcome.JobsAssigned++
	p.logger.Info("job assigned",
		slog.String("job_id", job.ID().String()),
		slog.String("order_id", job.OrderID().String()),
		slog.String("technician_id", techID.String()))

	publishRaisedEvents(ctx, p.publisher, p.metrics, p.logger, job)
}
