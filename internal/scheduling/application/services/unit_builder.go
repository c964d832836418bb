package services

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/fieldworks-io/dispatch/internal/scheduling/domain"
)

// UnitBuilder groups jobs into schedulable units, one per order. Jobs on the
// same order share an address and are serviced back to back, so the planner
// and the route engine never see them individually.
type UnitBuilder struct {
	logger *slog.Logger
}

// NewUnitBuilder creates a unit builder.
func NewUnitBuilder(logger *slog.Logger) *UnitBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &UnitBuilder{logger: logger}
}

// Build derives one unit per order from the given jobs. Orders keep the
// relative order in which their first job appears, so a stable input slice
// yields a stable unit slice. Aggregation anomalies inside an order are
// logged as warnings and never fail the build.
func (b *UnitBuilder) Build(jobs []*domain.Job) []*domain.SchedulableUnit {
	groups := make(map[uuid.UUID][]*domain.Job, len(jobs))
	orderIDs := make([]uuid.UUID, 0, len(jobs))
	for _, job := range jobs {
		if job == nil {
			continue
		}
		orderID := job.OrderID()
		if _, seen := groups[orderID]; !seen {
			orderIDs = append(orderIDs, orderID)
		}
		groups[orderID] = append(groups[orderID], job)
	}

	units := make([]*domain.SchedulableUnit, 0, len(orderIDs))
	for _, orderID := range orderIDs {
		unit, warnings, err := domain.BuildUnit(orderID, groups[orderID])
		if err != nil {
			b.logger.Error("skipping unbuildable order",
				slog.String("order_id", orderID.String()),
				slog.String("error", err.Error()))
			continue
		}
		for _, warning := range warnings {
			b.logger.Warn("unit aggregation anomaly",
				slog.String("order_id", orderID.String()),
				slog.String("detail", warning))
		}
		units = append(units, unit)
	}
	return units
}
