package services

import (
	"context"
	"log/slog"

	"github.com/fieldworks-io/dispatch/internal/scheduling/domain"
	sharedDomain "github.com/fieldworks-io/dispatch/internal/shared/domain"
	"github.com/fieldworks-io/dispatch/internal/shared/infrastructure/eventbus"
	"github.com/fieldworks-io/dispatch/pkg/observability"
)

// publishRaisedEvents drains the job's uncommitted domain events and pushes
// them onto the bus in wire form. Callers invoke it only after the matching
// store write succeeded; events without a wire mapping are dropped.
func publishRaisedEvents(ctx context.Context, pub eventbus.Publisher, metrics observability.Metrics, logger *slog.Logger, job *domain.Job) {
	for _, raised := range job.DomainEvents() {
		key, payload, ok := wireEvent(raised)
		if !ok {
			continue
		}
		if err := eventbus.PublishEvent(ctx, pub, logger, key, payload); err == nil {
			metrics.Counter(observability.MetricEventsPublished, 1)
		}
	}
	job.ClearDomainEvents()
}

// wireEvent maps a domain event onto its published routing key and payload.
func wireEvent(raised sharedDomain.DomainEvent) (string, any, bool) {
	switch e := raised.(type) {
	case domain.JobAssigned:
		return eventbus.RoutingKeyJobAssigned, eventbus.JobAssignedEvent{
			JobID:        e.JobID.String(),
			OrderID:      e.OrderID.String(),
			TechnicianID: e.TechnicianID.String(),
			Status:       e.Status,
		}, true
	case domain.JobETAsUpdated:
		wire := eventbus.JobETAsUpdatedEvent{
			JobID:             e.JobID.String(),
			EstimatedSched:    e.EstimatedSched,
			EstimatedSchedEnd: e.EstimatedSchedEnd,
			CustomerETAStart:  e.CustomerETAStart,
			CustomerETAEnd:    e.CustomerETAEnd,
		}
		if e.TechnicianID != nil {
			wire.TechnicianID = e.TechnicianID.String()
		}
		return eventbus.RoutingKeyJobETAsUpdated, wire, true
	default:
		return "", nil, false
	}
}
