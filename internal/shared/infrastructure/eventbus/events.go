package eventbus

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Routing keys for scheduling events.
const (
	RoutingKeyPlanCompleted  = "dispatch.plan.completed"
	RoutingKeyJobAssigned    = "dispatch.job.assigned"
	RoutingKeyJobETAsUpdated = "dispatch.job.etas_updated"
)

// Envelope wraps every published event payload.
type Envelope struct {
	EventID    string          `json:"eventId"`
	EventType  string          `json:"eventType"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

// PlanCompletedEvent is published at the end of every planning cycle.
type PlanCompletedEvent struct {
	CycleID          string         `json:"cycleId"`
	Technicians      int            `json:"technicians"`
	JobsAssigned     int            `json:"jobsAssigned"`
	JobsUnassigned   int            `json:"jobsUnassigned"`
	UnitsScheduled   int            `json:"unitsScheduled"`
	UnitsUnscheduled int            `json:"unitsUnscheduled"`
	DurationMillis   int64          `json:"durationMillis"`
	PerTechnician    map[string]int `json:"perTechnician,omitempty"`
}

// JobAssignedEvent is published when the planner commits an assignment.
type JobAssignedEvent struct {
	JobID        string `json:"jobId"`
	OrderID      string `json:"orderId"`
	TechnicianID string `json:"technicianId"`
	Status       string `json:"status"`
}

// JobETAsUpdatedEvent is published after back-propagation writes ETAs.
type JobETAsUpdatedEvent struct {
	JobID             string     `json:"jobId"`
	TechnicianID      string     `json:"technicianId"`
	EstimatedSched    *time.Time `json:"estimatedSched,omitempty"`
	EstimatedSchedEnd *time.Time `json:"estimatedSchedEnd,omitempty"`
	CustomerETAStart  *time.Time `json:"customerEtaStart,omitempty"`
	CustomerETAEnd    *time.Time `json:"customerEtaEnd,omitempty"`
}

// PublishEvent marshals the payload into an envelope and publishes it.
// Publish failures are logged and returned; callers treat them as
// non-fatal because eventing never blocks a planning cycle.
func PublishEvent(ctx context.Context, pub Publisher, logger *slog.Logger, routingKey string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	env := Envelope{
		EventID:    uuid.New().String(),
		EventType:  routingKey,
		OccurredAt: time.Now().UTC(),
		Payload:    raw,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if err := pub.Publish(ctx, routingKey, body); err != nil {
		if logger != nil {
			logger.Warn("event publish failed", "routing_key", routingKey, "error", err)
		}
		return err
	}
	return nil
}
