package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldworks-io/dispatch/internal/scheduling/domain"
	"github.com/fieldworks-io/dispatch/internal/shared/infrastructure/eventbus"
	"github.com/fieldworks-io/dispatch/pkg/observability"
)

type recordingPublisher struct {
	mu       sync.Mutex
	keys     []string
	payloads [][]byte
}

func (p *recordingPublisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, routingKey)
	p.payloads = append(p.payloads, payload)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func decodePayload[T any](t *testing.T, body []byte) T {
	t.Helper()
	var env eventbus.Envelope
	require.NoError(t, json.Unmarshal(body, &env))
	var payload T
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	return payload
}

func TestPublishRaisedEventsJobAssigned(t *testing.T) {
	pub := &recordingPublisher{}
	tech := newTech(t, "Ada")
	job := newJob(t, uuid.New(), domain.NewAddress(33.45, -112.07), 5, time.Hour)
	require.NoError(t, job.Assign(tech.ID()))

	publishRaisedEvents(context.Background(), pub, observability.NoopMetrics{}, testLogger(), job)

	require.Equal(t, []string{eventbus.RoutingKeyJobAssigned}, pub.keys)
	assigned := decodePayload[eventbus.JobAssignedEvent](t, pub.payloads[0])
	assert.Equal(t, job.ID().String(), assigned.JobID)
	assert.Equal(t, job.OrderID().String(), assigned.OrderID)
	assert.Equal(t, tech.ID().String(), assigned.TechnicianID)
	assert.Equal(t, string(domain.JobStatusAssigned), assigned.Status)
	assert.Empty(t, job.DomainEvents())
}

func TestPublishRaisedEventsETAs(t *testing.T) {
	pub := &recordingPublisher{}
	tech := newTech(t, "Ada")
	job := newJob(t, uuid.New(), domain.NewAddress(33.45, -112.07), 5, time.Hour)
	require.NoError(t, job.Assign(tech.ID()))
	publishRaisedEvents(context.Background(), pub, observability.NoopMetrics{}, testLogger(), job)
	pub.keys, pub.payloads = nil, nil

	sched := dayAt(1, 9, 0)
	schedEnd := sched.Add(time.Hour)
	job.SetETAs(&sched, &schedEnd, &sched, &schedEnd)

	publishRaisedEvents(context.Background(), pub, observability.NoopMetrics{}, testLogger(), job)

	require.Equal(t, []string{eventbus.RoutingKeyJobETAsUpdated}, pub.keys)
	etas := decodePayload[eventbus.JobETAsUpdatedEvent](t, pub.payloads[0])
	assert.Equal(t, job.ID().String(), etas.JobID)
	assert.Equal(t, tech.ID().String(), etas.TechnicianID)
	require.NotNil(t, etas.EstimatedSched)
	assert.True(t, etas.EstimatedSched.Equal(sched))
	assert.Empty(t, job.DomainEvents())
}

func TestPublishRaisedEventsDropsUnmappedEvents(t *testing.T) {
	pub := &recordingPublisher{}
	job := newJob(t, uuid.New(), domain.NewAddress(33.45, -112.07), 5, time.Hour)
	job.SetFixedScheduleTime(dayAt(1, 10, 0))

	publishRaisedEvents(context.Background(), pub, observability.NoopMetrics{}, testLogger(), job)

	assert.Empty(t, pub.keys)
	assert.Empty(t, job.DomainEvents())
}
