package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fieldworks-io/dispatch/internal/shared/infrastructure/eventbus"
)

var eventsKeys []string

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Follow scheduling events from the message bus",
	Long: `Tail scheduling events published to the RabbitMQ topic exchange.

The command binds an ephemeral queue to the exchange and prints every
matching event until interrupted:

  dispatch events
  dispatch events --key dispatch.job.assigned`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireContainer()
		if err != nil {
			return err
		}
		if c.Config.RabbitMQURL == "" {
			return fmt.Errorf("RabbitMQ is not configured; set RABBITMQ_URL to follow events")
		}

		registry := eventbus.NewConsumerRegistry(logger)
		consumer, err := eventbus.NewRabbitMQConsumer(eventbus.RabbitMQConsumerConfig{
			URL:       c.Config.RabbitMQURL,
			Ephemeral: true,
			Logger:    logger,
		}, registry)
		if err != nil {
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		defer func() { _ = consumer.Close() }()

		consumer.RegisterConsumer(&eventPrinter{keys: eventsKeys})

		fmt.Printf("Following %s (Ctrl-C to stop)\n", strings.Join(eventsKeys, ", "))
		if err := consumer.Start(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

// eventPrinter renders consumed events as single lines on stdout.
type eventPrinter struct {
	keys []string
}

func (p *eventPrinter) EventTypes() []string { return p.keys }

func (p *eventPrinter) Handle(_ context.Context, event *eventbus.ConsumedEvent) error {
	ts := event.OccurredAt.Local().Format("15:04:05")

	switch event.RoutingKey {
	case eventbus.RoutingKeyPlanCompleted:
		var e eventbus.PlanCompletedEvent
		if err := json.Unmarshal(event.Payload, &e); err == nil {
			fmt.Printf("%s  plan.completed    cycle=%.8s technicians=%d assigned=%d unassigned=%d units=%d elapsed=%dms\n",
				ts, e.CycleID, e.Technicians, e.JobsAssigned, e.JobsUnassigned, e.UnitsScheduled, e.DurationMillis)
			return nil
		}
	case eventbus.RoutingKeyJobAssigned:
		var e eventbus.JobAssignedEvent
		if err := json.Unmarshal(event.Payload, &e); err == nil {
			fmt.Printf("%s  job.assigned      job=%.8s order=%.8s technician=%.8s status=%s\n",
				ts, e.JobID, e.OrderID, e.TechnicianID, e.Status)
			return nil
		}
	case eventbus.RoutingKeyJobETAsUpdated:
		var e eventbus.JobETAsUpdatedEvent
		if err := json.Unmarshal(event.Payload, &e); err == nil {
			eta := "cleared"
			if e.EstimatedSched != nil {
				eta = e.EstimatedSched.Local().Format("Jan 2 15:04")
			}
			fmt.Printf("%s  job.etas_updated  job=%.8s technician=%.8s eta=%s\n",
				ts, e.JobID, e.TechnicianID, eta)
			return nil
		}
	}

	// Unknown key or malformed payload: print it raw rather than drop it.
	fmt.Printf("%s  %s  %s\n", ts, event.RoutingKey, string(event.Payload))
	return nil
}

func init() {
	eventsCmd.Flags().StringSliceVar(&eventsKeys, "key", []string{
		eventbus.RoutingKeyPlanCompleted,
		eventbus.RoutingKeyJobAssigned,
		eventbus.RoutingKeyJobETAsUpdated,
	}, "routing keys to follow")
	rootCmd.AddCommand(eventsCmd)
}
