// Package cli implements the dispatch command line: planning cycles, data
// seeding, schedule inspection, and health checks against a wired container.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fieldworks-io/dispatch/internal/app"
	"github.com/fieldworks-io/dispatch/pkg/observability"
)

var (
	cfgFile   string
	verbose   bool
	logger    *slog.Logger
	container *app.Container
)

type commandContext struct {
	correlationID uuid.UUID
	startedAt     time.Time
}

type commandContextKey struct{}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Dispatch - multi-day field service scheduler",
	Long: `Dispatch plans multi-day schedules for mobile technicians.

It assigns pending jobs to eligible technicians, routes each
technician's days through the VRP solver, and writes arrival
estimates back for customer communication.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if logger == nil {
			logger = slog.Default()
		}
		ctx := cmd.Context()
		info := commandContext{
			correlationID: uuid.New(),
			startedAt:     time.Now(),
		}
		ctx = context.WithValue(ctx, commandContextKey{}, info)
		// Context-aware log handlers pick the id up from here on.
		ctx = observability.WithCorrelationID(ctx, info.correlationID.String())
		cmd.SetContext(ctx)
		logger.Info("command start",
			"command", cmd.CommandPath(),
			"correlation_id", info.correlationID.String(),
		)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger == nil {
			logger = slog.Default()
		}
		info, ok := cmd.Context().Value(commandContextKey{}).(commandContext)
		if !ok {
			return
		}
		logger.Info("command end",
			"command", cmd.CommandPath(),
			"correlation_id", info.correlationID.String(),
			"duration_ms", time.Since(info.startedAt).Milliseconds(),
		)
	},
}

// Execute runs the root command with the given context so long-running
// commands stop on shutdown signals.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// SetLogger sets the CLI logger.
func SetLogger(l *slog.Logger) {
	logger = l
}

// SetContainer injects the wired application container.
func SetContainer(c *app.Container) {
	container = c
}

// GetContainer returns the container, or nil when running without one.
func GetContainer() *app.Container {
	return container
}

// requireContainer is the guard for commands that need a live container.
func requireContainer() (*app.Container, error) {
	if container == nil {
		return nil, fmt.Errorf("not connected to a database; check configuration and logs")
	}
	return container, nil
}
