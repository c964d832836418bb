package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fieldworks-io/dispatch/internal/scheduling/application/services"
)

var planEvery time.Duration

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Run a planning cycle",
	Long: `Run one full planning cycle: assign pending jobs to technicians,
route every technician's days through the optimizer, and write
arrival estimates back to the jobs.

Examples:
  dispatch plan              # Run a single cycle
  dispatch plan --every 5m   # Replan continuously every 5 minutes`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireContainer()
		if err != nil {
			return err
		}

		report, err := c.PlanCycle.Run(cmd.Context())
		if err != nil {
			return fmt.Errorf("planning cycle failed: %w", err)
		}
		printCycleReport(report)

		if planEvery <= 0 {
			return nil
		}

		ticker := time.NewTicker(planEvery)
		defer ticker.Stop()
		for {
			select {
			case <-cmd.Context().Done():
				return nil
			case <-ticker.C:
				report, err := c.PlanCycle.Run(cmd.Context())
				if err != nil {
					logger.Error("planning cycle failed", "error", err)
					continue
				}
				printCycleReport(report)
			}
		}
	},
}

func printCycleReport(r *services.CycleReport) {
	fmt.Println()
	fmt.Printf("  PLAN CYCLE %s\n", r.CycleID.String()[:8])
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("    Technicians:      %d\n", r.Technicians)
	fmt.Printf("    Pending jobs:     %d\n", r.PendingJobs)
	fmt.Printf("    Jobs assigned:    %d\n", r.JobsAssigned)
	fmt.Printf("    Orders combined:  %d\n", r.OrdersCombined)
	fmt.Printf("    Orders split:     %d\n", r.OrdersSplit)
	fmt.Printf("    Units scheduled:  %d (%d left unscheduled)\n", r.UnitsScheduled, r.UnitsUnscheduled)
	fmt.Printf("    ETAs written:     %d (%d cleared)\n", r.ETAsWritten, r.ETAsCleared)
	if r.TechnicianErrors > 0 {
		fmt.Printf("    Technician errors: %d (see logs)\n", r.TechnicianErrors)
	}
	fmt.Printf("    Elapsed:          %s\n", r.Elapsed.Round(time.Millisecond))

	if len(r.PerTechnician) > 0 {
		fmt.Println()
		fmt.Println("  UNITS PER TECHNICIAN")
		fmt.Println(strings.Repeat("-", 60))
		ids := make([]string, 0, len(r.PerTechnician))
		for id := range r.PerTechnician {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Printf("    %s  %d units\n", id[:8], r.PerTechnician[id])
		}
	}

	if len(r.Unassigned) > 0 {
		fmt.Println()
		fmt.Println("  UNASSIGNED JOBS")
		fmt.Println(strings.Repeat("-", 60))
		for _, u := range r.Unassigned {
			fmt.Printf("    %s  %s\n", u.JobID.String()[:8], u.Reason)
		}
	}
	fmt.Println()
}

func init() {
	planCmd.Flags().DurationVar(&planEvery, "every", 0, "replan continuously at this interval (e.g. 5m)")

	rootCmd.AddCommand(planCmd)
}
