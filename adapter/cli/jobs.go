package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fieldworks-io/dispatch/internal/scheduling/domain"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Show the job board",
	Long: `Show pending jobs awaiting assignment and each technician's
assigned jobs with their current arrival estimates.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireContainer()
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		pending, err := c.Store.PendingJobs(ctx)
		if err != nil {
			return fmt.Errorf("loading pending jobs: %w", err)
		}

		fmt.Println()
		fmt.Printf("  PENDING (%d)\n", len(pending))
		fmt.Println(strings.Repeat("=", 72))
		if len(pending) == 0 {
			fmt.Println("    No jobs awaiting assignment.")
		}
		for _, job := range pending {
			fmt.Printf("    %s  order %s  p%d  %s%s\n",
				job.ID().String()[:8], job.OrderID().String()[:8],
				job.Priority(), job.Duration(), jobTags(job))
		}

		techs, err := c.Store.ActiveTechnicians(ctx)
		if err != nil {
			return fmt.Errorf("loading technicians: %w", err)
		}

		for _, tech := range techs {
			assigned, err := c.Store.AssignedJobs(ctx, tech.ID())
			if err != nil {
				return fmt.Errorf("loading jobs for %s: %w", tech.Name(), err)
			}

			fmt.Println()
			fmt.Printf("  %s (%s) - %d assigned\n", tech.Name(), tech.ID().String()[:8], len(assigned))
			fmt.Println(strings.Repeat("-", 72))
			for _, job := range assigned {
				eta := "unscheduled"
				if job.EstimatedSched() != nil {
					eta = job.EstimatedSched().Format("Jan 2 15:04")
					if job.CustomerETAStart() != nil && job.CustomerETAEnd() != nil {
						eta += fmt.Sprintf("  (customer %s-%s)",
							job.CustomerETAStart().Format("15:04"),
							job.CustomerETAEnd().Format("15:04"))
					}
				}
				fmt.Printf("    %s  p%d  %s  %s%s\n",
					job.ID().String()[:8], job.Priority(), job.Duration(), eta, jobTags(job))
			}
		}
		fmt.Println()
		return nil
	},
}

var jobsPinCmd = &cobra.Command{
	Use:   "pin <job-id> <time>",
	Short: "Pin a job's start to an exact time",
	Long: `Pin a job's start to an exact RFC 3339 instant. The next planning
cycle schedules the job at that time or reports it unscheduled.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireContainer()
		if err != nil {
			return err
		}
		jobID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid job id %q: %w", args[0], err)
		}
		t, err := time.Parse(time.RFC3339, args[1])
		if err != nil {
			return fmt.Errorf("invalid time %q (want RFC 3339, e.g. 2026-03-10T10:00:00Z): %w", args[1], err)
		}
		fixed := t.UTC()
		if err := c.Store.UpdateJobFixedSchedule(cmd.Context(), jobID, &fixed); err != nil {
			return fmt.Errorf("pinning job: %w", err)
		}
		fmt.Printf("Job %.8s pinned to %s\n", args[0], fixed.Format(time.RFC3339))
		return nil
	},
}

var jobsUnpinCmd = &cobra.Command{
	Use:   "unpin <job-id>",
	Short: "Clear a job's pinned start time",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireContainer()
		if err != nil {
			return err
		}
		jobID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid job id %q: %w", args[0], err)
		}
		if err := c.Store.UpdateJobFixedSchedule(cmd.Context(), jobID, nil); err != nil {
			return fmt.Errorf("unpinning job: %w", err)
		}
		fmt.Printf("Job %.8s returned to the dynamic pool\n", args[0])
		return nil
	},
}

func jobTags(job *domain.Job) string {
	var tags []string
	if job.FixedAssignment() {
		tags = append(tags, "locked")
	}
	if job.FixedScheduleTime() != nil {
		tags = append(tags, "fixed "+job.FixedScheduleTime().Format("Jan 2 15:04"))
	}
	if len(job.RequiredEquipment()) > 0 {
		tags = append(tags, "needs "+strings.Join(job.RequiredEquipment(), ","))
	} else if job.YMMID() != 0 {
		tags = append(tags, "equipment pending lookup")
	}
	if len(tags) == 0 {
		return ""
	}
	return "  [" + strings.Join(tags, "; ") + "]"
}

func init() {
	jobsCmd.AddCommand(jobsPinCmd, jobsUnpinCmd)
	rootCmd.AddCommand(jobsCmd)
}
