package cli

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fieldworks-io/dispatch/internal/app"
	"github.com/fieldworks-io/dispatch/internal/scheduling/domain"
	"github.com/fieldworks-io/dispatch/internal/shared/application"
	"github.com/fieldworks-io/dispatch/internal/shared/infrastructure/database"
)

var (
	seedTechnicians int
	seedJobs        int
	seedFixed       bool
)

// Downtown Phoenix and surroundings; close enough that haversine estimates
// stay in the minutes range.
var seedSites = [][2]float64{
	{33.4484, -112.0740},
	{33.5093, -112.1280},
	{33.3806, -111.9940},
	{33.4942, -111.9261},
	{33.4255, -112.1146},
	{33.5722, -112.0891},
	{33.3528, -112.0685},
	{33.4625, -112.0190},
}

var seedNames = []string{"Alvarez", "Chen", "Okafor", "Ramirez", "Singh", "Kowalski"}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed demo technicians and jobs",
	Long: `Seed the database with demo data: technicians with home bases and
equipment around Phoenix, and pending jobs including a multi-job
order, an equipment-restricted job, and optionally a fixed-time
appointment.

Examples:
  dispatch seed                           # 3 technicians, 12 jobs
  dispatch seed --technicians 5 --jobs 30
  dispatch seed --fixed=false             # no fixed-time appointment`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireContainer()
		if err != nil {
			return err
		}
		if seedTechnicians < 1 {
			return fmt.Errorf("need at least one technician, got %d", seedTechnicians)
		}

		// All writes in one transaction; a half-seeded board is worse than none.
		uow := database.NewUnitOfWork(c.DBConn)
		return application.WithUnitOfWork(cmd.Context(), uow, func(ctx context.Context) error {
			return runSeed(ctx, c)
		})
	},
}

func runSeed(ctx context.Context, c *app.Container) error {
	cfg := c.Config

	addresses := make([]domain.Address, len(seedSites))
	for i, site := range seedSites {
		addresses[i] = domain.NewAddress(site[0], site[1])
		if err := c.Store.SaveAddress(ctx, addresses[i]); err != nil {
			return fmt.Errorf("saving address: %w", err)
		}
	}

	fmt.Println()
	fmt.Println("  TECHNICIANS")
	fmt.Println(strings.Repeat("-", 60))

	techs := make([]*domain.Technician, 0, seedTechnicians)
	for i := 0; i < seedTechnicians; i++ {
		home := addresses[i%len(addresses)]
		tech, err := domain.NewTechnician(seedNames[i%len(seedNames)], home, home)
		if err != nil {
			return fmt.Errorf("creating technician: %w", err)
		}
		if err := tech.SetWorkday(cfg.WorkdayStartHour, cfg.WorkdayEndHour); err != nil {
			return fmt.Errorf("setting workday: %w", err)
		}
		if i == 0 {
			// One rigger so equipment-restricted work has a taker.
			tech.AddEquipment("lift-2t", "tpms-tool")
		}
		if err := c.Store.SaveTechnician(ctx, tech); err != nil {
			return fmt.Errorf("saving technician: %w", err)
		}
		techs = append(techs, tech)
		fmt.Printf("    %s  %s (%02d:00-%02d:00)\n",
			tech.ID().String()[:8], tech.Name(), tech.WorkdayStartHour(), tech.WorkdayEndHour())
	}

	// Lunch break for the first technician tomorrow.
	tomorrow := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, 1)
	lunch := domain.Unavailability{
		ID:           uuid.New(),
		TechnicianID: techs[0].ID(),
		StartTime:    tomorrow.Add(12 * time.Hour),
		Duration:     time.Hour,
	}
	if err := c.Store.SaveUnavailability(ctx, lunch); err != nil {
		return fmt.Errorf("saving unavailability: %w", err)
	}

	// Vehicle 1001 service 7 needs the lift the first technician carries.
	if err := c.Store.SaveEquipmentRequirement(ctx, 1001, 7, "lift-2t"); err != nil {
		return fmt.Errorf("saving equipment requirement: %w", err)
	}

	fmt.Println()
	fmt.Println("  JOBS")
	fmt.Println(strings.Repeat("-", 60))

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	created := 0
	for created < seedJobs {
		orderID := uuid.New()
		// Every fourth order gets a second job at the same stop.
		jobsInOrder := 1
		if created%4 == 2 && created+1 < seedJobs {
			jobsInOrder = 2
		}

		site := addresses[rng.Intn(len(addresses))]
		for j := 0; j < jobsInOrder; j++ {
			priority := 1 + rng.Intn(5)
			duration := time.Duration(30+rng.Intn(150)) * time.Minute
			job, err := domain.NewJob(orderID, site, priority, duration)
			if err != nil {
				return fmt.Errorf("creating job: %w", err)
			}

			switch {
			case created == 0:
				// Equipment-restricted via vehicle and service lookup.
				job.SetVehicleServices(1001, []int64{7})
			case created == 1 && seedFixed:
				job.SetFixedScheduleTime(tomorrow.Add(10 * time.Hour))
			case created == 2:
				job.SetEarliestStartTime(tomorrow.Add(13 * time.Hour))
			}

			if err := c.Store.SaveJob(ctx, job); err != nil {
				return fmt.Errorf("saving job: %w", err)
			}

			tag := ""
			if job.FixedScheduleTime() != nil {
				tag = "  fixed " + job.FixedScheduleTime().Format("Jan 2 15:04")
			}
			if job.YMMID() != 0 {
				tag = "  equipment-restricted"
			}
			fmt.Printf("    %s  order %s  p%d  %s%s\n",
				job.ID().String()[:8], orderID.String()[:8], job.Priority(),
				job.Duration(), tag)
			created++
			if created >= seedJobs {
				break
			}
		}
	}

	fmt.Println()
	fmt.Printf("  Seeded %d technicians and %d jobs. Run: dispatch plan\n", len(techs), created)
	fmt.Println()
	return nil
}

func init() {
	seedCmd.Flags().IntVar(&seedTechnicians, "technicians", 3, "number of technicians to create")
	seedCmd.Flags().IntVar(&seedJobs, "jobs", 12, "number of jobs to create")
	seedCmd.Flags().BoolVar(&seedFixed, "fixed", true, "include a fixed-time appointment")

	rootCmd.AddCommand(seedCmd)
}
