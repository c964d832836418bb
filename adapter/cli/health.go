package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fieldworks-io/dispatch/pkg/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check component health",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireContainer()
		if err != nil {
			return err
		}

		overall := c.Health.GetOverallHealth(cmd.Context())

		fmt.Println()
		fmt.Printf("  HEALTH: %s\n", strings.ToUpper(string(overall.Status)))
		fmt.Println(strings.Repeat("=", 60))
		names := make([]string, 0, len(overall.Checks))
		for name := range overall.Checks {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			result := overall.Checks[name]
			fmt.Printf("    %-10s %-10s %s\n", name, result.Status, result.Message)
		}
		fmt.Println()

		if overall.Status == observability.HealthStatusUnhealthy {
			return fmt.Errorf("one or more components unhealthy")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
