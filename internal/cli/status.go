package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show rule engine summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			if err := apiClient.Ping(ctx); err != nil {
				return fmt.Errorf("server unreachable: %w", err)
			}

			stats, err := apiClient.Rules().Stats(ctx)
			if err != nil {
				return fmt.Errorf("failed to get stats: %w", err)
			}

			format := getOutputFormat()
			if format != "table" {
				return printOutput(stats)
			}

			fmt.Println("InfraSec Rule Engine")
			fmt.Println(strings.Repeat("=", 40))

			total := 0
			for _, count := range stats.RulesByStatus {
				total += count
			}
			fmt.Printf("  Rules:          %d total\n", total)
			for _, status := range []string{"ACTIVE", "CANDIDATE", "REJECTED"} {
				if count, ok := stats.RulesByStatus[status]; ok {
					fmt.Printf("    %-12s  %d\n", status, count)
				}
			}

			fmt.Printf("  Open conflicts: %d", stats.OpenConflicts)
			if stats.OpenConflicts > 0 {
				fmt.Print("  (run 'infrasec rule conflicts')")
			}
			fmt.Println()

			return nil
		},
	}
}
