package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"salmonrun-notifier/internal/app"
)

var (
	scheduleFormat string
	scheduleLimit  int
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "List upcoming rotations and when each would be alerted",
	RunE: func(cmd *cobra.Command, args []string) error {
		if scheduleLimit < 0 {
			return fmt.Errorf("--limit must not be negative")
		}
		return getApp().Schedule(cmd.Context(), app.ScheduleOptions{
			Format: scheduleFormat,
			Limit:  scheduleLimit,
		})
	},
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Show the rotations already alerted",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Ledger(cmd.Context())
	},
}

func init() {
	scheduleCmd.Flags().StringVarP(&scheduleFormat, "output", "o", "table", "Output format: table, json or yaml")
	scheduleCmd.Flags().IntVar(&scheduleLimit, "limit", 0, "Number of rotations to display (0 for all)")
}
