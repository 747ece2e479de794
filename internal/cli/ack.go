package cli

import (
	"github.com/spf13/cobra"

	"salmonrun-notifier/internal/app"
)

var ackDryRun bool

var ackCmd = &cobra.Command{
	Use:   "ack",
	Short: "Mark rotations already in progress as alerted",
	Long: `Mark rotations already in progress as alerted so the notifier does not
announce them late on its next start.

Stop the notifier before running ack. A running notifier keeps the ledger in
memory and overwrites the acknowledgements on its next alert. With the
postgres driver ack refuses to run while a notifier holds the ledger lock.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Ack(cmd.Context(), app.AckOptions{DryRun: ackDryRun})
	},
}

func init() {
	ackCmd.Flags().BoolVar(&ackDryRun, "dry-run", false, "List what would be acknowledged without writing the ledger")
}
