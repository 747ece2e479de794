package cli

import (
	"github.com/spf13/cobra"

	"salmonrun-notifier/internal/app"
)

var simulateEscalation bool

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Send the next rotation alert to every destination without recording it",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().SimulateAlert(cmd.Context(), app.SimulateOptions{Escalation: simulateEscalation})
	},
}

func init() {
	simulateCmd.Flags().BoolVar(&simulateEscalation, "escalation", false, "Send the fetch-failure notice instead")
}
