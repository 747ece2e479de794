package cli

import (
	"github.com/spf13/cobra"

	"salmonrun-notifier/internal/app"
)

var (
	exportPNGPath      string
	exportCSVPath      string
	exportMaxRotations int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export upcoming rotations as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			PNGPath:      exportPNGPath,
			CSVPath:      exportCSVPath,
			MaxRotations: exportMaxRotations,
		}
		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportMaxRotations, "max-rotations", 0, "Maximum rotations to export (defaults to config)")
}
