package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"salmonrun-notifier/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	// Version output must not depend on a readable config file.
	PersistentPreRunE:  func(cmd *cobra.Command, args []string) error { return nil },
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "version: %s\ncommit: %s\nbuilt: %s\nuser-agent: %s\n",
			version.Version, version.Commit, version.BuildDate, version.UserAgent())
	},
}
