package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"salmonrun-notifier/internal/app"
	"salmonrun-notifier/internal/config"
	"salmonrun-notifier/internal/logging"
)

// Process exit codes, following sysexits(3).
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitNoInput     = 66
	ExitConfigError = 78
)

var (
	cfgFile   string
	logLevel  string
	appHandle *app.App
	closeLog  = func() error { return nil }
)

var rootCmd = &cobra.Command{
	Use:           "salmonrun",
	Short:         "Alert on upcoming Splatoon 3 Salmon Run rotations",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if appHandle != nil {
			return nil
		}

		path := cfgFile
		if path == "" {
			path = config.DefaultPath
		}

		cfg, err := config.Load(path)
		if err != nil {
			return err
		}

		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}

		logger, closer := logging.NewLogger(cfg.Logging)
		closeLog = closer
		appHandle = app.NewApp(cfg, path, logger)
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLog()
	},
}

// Execute runs the root command and exits with a code describing the outcome.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(ExitCode(err))
}

// ExitCode maps a command error to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, config.ErrTemplateWritten):
		return ExitNoInput
	case errors.Is(err, config.ErrInvalid):
		return ExitConfigError
	default:
		return ExitFailure
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file (default "+config.DefaultPath+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level defined in config")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(ledgerCmd)
	rootCmd.AddCommand(ackCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(simulateCmd)
}

func getApp() *app.App {
	if appHandle == nil {
		panic("application not initialized; PersistentPreRunE not executed")
	}
	return appHandle
}
