// cmd/root.go

// Package cmd wires the canvasup subcommands.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/opsbrew/canvasup/pkg/cup_err"
	"github.com/opsbrew/canvasup/pkg/logger"
)

// RootCmd is the canvasup entry point.
var RootCmd = &cobra.Command{
	Use:   "canvasup",
	Short: "Provision Canvas LMS on a single Ubuntu host",
	Long: `canvasup provisions a complete single-host Canvas LMS deployment:
system packages, ruby and node runtimes, PostgreSQL, Redis, the application
source and configuration, Apache with Passenger, optional TLS, and the
background job worker. Run it as an unprivileged user with passwordless sudo.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with a code reflecting how the
// run ended. Expected user errors (declined prompts, unsupported hosts) exit
// zero; real failures exit one.
func Execute() {
	err := RootCmd.Execute()
	if err != nil {
		if cup_err.IsExpectedUserError(err) {
			logger.L().Info("Exiting", zap.String("reason", err.Error()))
		} else {
			logger.L().Error("Command failed", zap.Error(err))
		}
	}

	logger.Sync()
	os.Exit(cup_err.GetExitCode(err))
}
