// cmd/doctor.go

package cmd

import (
	"github.com/spf13/cobra"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/opsbrew/canvasup/pkg/cup_cli"
	"github.com/opsbrew/canvasup/pkg/cup_io"
	"github.com/opsbrew/canvasup/pkg/health"
	"github.com/opsbrew/canvasup/pkg/logger"
)

var (
	doctorDomain string
	doctorTLS    bool
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Verify a provisioned Canvas LMS host",
	Long: `Probes the managed services, database and cache connectivity, web-server
reachability and the application login route. Database credentials are read
from the deployed configuration, so doctor needs no installation parameters.`,
	RunE: cup_cli.Wrap(runDoctor),
}

func init() {
	doctorCmd.Flags().StringVar(&doctorDomain, "domain", "",
		"public hostname to probe (required)")
	doctorCmd.Flags().BoolVar(&doctorTLS, "tls", false,
		"also probe the HTTPS listener")
	_ = doctorCmd.MarkFlagRequired("domain")
	RootCmd.AddCommand(doctorCmd)
}

func runDoctor(rc *cup_io.RuntimeContext, cmd *cobra.Command, args []string) error {
	log := otelzap.Ctx(rc.Ctx)

	dsn, err := health.DSNFromInstalledConfig(rc)
	if err != nil {
		return err
	}

	report, err := health.RunChecks(rc, doctorDomain, doctorTLS, dsn)
	for _, result := range report {
		status := "ok"
		if !result.OK {
			status = "FAIL"
		}
		log.Info(logger.TerminalPromptPrefix+" ",
			zap.String("check", result.Name),
			zap.String("status", status),
			zap.String("detail", result.Detail))
	}
	if err != nil {
		return err
	}

	log.Info(logger.TerminalPromptPrefix + " All checks passed.")
	return nil
}
