// cmd/install.go

package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"

	cerr "github.com/cockroachdb/errors"

	"github.com/opsbrew/canvasup/pkg/config"
	"github.com/opsbrew/canvasup/pkg/cup_cli"
	"github.com/opsbrew/canvasup/pkg/cup_io"
	"github.com/opsbrew/canvasup/pkg/execute"
	"github.com/opsbrew/canvasup/pkg/install"
	"github.com/opsbrew/canvasup/pkg/preflight"
)

var (
	installConfigFile string
	installAssumeYes  bool
	installDryRun     bool
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Run the full provisioning pipeline",
	Long: `Validates the host, collects the deployment parameters and runs every
provisioning step in order. The pipeline is fail-fast: the first failing step
aborts the run, and re-running after a fix resumes safely because completed
steps detect their own work and skip it.`,
	RunE: cup_cli.Wrap(runInstall),
}

func init() {
	installCmd.Flags().StringVar(&installConfigFile, "config", "",
		"config file with installation parameters (skips interactive prompts)")
	installCmd.Flags().BoolVarP(&installAssumeYes, "yes", "y", false,
		"assume yes for all confirmation prompts")
	installCmd.Flags().BoolVar(&installDryRun, "dry-run", false,
		"log the commands that would run without executing them")
	RootCmd.AddCommand(installCmd)
}

func runInstall(rc *cup_io.RuntimeContext, cmd *cobra.Command, args []string) error {
	logger := otelzap.Ctx(rc.Ctx)

	if installDryRun {
		execute.DefaultDryRun = true
		logger.Info("Dry-run mode: no commands will be executed")
	}

	// Host validation runs before anything touches the system, so an
	// undersized or unsupported host aborts with nothing installed.
	if _, err := preflight.RunChecks(rc, installAssumeYes); err != nil {
		return err
	}

	cfg, err := loadInstallConfig(rc)
	if err != nil {
		return err
	}

	return install.Run(rc, cfg)
}

func loadInstallConfig(rc *cup_io.RuntimeContext) (*config.InstallConfig, error) {
	if installConfigFile != "" {
		v := viper.New()
		v.SetConfigFile(installConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, cerr.Wrapf(err, "read config file %s", installConfigFile)
		}
		return config.FromViper(rc, v)
	}

	cfg, err := config.Collect(rc)
	if err != nil {
		return nil, err
	}
	cfg.NonInteractive = installAssumeYes
	return cfg, nil
}
