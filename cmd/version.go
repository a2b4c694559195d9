// cmd/version.go

package cmd

import (
	"runtime/debug"

	"github.com/spf13/cobra"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/opsbrew/canvasup/pkg/cup_cli"
	"github.com/opsbrew/canvasup/pkg/cup_io"
)

// Version is overridden at build time via -ldflags.
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the canvasup version",
	RunE: cup_cli.Wrap(func(rc *cup_io.RuntimeContext, cmd *cobra.Command, args []string) error {
		version := Version
		if version == "dev" {
			if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
				version = info.Main.Version
			}
		}
		otelzap.Ctx(rc.Ctx).Info("terminal prompt: ", zap.String("version", version))
		return nil
	}),
}

func init() {
	RootCmd.AddCommand(versionCmd)
}
