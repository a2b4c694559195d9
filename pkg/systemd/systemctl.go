// pkg/systemd/systemctl.go

package systemd

import (
	"strings"

	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/opsbrew/canvasup/pkg/cup_io"
	"github.com/opsbrew/canvasup/pkg/execute"
	"github.com/opsbrew/canvasup/pkg/platform"
)

// EnableNow enables a unit and starts it immediately.
func EnableNow(rc *cup_io.RuntimeContext, unit string) error {
	if err := execute.RunSudo(rc.Ctx, "systemctl", "enable", "--now", unit); err != nil {
		return cerr.Wrapf(err, "enable %s", unit)
	}
	return nil
}

// Restart restarts a unit.
func Restart(rc *cup_io.RuntimeContext, unit string) error {
	if err := execute.RunSudo(rc.Ctx, "systemctl", "restart", unit); err != nil {
		return cerr.Wrapf(err, "restart %s", unit)
	}
	return nil
}

// DaemonReload reloads unit definitions after a unit file changes.
func DaemonReload(rc *cup_io.RuntimeContext) error {
	if err := execute.RunSudo(rc.Ctx, "systemctl", "daemon-reload"); err != nil {
		return cerr.Wrap(err, "daemon-reload")
	}
	return nil
}

// IsActive reports whether a unit is currently active. systemctl exits
// non-zero for inactive units, so the error carries no extra signal here.
func IsActive(rc *cup_io.RuntimeContext, unit string) bool {
	out, err := execute.Run(rc.Ctx, execute.Options{
		Command: "systemctl",
		Args:    []string{"is-active", unit},
		Capture: true,
		Quiet:   true,
	})
	return err == nil && strings.TrimSpace(out) == "active"
}

// InstallUnit writes a unit file (backing up any existing one), reloads the
// daemon and enables the unit.
func InstallUnit(rc *cup_io.RuntimeContext, unit, path, content string) error {
	logger := otelzap.Ctx(rc.Ctx)

	if _, err := platform.BackupRootFile(rc, path); err != nil {
		return err
	}
	if err := platform.WriteRootFile(rc, path, content, "0644"); err != nil {
		return err
	}
	if err := DaemonReload(rc); err != nil {
		return err
	}
	if err := EnableNow(rc, unit); err != nil {
		return err
	}

	logger.Info("Systemd unit installed",
		zap.String("unit", unit),
		zap.String("path", path))
	return nil
}
