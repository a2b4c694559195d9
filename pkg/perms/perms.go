// pkg/perms/perms.go

// Package perms finalizes ownership and permissions of the deployed tree.
package perms

import (
	"os"
	"os/user"

	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/opsbrew/canvasup/pkg/cup_io"
	"github.com/opsbrew/canvasup/pkg/execute"
	"github.com/opsbrew/canvasup/pkg/interaction"
	"github.com/opsbrew/canvasup/pkg/shared"
)

// EnsureServiceUser creates the system account the services run as, skipping
// if it already exists.
func EnsureServiceUser(rc *cup_io.RuntimeContext) error {
	logger := otelzap.Ctx(rc.Ctx)

	if _, err := user.Lookup(shared.ServiceUser); err == nil {
		logger.Warn("Service user already exists, skipping creation",
			zap.String("user", shared.ServiceUser))
		return nil
	}

	err := execute.RunSudo(rc.Ctx, "useradd",
		"--system",
		"--home-dir", shared.CanvasDir,
		"--shell", "/usr/sbin/nologin",
		shared.ServiceUser)
	if err != nil {
		return cerr.Wrapf(err, "create service user %s", shared.ServiceUser)
	}
	logger.Info("Service user created", zap.String("user", shared.ServiceUser))
	return nil
}

// Finalize transfers the deployed tree to the service user and tightens
// permissions. Widening the installer's home so the service user can
// traverse into the ruby toolchain needs explicit consent; declining leaves
// the background worker unable to start, which is logged as a known
// follow-up rather than silently degrading host security.
// Returns declined=true when the operator refused the widening.
func Finalize(rc *cup_io.RuntimeContext, assumeYes bool) (declined bool, err error) {
	logger := otelzap.Ctx(rc.Ctx)

	if err := EnsureServiceUser(rc); err != nil {
		return false, err
	}

	owner := shared.ServiceUser + ":" + shared.ServiceUser
	if err := execute.RunSudo(rc.Ctx, "chown", "-R", owner, shared.CanvasDir); err != nil {
		return false, cerr.Wrap(err, "transfer ownership of application tree")
	}
	if err := execute.RunSudo(rc.Ctx, "chmod", "-R", "o-rwx", shared.ConfigDir); err != nil {
		return false, cerr.Wrap(err, "tighten config permissions")
	}
	if err := execute.RunSudo(rc.Ctx, "chmod", "0600", shared.EnvFile); err != nil {
		return false, cerr.Wrap(err, "tighten environment file permissions")
	}

	home := os.Getenv("HOME")
	grant := assumeYes
	if !assumeYes {
		grant, err = interaction.PromptYesNo(rc,
			"Grant the "+shared.ServiceUser+" user traverse access to "+home+
				" (required for the background worker to reach the ruby runtime)?")
		if err != nil {
			return false, err
		}
	}

	if !grant {
		logger.Warn("Home directory access declined: the background worker cannot "+
			"reach the ruby runtime and will fail to start until access is granted",
			zap.String("home", home),
			zap.String("user", shared.ServiceUser))
		return true, nil
	}

	if err := execute.RunSudo(rc.Ctx, "chmod", "o+x", home); err != nil {
		return false, cerr.Wrapf(err, "grant traverse access to %s", home)
	}
	logger.Info("Runtime access granted to service user",
		zap.String("home", home),
		zap.String("user", shared.ServiceUser))
	return false, nil
}
