// pkg/platform/apt.go

package platform

import (
	"strings"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/opsbrew/canvasup/pkg/cup_io"
	"github.com/opsbrew/canvasup/pkg/execute"
)

// aptEnv keeps apt from blocking on configuration prompts mid-pipeline.
var aptEnv = []string{"DEBIAN_FRONTEND=noninteractive"}

// AptUpdate refreshes the package index.
func AptUpdate(rc *cup_io.RuntimeContext) error {
	_, err := execute.Run(rc.Ctx, execute.Options{
		Command: "apt-get",
		Args:    []string{"update"},
		Sudo:    true,
		Env:     aptEnv,
		Timeout: 10 * time.Minute,
	})
	if err != nil {
		return cerr.Wrap(err, "apt-get update")
	}
	return nil
}

// AptInstall installs the packages that are not already present. Installed
// packages are skipped so re-runs stay quiet and fast.
func AptInstall(rc *cup_io.RuntimeContext, packages ...string) error {
	logger := otelzap.Ctx(rc.Ctx)

	var missing []string
	for _, pkg := range packages {
		if PackageInstalled(rc, pkg) {
			logger.Debug("Package already installed", zap.String("package", pkg))
			continue
		}
		missing = append(missing, pkg)
	}

	if len(missing) == 0 {
		logger.Info("All requested packages already installed",
			zap.Int("count", len(packages)))
		return nil
	}

	logger.Info("Installing packages", zap.Strings("packages", missing))

	args := append([]string{"install", "-y"}, missing...)
	_, err := execute.Run(rc.Ctx, execute.Options{
		Command: "apt-get",
		Args:    args,
		Sudo:    true,
		Env:     aptEnv,
		Timeout: 30 * time.Minute,
	})
	if err != nil {
		return cerr.Wrapf(err, "apt-get install %s", strings.Join(missing, " "))
	}
	return nil
}

// PackageInstalled reports whether dpkg considers the package installed.
func PackageInstalled(rc *cup_io.RuntimeContext, pkg string) bool {
	out, err := execute.Run(rc.Ctx, execute.Options{
		Command: "dpkg-query",
		Args:    []string{"-W", "-f", "${Status}", pkg},
		Capture: true,
		Quiet:   true,
		Timeout: 30 * time.Second,
	})
	return err == nil && strings.Contains(out, "install ok installed")
}

// AddAptRepository installs a deb line plus signing key, used for the
// NodeSource runtime repository.
func AddAptRepository(rc *cup_io.RuntimeContext, name, keyURL, keyPath, debLine string) error {
	logger := otelzap.Ctx(rc.Ctx)

	listPath := "/etc/apt/sources.list.d/" + name + ".list"

	key, err := execute.Run(rc.Ctx, execute.Options{
		Command: "curl",
		Args:    []string{"-fsSL", keyURL},
		Capture: true,
		Quiet:   true,
		Timeout: 2 * time.Minute,
	})
	if err != nil {
		return cerr.Wrapf(err, "fetch signing key for %s", name)
	}

	if err := execute.RunSudo(rc.Ctx, "mkdir", "-p", "/etc/apt/keyrings"); err != nil {
		return cerr.Wrap(err, "create apt keyring directory")
	}
	if err := WriteRootFile(rc, keyPath, key, "0644"); err != nil {
		return cerr.Wrapf(err, "install signing key for %s", name)
	}
	if err := WriteRootFile(rc, listPath, debLine+"\n", "0644"); err != nil {
		return cerr.Wrapf(err, "write apt source for %s", name)
	}

	logger.Info("Apt repository configured",
		zap.String("name", name),
		zap.String("list", listPath))
	return AptUpdate(rc)
}
