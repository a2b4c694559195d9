// pkg/rubyenv/rubyenv.go

// Package rubyenv installs the pinned Ruby runtime through the rbenv
// version-manager pattern: install the manager if absent, install the pinned
// version if absent, set it globally, then verify the active runtime reports
// exactly the pin.
package rubyenv

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	cerr "github.com/cockroachdb/errors"
	goversion "github.com/hashicorp/go-version"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/opsbrew/canvasup/pkg/cup_io"
	"github.com/opsbrew/canvasup/pkg/execute"
	"github.com/opsbrew/canvasup/pkg/fetch"
	"github.com/opsbrew/canvasup/pkg/platform"
	"github.com/opsbrew/canvasup/pkg/shared"
)

var rubyVersionRe = regexp.MustCompile(`ruby (\d+\.\d+\.\d+)`)

// Root is the rbenv installation directory under the installer's home.
func Root() string {
	return filepath.Join(os.Getenv("HOME"), ".rbenv")
}

// RubyBin returns the path of the active ruby shim. The web server's
// embedded application module needs this exact path in its virtual host.
func RubyBin() string {
	return filepath.Join(Root(), "shims", "ruby")
}

func rbenvBin() string {
	return filepath.Join(Root(), "bin", "rbenv")
}

func rbenvEnv() []string {
	return []string{
		"RBENV_ROOT=" + Root(),
		"PATH=" + filepath.Join(Root(), "bin") + ":" + filepath.Join(Root(), "shims") + ":" + os.Getenv("PATH"),
	}
}

// Install brings the pinned Ruby up: version manager, runtime, bundler.
// Aborts if the active runtime does not report the pin afterwards.
func Install(rc *cup_io.RuntimeContext) error {
	logger := otelzap.Ctx(rc.Ctx)

	// ASSESS / INTERVENE - version manager first, runtime second.
	if err := fetch.CloneOrUpdate(rc, shared.RbenvRepoURL, Root()); err != nil {
		return err
	}
	if err := fetch.CloneOrUpdate(rc, shared.RubyBuildRepoURL, filepath.Join(Root(), "plugins", "ruby-build")); err != nil {
		return err
	}

	versionDir := filepath.Join(Root(), "versions", shared.RubyVersion)
	if _, err := os.Stat(versionDir); err == nil {
		logger.Info("Pinned Ruby already installed, skipping build",
			zap.String("version", shared.RubyVersion))
	} else {
		logger.Info("Building pinned Ruby, this takes a while",
			zap.String("version", shared.RubyVersion))
		_, err := execute.Run(rc.Ctx, execute.Options{
			Command: rbenvBin(),
			Args:    []string{"install", shared.RubyVersion},
			Env:     rbenvEnv(),
			Timeout: 45 * time.Minute,
		})
		if err != nil {
			return cerr.Wrapf(err, "install ruby %s", shared.RubyVersion)
		}
	}

	if _, err := execute.Run(rc.Ctx, execute.Options{
		Command: rbenvBin(),
		Args:    []string{"global", shared.RubyVersion},
		Env:     rbenvEnv(),
	}); err != nil {
		return cerr.Wrap(err, "set global ruby version")
	}

	// EVALUATE - the active interpreter must report the pin exactly.
	if err := VerifyVersion(rc); err != nil {
		return err
	}

	if _, err := execute.Run(rc.Ctx, execute.Options{
		Command: filepath.Join(Root(), "shims", "gem"),
		Args:    []string{"install", "bundler"},
		Env:     rbenvEnv(),
		Timeout: 10 * time.Minute,
	}); err != nil {
		return cerr.Wrap(err, "install bundler")
	}

	return nil
}

// VerifyVersion checks the active ruby against the pin and aborts on any
// mismatch; a wrong runtime would fail far later, mid-migration.
func VerifyVersion(rc *cup_io.RuntimeContext) error {
	logger := otelzap.Ctx(rc.Ctx)

	out, err := execute.Run(rc.Ctx, execute.Options{
		Command: RubyBin(),
		Args:    []string{"--version"},
		Env:     rbenvEnv(),
		Capture: true,
		Quiet:   true,
	})
	if err != nil {
		return cerr.Wrap(err, "query active ruby version")
	}

	active, err := ParseRubyVersion(out)
	if err != nil {
		return err
	}
	pinned := goversion.Must(goversion.NewVersion(shared.RubyVersion))

	if !active.Equal(pinned) {
		return cerr.Newf("active ruby is %s, pinned version is %s", active, pinned)
	}
	logger.Info("Ruby runtime verified", zap.String("version", active.String()))
	return nil
}

// ParseRubyVersion extracts the semantic version from `ruby --version` output.
func ParseRubyVersion(output string) (*goversion.Version, error) {
	match := rubyVersionRe.FindStringSubmatch(strings.TrimSpace(output))
	if match == nil {
		return nil, cerr.Newf("unrecognized ruby version output %q", strings.TrimSpace(output))
	}
	v, err := goversion.NewVersion(match[1])
	if err != nil {
		return nil, cerr.Wrapf(err, "parse ruby version %q", match[1])
	}
	return v, nil
}

// InstallNode installs the JavaScript runtime from the NodeSource repository
// and enables yarn through corepack.
func InstallNode(rc *cup_io.RuntimeContext) error {
	logger := otelzap.Ctx(rc.Ctx)

	if !platform.PackageInstalled(rc, "nodejs") {
		err := platform.AddAptRepository(rc, "nodesource",
			"https://deb.nodesource.com/gpgkey/nodesource-repo.gpg.key",
			"/etc/apt/keyrings/nodesource.asc",
			"deb [signed-by=/etc/apt/keyrings/nodesource.asc] https://deb.nodesource.com/node_18.x nodistro main")
		if err != nil {
			return err
		}
		if err := platform.AptInstall(rc, "nodejs"); err != nil {
			return err
		}
	} else {
		logger.Debug("Node runtime already installed")
	}

	if err := execute.RunSudo(rc.Ctx, "corepack", "enable"); err != nil {
		return cerr.Wrap(err, "enable corepack")
	}
	return nil
}
