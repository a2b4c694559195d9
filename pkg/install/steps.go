// pkg/install/steps.go

// Package install assembles the provisioning pipeline in its fixed order.
package install

import (
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/opsbrew/canvasup/pkg/apache"
	"github.com/opsbrew/canvasup/pkg/appconfig"
	"github.com/opsbrew/canvasup/pkg/build"
	"github.com/opsbrew/canvasup/pkg/config"
	"github.com/opsbrew/canvasup/pkg/cup_io"
	"github.com/opsbrew/canvasup/pkg/fetch"
	"github.com/opsbrew/canvasup/pkg/health"
	"github.com/opsbrew/canvasup/pkg/perms"
	"github.com/opsbrew/canvasup/pkg/pipeline"
	"github.com/opsbrew/canvasup/pkg/platform"
	"github.com/opsbrew/canvasup/pkg/postgres"
	"github.com/opsbrew/canvasup/pkg/rediscache"
	"github.com/opsbrew/canvasup/pkg/rubyenv"
	"github.com/opsbrew/canvasup/pkg/shared"
	"github.com/opsbrew/canvasup/pkg/systemd"
	"github.com/opsbrew/canvasup/pkg/worker"
)

// systemPackages is everything the application stack needs from apt: build
// toolchain and headers for the ruby build, the database and cache engines,
// and the web server with its embedded application-server module.
var systemPackages = []string{
	"build-essential", "autoconf", "bison", "patch", "rustc",
	"libssl-dev", "libyaml-dev", "libreadline-dev", "zlib1g-dev",
	"libgmp-dev", "libncurses-dev", "libffi-dev", "libgdbm-dev",
	"libxml2-dev", "libxslt1-dev", "libpq-dev", "libsqlite3-dev",
	"libidn-dev", "imagemagick",
	"postgresql", "postgresql-contrib",
	"redis-server",
	"apache2", "libapache2-mod-passenger",
}

// Steps returns the full pipeline in its hard dependency order. Host
// validation and configuration collection run before this; everything here
// receives the already-collected InstallConfig.
func Steps() []pipeline.Step {
	writer := appconfig.NewWriter()
	builder := build.NewRunner()

	// Set by the permissions step when the operator declines runtime access
	// for the service user; the restart step then leaves the worker unit
	// alone, since it cannot start and must not abort the run.
	var workerDeclined bool

	return []pipeline.Step{
		{
			Name: "install system packages",
			Run: func(rc *cup_io.RuntimeContext, cfg *config.InstallConfig) pipeline.Result {
				if err := platform.AptUpdate(rc); err != nil {
					return pipeline.Fail(err, "package index refresh failed")
				}
				if err := platform.AptInstall(rc, systemPackages...); err != nil {
					return pipeline.Fail(err, "system package installation failed")
				}
				return pipeline.OK("system packages present")
			},
		},
		{
			Name: "install ruby runtime",
			Run: func(rc *cup_io.RuntimeContext, cfg *config.InstallConfig) pipeline.Result {
				if err := rubyenv.Install(rc); err != nil {
					return pipeline.Fail(err, "pinned ruby runtime unavailable")
				}
				return pipeline.OK("ruby " + shared.RubyVersion + " active")
			},
		},
		{
			Name: "install node runtime",
			Run: func(rc *cup_io.RuntimeContext, cfg *config.InstallConfig) pipeline.Result {
				if err := rubyenv.InstallNode(rc); err != nil {
					return pipeline.Fail(err, "javascript toolchain unavailable")
				}
				return pipeline.OK("node and yarn available")
			},
		},
		{
			Name: "configure database engine",
			Run: func(rc *cup_io.RuntimeContext, cfg *config.InstallConfig) pipeline.Result {
				skipped, err := postgres.Configure(rc, cfg.DBPassword)
				if err != nil {
					return pipeline.Fail(err, "database engine configuration failed")
				}
				if skipped {
					return pipeline.Warn("database role and database already existed")
				}
				return pipeline.OK("database role and database ready")
			},
		},
		{
			Name: "configure cache engine",
			Run: func(rc *cup_io.RuntimeContext, cfg *config.InstallConfig) pipeline.Result {
				if err := rediscache.Configure(rc); err != nil {
					return pipeline.Fail(err, "cache engine configuration failed")
				}
				return pipeline.OK("cache engine answering")
			},
		},
		{
			Name: "fetch application source",
			Run: func(rc *cup_io.RuntimeContext, cfg *config.InstallConfig) pipeline.Result {
				skipped, err := fetch.Application(rc)
				if err != nil {
					return pipeline.Fail(err, "source fetch failed")
				}
				if skipped {
					return pipeline.Warn("existing checkout updated in place")
				}
				return pipeline.OK("application source fetched")
			},
		},
		{
			Name: "write configuration artifacts",
			Run: func(rc *cup_io.RuntimeContext, cfg *config.InstallConfig) pipeline.Result {
				if _, err := writer.WriteAll(rc, cfg); err != nil {
					return pipeline.Fail(err, "configuration artifacts could not be written")
				}
				return pipeline.OK("configuration artifacts written")
			},
		},
		{
			Name: "install backend dependencies",
			Run: func(rc *cup_io.RuntimeContext, cfg *config.InstallConfig) pipeline.Result {
				if err := builder.InstallBackendDeps(rc); err != nil {
					return pipeline.Fail(err, "backend dependency installation failed")
				}
				return pipeline.OK("gem bundle installed")
			},
		},
		{
			Name: "install frontend dependencies",
			Run: func(rc *cup_io.RuntimeContext, cfg *config.InstallConfig) pipeline.Result {
				if err := builder.InstallFrontendDeps(rc); err != nil {
					return pipeline.Fail(err, "frontend dependency installation failed")
				}
				return pipeline.OK("javascript dependencies installed")
			},
		},
		{
			Name: "compile static assets",
			Run: func(rc *cup_io.RuntimeContext, cfg *config.InstallConfig) pipeline.Result {
				if err := builder.CompileAssets(rc); err != nil {
					return pipeline.Fail(err, "asset compilation failed")
				}
				return pipeline.OK("static assets compiled")
			},
		},
		{
			Name: "run database migrations",
			Run: func(rc *cup_io.RuntimeContext, cfg *config.InstallConfig) pipeline.Result {
				env, err := writer.ReadEnvFile()
				if err != nil {
					return pipeline.Fail(err, "bootstrap environment unavailable")
				}
				if err := builder.RunMigrations(rc, env); err != nil {
					return pipeline.Fail(err, "schema migration or initial setup failed")
				}
				return pipeline.OK("schema migrated and seeded")
			},
		},
		{
			Name: "configure web server",
			Run: func(rc *cup_io.RuntimeContext, cfg *config.InstallConfig) pipeline.Result {
				if err := apache.Configure(rc, cfg); err != nil {
					return pipeline.Fail(err, "web server configuration failed")
				}
				return pipeline.OK("virtual host active")
			},
		},
		{
			Name:      "obtain TLS certificate",
			Condition: func(cfg *config.InstallConfig) bool { return cfg.UseTLS },
			Run: func(rc *cup_io.RuntimeContext, cfg *config.InstallConfig) pipeline.Result {
				if err := apache.ObtainCertificate(rc, cfg); err != nil {
					// Non-fatal: the site stays reachable over plain HTTP.
					return pipeline.Warn("certificate acquisition failed, continuing without TLS: " + err.Error())
				}
				return pipeline.OK("certificate installed")
			},
		},
		{
			Name: "configure background worker",
			Run: func(rc *cup_io.RuntimeContext, cfg *config.InstallConfig) pipeline.Result {
				if err := worker.Configure(rc, rubyenv.Root()+"/shims"); err != nil {
					return pipeline.Fail(err, "background worker configuration failed")
				}
				return pipeline.OK("worker service enabled")
			},
		},
		{
			Name: "finalize permissions",
			Run: func(rc *cup_io.RuntimeContext, cfg *config.InstallConfig) pipeline.Result {
				declined, err := perms.Finalize(rc, cfg.NonInteractive)
				if err != nil {
					return pipeline.Fail(err, "ownership transfer failed")
				}
				if declined {
					workerDeclined = true
					return pipeline.Warn("runtime access declined: background worker will not start")
				}
				return pipeline.OK("ownership and permissions finalized")
			},
		},
		{
			Name: "restart services",
			Run: func(rc *cup_io.RuntimeContext, cfg *config.InstallConfig) pipeline.Result {
				for _, unit := range restartTargets(workerDeclined) {
					if err := systemd.Restart(rc, unit); err != nil {
						return pipeline.Failf(err, "restart of %s failed", unit)
					}
				}
				if workerDeclined {
					return pipeline.Warn("services restarted, worker left stopped until runtime access is granted")
				}
				return pipeline.OK("all services restarted")
			},
		},
		{
			Name: "install health-check tool",
			Run: func(rc *cup_io.RuntimeContext, cfg *config.InstallConfig) pipeline.Result {
				if err := health.InstallScript(rc, cfg); err != nil {
					return pipeline.Fail(err, "health-check tool installation failed")
				}
				return pipeline.OK("diagnostic tool installed")
			},
		},
	}
}

// Run executes the assembled pipeline and, on success, verifies the stack
// and prints the summary. The closing verification is informational: a
// warning, not a rollback trigger.
func Run(rc *cup_io.RuntimeContext, cfg *config.InstallConfig) error {
	logger := otelzap.Ctx(rc.Ctx)

	runner := &pipeline.Runner{Steps: Steps()}
	results, err := runner.Execute(rc, cfg)
	if err != nil {
		return err
	}

	report, checkErr := health.RunChecks(rc, cfg.Domain, cfg.UseTLS,
		postgresDSN(cfg))
	if checkErr != nil {
		logger.Warn("Post-install verification reported problems",
			zap.Strings("failed_checks", report.Failed()),
			zap.Error(checkErr))
	}

	health.Summary(rc, cfg)
	logger.Info("Provisioning pipeline finished",
		zap.Int("steps", len(results)))
	return nil
}

func postgresDSN(cfg *config.InstallConfig) string {
	return postgres.DSN(shared.DatabaseRole, cfg.DBPassword, shared.DatabaseName)
}

// restartTargets excludes the worker unit when runtime access was declined:
// its start would fail, and that known condition is a warning, not an abort.
func restartTargets(workerDeclined bool) []string {
	if !workerDeclined {
		return shared.ManagedServices
	}
	targets := make([]string, 0, len(shared.ManagedServices))
	for _, unit := range shared.ManagedServices {
		if unit != shared.WorkerUnitName {
			targets = append(targets, unit)
		}
	}
	return targets
}
