// pkg/build/build.go

// Package build installs application-level dependencies, compiles static
// assets and applies database migrations inside the fetched source tree.
package build

import (
	"os"
	"path/filepath"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/opsbrew/canvasup/pkg/cup_io"
	"github.com/opsbrew/canvasup/pkg/execute"
	"github.com/opsbrew/canvasup/pkg/shared"
)

// Strategy is one attempt shape for a dependency install. Strategies are
// tried in order; the first success short-circuits the rest.
type Strategy struct {
	Name    string
	Command string
	Args    []string
	Env     []string
	Timeout time.Duration
}

// Runner executes build operations in the application tree. Exec is
// swappable so tests never spawn real toolchains.
type Runner struct {
	Dir  string
	Env  []string
	Exec execute.RunFunc
}

// NewRunner returns a Runner for the production install tree with the rbenv
// toolchain on PATH.
func NewRunner() *Runner {
	rbenvShims := filepath.Join(os.Getenv("HOME"), ".rbenv", "shims")
	return &Runner{
		Dir: shared.CanvasDir,
		Env: []string{
			"RAILS_ENV=production",
			"PATH=" + rbenvShims + ":" + os.Getenv("PATH"),
		},
		Exec: execute.Run,
	}
}

// BundlerStrategies is the escalating fallback list for backend gems:
// strict lockfile first, then relaxed, then relaxed with a long network
// timeout for flaky mirrors.
func BundlerStrategies() []Strategy {
	return []Strategy{
		{
			Name:    "deployment install",
			Command: "bundle",
			Args:    []string{"install", "--deployment"},
			Timeout: 30 * time.Minute,
		},
		{
			Name:    "relaxed install",
			Command: "bundle",
			Args:    []string{"install"},
			Timeout: 30 * time.Minute,
		},
		{
			Name:    "relaxed install, extended network timeout",
			Command: "bundle",
			Args:    []string{"install", "--retry", "5"},
			Env:     []string{"BUNDLE_TIMEOUT=120"},
			Timeout: 60 * time.Minute,
		},
	}
}

// YarnStrategies is the fallback list for the front-end toolchain.
func YarnStrategies() []Strategy {
	return []Strategy{
		{
			Name:    "frozen lockfile install",
			Command: "yarn",
			Args:    []string{"install", "--frozen-lockfile"},
			Timeout: 30 * time.Minute,
		},
		{
			Name:    "plain install",
			Command: "yarn",
			Args:    []string{"install"},
			Timeout: 30 * time.Minute,
		},
		{
			Name:    "extended network timeout install",
			Command: "yarn",
			Args:    []string{"install", "--network-timeout", "600000"},
			Timeout: 60 * time.Minute,
		},
	}
}

// TryStrategies runs each strategy in order and returns the name of the one
// that succeeded. All failing is fatal to the pipeline.
func (r *Runner) TryStrategies(rc *cup_io.RuntimeContext, label string, strategies []Strategy) (string, error) {
	logger := otelzap.Ctx(rc.Ctx)

	var lastErr error
	for _, strategy := range strategies {
		logger.Info("Attempting install strategy",
			zap.String("component", label),
			zap.String("strategy", strategy.Name))

		_, err := r.Exec(rc.Ctx, execute.Options{
			Command: strategy.Command,
			Args:    strategy.Args,
			Dir:     r.Dir,
			Env:     append(append([]string{}, r.Env...), strategy.Env...),
			Timeout: strategy.Timeout,
		})
		if err == nil {
			logger.Info("Install strategy succeeded",
				zap.String("component", label),
				zap.String("strategy", strategy.Name))
			return strategy.Name, nil
		}

		lastErr = err
		logger.Warn("Install strategy failed, escalating",
			zap.String("component", label),
			zap.String("strategy", strategy.Name),
			zap.Error(err))
	}

	return "", cerr.Wrapf(lastErr, "all %d %s install strategies failed", len(strategies), label)
}

// InstallBackendDeps installs the gem bundle with escalating strategies.
func (r *Runner) InstallBackendDeps(rc *cup_io.RuntimeContext) error {
	_, err := r.TryStrategies(rc, "backend", BundlerStrategies())
	return err
}

// InstallFrontendDeps installs the JavaScript dependencies with escalating
// strategies.
func (r *Runner) InstallFrontendDeps(rc *cup_io.RuntimeContext) error {
	_, err := r.TryStrategies(rc, "frontend", YarnStrategies())
	return err
}

// CompileAssets builds static assets. Single attempt, fatal on failure.
func (r *Runner) CompileAssets(rc *cup_io.RuntimeContext) error {
	_, err := r.Exec(rc.Ctx, execute.Options{
		Command: "bundle",
		Args:    []string{"exec", "rake", "canvas:compile_assets"},
		Dir:     r.Dir,
		Env:     r.Env,
		Timeout: 60 * time.Minute,
	})
	if err != nil {
		return cerr.Wrap(err, "compile static assets")
	}
	return nil
}

// RunMigrations applies the schema and seeds the initial data, including the
// administrator account from the bootstrap environment. Single attempt: a
// partially applied migration is unsafe to blindly retry.
func (r *Runner) RunMigrations(rc *cup_io.RuntimeContext, bootstrapEnv map[string]string) error {
	env := append([]string{}, r.Env...)
	for k, v := range bootstrapEnv {
		env = append(env, k+"="+v)
	}

	_, err := r.Exec(rc.Ctx, execute.Options{
		Command: "bundle",
		Args:    []string{"exec", "rake", "db:initial_setup"},
		Dir:     r.Dir,
		Env:     env,
		Timeout: 60 * time.Minute,
	})
	if err != nil {
		return cerr.Wrap(err, "database migration and initial setup")
	}
	return nil
}
