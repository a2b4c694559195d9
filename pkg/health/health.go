// pkg/health/health.go

// Package health verifies the provisioned stack end to end and emits the
// post-install summary. The same checks back the `doctor` subcommand for
// ongoing operational use.
package health

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	_ "github.com/lib/pq"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/opsbrew/canvasup/pkg/config"
	"github.com/opsbrew/canvasup/pkg/cup_io"
	"github.com/opsbrew/canvasup/pkg/execute"
	"github.com/opsbrew/canvasup/pkg/rediscache"
	"github.com/opsbrew/canvasup/pkg/shared"
	"github.com/opsbrew/canvasup/pkg/systemd"
)

// LoginPath is the application route probed for end-to-end reachability.
const LoginPath = "/login/canvas"

// CheckResult is one diagnostic outcome.
type CheckResult struct {
	Name   string
	OK     bool
	Detail string
}

// Report is the full diagnostic run.
type Report []CheckResult

// Failed lists the names of failing checks.
func (r Report) Failed() []string {
	var failed []string
	for _, result := range r {
		if !result.OK {
			failed = append(failed, result.Name)
		}
	}
	return failed
}

// RunChecks probes every managed service, database connectivity, cache
// liveness, web-server reachability and the application login route. All
// checks always run; failures are aggregated rather than short-circuited.
func RunChecks(rc *cup_io.RuntimeContext, domain string, useTLS bool, dsn string) (Report, error) {
	logger := otelzap.Ctx(rc.Ctx)
	var report Report
	var errs *multierror.Error

	record := func(name string, err error) {
		result := CheckResult{Name: name, OK: err == nil}
		if err != nil {
			result.Detail = err.Error()
			errs = multierror.Append(errs, cerr.Wrap(err, name))
			logger.Warn("Health check failed", zap.String("check", name), zap.Error(err))
		} else {
			logger.Info("Health check passed", zap.String("check", name))
		}
		report = append(report, result)
	}

	for _, unit := range shared.ManagedServices {
		name := "service " + unit
		if systemd.IsActive(rc, unit) {
			record(name, nil)
		} else {
			record(name, cerr.Newf("unit %s is not active", unit))
		}
	}

	record("database connectivity", pingDatabase(rc.Ctx, dsn))
	record("cache liveness", rediscache.Ping(rc.Ctx))
	record("http reachability", checkHTTP(rc.Ctx, "http://localhost/", domain, http.StatusOK, http.StatusFound, http.StatusMovedPermanently))
	if useTLS {
		record("https reachability", checkHTTP(rc.Ctx, "https://localhost/", domain, http.StatusOK, http.StatusFound, http.StatusMovedPermanently))
	}

	scheme := "http"
	if useTLS {
		scheme = "https"
	}
	record("application login", checkHTTP(rc.Ctx, scheme+"://localhost"+LoginPath, domain, http.StatusOK, http.StatusFound))

	record("application log", tailApplicationLog(rc))

	return report, errs.ErrorOrNil()
}

// DSNFromInstalledConfig recovers the database connection string from the
// deployed database.yml, for doctor runs that have no InstallConfig.
func DSNFromInstalledConfig(rc *cup_io.RuntimeContext) (string, error) {
	out, err := execute.Run(rc.Ctx, execute.Options{
		Command: "cat",
		Args:    []string{shared.ConfigDir + "/database.yml"},
		Sudo:    true,
		Capture: true,
		Quiet:   true,
	})
	if err != nil {
		return "", cerr.Wrap(err, "read deployed database configuration")
	}

	var doc struct {
		Production struct {
			Database string `yaml:"database"`
			Username string `yaml:"username"`
			Password string `yaml:"password"`
		} `yaml:"production"`
	}
	if err := yaml.Unmarshal([]byte(out), &doc); err != nil {
		return "", cerr.Wrap(err, "parse deployed database configuration")
	}
	return fmt.Sprintf("host=localhost port=5432 user=%s password=%s dbname=%s sslmode=disable",
		doc.Production.Username, doc.Production.Password, doc.Production.Database), nil
}

func pingDatabase(ctx context.Context, dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return cerr.Wrap(err, "open database")
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return db.PingContext(pingCtx)
}

// checkHTTP probes a local URL with the public hostname in the Host header,
// so virtual-host routing is exercised without external DNS.
func checkHTTP(ctx context.Context, url, hostHeader string, wantStatuses ...int) error {
	client := &http.Client{
		Timeout: 15 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return cerr.Wrap(err, "build request")
	}
	req.Host = hostHeader

	resp, err := client.Do(req)
	if err != nil {
		return cerr.Wrapf(err, "GET %s", url)
	}
	defer resp.Body.Close()

	for _, want := range wantStatuses {
		if resp.StatusCode == want {
			return nil
		}
	}
	return cerr.Newf("GET %s returned %d, expected one of %v", url, resp.StatusCode, wantStatuses)
}

// tailApplicationLog surfaces recent error and warning lines. Their presence
// is reported as a failure detail so the operator looks at them; an absent
// log (fresh install, nothing served yet) is fine.
func tailApplicationLog(rc *cup_io.RuntimeContext) error {
	out, err := execute.Run(rc.Ctx, execute.Options{
		Command: "tail",
		Args:    []string{"-n", "200", shared.ProdLogFile},
		Sudo:    true,
		Capture: true,
		Quiet:   true,
	})
	if err != nil {
		return nil
	}

	var suspicious []string
	for _, line := range strings.Split(out, "\n") {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "error") || strings.Contains(lower, "warn") {
			suspicious = append(suspicious, strings.TrimSpace(line))
		}
	}
	if len(suspicious) > 0 {
		if len(suspicious) > 5 {
			suspicious = suspicious[len(suspicious)-5:]
		}
		return cerr.Newf("recent log entries need attention:\n%s", strings.Join(suspicious, "\n"))
	}
	return nil
}

// Summary prints the human-readable post-install report.
func Summary(rc *cup_io.RuntimeContext, cfg *config.InstallConfig) {
	logger := otelzap.Ctx(rc.Ctx)

	scheme := "http"
	if cfg.UseTLS {
		scheme = "https"
	}

	logger.Info("terminal prompt: Installation complete.")
	logger.Info("terminal prompt: ",
		zap.String("url", scheme+"://"+cfg.Domain),
		zap.String("admin_login", cfg.AdminEmail),
		zap.String("credentials_file", shared.EnvFile),
		zap.String("application_log", shared.ProdLogFile),
		zap.String("health_check", shared.HealthScriptPath))
}
