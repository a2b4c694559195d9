// pkg/health/script.go

package health

import (
	"bytes"
	"text/template"

	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/opsbrew/canvasup/pkg/config"
	"github.com/opsbrew/canvasup/pkg/cup_io"
	"github.com/opsbrew/canvasup/pkg/platform"
	"github.com/opsbrew/canvasup/pkg/shared"
)

// scriptData feeds the standalone diagnostic script template.
type scriptData struct {
	Services  []string
	Domain    string
	Scheme    string
	LoginPath string
	LogFile   string
	Database  string
	Role      string
}

// The installed script is self-contained shell so it keeps working when the
// installer binary is gone. It mirrors RunChecks.
var scriptTemplate = template.Must(template.New("health").Parse(`#!/usr/bin/env bash
# canvasup-health: Canvas LMS host diagnostics. Installed by canvasup.
set -u

fail=0

check() {
  local name="$1"; shift
  if "$@" >/dev/null 2>&1; then
    echo "ok   $name"
  else
    echo "FAIL $name"
    fail=1
  fi
}

{{ range .Services }}check "service {{ . }}" systemctl is-active --quiet {{ . }}
{{ end }}
check "database connectivity" sudo -u postgres psql -d {{ .Database }} -tAc "SELECT 1"
check "cache liveness" redis-cli ping
check "http reachability" curl -fsS -o /dev/null --max-time 10 -H "Host: {{ .Domain }}" http://localhost/
{{ if eq .Scheme "https" }}check "https reachability" curl -fsSk -o /dev/null --max-time 10 -H "Host: {{ .Domain }}" https://localhost/
{{ end }}
status=$(curl -sk -o /dev/null -w "%{http_code}" --max-time 15 -H "Host: {{ .Domain }}" {{ .Scheme }}://localhost{{ .LoginPath }})
if [ "$status" = "200" ] || [ "$status" = "302" ]; then
  echo "ok   application login ($status)"
else
  echo "FAIL application login ($status)"
  fail=1
fi

echo "recent application log errors/warnings:"
sudo tail -n 200 {{ .LogFile }} 2>/dev/null | grep -iE "error|warn" | tail -n 5 || echo "  none"

exit $fail
`))

// RenderScript produces the standalone diagnostic script body.
func RenderScript(cfg *config.InstallConfig) (string, error) {
	scheme := "http"
	if cfg.UseTLS {
		scheme = "https"
	}

	var buf bytes.Buffer
	err := scriptTemplate.Execute(&buf, scriptData{
		Services:  shared.ManagedServices,
		Domain:    cfg.Domain,
		Scheme:    scheme,
		LoginPath: LoginPath,
		LogFile:   shared.ProdLogFile,
		Database:  shared.DatabaseName,
		Role:      shared.DatabaseRole,
	})
	if err != nil {
		return "", cerr.Wrap(err, "render health script")
	}
	return buf.String(), nil
}

// InstallScript writes the diagnostic tool to the system binary path for
// ongoing operational use.
func InstallScript(rc *cup_io.RuntimeContext, cfg *config.InstallConfig) error {
	logger := otelzap.Ctx(rc.Ctx)

	script, err := RenderScript(cfg)
	if err != nil {
		return err
	}
	if _, err := platform.BackupRootFile(rc, shared.HealthScriptPath); err != nil {
		return err
	}
	if err := platform.WriteRootFile(rc, shared.HealthScriptPath, script, "0755"); err != nil {
		return err
	}

	logger.Info("Health-check tool installed", zap.String("path", shared.HealthScriptPath))
	return nil
}
