// pkg/worker/worker.go

// Package worker installs the background job runner as a systemd service.
package worker

import (
	"bytes"
	"text/template"

	cerr "github.com/cockroachdb/errors"

	"github.com/opsbrew/canvasup/pkg/cup_io"
	"github.com/opsbrew/canvasup/pkg/shared"
	"github.com/opsbrew/canvasup/pkg/systemd"
)

// UnitData feeds the service-unit template.
type UnitData struct {
	User       string
	WorkingDir string
	EnvFile    string
	RubyShims  string
}

var unitTemplate = template.Must(template.New("unit").Parse(`[Unit]
Description=Canvas LMS delayed jobs worker
After=network.target postgresql.service redis-server.service

[Service]
Type=simple
User={{ .User }}
WorkingDirectory={{ .WorkingDir }}
EnvironmentFile={{ .EnvFile }}
Environment=RAILS_ENV=production
Environment=PATH={{ .RubyShims }}:/usr/local/bin:/usr/bin:/bin
ExecStart={{ .WorkingDir }}/script/delayed_job run
Restart=always
RestartSec=10

[Install]
WantedBy=multi-user.target
`))

// RenderUnit produces the worker's service-unit definition.
func RenderUnit(data UnitData) (string, error) {
	var buf bytes.Buffer
	if err := unitTemplate.Execute(&buf, data); err != nil {
		return "", cerr.Wrap(err, "render worker unit")
	}
	return buf.String(), nil
}

// Configure writes, enables and starts the worker unit.
func Configure(rc *cup_io.RuntimeContext, rubyShims string) error {
	unit, err := RenderUnit(UnitData{
		User:       shared.ServiceUser,
		WorkingDir: shared.CanvasDir,
		EnvFile:    shared.EnvFile,
		RubyShims:  rubyShims,
	})
	if err != nil {
		return err
	}
	return systemd.InstallUnit(rc, shared.WorkerUnitName, shared.WorkerUnitPath, unit)
}
