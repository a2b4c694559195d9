// pkg/apache/apache.go

// Package apache configures the web server: a virtual host with the embedded
// application-server module, a config self-test gate, and optional TLS via
// the certificate-issuing client.
package apache

import (
	"bytes"
	"text/template"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/opsbrew/canvasup/pkg/config"
	"github.com/opsbrew/canvasup/pkg/cup_io"
	"github.com/opsbrew/canvasup/pkg/execute"
	"github.com/opsbrew/canvasup/pkg/platform"
	"github.com/opsbrew/canvasup/pkg/rubyenv"
	"github.com/opsbrew/canvasup/pkg/shared"
)

// VHostData feeds the virtual-host template. The passenger module needs the
// absolute path of the pinned ruby, which lives under the installer's home.
type VHostData struct {
	Domain       string
	DocumentRoot string
	RubyBin      string
	AdminEmail   string
}

// The plain-HTTP virtual host. TLS is layered on afterwards by the
// certificate client, which writes its own SSL host; this file never
// references certificate paths itself.
var vhostTemplate = template.Must(template.New("vhost").Parse(`<VirtualHost *:80>
  ServerName {{ .Domain }}
  ServerAdmin {{ .AdminEmail }}
  DocumentRoot {{ .DocumentRoot }}

  PassengerRuby {{ .RubyBin }}
  PassengerAppEnv production
  PassengerMinInstances 2

  <Directory {{ .DocumentRoot }}>
    Allow from all
    Options -MultiViews
    Require all granted
  </Directory>

  ErrorLog ${APACHE_LOG_DIR}/canvas_error.log
  CustomLog ${APACHE_LOG_DIR}/canvas_access.log combined
</VirtualHost>
`))

// RenderVHost produces the virtual-host definition for the domain.
func RenderVHost(data VHostData) (string, error) {
	var buf bytes.Buffer
	if err := vhostTemplate.Execute(&buf, data); err != nil {
		return "", cerr.Wrap(err, "render virtual host")
	}
	return buf.String(), nil
}

// Configure writes the virtual host, enables the site and restarts the web
// server. The config self-test gates the restart: a failing test aborts the
// whole run rather than taking the server down with a broken config.
func Configure(rc *cup_io.RuntimeContext, cfg *config.InstallConfig) error {
	logger := otelzap.Ctx(rc.Ctx)

	vhost, err := RenderVHost(VHostData{
		Domain:       cfg.Domain,
		DocumentRoot: shared.CanvasDir + "/public",
		RubyBin:      rubyenv.RubyBin(),
		AdminEmail:   cfg.AdminEmail,
	})
	if err != nil {
		return err
	}

	if _, err := platform.BackupRootFile(rc, shared.ApacheSitePath); err != nil {
		return err
	}
	if err := platform.WriteRootFile(rc, shared.ApacheSitePath, vhost, "0644"); err != nil {
		return err
	}

	for _, mod := range []string{"passenger", "rewrite"} {
		if err := execute.RunSudo(rc.Ctx, "a2enmod", mod); err != nil {
			return cerr.Wrapf(err, "enable apache module %s", mod)
		}
	}
	if err := execute.RunSudo(rc.Ctx, "a2ensite", shared.ApacheSiteName); err != nil {
		return cerr.Wrap(err, "enable site")
	}
	if err := execute.RunSudo(rc.Ctx, "a2dissite", "000-default"); err != nil {
		logger.Warn("Could not disable default site", zap.Error(err))
	}

	if err := ConfigTest(rc); err != nil {
		return err
	}
	if err := execute.RunSudo(rc.Ctx, "systemctl", "restart", "apache2"); err != nil {
		return cerr.Wrap(err, "restart web server")
	}

	logger.Info("Web server configured",
		zap.String("site", shared.ApacheSitePath),
		zap.String("domain", cfg.Domain))
	return nil
}

// ConfigTest runs the web server's own syntax check.
func ConfigTest(rc *cup_io.RuntimeContext) error {
	out, err := execute.Run(rc.Ctx, execute.Options{
		Command: "apachectl",
		Args:    []string{"configtest"},
		Sudo:    true,
		Capture: true,
		Quiet:   true,
		Timeout: 30 * time.Second,
	})
	if err != nil {
		return cerr.Wrapf(err, "web server config test failed: %s", out)
	}
	return nil
}

// ObtainCertificate requests and installs a TLS certificate. Callers treat a
// failure as non-fatal: the site stays reachable over plain HTTP.
func ObtainCertificate(rc *cup_io.RuntimeContext, cfg *config.InstallConfig) error {
	logger := otelzap.Ctx(rc.Ctx)

	if err := platform.AptInstall(rc, "certbot", "python3-certbot-apache"); err != nil {
		return err
	}

	_, err := execute.Run(rc.Ctx, execute.Options{
		Command: "certbot",
		Args: []string{
			"--apache",
			"--non-interactive",
			"--agree-tos",
			"--redirect",
			"-m", cfg.AdminEmail,
			"-d", cfg.Domain,
		},
		Sudo:    true,
		Timeout: 5 * time.Minute,
	})
	if err != nil {
		return cerr.Wrap(err, "obtain TLS certificate")
	}

	logger.Info("TLS certificate installed", zap.String("domain", cfg.Domain))
	return nil
}
