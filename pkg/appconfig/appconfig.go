// pkg/appconfig/appconfig.go

// Package appconfig materializes the application's configuration artifacts
// from typed templates and the collected installation parameters.
package appconfig

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/template"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/opsbrew/canvasup/pkg/config"
	"github.com/opsbrew/canvasup/pkg/crypto"
	"github.com/opsbrew/canvasup/pkg/cup_io"
	"github.com/opsbrew/canvasup/pkg/shared"
)

// requiredExamples must be present in the fetched source tree. Their absence
// means a corrupted or incompatible fetch, which is fatal before any
// dependent step runs.
var requiredExamples = []string{
	"config/database.yml.example",
	"config/domain.yml.example",
	"config/outgoing_mail.yml.example",
	"config/security.yml.example",
	"config/cache_store.yml.example",
}

// optionalExample is synthesized with safe defaults when absent; see
// productionLocalDefault.
const optionalExample = "config/environments/production-local.rb.example"

// Writer renders the configuration artifacts into a Canvas checkout.
// Root defaults to the fixed install path; tests point it at a temp dir.
type Writer struct {
	Root string
	Now  func() time.Time
}

// NewWriter returns a Writer for the production install tree.
func NewWriter() *Writer {
	return &Writer{Root: shared.CanvasDir, Now: time.Now}
}

// VerifyTemplates confirms every required upstream example survived the
// fetch. Called before any artifact is written.
func (w *Writer) VerifyTemplates(rc *cup_io.RuntimeContext) error {
	logger := otelzap.Ctx(rc.Ctx)

	for _, rel := range requiredExamples {
		path := filepath.Join(w.Root, rel)
		if _, err := os.Stat(path); err != nil {
			return cerr.Wrapf(err, "required template %s missing, source fetch looks corrupted or incompatible", rel)
		}
	}

	logger.Debug("All required configuration templates present",
		zap.Int("count", len(requiredExamples)))
	return nil
}

// WriteAll renders every configuration artifact. Existing artifacts are
// backed up with a timestamp suffix first, never silently overwritten.
// Returns the generated encryption key for the environment file.
func (w *Writer) WriteAll(rc *cup_io.RuntimeContext, cfg *config.InstallConfig) (string, error) {
	logger := otelzap.Ctx(rc.Ctx)

	if err := w.VerifyTemplates(rc); err != nil {
		return "", err
	}

	key, err := w.ensureEncryptionKey(rc)
	if err != nil {
		return "", err
	}

	artifacts := []struct {
		rel  string
		tmpl *template.Template
		data any
	}{
		{"config/database.yml", databaseTemplate, DatabaseData{
			Database: shared.DatabaseName,
			Role:     shared.DatabaseRole,
			Password: cfg.DBPassword,
		}},
		{"config/domain.yml", domainTemplate, DomainData{
			Domain: cfg.Domain,
			UseTLS: cfg.UseTLS,
		}},
		{"config/outgoing_mail.yml", mailTemplate, MailData{
			Domain:      cfg.Domain,
			SenderEmail: cfg.SenderEmail,
		}},
		{"config/security.yml", securityTemplate, SecurityData{
			EncryptionKey: key,
		}},
		{"config/cache_store.yml", cacheTemplate, CacheData{
			RedisURL: "redis://localhost:6379",
		}},
	}

	for _, artifact := range artifacts {
		if err := w.render(rc, artifact.rel, artifact.tmpl, artifact.data); err != nil {
			return "", err
		}
	}

	if err := w.writeProductionLocal(rc); err != nil {
		return "", err
	}
	if err := w.WriteEnvFile(rc, cfg, key); err != nil {
		return "", err
	}

	logger.Info("Configuration artifacts written",
		zap.Int("artifacts", len(artifacts)+2),
		zap.String("root", w.Root))
	return key, nil
}

// render executes one template, verifies the result parses as YAML, backs up
// any existing artifact and writes the new one with restrictive permissions.
func (w *Writer) render(rc *cup_io.RuntimeContext, rel string, tmpl *template.Template, data any) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return cerr.Wrapf(err, "render %s", rel)
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &parsed); err != nil {
		return cerr.Wrapf(err, "rendered %s is not valid YAML", rel)
	}

	path := filepath.Join(w.Root, rel)
	if _, err := w.BackupIfExists(rc, path); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o640); err != nil {
		return cerr.Wrapf(err, "write %s", rel)
	}
	return nil
}

// BackupIfExists copies an existing file aside with a timestamp suffix and
// returns the backup path, or "" when there was nothing to back up.
func (w *Writer) BackupIfExists(rc *cup_io.RuntimeContext, path string) (string, error) {
	logger := otelzap.Ctx(rc.Ctx)

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", cerr.Wrapf(err, "read existing %s", path)
	}

	backup := fmt.Sprintf("%s.%d.bak", path, w.Now().Unix())
	if err := os.WriteFile(backup, content, 0o600); err != nil {
		return "", cerr.Wrapf(err, "back up %s", path)
	}
	logger.Info("Existing artifact backed up",
		zap.String("path", path),
		zap.String("backup", backup))
	return backup, nil
}

// ensureEncryptionKey reuses the key from an existing security artifact so
// re-runs never silently rotate it; a fresh key is generated only when the
// artifact is absent.
func (w *Writer) ensureEncryptionKey(rc *cup_io.RuntimeContext) (string, error) {
	logger := otelzap.Ctx(rc.Ctx)

	existing, err := os.ReadFile(filepath.Join(w.Root, "config/security.yml"))
	if err == nil {
		var doc struct {
			Production struct {
				EncryptionKey string `yaml:"encryption_key"`
			} `yaml:"production"`
		}
		if yaml.Unmarshal(existing, &doc) == nil && crypto.ValidateKey(doc.Production.EncryptionKey) == nil {
			logger.Info("Reusing encryption key from existing security configuration")
			return doc.Production.EncryptionKey, nil
		}
	}

	key, err := crypto.GenerateEncryptionKey()
	if err != nil {
		return "", err
	}
	if err := crypto.ValidateKey(key); err != nil {
		return "", err
	}
	return key, nil
}

// writeProductionLocal copies the optional override example when present, or
// synthesizes safe defaults when it is not.
func (w *Writer) writeProductionLocal(rc *cup_io.RuntimeContext) error {
	logger := otelzap.Ctx(rc.Ctx)

	target := filepath.Join(w.Root, "config/environments/production-local.rb")
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return cerr.Wrap(err, "create environments directory")
	}

	content := []byte(productionLocalDefault)
	example, err := os.ReadFile(filepath.Join(w.Root, optionalExample))
	if err == nil {
		content = example
	} else {
		logger.Warn("Optional environment template absent, synthesizing defaults",
			zap.String("template", optionalExample))
	}

	if _, err := w.BackupIfExists(rc, target); err != nil {
		return err
	}
	if err := os.WriteFile(target, content, 0o640); err != nil {
		return cerr.Wrap(err, "write production-local.rb")
	}
	return nil
}

// WriteEnvFile persists the administrator bootstrap credentials and the
// generated secret for the migration step and the running services.
func (w *Writer) WriteEnvFile(rc *cup_io.RuntimeContext, cfg *config.InstallConfig, key string) error {
	path := filepath.Join(w.Root, ".env.production")
	if _, err := w.BackupIfExists(rc, path); err != nil {
		return err
	}

	env := map[string]string{
		"CANVAS_LMS_ADMIN_EMAIL":      cfg.AdminEmail,
		"CANVAS_LMS_ADMIN_PASSWORD":   cfg.AdminPassword,
		"CANVAS_LMS_ACCOUNT_NAME":     "Canvas",
		"CANVAS_LMS_STATS_COLLECTION": "opt_out",
		"CANVAS_ENCRYPTION_KEY":       key,
		"RAILS_ENV":                   "production",
	}
	if err := godotenv.Write(env, path); err != nil {
		return cerr.Wrap(err, "write environment file")
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return cerr.Wrap(err, "restrict environment file permissions")
	}
	return nil
}

// ReadEnvFile loads the persisted bootstrap environment, used by the
// migration step to seed the administrator account.
func (w *Writer) ReadEnvFile() (map[string]string, error) {
	env, err := godotenv.Read(filepath.Join(w.Root, ".env.production"))
	if err != nil {
		return nil, cerr.Wrap(err, "read environment file")
	}
	return env, nil
}
