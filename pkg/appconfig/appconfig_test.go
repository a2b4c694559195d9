// pkg/appconfig/appconfig_test.go

package appconfig

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/opsbrew/canvasup/pkg/config"
	"github.com/opsbrew/canvasup/pkg/cup_io"
)

var fixedNow = time.Unix(1700000000, 0)

func testConfig() *config.InstallConfig {
	return &config.InstallConfig{
		Domain:        "canvas.example.org",
		DBPassword:    "dbpass",
		SenderEmail:   "canvas@example.org",
		UseTLS:        true,
		AdminEmail:    "admin@example.org",
		AdminPassword: "longenough",
	}
}

// newTestWriter builds a Writer over a synthetic checkout containing all
// required upstream example templates.
func newTestWriter(t *testing.T) (*Writer, *cup_io.RuntimeContext) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "config"), 0o755))
	for _, rel := range requiredExamples {
		require.NoError(t, os.WriteFile(filepath.Join(root, rel), []byte("production:\n  example: true\n"), 0o644))
	}
	return &Writer{Root: root, Now: func() time.Time { return fixedNow }},
		cup_io.NewContext(context.Background(), "test")
}

func TestWriteAll(t *testing.T) {
	w, rc := newTestWriter(t)

	key, err := w.WriteAll(rc, testConfig())
	require.NoError(t, err)
	assert.Len(t, key, 128)

	// Every rendered artifact parses as YAML.
	for _, rel := range []string{
		"config/database.yml", "config/domain.yml", "config/outgoing_mail.yml",
		"config/security.yml", "config/cache_store.yml",
	} {
		content, err := os.ReadFile(filepath.Join(w.Root, rel))
		require.NoError(t, err, rel)
		var parsed map[string]any
		require.NoError(t, yaml.Unmarshal(content, &parsed), rel)
	}

	db, err := os.ReadFile(filepath.Join(w.Root, "config/database.yml"))
	require.NoError(t, err)
	assert.Contains(t, string(db), "dbpass")
	assert.Contains(t, string(db), "canvas_production")

	sec, err := os.ReadFile(filepath.Join(w.Root, "config/security.yml"))
	require.NoError(t, err)
	assert.Contains(t, string(sec), key)

	// The optional override is synthesized when its example is absent.
	local, err := os.ReadFile(filepath.Join(w.Root, "config/environments/production-local.rb"))
	require.NoError(t, err)
	assert.NotEmpty(t, local)
}

func TestWriteAll_MissingRequiredTemplateIsFatal(t *testing.T) {
	w, rc := newTestWriter(t)
	require.NoError(t, os.Remove(filepath.Join(w.Root, "config/security.yml.example")))

	_, err := w.WriteAll(rc, testConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "security.yml.example")
}

func TestWriteAll_ReusesExistingEncryptionKey(t *testing.T) {
	w, rc := newTestWriter(t)

	existingKey := strings.Repeat("ab", 64)
	security := fmt.Sprintf("production:\n  encryption_key: %q\n", existingKey)
	require.NoError(t, os.WriteFile(filepath.Join(w.Root, "config/security.yml"), []byte(security), 0o640))

	key, err := w.WriteAll(rc, testConfig())
	require.NoError(t, err)
	assert.Equal(t, existingKey, key, "re-runs must not rotate the encryption key")
}

func TestWriteAll_OptionalExampleCopiedWhenPresent(t *testing.T) {
	w, rc := newTestWriter(t)

	require.NoError(t, os.MkdirAll(filepath.Join(w.Root, "config/environments"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(w.Root, optionalExample),
		[]byte("# upstream override\n"), 0o644))

	_, err := w.WriteAll(rc, testConfig())
	require.NoError(t, err)

	local, err := os.ReadFile(filepath.Join(w.Root, "config/environments/production-local.rb"))
	require.NoError(t, err)
	assert.Equal(t, "# upstream override\n", string(local))
}

func TestBackupIfExists(t *testing.T) {
	w, rc := newTestWriter(t)

	path := filepath.Join(w.Root, "config/database.yml")
	require.NoError(t, os.WriteFile(path, []byte("old content"), 0o640))

	backup, err := w.BackupIfExists(rc, path)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%s.%d.bak", path, fixedNow.Unix()), backup)

	saved, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, "old content", string(saved))
}

func TestBackupIfExists_NothingToBackUp(t *testing.T) {
	w, rc := newTestWriter(t)

	backup, err := w.BackupIfExists(rc, filepath.Join(w.Root, "config/absent.yml"))
	require.NoError(t, err)
	assert.Empty(t, backup)
}

func TestEnvFileRoundTrip(t *testing.T) {
	w, rc := newTestWriter(t)
	cfg := testConfig()

	key, err := w.WriteAll(rc, cfg)
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(w.Root, ".env.production"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	env, err := w.ReadEnvFile()
	require.NoError(t, err)
	assert.Equal(t, cfg.AdminEmail, env["CANVAS_LMS_ADMIN_EMAIL"])
	assert.Equal(t, cfg.AdminPassword, env["CANVAS_LMS_ADMIN_PASSWORD"])
	assert.Equal(t, key, env["CANVAS_ENCRYPTION_KEY"])
	assert.Equal(t, "production", env["RAILS_ENV"])
}
