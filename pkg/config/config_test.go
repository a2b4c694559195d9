// pkg/config/config_test.go

package config

import (
	"context"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsbrew/canvasup/pkg/cup_io"
)

func validConfig() *InstallConfig {
	return &InstallConfig{
		Domain:        "canvas.example.org",
		DBPassword:    "s3cretpass",
		SenderEmail:   "canvas@example.org",
		UseTLS:        true,
		AdminEmail:    "admin@example.org",
		AdminPassword: "longenough",
	}
}

func TestInstallConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*InstallConfig)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *InstallConfig) {}},
		{name: "missing domain", mutate: func(c *InstallConfig) { c.Domain = "" }, wantErr: true},
		{name: "domain with spaces", mutate: func(c *InstallConfig) { c.Domain = "not a domain" }, wantErr: true},
		{name: "single-label internal hostname accepted", mutate: func(c *InstallConfig) { c.Domain = "canvas" }},
		{name: "missing db password", mutate: func(c *InstallConfig) { c.DBPassword = "" }, wantErr: true},
		{name: "sender not email", mutate: func(c *InstallConfig) { c.SenderEmail = "nope" }, wantErr: true},
		{name: "admin not email", mutate: func(c *InstallConfig) { c.AdminEmail = "nope" }, wantErr: true},
		{name: "missing admin password", mutate: func(c *InstallConfig) { c.AdminPassword = "" }, wantErr: true},
		{name: "short passwords accepted", mutate: func(c *InstallConfig) { c.AdminPassword = "y"; c.DBPassword = "x" }},
		{name: "tls optional", mutate: func(c *InstallConfig) { c.UseTLS = false }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// Any non-empty password must pass: length policy is the operator's call,
// the tool only warns.
func TestInstallConfig_MinimalCredentialsAccepted(t *testing.T) {
	cfg := &InstallConfig{
		Domain:        "canvas.example.edu",
		DBPassword:    "x",
		SenderEmail:   "canvas@example.edu",
		UseTLS:        false,
		AdminEmail:    "admin@example.edu",
		AdminPassword: "y",
	}
	require.NoError(t, cfg.Validate())
}

func TestFromViper(t *testing.T) {
	rc := cup_io.NewContext(context.Background(), "test")

	v := viper.New()
	v.Set("domain", "canvas.example.org")
	v.Set("db_password", "s3cretpass")
	v.Set("sender_email", "canvas@example.org")
	v.Set("use_tls", true)
	v.Set("admin_email", "admin@example.org")
	v.Set("admin_password", "longenough")

	cfg, err := FromViper(rc, v)
	require.NoError(t, err)
	assert.Equal(t, "canvas.example.org", cfg.Domain)
	assert.True(t, cfg.UseTLS)
	assert.True(t, cfg.NonInteractive, "file-driven runs are unattended")
}

func TestFromViper_InvalidConfigRejected(t *testing.T) {
	rc := cup_io.NewContext(context.Background(), "test")

	v := viper.New()
	v.Set("domain", "canvas.example.org")
	// Everything else missing.

	_, err := FromViper(rc, v)
	require.Error(t, err)
}
