// pkg/config/config.go

package config

import (
	"strings"

	cerr "github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/opsbrew/canvasup/pkg/cup_io"
	"github.com/opsbrew/canvasup/pkg/interaction"
)

var validate = validator.New()

// InstallConfig holds the user-supplied deployment parameters. It is
// collected once before the pipeline runs and treated as immutable
// afterwards; steps receive it by pointer but never write to it.
type InstallConfig struct {
	Domain        string `mapstructure:"domain" validate:"required,hostname_rfc1123"`
	DBPassword    string `mapstructure:"db_password" validate:"required"`
	SenderEmail   string `mapstructure:"sender_email" validate:"required,email"`
	UseTLS        bool   `mapstructure:"use_tls"`
	AdminEmail    string `mapstructure:"admin_email" validate:"required,email"`
	AdminPassword string `mapstructure:"admin_password" validate:"required"`

	// NonInteractive suppresses confirmation prompts; optional checks that
	// would ask the user are answered with their safe default instead.
	NonInteractive bool `mapstructure:"-"`
}

// Validate checks the collected parameters against their constraints.
func (c *InstallConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return cerr.WithHint(err, "installation parameters failed validation")
	}
	return nil
}

// Collect gathers the installation parameters interactively, re-prompting
// until each constraint is satisfied. A user abort surfaces as an expected
// error so the CLI can exit 0.
func Collect(rc *cup_io.RuntimeContext) (*InstallConfig, error) {
	logger := otelzap.Ctx(rc.Ctx)
	logger.Info("terminal prompt: Canvas LMS installation parameters")

	cfg := &InstallConfig{}
	var err error

	if cfg.Domain, err = promptValidated(rc, "Domain name (e.g. canvas.example.org)", "hostname_rfc1123"); err != nil {
		return nil, err
	}
	if cfg.DBPassword, err = interaction.PromptSecretConfirmed(rc, "Database password"); err != nil {
		return nil, err
	}
	if cfg.SenderEmail, err = promptValidated(rc, "Outgoing mail sender address", "email"); err != nil {
		return nil, err
	}
	if cfg.UseTLS, err = interaction.PromptYesNo(rc, "Enable HTTPS via Let's Encrypt?"); err != nil {
		return nil, err
	}
	if cfg.AdminEmail, err = promptValidated(rc, "Administrator email", "email"); err != nil {
		return nil, err
	}
	if cfg.AdminPassword, err = interaction.PromptSecretConfirmed(rc, "Administrator password"); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	warnWeakCredentials(rc, cfg)

	logger.Info("Installation parameters collected",
		zap.String("domain", cfg.Domain),
		zap.Bool("tls", cfg.UseTLS),
		zap.String("admin_email", cfg.AdminEmail))
	return cfg, nil
}

// FromViper fills the same parameters from a config file and CANVASUP_*
// environment variables, for unattended runs. Downstream steps are identical
// to the interactive path.
func FromViper(rc *cup_io.RuntimeContext, v *viper.Viper) (*InstallConfig, error) {
	logger := otelzap.Ctx(rc.Ctx)

	v.SetEnvPrefix("CANVASUP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &InstallConfig{NonInteractive: true}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, cerr.Wrap(err, "decode configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	warnWeakCredentials(rc, cfg)

	logger.Info("Installation parameters loaded",
		zap.String("domain", cfg.Domain),
		zap.Bool("tls", cfg.UseTLS),
		zap.String("source", v.ConfigFileUsed()))
	return cfg, nil
}

// warnWeakCredentials flags short passwords without rejecting them; any
// non-empty password is accepted.
func warnWeakCredentials(rc *cup_io.RuntimeContext, cfg *InstallConfig) {
	logger := otelzap.Ctx(rc.Ctx)
	if len(cfg.AdminPassword) < 8 {
		logger.Warn("Administrator password is very short, consider a stronger one",
			zap.Int("length", len(cfg.AdminPassword)))
	}
	if len(cfg.DBPassword) < 8 {
		logger.Warn("Database password is very short, consider a stronger one",
			zap.Int("length", len(cfg.DBPassword)))
	}
}

// promptValidated loops until the input passes the given validator tag.
func promptValidated(rc *cup_io.RuntimeContext, label, tag string) (string, error) {
	logger := otelzap.Ctx(rc.Ctx)
	for {
		value, err := interaction.PromptRequired(rc, label)
		if err != nil {
			return "", err
		}
		if err := validate.Var(value, tag); err != nil {
			logger.Info("terminal prompt: Value is not a valid " + tag + ", try again.")
			continue
		}
		return value, nil
	}
}
