// pkg/postgres/postgres.go

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	cerr "github.com/cockroachdb/errors"
	_ "github.com/lib/pq"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/opsbrew/canvasup/pkg/cup_io"
	"github.com/opsbrew/canvasup/pkg/execute"
	"github.com/opsbrew/canvasup/pkg/shared"
	"github.com/opsbrew/canvasup/pkg/systemd"
)

// Configure brings up the database engine and ensures the application role
// and database exist. Re-runs detect existing state and skip with a warning
// instead of failing; returns skipped=true when nothing had to be created.
func Configure(rc *cup_io.RuntimeContext, dbPassword string) (skipped bool, err error) {
	logger := otelzap.Ctx(rc.Ctx)

	// ASSESS - The engine must be running before anything else.
	if err := systemd.EnableNow(rc, "postgresql"); err != nil {
		return false, err
	}

	roleCreated, err := EnsureRole(rc, shared.DatabaseRole, dbPassword)
	if err != nil {
		return false, err
	}
	dbCreated, err := EnsureDatabase(rc, shared.DatabaseName, shared.DatabaseRole)
	if err != nil {
		return false, err
	}

	// EVALUATE - The role must actually authenticate with the configured
	// password before later steps depend on it.
	if err := VerifyCredentials(rc, shared.DatabaseRole, dbPassword, shared.DatabaseName); err != nil {
		return false, err
	}

	if !roleCreated && !dbCreated {
		logger.Warn("Database role and database already existed, nothing created",
			zap.String("role", shared.DatabaseRole),
			zap.String("database", shared.DatabaseName))
		return true, nil
	}
	return false, nil
}

// EnsureRole creates the login role if it is absent. Returns whether it was
// created on this run.
func EnsureRole(rc *cup_io.RuntimeContext, role, password string) (bool, error) {
	logger := otelzap.Ctx(rc.Ctx)

	exists, err := adminQueryBool(rc,
		fmt.Sprintf("SELECT 1 FROM pg_roles WHERE rolname='%s'", role))
	if err != nil {
		return false, cerr.Wrapf(err, "check role %s", role)
	}
	if exists {
		logger.Warn("Database role already exists, skipping creation",
			zap.String("role", role))
		// Keep the stored password in sync with the collected one so a
		// re-run with a new password still converges.
		if err := adminExec(rc,
			fmt.Sprintf("ALTER ROLE %s WITH PASSWORD '%s'", role, escapeLiteral(password))); err != nil {
			return false, cerr.Wrapf(err, "update password for role %s", role)
		}
		return false, nil
	}

	if err := adminExec(rc,
		fmt.Sprintf("CREATE ROLE %s LOGIN PASSWORD '%s'", role, escapeLiteral(password))); err != nil {
		return false, cerr.Wrapf(err, "create role %s", role)
	}
	logger.Info("Database role created", zap.String("role", role))
	return true, nil
}

// EnsureDatabase creates the application database owned by the role if it is
// absent. Returns whether it was created on this run.
func EnsureDatabase(rc *cup_io.RuntimeContext, name, owner string) (bool, error) {
	logger := otelzap.Ctx(rc.Ctx)

	exists, err := adminQueryBool(rc,
		fmt.Sprintf("SELECT 1 FROM pg_database WHERE datname='%s'", name))
	if err != nil {
		return false, cerr.Wrapf(err, "check database %s", name)
	}
	if exists {
		logger.Warn("Database already exists, skipping creation",
			zap.String("database", name))
		return false, nil
	}

	if err := adminExec(rc,
		fmt.Sprintf("CREATE DATABASE %s OWNER %s", name, owner)); err != nil {
		return false, cerr.Wrapf(err, "create database %s", name)
	}
	logger.Info("Database created",
		zap.String("database", name),
		zap.String("owner", owner))
	return true, nil
}

// VerifyCredentials opens a TCP connection as the application role and pings.
func VerifyCredentials(rc *cup_io.RuntimeContext, role, password, dbname string) error {
	db, err := sql.Open("postgres", DSN(role, password, dbname))
	if err != nil {
		return cerr.Wrap(err, "open database connection")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(rc.Ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return cerr.Wrapf(err, "authenticate as role %s", role)
	}
	return nil
}

// DSN builds the localhost connection string for the application role.
func DSN(role, password, dbname string) string {
	return fmt.Sprintf("host=localhost port=5432 user=%s password=%s dbname=%s sslmode=disable",
		role, password, dbname)
}

// adminQueryBool runs a scalar existence query through the postgres
// superuser account via local peer authentication.
func adminQueryBool(rc *cup_io.RuntimeContext, query string) (bool, error) {
	out, err := execute.Run(rc.Ctx, execute.Options{
		Command: "sudo",
		Args:    []string{"-n", "-u", "postgres", "psql", "-tAc", query},
		Capture: true,
		Quiet:   true,
		Timeout: 30 * time.Second,
	})
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) == "1", nil
}

func adminExec(rc *cup_io.RuntimeContext, statement string) error {
	_, err := execute.Run(rc.Ctx, execute.Options{
		Command: "sudo",
		Args:    []string{"-n", "-u", "postgres", "psql", "-c", statement},
		Quiet:   true,
		Timeout: 30 * time.Second,
	})
	return err
}

// escapeLiteral doubles single quotes for safe embedding in a SQL string
// literal. Identifiers here are fixed constants, only the password is
// user-supplied.
func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
