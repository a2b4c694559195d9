// pkg/execute/execute.go

package execute

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/opsbrew/canvasup/pkg/cup_err"
	"github.com/opsbrew/canvasup/pkg/telemetry"
)

// DefaultDryRun forces dry-run mode globally. Used by tests and --dry-run.
var DefaultDryRun bool

// Options controls a single command execution.
type Options struct {
	Command string
	Args    []string
	Dir     string
	Env     []string // appended to the inherited environment
	Stdin   string   // fed to the child's stdin when non-empty

	// Sudo escalates the command through sudo -n. The tool itself runs
	// unprivileged; anything touching system state sets this.
	Sudo bool

	Timeout time.Duration
	Retries int
	Delay   time.Duration

	// Capture returns combined output instead of discarding it.
	Capture bool
	// Quiet suppresses streaming the child's output to the terminal.
	Quiet bool

	DryRun bool
}

// Run executes a command with structured logging, optional sudo escalation
// and retries. Shell interpretation is never used; arguments are passed
// verbatim to the child process.
func Run(ctx context.Context, opts Options) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := otelzap.Ctx(ctx)

	name, args := opts.Command, opts.Args
	if opts.Sudo {
		args = append([]string{"-n", name}, args...)
		name = "sudo"
	}
	cmdStr := name + " " + strings.Join(args, " ")

	runCtx, cancel := context.WithTimeout(ctx, defaultTimeout(opts.Timeout))
	defer cancel()

	runCtx, span := telemetry.Start(runCtx, "execute.Run")
	defer span.End()
	span.SetAttributes(
		attribute.String("command", opts.Command),
		attribute.Bool("sudo", opts.Sudo),
	)

	if opts.DryRun || DefaultDryRun {
		logger.Info("Dry run, command not executed", zap.String("command", cmdStr))
		return "", nil
	}

	logger.Debug("Executing command", zap.String("command", cmdStr))

	var output string
	var err error

	attempts := max(1, opts.Retries)
	for i := 1; i <= attempts; i++ {
		cmd := exec.CommandContext(runCtx, name, args...)
		if opts.Dir != "" {
			cmd.Dir = opts.Dir
		}
		if len(opts.Env) > 0 {
			cmd.Env = append(os.Environ(), opts.Env...)
		}
		if opts.Stdin != "" {
			cmd.Stdin = strings.NewReader(opts.Stdin)
		}

		var buf bytes.Buffer
		if opts.Quiet {
			cmd.Stdout = &buf
			cmd.Stderr = &buf
		} else {
			cmd.Stdout = io.MultiWriter(os.Stdout, &buf)
			cmd.Stderr = io.MultiWriter(os.Stderr, &buf)
		}

		err = cmd.Run()
		output = buf.String()

		if err == nil {
			logger.Debug("Command succeeded", zap.String("command", cmdStr))
			break
		}

		span.RecordError(err)
		logger.Warn("Command failed",
			zap.Int("attempt", i),
			zap.String("command", cmdStr),
			zap.String("summary", cup_err.ExtractSummary(output, 2)),
			zap.Error(err))

		if i < attempts {
			time.Sleep(opts.Delay)
		}
	}

	if err != nil {
		return output, cerr.Wrapf(err, "%s failed after %d attempt(s)", cmdStr, attempts)
	}

	if opts.Capture {
		return output, nil
	}
	return "", nil
}

// RunSimple executes a command with default options, discarding output.
func RunSimple(ctx context.Context, cmd string, args ...string) error {
	_, err := Run(ctx, Options{Command: cmd, Args: args})
	return err
}

// RunSudo executes a command through sudo with default options.
func RunSudo(ctx context.Context, cmd string, args ...string) error {
	_, err := Run(ctx, Options{Command: cmd, Args: args, Sudo: true})
	return err
}

// CaptureSudo executes a command through sudo and returns its output quietly.
func CaptureSudo(ctx context.Context, cmd string, args ...string) (string, error) {
	return Run(ctx, Options{Command: cmd, Args: args, Sudo: true, Capture: true, Quiet: true})
}

func defaultTimeout(t time.Duration) time.Duration {
	if t > 0 {
		return t
	}
	return 10 * time.Minute
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
