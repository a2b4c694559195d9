// pkg/pipeline/pipeline.go

package pipeline

import (
	"fmt"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/opsbrew/canvasup/pkg/config"
	"github.com/opsbrew/canvasup/pkg/cup_io"
)

// Status is the outcome of a single provisioning step.
type Status int

const (
	StatusOK Status = iota
	StatusSkipped
	StatusWarning
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusSkipped:
		return "skipped"
	case StatusWarning:
		return "warning"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result records how a step ended. Warnings and skips do not stop the run;
// a failure aborts everything after it.
type Result struct {
	Step     string
	Status   Status
	Message  string
	Err      error
	Duration time.Duration
}

// OK, Skip, Warn and Fail build step results.

func OK(msg string) Result               { return Result{Status: StatusOK, Message: msg} }
func Skip(msg string) Result             { return Result{Status: StatusSkipped, Message: msg} }
func Warn(msg string) Result             { return Result{Status: StatusWarning, Message: msg} }
func Fail(err error, msg string) Result  { return Result{Status: StatusFailed, Message: msg, Err: err} }
func Failf(err error, format string, args ...any) Result {
	return Result{Status: StatusFailed, Message: fmt.Sprintf(format, args...), Err: err}
}

// Step is a named unit of provisioning work. Condition, when set, gates the
// step; a false condition records a skip instead of running it.
type Step struct {
	Name      string
	Condition func(cfg *config.InstallConfig) bool
	Run       func(rc *cup_io.RuntimeContext, cfg *config.InstallConfig) Result
}

// Runner executes steps strictly in order with fail-fast semantics. There is
// no rollback: an aborted run leaves the host partially provisioned.
type Runner struct {
	Steps []Step
}

// Execute runs every step in order. It returns all recorded results and, if
// a step failed, an error naming it. Results for steps after a failure are
// never produced.
func (r *Runner) Execute(rc *cup_io.RuntimeContext, cfg *config.InstallConfig) ([]Result, error) {
	logger := otelzap.Ctx(rc.Ctx)
	results := make([]Result, 0, len(r.Steps))

	for i, step := range r.Steps {
		logger.Info("terminal prompt: ",
			zap.String("step", fmt.Sprintf("[%d/%d] %s", i+1, len(r.Steps), step.Name)))

		if step.Condition != nil && !step.Condition(cfg) {
			result := Skip("condition not met")
			result.Step = step.Name
			results = append(results, result)
			logger.Info("Step skipped", zap.String("step", step.Name))
			continue
		}

		start := time.Now()
		result := step.Run(rc, cfg)
		result.Step = step.Name
		result.Duration = time.Since(start)
		results = append(results, result)

		switch result.Status {
		case StatusFailed:
			logger.Error("Step failed",
				zap.String("step", step.Name),
				zap.String("message", result.Message),
				zap.Duration("duration", result.Duration),
				zap.Error(result.Err))
			return results, cerr.Wrapf(result.Err, "step %q failed: %s", step.Name, result.Message)
		case StatusWarning:
			logger.Warn("Step completed with warning",
				zap.String("step", step.Name),
				zap.String("message", result.Message))
		case StatusSkipped:
			logger.Warn("Step skipped",
				zap.String("step", step.Name),
				zap.String("message", result.Message))
		default:
			logger.Info("Step completed",
				zap.String("step", step.Name),
				zap.Duration("duration", result.Duration))
		}
	}

	return results, nil
}
