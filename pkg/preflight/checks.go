// pkg/preflight/checks.go

// Package preflight validates the host before the pipeline mutates anything.
package preflight

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/opsbrew/canvasup/pkg/cup_err"
	"github.com/opsbrew/canvasup/pkg/cup_io"
	"github.com/opsbrew/canvasup/pkg/interaction"
	"github.com/opsbrew/canvasup/pkg/platform"
)

const (
	// MinMemoryMB is the floor below which installation is refused. Asset
	// compilation alone needs most of it.
	MinMemoryMB = 3800

	// MinDiskGB is the minimum free space on / for source, gems and assets.
	MinDiskGB = 10
)

// RequiredTools must be on PATH before anything runs. Everything else is
// installed by the pipeline itself.
var RequiredTools = []string{"sudo", "git", "curl", "openssl", "systemctl", "apt-get"}

// SupportedReleases are the Ubuntu versions the pipeline is exercised on.
// Others warn and require explicit confirmation.
var SupportedReleases = []string{"22.04", "24.04"}

// Check is a single host requirement.
type Check struct {
	Name     string
	Run      func(ctx context.Context) error
	Required bool
}

// Result is the outcome of one check.
type Result struct {
	Name    string
	Passed  bool
	Err     error
	Warning string
}

// RunChecks executes all checks in order. Required failures abort; optional
// failures become warnings. An unsupported OS release prompts for
// confirmation unless assumeYes is set.
func RunChecks(rc *cup_io.RuntimeContext, assumeYes bool) ([]Result, error) {
	logger := otelzap.Ctx(rc.Ctx)

	checks := []Check{
		{Name: "unprivileged user", Run: CheckNotRoot, Required: true},
		{Name: "required tools", Run: CheckTools, Required: true},
		{Name: "memory", Run: CheckMemory, Required: true},
		{Name: "disk space", Run: CheckDiskSpace, Required: true},
	}

	results := make([]Result, 0, len(checks)+1)
	failed := 0

	for _, check := range checks {
		ctx, cancel := context.WithTimeout(rc.Ctx, 10*time.Second)
		err := check.Run(ctx)
		cancel()

		result := Result{Name: check.Name, Passed: err == nil, Err: err}
		if err != nil {
			if check.Required {
				failed++
				logger.Error("Preflight check failed",
					zap.String("check", check.Name), zap.Error(err))
			} else {
				result.Warning = err.Error()
				logger.Warn("Preflight check failed (optional)",
					zap.String("check", check.Name), zap.Error(err))
			}
		} else {
			logger.Info("Preflight check passed", zap.String("check", check.Name))
		}
		results = append(results, result)
	}

	if failed > 0 {
		return results, cerr.Newf("%d required preflight check(s) failed", failed)
	}

	osResult, err := checkRelease(rc, assumeYes)
	results = append(results, osResult)
	if err != nil {
		return results, err
	}

	return results, nil
}

// CheckNotRoot refuses to run as root. Privileged operations escalate
// per-command through sudo instead, and the ruby toolchain must land in a
// real user's home.
func CheckNotRoot(context.Context) error {
	if os.Geteuid() == 0 {
		return cerr.New("refusing to run as root, run as a regular user with sudo access")
	}
	return nil
}

// CheckTools verifies every required command-line tool is on PATH.
func CheckTools(context.Context) error {
	var missing []string
	for _, tool := range RequiredTools {
		if _, err := exec.LookPath(tool); err != nil {
			missing = append(missing, tool)
		}
	}
	if len(missing) > 0 {
		return cerr.Newf("missing required tools: %s", strings.Join(missing, ", "))
	}
	return nil
}

// CheckMemory rejects hosts below the memory floor.
func CheckMemory(context.Context) error {
	file, err := os.Open("/proc/meminfo")
	if err != nil {
		return cerr.Wrap(err, "read memory information")
	}
	defer file.Close()

	totalMB, err := ParseMemTotalMB(file)
	if err != nil {
		return err
	}
	if totalMB < MinMemoryMB {
		return cerr.Newf("insufficient memory: %d MB available, %d MB required", totalMB, MinMemoryMB)
	}
	return nil
}

// ParseMemTotalMB extracts MemTotal from /proc/meminfo-formatted content.
func ParseMemTotalMB(r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "MemTotal:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			break
		}
		kb, err := strconv.Atoi(fields[1])
		if err != nil {
			return 0, cerr.Wrapf(err, "parse MemTotal %q", fields[1])
		}
		return kb / 1024, nil
	}
	return 0, cerr.New("MemTotal not found in meminfo")
}

// CheckDiskSpace verifies free space on the root filesystem.
func CheckDiskSpace(context.Context) error {
	var stat syscall.Statfs_t
	if err := syscall.Statfs("/", &stat); err != nil {
		return cerr.Wrap(err, "check disk space")
	}
	availableGB := (stat.Bavail * uint64(stat.Bsize)) / (1 << 30)
	if availableGB < MinDiskGB {
		return cerr.Newf("insufficient disk space: %d GB available, %d GB required", availableGB, MinDiskGB)
	}
	return nil
}

// checkRelease warns on an unexpected Ubuntu release and asks whether to
// continue. Declining aborts with an expected error.
func checkRelease(rc *cup_io.RuntimeContext, assumeYes bool) (Result, error) {
	logger := otelzap.Ctx(rc.Ctx)
	result := Result{Name: "os release"}

	release, err := platform.DetectRelease(rc)
	if err != nil {
		result.Err = err
		return result, cerr.Wrap(err, "detect OS release")
	}

	for _, supported := range SupportedReleases {
		if release.VersionID == supported {
			result.Passed = true
			logger.Info("Preflight check passed",
				zap.String("check", result.Name),
				zap.String("release", release.PrettyName))
			return result, nil
		}
	}

	result.Warning = "unsupported release " + release.PrettyName
	logger.Warn("Unsupported OS release",
		zap.String("detected", release.PrettyName),
		zap.Strings("supported", SupportedReleases))

	if assumeYes {
		result.Passed = true
		return result, nil
	}

	proceed, err := interaction.PromptYesNo(rc, "This Ubuntu release is untested. Continue anyway?")
	if err != nil {
		return result, err
	}
	if !proceed {
		return result, cup_err.NewExpectedError(cerr.New("installation declined on unsupported release"))
	}
	result.Passed = true
	return result, nil
}
