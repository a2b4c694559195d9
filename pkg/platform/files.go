// pkg/platform/files.go

package platform

import (
	"fmt"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/opsbrew/canvasup/pkg/cup_io"
	"github.com/opsbrew/canvasup/pkg/execute"
)

// WriteRootFile writes content to a root-owned path through sudo tee, then
// sets the given mode. The process itself stays unprivileged.
func WriteRootFile(rc *cup_io.RuntimeContext, path, content, mode string) error {
	_, err := execute.Run(rc.Ctx, execute.Options{
		Command: "tee",
		Args:    []string{path},
		Sudo:    true,
		Stdin:   content,
		Quiet:   true,
	})
	if err != nil {
		return cerr.Wrapf(err, "write %s", path)
	}
	if err := execute.RunSudo(rc.Ctx, "chmod", mode, path); err != nil {
		return cerr.Wrapf(err, "chmod %s", path)
	}
	return nil
}

// RootFileExists checks a path that may not be readable by the current user.
func RootFileExists(rc *cup_io.RuntimeContext, path string) bool {
	_, err := execute.Run(rc.Ctx, execute.Options{
		Command: "test",
		Args:    []string{"-e", path},
		Sudo:    true,
		Quiet:   true,
	})
	return err == nil
}

// BackupRootFile copies an existing root-owned file aside with a unix
// timestamp suffix. Missing files are not an error.
func BackupRootFile(rc *cup_io.RuntimeContext, path string) (string, error) {
	logger := otelzap.Ctx(rc.Ctx)

	if !RootFileExists(rc, path) {
		return "", nil
	}

	backup := fmt.Sprintf("%s.%d.bak", path, time.Now().Unix())
	if err := execute.RunSudo(rc.Ctx, "cp", "-p", path, backup); err != nil {
		return "", cerr.Wrapf(err, "back up %s", path)
	}
	logger.Info("Existing file backed up",
		zap.String("path", path),
		zap.String("backup", backup))
	return backup, nil
}
