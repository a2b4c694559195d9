// pkg/execute/execute_test.go

package execute

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_CaptureOutput(t *testing.T) {
	out, err := Run(context.Background(), Options{
		Command: "echo",
		Args:    []string{"hello"},
		Capture: true,
		Quiet:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", strings.TrimSpace(out))
}

func TestRun_OutputDiscardedWithoutCapture(t *testing.T) {
	out, err := Run(context.Background(), Options{
		Command: "echo",
		Args:    []string{"hello"},
		Quiet:   true,
	})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestRun_FailureCarriesOutput(t *testing.T) {
	out, err := Run(context.Background(), Options{
		Command: "sh",
		Args:    []string{"-c", "echo broken >&2; exit 3"},
		Capture: true,
		Quiet:   true,
	})
	require.Error(t, err)
	assert.Contains(t, out, "broken")
	assert.Contains(t, err.Error(), "1 attempt(s)")
}

func TestRun_Retries(t *testing.T) {
	dir := t.TempDir()
	// Fails on the first attempt, succeeds once the marker file exists.
	script := "if [ -e " + dir + "/marker ]; then exit 0; fi; touch " + dir + "/marker; exit 1"

	_, err := Run(context.Background(), Options{
		Command: "sh",
		Args:    []string{"-c", script},
		Retries: 2,
		Delay:   time.Millisecond,
		Quiet:   true,
	})
	assert.NoError(t, err)
}

func TestRun_Stdin(t *testing.T) {
	out, err := Run(context.Background(), Options{
		Command: "cat",
		Stdin:   "piped content",
		Capture: true,
		Quiet:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, "piped content", out)
}

func TestRun_DryRunExecutesNothing(t *testing.T) {
	dir := t.TempDir()
	out, err := Run(context.Background(), Options{
		Command: "touch",
		Args:    []string{dir + "/should-not-exist"},
		DryRun:  true,
		Quiet:   true,
	})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.NoFileExists(t, dir+"/should-not-exist")
}

func TestRun_NilContext(t *testing.T) {
	err := RunSimple(nil, "true") //nolint:staticcheck
	assert.NoError(t, err)
}
