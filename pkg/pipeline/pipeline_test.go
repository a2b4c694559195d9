// pkg/pipeline/pipeline_test.go

package pipeline

import (
	"context"
	"testing"

	cerr "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsbrew/canvasup/pkg/config"
	"github.com/opsbrew/canvasup/pkg/cup_io"
)

func testContext(t *testing.T) *cup_io.RuntimeContext {
	t.Helper()
	return cup_io.NewContext(context.Background(), "test")
}

func namedStep(name string, result Result, ran *[]string) Step {
	return Step{
		Name: name,
		Run: func(rc *cup_io.RuntimeContext, cfg *config.InstallConfig) Result {
			*ran = append(*ran, name)
			return result
		},
	}
}

func TestRunner_ExecutesInOrder(t *testing.T) {
	var ran []string
	runner := &Runner{Steps: []Step{
		namedStep("first", OK("done"), &ran),
		namedStep("second", OK("done"), &ran),
		namedStep("third", OK("done"), &ran),
	}}

	results, err := runner.Execute(testContext(t), &config.InstallConfig{})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, ran)
	require.Len(t, results, 3)
	for _, result := range results {
		assert.Equal(t, StatusOK, result.Status)
	}
}

func TestRunner_FailureAbortsRemainingSteps(t *testing.T) {
	var ran []string
	boom := cerr.New("boom")
	runner := &Runner{Steps: []Step{
		namedStep("first", OK("done"), &ran),
		namedStep("second", Fail(boom, "exploded"), &ran),
		namedStep("third", OK("done"), &ran),
	}}

	results, err := runner.Execute(testContext(t), &config.InstallConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "second")
	assert.Equal(t, []string{"first", "second"}, ran, "steps after a failure must not run")
	require.Len(t, results, 2)
	assert.Equal(t, StatusFailed, results[1].Status)
	assert.ErrorIs(t, err, boom)
}

func TestRunner_WarningDoesNotAbort(t *testing.T) {
	var ran []string
	runner := &Runner{Steps: []Step{
		namedStep("first", Warn("already there"), &ran),
		namedStep("second", OK("done"), &ran),
	}}

	results, err := runner.Execute(testContext(t), &config.InstallConfig{})
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, ran)
	assert.Equal(t, StatusWarning, results[0].Status)
	assert.Equal(t, StatusOK, results[1].Status)
}

func TestRunner_ConditionGatesStep(t *testing.T) {
	var ran []string
	runner := &Runner{Steps: []Step{
		{
			Name:      "gated",
			Condition: func(cfg *config.InstallConfig) bool { return cfg.UseTLS },
			Run: func(rc *cup_io.RuntimeContext, cfg *config.InstallConfig) Result {
				ran = append(ran, "gated")
				return OK("done")
			},
		},
		namedStep("always", OK("done"), &ran),
	}}

	results, err := runner.Execute(testContext(t), &config.InstallConfig{UseTLS: false})
	require.NoError(t, err)
	assert.Equal(t, []string{"always"}, ran)
	require.Len(t, results, 2)
	assert.Equal(t, StatusSkipped, results[0].Status)
}

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusOK, "ok"},
		{StatusSkipped, "skipped"},
		{StatusWarning, "warning"},
		{StatusFailed, "failed"},
		{Status(99), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.String())
	}
}
