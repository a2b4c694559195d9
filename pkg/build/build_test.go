// pkg/build/build_test.go

package build

import (
	"context"
	"strings"
	"testing"

	cerr "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsbrew/canvasup/pkg/cup_io"
	"github.com/opsbrew/canvasup/pkg/execute"
)

type call struct {
	command string
	args    []string
	env     []string
}

// fakeExec records every invocation and fails until failuresLeft runs out.
type fakeExec struct {
	calls        []call
	failuresLeft int
}

func (f *fakeExec) run(ctx context.Context, opts execute.Options) (string, error) {
	f.calls = append(f.calls, call{command: opts.Command, args: opts.Args, env: opts.Env})
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return "", cerr.New("simulated toolchain failure")
	}
	return "", nil
}

func testRunner(fake *fakeExec) *Runner {
	return &Runner{
		Dir:  "/tmp/app",
		Env:  []string{"RAILS_ENV=production"},
		Exec: fake.run,
	}
}

func testContext(t *testing.T) *cup_io.RuntimeContext {
	t.Helper()
	return cup_io.NewContext(context.Background(), "test")
}

func TestTryStrategies_FirstSuccessShortCircuits(t *testing.T) {
	fake := &fakeExec{}
	name, err := testRunner(fake).TryStrategies(testContext(t), "backend", BundlerStrategies())

	require.NoError(t, err)
	assert.Equal(t, "deployment install", name)
	require.Len(t, fake.calls, 1)
	assert.Equal(t, []string{"install", "--deployment"}, fake.calls[0].args)
}

func TestTryStrategies_EscalatesThroughFallbacks(t *testing.T) {
	fake := &fakeExec{failuresLeft: 2}
	name, err := testRunner(fake).TryStrategies(testContext(t), "backend", BundlerStrategies())

	require.NoError(t, err)
	assert.Equal(t, "relaxed install, extended network timeout", name)
	require.Len(t, fake.calls, 3)

	// The last escalation carries the extended network timeout environment.
	last := fake.calls[2]
	assert.Contains(t, last.env, "BUNDLE_TIMEOUT=120")
	assert.Contains(t, last.env, "RAILS_ENV=production")
}

func TestTryStrategies_AllFailingIsFatal(t *testing.T) {
	fake := &fakeExec{failuresLeft: 99}
	_, err := testRunner(fake).TryStrategies(testContext(t), "frontend", YarnStrategies())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "frontend")
	assert.Len(t, fake.calls, len(YarnStrategies()))
}

func TestCompileAssets_SingleAttempt(t *testing.T) {
	fake := &fakeExec{failuresLeft: 1}
	err := testRunner(fake).CompileAssets(testContext(t))

	require.Error(t, err)
	assert.Len(t, fake.calls, 1, "asset compilation must not retry")
}

func TestRunMigrations_InjectsBootstrapEnv(t *testing.T) {
	fake := &fakeExec{}
	err := testRunner(fake).RunMigrations(testContext(t), map[string]string{
		"CANVAS_LMS_ADMIN_EMAIL": "admin@example.org",
	})

	require.NoError(t, err)
	require.Len(t, fake.calls, 1)
	assert.Equal(t, "bundle", fake.calls[0].command)
	assert.Equal(t, []string{"exec", "rake", "db:initial_setup"}, fake.calls[0].args)
	assert.Contains(t, fake.calls[0].env, "CANVAS_LMS_ADMIN_EMAIL=admin@example.org")
}

func TestRunMigrations_SingleAttempt(t *testing.T) {
	fake := &fakeExec{failuresLeft: 1}
	err := testRunner(fake).RunMigrations(testContext(t), nil)

	require.Error(t, err)
	assert.Len(t, fake.calls, 1, "a partially applied migration must not be blindly retried")
}

func TestStrategyShapes(t *testing.T) {
	for _, s := range BundlerStrategies() {
		assert.Equal(t, "bundle", s.Command)
		assert.True(t, strings.HasPrefix(s.Args[0], "install"), s.Name)
		assert.NotZero(t, s.Timeout, s.Name)
	}
	for _, s := range YarnStrategies() {
		assert.Equal(t, "yarn", s.Command)
		assert.NotZero(t, s.Timeout, s.Name)
	}
}
