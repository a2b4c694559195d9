// pkg/install/steps_test.go

package install

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsbrew/canvasup/pkg/shared"
)

func TestSteps_Order(t *testing.T) {
	var names []string
	for _, step := range Steps() {
		names = append(names, step.Name)
	}

	assert.Equal(t, []string{
		"install system packages",
		"install ruby runtime",
		"install node runtime",
		"configure database engine",
		"configure cache engine",
		"fetch application source",
		"write configuration artifacts",
		"install backend dependencies",
		"install frontend dependencies",
		"compile static assets",
		"run database migrations",
		"configure web server",
		"obtain TLS certificate",
		"configure background worker",
		"finalize permissions",
		"restart services",
		"install health-check tool",
	}, names)
}

func TestSteps_OnlyCertificateStepIsConditional(t *testing.T) {
	for _, step := range Steps() {
		if step.Name == "obtain TLS certificate" {
			assert.NotNil(t, step.Condition, step.Name)
		} else {
			assert.Nil(t, step.Condition, step.Name)
		}
	}
}

func TestRestartTargets(t *testing.T) {
	assert.Equal(t, shared.ManagedServices, restartTargets(false))

	withoutWorker := restartTargets(true)
	require.Len(t, withoutWorker, len(shared.ManagedServices)-1)
	assert.NotContains(t, withoutWorker, shared.WorkerUnitName,
		"a declined runtime widening must not let a failed worker restart abort the run")
	for _, unit := range withoutWorker {
		assert.Contains(t, shared.ManagedServices, unit)
	}
}
