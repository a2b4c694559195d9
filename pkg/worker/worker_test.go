// pkg/worker/worker_test.go

package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderUnit(t *testing.T) {
	unit, err := RenderUnit(UnitData{
		User:       "canvas",
		WorkingDir: "/var/canvas",
		EnvFile:    "/var/canvas/.env.production",
		RubyShims:  "/home/deploy/.rbenv/shims",
	})
	require.NoError(t, err)

	assert.Contains(t, unit, "User=canvas")
	assert.Contains(t, unit, "WorkingDirectory=/var/canvas")
	assert.Contains(t, unit, "EnvironmentFile=/var/canvas/.env.production")
	assert.Contains(t, unit, "Environment=RAILS_ENV=production")
	assert.Contains(t, unit, "Environment=PATH=/home/deploy/.rbenv/shims:")
	assert.Contains(t, unit, "ExecStart=/var/canvas/script/delayed_job run")
	assert.Contains(t, unit, "Restart=always")
	assert.Contains(t, unit, "After=network.target postgresql.service redis-server.service")
	assert.Contains(t, unit, "WantedBy=multi-user.target")
}
