// pkg/health/health_test.go

package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsbrew/canvasup/pkg/config"
)

func TestReport_Failed(t *testing.T) {
	report := Report{
		{Name: "service apache2", OK: true},
		{Name: "database connectivity", OK: false, Detail: "connection refused"},
		{Name: "cache liveness", OK: true},
		{Name: "application login", OK: false, Detail: "503"},
	}
	assert.Equal(t, []string{"database connectivity", "application login"}, report.Failed())

	allOK := Report{{Name: "service apache2", OK: true}}
	assert.Empty(t, allOK.Failed())
}

func TestCheckHTTP(t *testing.T) {
	var seenHost string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenHost = r.Host
		switch r.URL.Path {
		case "/redirect":
			w.WriteHeader(http.StatusFound)
		case "/broken":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer server.Close()

	ctx := context.Background()

	t.Run("matching status passes", func(t *testing.T) {
		err := checkHTTP(ctx, server.URL+"/", "canvas.example.org", http.StatusOK)
		require.NoError(t, err)
		assert.Equal(t, "canvas.example.org", seenHost, "the public hostname must ride the Host header")
	})

	t.Run("redirect accepted without following", func(t *testing.T) {
		err := checkHTTP(ctx, server.URL+"/redirect", "canvas.example.org", http.StatusOK, http.StatusFound)
		assert.NoError(t, err)
	})

	t.Run("unexpected status fails", func(t *testing.T) {
		err := checkHTTP(ctx, server.URL+"/broken", "canvas.example.org", http.StatusOK, http.StatusFound)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "503")
	})

	t.Run("unreachable server fails", func(t *testing.T) {
		err := checkHTTP(ctx, "http://127.0.0.1:1/", "canvas.example.org", http.StatusOK)
		assert.Error(t, err)
	})
}

func TestRenderScript(t *testing.T) {
	cfg := &config.InstallConfig{Domain: "canvas.example.org", UseTLS: true}
	script, err := RenderScript(cfg)
	require.NoError(t, err)

	assert.Contains(t, script, "#!/usr/bin/env bash")
	assert.Contains(t, script, "systemctl is-active --quiet postgresql")
	assert.Contains(t, script, "systemctl is-active --quiet canvas-worker")
	assert.Contains(t, script, "redis-cli ping")
	assert.Contains(t, script, `-H "Host: canvas.example.org"`)
	assert.Contains(t, script, "https reachability")
	assert.Contains(t, script, "https://localhost/login/canvas")
}

func TestRenderScript_NoTLS(t *testing.T) {
	cfg := &config.InstallConfig{Domain: "canvas.example.org", UseTLS: false}
	script, err := RenderScript(cfg)
	require.NoError(t, err)

	assert.NotContains(t, script, "https reachability")
	assert.Contains(t, script, "http://localhost/login/canvas")
}
