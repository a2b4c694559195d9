// pkg/rediscache/rediscache.go

package rediscache

import (
	"context"
	"time"

	cerr "github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"

	"github.com/opsbrew/canvasup/pkg/cup_io"
	"github.com/opsbrew/canvasup/pkg/systemd"
)

// Addr is the local cache endpoint the application is configured against.
const Addr = "localhost:6379"

// Configure enables and starts the cache engine, then verifies it answers a
// PING before any later step depends on it.
func Configure(rc *cup_io.RuntimeContext) error {
	logger := otelzap.Ctx(rc.Ctx)

	if err := systemd.EnableNow(rc, "redis-server"); err != nil {
		return err
	}

	if err := Ping(rc.Ctx); err != nil {
		return err
	}

	logger.Info("Cache engine is up", zap.String("addr", Addr))
	return nil
}

// Ping performs a liveness round-trip against the local cache.
func Ping(ctx context.Context) error {
	client := redis.NewClient(&redis.Options{
		Addr:        Addr,
		DialTimeout: 5 * time.Second,
	})
	defer client.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		return cerr.Wrapf(err, "cache at %s did not answer PING", Addr)
	}
	return nil
}
