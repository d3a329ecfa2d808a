package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/clinic-reminders/internal/config"
	"github.com/wolfman30/clinic-reminders/internal/lease"
	"github.com/wolfman30/clinic-reminders/pkg/logging"
)

// SweepLeaseKey is shared by every process that runs sweeps against the same
// database, so only one of them sends at a time.
const SweepLeaseKey = "clinic-reminders:sweep-lease"

// BuildSweepLease connects to Redis and returns the sweep lease together with
// a func that closes the connection. It returns a nil lease when REDIS_ADDR is
// unset or the server does not answer a ping.
func BuildSweepLease(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*lease.Lease, func()) {
	noop := func() {}
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil, noop
	}
	if logger == nil {
		logger = logging.Default()
	}

	opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable; sweeps run without a lease", "addr", cfg.RedisAddr, "error", err)
		_ = client.Close()
		return nil, noop
	}
	return lease.New(client, SweepLeaseKey, cfg.SweepLeaseTTL), func() { _ = client.Close() }
}
