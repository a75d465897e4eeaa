package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/medisync/internal/compliance"
	appconfig "github.com/wolfman30/medisync/internal/config"
	"github.com/wolfman30/medisync/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available; intake drafts disabled", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// ClinicLocation resolves the clinic timezone, falling back to UTC.
func ClinicLocation(cfg *appconfig.Config, logger *logging.Logger) *time.Location {
	if cfg == nil || strings.TrimSpace(cfg.ClinicTimezone) == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(cfg.ClinicTimezone)
	if err != nil {
		if logger != nil {
			logger.Warn("unknown clinic timezone, using UTC", "timezone", cfg.ClinicTimezone, "error", err)
		}
		return time.UTC
	}
	return loc
}

// BuildAuditService opens the audit database. With no DSN configured the
// returned service is nil, which records nothing.
func BuildAuditService(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*compliance.AuditService, func(), error) {
	noop := func() {}
	if cfg == nil {
		return nil, noop, fmt.Errorf("bootstrap: config is required")
	}
	dsn := strings.TrimSpace(cfg.AuditDSN())
	if dsn == "" {
		return nil, noop, nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, noop, fmt.Errorf("bootstrap: open audit db: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, noop, fmt.Errorf("bootstrap: ping audit db: %w", err)
	}
	logger.Info("clinical audit log enabled")
	return compliance.NewAuditService(db), func() { _ = db.Close() }, nil
}
