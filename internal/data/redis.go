package data

import (
	"context"
	"fmt"
	"time"

	"videoanalyzer/internal/conf"
	pkgredis "videoanalyzer/internal/pkg/redis"

	"github.com/go-kratos/kratos/v2/log"
	redis "github.com/redis/go-redis/v9"
)

// NewRedisCache creates the result cache from configuration. It returns a
// nil Cache when redis is disabled; callers then skip caching.
func NewRedisCache(c *conf.Data, logger log.Logger) (pkgredis.Cache, func(), error) {
	helper := log.NewHelper(log.With(logger, "module", "data/redis"))
	if c.Redis == nil || !c.Redis.Enabled {
		helper.Info("redis disabled, capability results are not cached")
		return nil, func() {}, nil
	}

	opts := &redis.Options{
		Addr:         c.Redis.Addr,
		Network:      c.Redis.Network,
		ReadTimeout:  c.Redis.ReadTimeout(),
		WriteTimeout: c.Redis.WriteTimeout(),
	}
	client := redis.NewClient(opts)

	// Test connection with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		helper.Errorf("failed to connect to Redis at %s: %v", c.Redis.Addr, err)
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	helper.Infof("connected to Redis at %s", c.Redis.Addr)

	cleanup := func() {
		helper.Info("closing Redis connection")
		client.Close()
	}
	return pkgredis.New(client), cleanup, nil
}
