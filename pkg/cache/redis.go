package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/apprenticeship-hours-api/pkg/config"
)

// keyPrefix namespaces every key written by this service.
const keyPrefix = "aph"

// NewRedis returns a configured Redis client. It returns nil without error
// when Redis is disabled so callers can run cache-less.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

// Key joins parts into a namespaced cache key, e.g. aph:progress:<enrollment>.
func Key(parts ...string) string {
	return keyPrefix + ":" + strings.Join(parts, ":")
}
