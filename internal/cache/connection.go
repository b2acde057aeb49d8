package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultTimeout        = 5 * time.Second
	defaultMaxConnections = 10
)

type Config struct {
	// Redis URL in format redis://[:password@]host:port/db
	URL string

	// Connect and per operation timeout
	// A slow or unreachable redis fails the call instead of hanging the request
	Timeout time.Duration

	// Pool size shared by all requests of the process
	MaxConnections int
}

// Options builds client options from config. Zero values fall back to defaults
func (c Config) Options() (*redis.Options, error) {
	opts, err := redis.ParseURL(c.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url. Err: %w", err)
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxConns := c.MaxConnections
	if maxConns <= 0 {
		maxConns = defaultMaxConnections
	}

	opts.DialTimeout = timeout
	opts.ReadTimeout = timeout
	opts.WriteTimeout = timeout
	opts.PoolTimeout = timeout
	opts.PoolSize = maxConns

	return opts, nil
}

// Connect creates process wide redis client and checks it is reachable
func Connect(ctx context.Context, c Config) (*redis.Client, error) {
	opts, err := c.Options()
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("cant connect to redis. Err: %w", err)
	}

	return rdb, nil
}
