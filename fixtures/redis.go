package fixtures

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/redis/go-redis/v9"

	"github.com/launchdarkly/suite-harness/framework/ldtest"
)

const (
	// RedisKey is the scope key of the client created by Redis, unless overridden.
	RedisKey = "fixtures.redis"

	DefaultRedisAddr = "localhost:6379"
)

type RedisOptions struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	// Flush empties the database before the scope runs and again after it ends.
	Flush bool `json:"flush"`
	// Hashes are written after flushing: each entry becomes a hash with the given fields.
	Hashes map[string]map[string]string `json:"hashes"`
	Key    string                       `json:"key"`
}

// Redis returns a setup handler that connects to a Redis database.
func Redis(opts RedisOptions) ldtest.SetupFunc {
	if opts.Addr == "" {
		opts.Addr = DefaultRedisAddr
	}
	if opts.Key == "" {
		opts.Key = RedisKey
	}
	return func(t *ldtest.T) (ldtest.SetupResult, error) {
		client := redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		})
		ctx := t.Context()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return ldtest.NoCleanup(), fmt.Errorf("redis at %s is not reachable: %w", opts.Addr, err)
		}

		cleanup := func(*ldtest.T) error {
			var result error
			if opts.Flush {
				ctx, cancel := cleanupContext()
				defer cancel()
				if err := client.FlushDB(ctx).Err(); err != nil {
					result = multierror.Append(result, fmt.Errorf("could not flush redis db %d: %w", opts.DB, err))
				}
			}
			if err := client.Close(); err != nil {
				result = multierror.Append(result, err)
			}
			return result
		}

		if opts.Flush {
			if err := client.FlushDB(ctx).Err(); err != nil {
				return ldtest.CleanupWith(cleanup), fmt.Errorf("could not flush redis db %d: %w", opts.DB, err)
			}
		}
		for key, fields := range opts.Hashes {
			if err := client.HSet(ctx, key, fields).Err(); err != nil {
				return ldtest.CleanupWith(cleanup), fmt.Errorf("could not write redis hash %q: %w", key, err)
			}
		}

		t.Set(opts.Key, client)
		t.Debug("Connected to redis at %s (db %d)", opts.Addr, opts.DB)
		return ldtest.CleanupWith(cleanup), nil
	}
}

// RedisClient returns the client stored under RedisKey in this scope or an enclosing one.
func RedisClient(t *ldtest.T) (*redis.Client, bool) {
	return ldtest.Value[*redis.Client](t, RedisKey)
}
