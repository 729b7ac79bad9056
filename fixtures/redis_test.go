package fixtures

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/launchdarkly/suite-harness/framework/ldtest"
)

func TestRedisFlushesWritesHashesAndReleases(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()
	require.NoError(t, server.Set("stale", "left over"))

	var client *redis.Client
	opts := RedisOptions{
		Addr:   server.Addr(),
		Flush:  true,
		Hashes: map[string]map[string]string{"user:1": {"name": "ada"}},
	}
	run := runWithSuiteSetup(t, Redis(opts), func(ldt *ldtest.T) {
		var ok bool
		client, ok = RedisClient(ldt)
		require.True(ldt, ok)
		assert.False(ldt, server.Exists("stale"))
		name, err := client.HGet(ldt.Context(), "user:1", "name").Result()
		require.NoError(ldt, err)
		assert.Equal(ldt, "ada", name)
	})

	require.Len(t, run.results, 1)
	assert.Equal(t, ldtest.StatusPassed, run.results[0].Status, "%v", run.results[0].Errors)
	assert.Equal(t, ldtest.StatusPassed, run.suiteEnd.Status)
	assert.Empty(t, server.Keys())
	require.NotNil(t, client)
	assert.ErrorIs(t, client.Ping(context.Background()).Err(), redis.ErrClosed)
}

func TestRedisUnreachableFailsSetup(t *testing.T) {
	ran := false
	run := runWithSuiteSetup(t, Redis(RedisOptions{Addr: "127.0.0.1:1", Flush: true}), func(*ldtest.T) {
		ran = true
	})

	assert.False(t, ran)
	assert.Empty(t, run.results)
	assert.Equal(t, ldtest.StatusFailed, run.suiteEnd.Status)
	require.Len(t, run.suiteEnd.Errors, 1)
	var herr *ldtest.HookError
	require.True(t, errors.As(run.suiteEnd.Errors[0], &herr))
	assert.Equal(t, ldtest.PhaseSetup, herr.Phase)
	assert.Contains(t, herr.Error(), "redis at 127.0.0.1:1 is not reachable")
}

func TestRedisClientMissing(t *testing.T) {
	run := runWithSuiteSetup(t, ldtest.SetupOnly(func(*ldtest.T) error { return nil }), func(ldt *ldtest.T) {
		_, ok := RedisClient(ldt)
		assert.False(t, ok)
	})
	require.Len(t, run.results, 1)
	assert.Equal(t, ldtest.StatusPassed, run.results[0].Status)
}
