// Package fixtures provides setup handlers that prepare an external data store for a suite,
// group or test and release it again when that scope ends.
//
// Each fixture connects, resets the store to a known state, and stores its client in the
// scope, where tests of the scope and of nested scopes can look it up:
//
//	suite.Setup(fixtures.Redis(fixtures.RedisOptions{Flush: true}))
//	suite.Test("reads", func(t *ldtest.T) {
//		client, _ := fixtures.RedisClient(t)
//		...
//	})
//
// If the store cannot be reached, the setup handler fails and the scope's tests do not run.
package fixtures

import (
	"context"
	"time"
)

// cleanupTimeout bounds the work done in a fixture's cleanup. Cleanups do not use the scope's
// context, which may already be cancelled if a test timed out.
const cleanupTimeout = 10 * time.Second

func cleanupContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), cleanupTimeout)
}
