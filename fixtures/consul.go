package fixtures

import (
	"fmt"

	consul "github.com/hashicorp/consul/api"

	"github.com/launchdarkly/suite-harness/framework/ldtest"
)

// ConsulKey is the scope key of the client created by ConsulKV, unless overridden.
const ConsulKey = "fixtures.consul"

type ConsulOptions struct {
	// Address defaults to the Consul client's default, which honors CONSUL_HTTP_ADDR.
	Address string `json:"address"`
	// Prefix is the key tree that is deleted before the scope runs and after it ends. The
	// default "/" is the whole store.
	Prefix string `json:"prefix"`
	// Values are written after the tree is deleted.
	Values map[string]string `json:"values"`
	Key    string            `json:"key"`
}

// ConsulKV returns a setup handler that connects to a Consul agent's key/value store.
func ConsulKV(opts ConsulOptions) ldtest.SetupFunc {
	if opts.Prefix == "" {
		opts.Prefix = "/"
	}
	if opts.Key == "" {
		opts.Key = ConsulKey
	}
	return func(t *ldtest.T) (ldtest.SetupResult, error) {
		config := consul.DefaultConfig()
		if opts.Address != "" {
			config.Address = opts.Address
		}
		client, err := consul.NewClient(config)
		if err != nil {
			return ldtest.NoCleanup(), fmt.Errorf("invalid consul configuration: %w", err)
		}
		kv := client.KV()
		writeOpts := (&consul.WriteOptions{}).WithContext(t.Context())
		if _, err := kv.DeleteTree(opts.Prefix, writeOpts); err != nil {
			return ldtest.NoCleanup(), fmt.Errorf("consul at %s is not reachable: %w", config.Address, err)
		}

		cleanup := func(*ldtest.T) error {
			ctx, cancel := cleanupContext()
			defer cancel()
			if _, err := kv.DeleteTree(opts.Prefix, (&consul.WriteOptions{}).WithContext(ctx)); err != nil {
				return fmt.Errorf("could not delete consul tree %q: %w", opts.Prefix, err)
			}
			return nil
		}

		for key, value := range opts.Values {
			if _, err := kv.Put(&consul.KVPair{Key: key, Value: []byte(value)}, writeOpts); err != nil {
				return ldtest.CleanupWith(cleanup), fmt.Errorf("could not write consul key %q: %w", key, err)
			}
		}

		t.Set(opts.Key, client)
		t.Debug("Connected to consul at %s", config.Address)
		return ldtest.CleanupWith(cleanup), nil
	}
}

// ConsulClient returns the client stored under ConsulKey in this scope or an enclosing one.
func ConsulClient(t *ldtest.T) (*consul.Client, bool) {
	return ldtest.Value[*consul.Client](t, ConsulKey)
}
