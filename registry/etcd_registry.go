// Package registry provides the etcd-based implementation of the Registry interface.
//
// etcd is a distributed key-value store that provides strong consistency (Raft protocol).
// We use it as a "distributed phonebook" for services, keyed by protocol so that a
// service exposed over more than one wire protocol at once (e.g. an xmlrpc listener
// and a jsonrpc listener both fronting "Arith") gets one etcd subtree per protocol:
//
//	Key:   /polyrpc/{ServiceName}/{Protocol}/{Addr}
//	Value: JSON-encoded ServiceInstance
//
// Registration uses TTL-based leases: if the server crashes, the lease expires
// and the entry is automatically removed — preventing "ghost" instances.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdRegistry implements the Registry interface using etcd v3.
type EtcdRegistry struct {
	client *clientv3.Client // etcd client connection (thread-safe, shared across goroutines)
}

// NewEtcdRegistry creates a new registry connected to the given etcd endpoints.
func NewEtcdRegistry(endpoints []string) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints: endpoints,
	})
	if err != nil {
		return nil, err
	}
	return &EtcdRegistry{client: c}, nil
}

// key builds the etcd key for one instance, scoped by protocol so that
// Discover can be narrowed to a single wire protocol without fetching and
// filtering every protocol's instances client-side.
func (r *EtcdRegistry) key(serviceName, protocol, addr string) string {
	return "/polyrpc/" + serviceName + "/" + protocol + "/" + addr
}

// servicePrefix is every instance of serviceName, across all protocols.
func (r *EtcdRegistry) servicePrefix(serviceName string) string {
	return "/polyrpc/" + serviceName + "/"
}

// Register adds a service instance to etcd with a TTL lease.
//
// Flow:
//  1. Create a lease with the given TTL (e.g., 10 seconds)
//  2. Put the key-value pair with the lease attached
//  3. Start KeepAlive to automatically renew the lease
//
// instance.Protocol is required: it is part of the etcd key, and a
// client (loadbalance.Balancer) has no way to discover which rpc.Protocol
// to dial an instance with if the registry never recorded one.
//
// Note: leaseID is a local variable, NOT stored on the struct.
// This prevents a data race when multiple servers share one EtcdRegistry instance
// (discovered via `go test -race`).
func (r *EtcdRegistry) Register(serviceName string, instance ServiceInstance, ttl int64) error {
	if instance.Protocol == "" {
		return fmt.Errorf("registry: instance for %s must set Protocol (xmlrpc, binrpc, or jsonrpc)", serviceName)
	}

	ctx := context.TODO()

	// Create a TTL-based lease — if KeepAlive stops, the entry auto-expires
	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return err
	}

	// Serialize the instance metadata
	val, err := json.Marshal(instance)
	if err != nil {
		return err
	}

	// Store in etcd: key = /polyrpc/{service}/{protocol}/{addr}, value = JSON metadata
	_, err = r.client.Put(ctx, r.key(serviceName, instance.Protocol, instance.Addr), string(val), clientv3.WithLease(lease.ID))
	if err != nil {
		return err
	}

	// Start background lease renewal — KeepAlive sends heartbeats to etcd
	ch, err := r.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return err
	}

	// Consume KeepAlive responses to prevent the channel from filling up
	go func() {
		for range ch {
		}
	}()
	return nil
}

// Deregister removes a service instance from etcd. The protocol subtree
// isn't known to the caller (the Registry interface only carries addr), so
// this scans the service's instances across every protocol and deletes
// whichever key ends in this addr.
// Called during graceful shutdown before closing the listener.
func (r *EtcdRegistry) Deregister(serviceName string, addr string) error {
	ctx := context.TODO()
	prefix := r.servicePrefix(serviceName)
	resp, err := r.client.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return err
	}
	for _, kv := range resp.Kvs {
		if strings.HasSuffix(string(kv.Key), "/"+addr) {
			if _, err := r.client.Delete(ctx, string(kv.Key)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Watch monitors a service prefix in etcd and emits updated instance lists
// whenever changes occur (new registrations, deregistrations, lease expirations).
//
// Uses etcd's Watch API (server-push), which is more efficient than polling.
func (r *EtcdRegistry) Watch(serviceName string) <-chan []ServiceInstance {
	ctx := context.TODO()
	ch := make(chan []ServiceInstance, 1)
	prefix := r.servicePrefix(serviceName)

	go func() {
		// Watch all keys under the service prefix, across every protocol
		watchChan := r.client.Watch(ctx, prefix, clientv3.WithPrefix())
		for range watchChan {
			// On any change, re-fetch the full instance list
			// (simpler than parsing individual watch events)
			instances, _ := r.Discover(serviceName)
			ch <- instances
		}
	}()

	return ch
}

// Discover returns all currently registered instances for a service,
// across every protocol it has been registered under.
func (r *EtcdRegistry) Discover(serviceName string) ([]ServiceInstance, error) {
	return r.discoverPrefix(r.servicePrefix(serviceName))
}

// DiscoverProtocol narrows discovery to instances registered under a
// specific wire protocol, by addressing etcd's key space directly
// (/polyrpc/{service}/{protocol}/) instead of fetching every protocol's
// instances and filtering them out afterward.
func (r *EtcdRegistry) DiscoverProtocol(serviceName, protocol string) ([]ServiceInstance, error) {
	return r.discoverPrefix(r.servicePrefix(serviceName) + protocol + "/")
}

func (r *EtcdRegistry) discoverPrefix(prefix string) ([]ServiceInstance, error) {
	ctx := context.TODO()

	// Get all keys with the prefix
	resp, err := r.client.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	// Deserialize each value into a ServiceInstance
	instances := make([]ServiceInstance, 0)
	for _, kv := range resp.Kvs {
		var instance ServiceInstance
		if err := json.Unmarshal(kv.Value, &instance); err != nil {
			continue // Skip malformed entries
		}
		instances = append(instances, instance)
	}

	return instances, nil
}
