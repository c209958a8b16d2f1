package loadbalance

import (
	"fmt"
	"github.com/polyrpc/polyrpc/registry"
	"sync/atomic"
)

// RoundRobinBalancer distributes requests evenly across all instances in order.
// Uses an atomic counter for lock-free, goroutine-safe operation.
//
// Best for: stateless services where all instances have similar capacity.
type RoundRobinBalancer struct {
	counter int64 // Atomic counter, incremented on each Pick()

	// Protocol, when set, restricts Pick to instances advertising this
	// wire protocol (registry.ServiceInstance.Protocol) — a client bound
	// to a single rpc.Protocol has no use for an instance speaking a
	// different one, even if it shares the service name. Left empty,
	// every instance is eligible.
	Protocol string
}

// Pick selects the next instance in round-robin order, restricted to
// instances matching b.Protocol when set.
// The atomic counter ensures even distribution without locks.
func (b *RoundRobinBalancer) Pick(instances []registry.ServiceInstance) (*registry.ServiceInstance, error) {
	candidates := filterByProtocol(instances, b.Protocol)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no instances available")
	}
	index := atomic.AddInt64(&b.counter, 1) % int64(len(candidates))
	return &candidates[index], nil
}

func (b *RoundRobinBalancer) Name() string {
	return "RoundRobin"
}
