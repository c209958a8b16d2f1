// Package loadbalance provides load balancing strategies for distributing
// RPC requests across multiple service instances.
//
// Three strategies are implemented:
//   - RoundRobin:      Stateless services, equal-capacity instances
//   - WeightedRandom:  Heterogeneous instances (different CPU/memory)
//   - ConsistentHash:  Stateful services requiring cache affinity
package loadbalance

import "github.com/polyrpc/polyrpc/registry"

// Balancer is the interface for load balancing strategies.
// The client calls Pick() before each RPC to select a target instance.
type Balancer interface {
	// Pick selects one instance from the available list.
	// Called on every RPC call — must be goroutine-safe.
	Pick(instances []registry.ServiceInstance) (*registry.ServiceInstance, error)

	// Name returns the strategy name (for logging/debugging).
	Name() string
}

// filterByProtocol narrows instances to those advertising the given wire
// protocol (registry.ServiceInstance.Protocol). A registered instance that
// left Protocol blank is treated as matching any protocol, so hand-built
// registry.ServiceInstance values (e.g. in tests or a --addr MockRegistry
// entry) remain pickable without having to set every field. Passing an
// empty protocol disables filtering entirely.
func filterByProtocol(instances []registry.ServiceInstance, protocol string) []registry.ServiceInstance {
	if protocol == "" {
		return instances
	}
	out := make([]registry.ServiceInstance, 0, len(instances))
	for _, inst := range instances {
		if inst.Protocol == "" || inst.Protocol == protocol {
			out = append(out, inst)
		}
	}
	return out
}
