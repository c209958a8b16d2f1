package loadbalance

import (
	"fmt"
	"math/rand"
	"github.com/polyrpc/polyrpc/registry"
)

// WeightedRandomBalancer selects instances probabilistically based on their weight.
// An instance with weight 10 gets roughly 2x the traffic of one with weight 5.
//
// Best for: heterogeneous instances (e.g., some servers have more CPU/memory).
//
// Algorithm:
//  1. Sum all weights → totalWeight
//  2. Generate random number r in [0, totalWeight)
//  3. Subtract each instance's weight from r until r < 0
//  4. The instance that makes r negative is selected
type WeightedRandomBalancer struct {
	// Protocol, when set, restricts Pick to instances advertising this
	// wire protocol, mirroring RoundRobinBalancer.Protocol.
	Protocol string
}

func (b *WeightedRandomBalancer) Pick(instances []registry.ServiceInstance) (*registry.ServiceInstance, error) {
	candidates := filterByProtocol(instances, b.Protocol)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no instances available")
	}

	// Calculate total weight
	totalWeight := 0
	for _, v := range candidates {
		totalWeight += v.Weight
	}
	if totalWeight <= 0 {
		return nil, fmt.Errorf("no instances available")
	}

	// Random selection proportional to weight
	r := rand.Intn(totalWeight)
	for i := range candidates {
		r -= candidates[i].Weight
		if r < 0 {
			return &candidates[i], nil
		}
	}

	return nil, fmt.Errorf("unexpected error in weighted random selection")
}

func (b *WeightedRandomBalancer) Name() string {
	return "WeightedRandom"
}
