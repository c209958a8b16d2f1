package loadbalance

import (
	"fmt"
	"hash/crc32"
	"sort"

	"github.com/polyrpc/polyrpc/registry"
)

// ConsistentHashBalancer maps a call to an instance using a hash ring built
// fresh from the current instance list on every Pick, so membership changes
// (an instance added or removed by the registry's Watch) only reshuffle the
// keys that land near the changed node — not the whole table.
//
// Virtual nodes: each real instance is mapped to N virtual nodes on the ring.
// Without virtual nodes, 3 instances might cluster together on the ring,
// causing uneven load distribution. 100 virtual nodes per instance ensures
// statistical uniformity.
//
//	Hash Ring:
//	                  0
//	                ╱   ╲
//	              ╱       ╲
//	         B ●               ● A
//	           │    key ◆──►   │   (clockwise to nearest node → A)
//	         C ●               ● A' (virtual node of A)
//	              ╲       ╱
//	                ╲   ╱
type ConsistentHashBalancer struct {
	replicas int

	// Key, when set, derives the ring lookup key from the call — e.g.
	// the request's cache-affinity ID. Pick falls back to the literal
	// string "default" when Key is nil, which still gives a stable,
	// deterministic choice but no per-call affinity; callers wanting real
	// affinity should set Key before the balancer sees its first Pick.
	Key func() string
}

// NewConsistentHashBalancer creates a hash ring with 100 virtual nodes per instance.
func NewConsistentHashBalancer() *ConsistentHashBalancer {
	return &ConsistentHashBalancer{replicas: 100}
}

// Pick satisfies Balancer by hashing the balancer's current key against a
// ring built from instances.
func (b *ConsistentHashBalancer) Pick(instances []registry.ServiceInstance) (*registry.ServiceInstance, error) {
	if len(instances) == 0 {
		return nil, fmt.Errorf("loadbalance: no instances available")
	}
	key := "default"
	if b.Key != nil {
		key = b.Key()
	}
	return b.PickForKey(key, instances)
}

// PickForKey hashes key against a ring built from instances, for callers
// that have an explicit affinity key (e.g. a session or shard ID) rather
// than relying on the Key callback.
func (b *ConsistentHashBalancer) PickForKey(key string, instances []registry.ServiceInstance) (*registry.ServiceInstance, error) {
	if len(instances) == 0 {
		return nil, fmt.Errorf("loadbalance: no instances available")
	}

	ring := make([]uint32, 0, len(instances)*b.replicas)
	nodes := make(map[uint32]*registry.ServiceInstance, len(instances)*b.replicas)
	for i := range instances {
		inst := &instances[i]
		for j := 0; j < b.replicas; j++ {
			vkey := fmt.Sprintf("%s#%d", inst.Addr, j)
			hash := crc32.ChecksumIEEE([]byte(vkey))
			ring = append(ring, hash)
			nodes[hash] = inst
		}
	}
	sort.Slice(ring, func(i, j int) bool { return ring[i] < ring[j] })

	hash := crc32.ChecksumIEEE([]byte(key))
	idx := sort.Search(len(ring), func(i int) bool { return ring[i] >= hash })
	if idx == len(ring) {
		idx = 0
	}
	return nodes[ring[idx]], nil
}

func (b *ConsistentHashBalancer) Name() string {
	return "ConsistentHash"
}
