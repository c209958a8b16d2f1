package loadbalance

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/polyrpc/polyrpc/registry"
)

var testInstances = []registry.ServiceInstance{
	{Addr: ":8001", Weight: 10, Version: "1.0"},
	{Addr: ":8002", Weight: 5, Version: "1.0"},
	{Addr: ":8003", Weight: 10, Version: "1.0"},
}

func TestRoundRobin(t *testing.T) {
	b := &RoundRobinBalancer{}

	results := make([]string, 3)
	for i := 0; i < 3; i++ {
		inst, err := b.Pick(testInstances)
		require.NoError(t, err)
		results[i] = inst.Addr
	}

	inst, err := b.Pick(testInstances)
	require.NoError(t, err)
	require.Equal(t, results[0], inst.Addr)
}

func TestRoundRobinEmpty(t *testing.T) {
	b := &RoundRobinBalancer{}
	_, err := b.Pick([]registry.ServiceInstance{})
	require.Error(t, err)
}

func TestWeightedRandom(t *testing.T) {
	b := &WeightedRandomBalancer{}

	counts := map[string]int{}
	n := 10000
	for i := 0; i < n; i++ {
		inst, err := b.Pick(testInstances)
		require.NoError(t, err)
		counts[inst.Addr]++
	}

	// Weight ratio is 10:5:10, so :8001 and :8003 should be ~2x of :8002
	ratio := float64(counts[":8001"]) / float64(counts[":8002"])
	require.InDeltaf(t, 2.0, ratio, 0.5, "weight ratio :8001/:8002 = %.2f, expect ~2.0", ratio)
}

func TestRoundRobinProtocolFilter(t *testing.T) {
	instances := []registry.ServiceInstance{
		{Addr: ":9001", Weight: 10, Protocol: "jsonrpc"},
		{Addr: ":9002", Weight: 10, Protocol: "xmlrpc"},
	}
	b := &RoundRobinBalancer{Protocol: "jsonrpc"}

	for i := 0; i < 5; i++ {
		inst, err := b.Pick(instances)
		require.NoError(t, err)
		require.Equal(t, ":9001", inst.Addr)
	}
}

func TestRoundRobinProtocolFilterExhausted(t *testing.T) {
	instances := []registry.ServiceInstance{
		{Addr: ":9001", Weight: 10, Protocol: "xmlrpc"},
	}
	b := &RoundRobinBalancer{Protocol: "jsonrpc"}
	_, err := b.Pick(instances)
	require.Error(t, err)
}

func TestWeightedRandomProtocolFilter(t *testing.T) {
	instances := []registry.ServiceInstance{
		{Addr: ":9001", Weight: 10, Protocol: "jsonrpc"},
		{Addr: ":9002", Weight: 10, Protocol: "binrpc"},
	}
	b := &WeightedRandomBalancer{Protocol: "jsonrpc"}

	for i := 0; i < 20; i++ {
		inst, err := b.Pick(instances)
		require.NoError(t, err)
		require.Equal(t, ":9001", inst.Addr)
	}
}

func TestConsistentHash(t *testing.T) {
	b := NewConsistentHashBalancer()

	inst1, err := b.PickForKey("user-123", testInstances)
	require.NoError(t, err)
	inst2, err := b.PickForKey("user-123", testInstances)
	require.NoError(t, err)
	require.Equal(t, inst1.Addr, inst2.Addr)

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		inst, err := b.PickForKey(fmt.Sprintf("key-%d", i), testInstances)
		require.NoError(t, err)
		seen[inst.Addr] = true
	}

	require.GreaterOrEqualf(t, len(seen), 2, "expect at least 2 different instances, got %d", len(seen))
}
