package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodemonitor/internal/entity"
)

func TestRegistryRegistersFirstResolver(t *testing.T) {
	registry := NewRegistry()
	conn, _, _ := testConnection(t, testMonitorConfig(), "wss://a.example.com", registry)
	key := entity.DelegateKey{SystemID: 7, Network: "mainnet"}

	require.Nil(t, registry.Resolve(key, conn))
	assert.Same(t, conn, registry.Get(key))
	assert.Equal(t, 1, registry.Len())
}

func TestRegistryReturnsExistingCanonical(t *testing.T) {
	registry := NewRegistry()
	first, _, _ := testConnection(t, testMonitorConfig(), "wss://a.example.com", registry)
	second, _, _ := testConnection(t, testMonitorConfig(), "wss://b.example.com", registry)
	key := entity.DelegateKey{SystemID: 7, Network: "mainnet"}

	require.Nil(t, registry.Resolve(key, first))
	assert.Same(t, first, registry.Resolve(key, second))

	// The canonical owner stays canonical.
	assert.Same(t, first, registry.Get(key))
	assert.Equal(t, 1, registry.Len())
}

func TestRegistryResolveIsIdempotentForOwner(t *testing.T) {
	registry := NewRegistry()
	conn, _, _ := testConnection(t, testMonitorConfig(), "wss://a.example.com", registry)
	key := entity.DelegateKey{SystemID: 7, Network: "mainnet"}

	require.Nil(t, registry.Resolve(key, conn))
	require.Nil(t, registry.Resolve(key, conn))
	assert.Same(t, conn, registry.Get(key))
}

func TestRegistrySeparatesNetworks(t *testing.T) {
	registry := NewRegistry()
	mainnet, _, _ := testConnection(t, testMonitorConfig(), "wss://a.example.com", registry)
	testnet, _, _ := testConnection(t, testMonitorConfig(), "wss://b.example.com", registry)

	require.Nil(t, registry.Resolve(entity.DelegateKey{SystemID: 7, Network: "mainnet"}, mainnet))
	require.Nil(t, registry.Resolve(entity.DelegateKey{SystemID: 7, Network: "testnet-10"}, testnet))
	assert.Equal(t, 2, registry.Len())
}

func TestRegistryEvictsStoppedCanonical(t *testing.T) {
	registry := NewRegistry()
	dead, _, _ := testConnection(t, testMonitorConfig(), "wss://a.example.com", registry)
	successor, _, _ := testConnection(t, testMonitorConfig(), "wss://b.example.com", registry)
	key := entity.DelegateKey{SystemID: 7, Network: "mainnet"}

	require.Nil(t, registry.Resolve(key, dead))

	// The canonical's event loop terminates; its entry is stale and
	// the next resolver takes over instead of binding to a dead actor.
	close(dead.stopped)

	require.Nil(t, registry.Resolve(key, successor))
	assert.Same(t, successor, registry.Get(key))
}
