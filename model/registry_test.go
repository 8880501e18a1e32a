package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry() *Registry {
	return NewRegistry(
		map[Capability]*CapabilityConfig{
			CapabilityDrafting: {Preferred: []string{"a", "b"}, Fallback: []string{"c"}},
		},
		map[string]*EndpointConfig{
			"a": {Provider: "ollama", Model: "m-a"},
			"b": {Provider: "ollama", Model: "m-b"},
			"c": {Provider: "ollama", Model: "m-c"},
		},
	)
}

func TestChainOrdersPreferredThenFallback(t *testing.T) {
	reg := testRegistry()
	assert.Equal(t, []string{"a", "b", "c"}, reg.Chain(CapabilityDrafting))
	assert.Nil(t, reg.Chain(CapabilityAuditing))
}

func TestAvailableChainFiltersOpenCircuits(t *testing.T) {
	reg := testRegistry()

	// Below threshold the endpoint stays available.
	reg.MarkFailure("a")
	reg.MarkFailure("a")
	assert.Equal(t, []string{"a", "b", "c"}, reg.AvailableChain(CapabilityDrafting))

	// Crossing the threshold opens the circuit.
	reg.MarkFailure("a")
	assert.Equal(t, []string{"b", "c"}, reg.AvailableChain(CapabilityDrafting))

	// Success closes it again.
	reg.MarkSuccess("a")
	assert.Equal(t, []string{"a", "b", "c"}, reg.AvailableChain(CapabilityDrafting))
}

func TestAvailableChainReturnsAllWhenEveryCircuitOpen(t *testing.T) {
	reg := testRegistry()
	for _, name := range []string{"a", "b", "c"} {
		for i := 0; i < DefaultHealthConfig().FailureThreshold; i++ {
			reg.MarkFailure(name)
		}
	}
	// Never strand the caller with an empty chain.
	assert.Equal(t, []string{"a", "b", "c"}, reg.AvailableChain(CapabilityDrafting))
}

func TestEndpointLookup(t *testing.T) {
	reg := testRegistry()
	require.NotNil(t, reg.Endpoint("a"))
	assert.Equal(t, "m-a", reg.Endpoint("a").Model)
	assert.Nil(t, reg.Endpoint("ghost"))
}

func TestParseCapability(t *testing.T) {
	assert.Equal(t, CapabilityDrafting, ParseCapability("drafting"))
	assert.Equal(t, CapabilityAuditing, ParseCapability("auditing"))
	assert.Equal(t, Capability(""), ParseCapability("unknown"))
}

func TestNewDefaultRegistryCoversAllCapabilities(t *testing.T) {
	reg := NewDefaultRegistry()
	for _, c := range []Capability{CapabilityDrafting, CapabilityAuditing, CapabilityCorrecting, CapabilityFast} {
		assert.NotEmpty(t, reg.Chain(c), "capability %s", c)
	}
}
