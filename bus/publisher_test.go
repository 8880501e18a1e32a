package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/constellahq/constellation/engine"
)

func TestConnectEmptyURLDisablesMirror(t *testing.T) {
	p, err := Connect("", "constellation.turns", nil)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestNilPublisherIsSafe(t *testing.T) {
	var p *Publisher
	p.PublishEvent("turn-1", engine.Event{Step: engine.StepDrafting, Status: engine.StatusStarted})
	p.Close()
}

func TestConnectUnreachableServerFails(t *testing.T) {
	_, err := Connect("nats://127.0.0.1:1", "constellation.turns", nil)
	assert.Error(t, err)
}
