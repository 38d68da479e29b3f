package ws

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPresenceFirstConnectionTransitions(t *testing.T) {
	p := NewPresence()

	assert.True(t, p.Connect(1, 7))
	assert.False(t, p.Connect(1, 7))
	assert.Equal(t, 2, p.Online(1, 7))

	assert.False(t, p.Disconnect(1, 7))
	assert.True(t, p.Disconnect(1, 7))
	assert.Equal(t, 0, p.Online(1, 7))
}

func TestPresencePairsAreIndependent(t *testing.T) {
	p := NewPresence()

	assert.True(t, p.Connect(1, 7))
	assert.True(t, p.Connect(2, 7))
	assert.True(t, p.Connect(1, 8))

	assert.True(t, p.Disconnect(1, 7))
	assert.Equal(t, 1, p.Online(2, 7))
	assert.Equal(t, 1, p.Online(1, 8))
}

func TestPresenceDisconnectUnknownIsNoop(t *testing.T) {
	p := NewPresence()

	assert.False(t, p.Disconnect(1, 7))

	p.Connect(1, 7)
	p.Disconnect(1, 7)
	assert.False(t, p.Disconnect(1, 7))
}

func TestPresenceConcurrentConnections(t *testing.T) {
	p := NewPresence()

	const conns = 50
	var wg sync.WaitGroup
	for i := 0; i < conns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Connect(1, 7)
		}()
	}
	wg.Wait()

	assert.Equal(t, conns, p.Online(1, 7))
	for i := 0; i < conns-1; i++ {
		assert.False(t, p.Disconnect(1, 7))
	}
	assert.True(t, p.Disconnect(1, 7))
}
