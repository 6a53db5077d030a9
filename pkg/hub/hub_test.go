package hub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	h := New("test")
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.Done()
	})
	return h
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case msg, ok := <-c.send:
		require.True(t, ok, "client channel closed")
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message")
		return Message{}
	}
}

func TestHub_BroadcastReachesClients(t *testing.T) {
	h := startHub(t)
	a, b := newClient(h, nil), newClient(h, nil)
	require.True(t, h.join(a))
	require.True(t, h.join(b))

	require.NoError(t, h.BroadcastJSON(map[string]int{"frame": 1}))

	for _, c := range []*Client{a, b} {
		msg := receive(t, c)
		assert.Equal(t, JSONMessage, msg.Type)
		assert.JSONEq(t, `{"frame":1}`, string(msg.Data))
	}
	assert.Eventually(t, func() bool { return h.ClientCount() == 2 }, time.Second, 5*time.Millisecond)
}

func TestHub_LateJoinerGetsLastMessage(t *testing.T) {
	h := startHub(t)
	h.BroadcastBinary([]byte{1, 2, 3})
	h.BroadcastBinary([]byte{4})

	// Let the hub drain the queue with nobody listening.
	time.Sleep(20 * time.Millisecond)

	c := newClient(h, nil)
	require.True(t, h.join(c))
	msg := receive(t, c)
	assert.Equal(t, BinaryMessage, msg.Type)
	assert.Equal(t, []byte{4}, msg.Data)
}

func TestHub_LeaveClosesSend(t *testing.T) {
	h := startHub(t)
	c := newClient(h, nil)
	require.True(t, h.join(c))
	h.leave(c)

	_, ok := <-c.send
	assert.False(t, ok)
	assert.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_DropsSlowClient(t *testing.T) {
	h := startHub(t)
	slow := newClient(h, nil)
	require.True(t, h.join(slow))

	for i := 0; i <= clientBuffer; i++ {
		h.BroadcastBinary([]byte{byte(i)})
	}

	// The send buffer is left full, so the last broadcast evicts the client.
	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, 5*time.Millisecond)

	drained := 0
	for range slow.send {
		drained++
	}
	assert.Equal(t, clientBuffer, drained)
}

func TestHub_StopReleasesClients(t *testing.T) {
	h := New("stop")
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	c := newClient(h, nil)
	require.True(t, h.join(c))
	cancel()
	<-h.Done()

	_, ok := <-c.send
	assert.False(t, ok)
	assert.False(t, h.join(newClient(h, nil)), "stopped hub refuses clients")
	h.leave(c)
}

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	h := New("idle") // not running
	for i := 0; i < broadcastBuffer+10; i++ {
		h.BroadcastBinary(nil)
	}
	assert.Equal(t, uint64(10), h.Dropped())
}
