package hub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// helper: receive one envelope with a timeout so tests never hang
func recvEnvelope(t *testing.T, ch <-chan Envelope, within time.Duration) Envelope {
	t.Helper()
	select {
	case env, ok := <-ch:
		if !ok {
			t.Fatalf("outbox closed unexpectedly")
		}
		return env
	case <-time.After(within):
		t.Fatalf("timed out waiting for envelope")
		return Envelope{} // unreachable
	}
}

func recvNoEnvelope(t *testing.T, ch <-chan Envelope, within time.Duration) {
	t.Helper()
	select {
	case env, ok := <-ch:
		if !ok {
			return
		}
		t.Fatalf("expected no envelope within %v, got %+v", within, env)
	case <-time.After(within):
	}
}

func view(t *testing.T, h *Hub) View {
	t.Helper()
	reply := make(chan View, 1)
	h.Inbox() <- GetView{Reply: reply}
	select {
	case v := <-reply:
		return v
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for view")
		return View{}
	}
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewHub(ctx, zap.NewNop())
}

func TestHub_GroupDeliveryKeepsOrder(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	a := make(chan Envelope, 8)
	b := make(chan Envelope, 8)
	require.NoError(t, h.Register(ctx, "c1", "p1", a))
	require.NoError(t, h.Register(ctx, "c2", "p2", b))
	require.NoError(t, h.AddToGroup(ctx, "c1", "game-1"))
	require.NoError(t, h.AddToGroup(ctx, "c2", "game-1"))

	for _, ev := range []string{"RoundStarted", "CountdownTick", "RoundEnded"} {
		require.NoError(t, h.SendToGroup(ctx, "game-1", ev, nil))
	}

	for _, out := range []chan Envelope{a, b} {
		assert.Equal(t, "RoundStarted", recvEnvelope(t, out, time.Second).Event)
		assert.Equal(t, "CountdownTick", recvEnvelope(t, out, time.Second).Event)
		assert.Equal(t, "RoundEnded", recvEnvelope(t, out, time.Second).Event)
	}
}

func TestHub_SendToPlayerReachesEveryConnection(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	phone := make(chan Envelope, 2)
	laptop := make(chan Envelope, 2)
	other := make(chan Envelope, 2)
	require.NoError(t, h.Register(ctx, "c1", "p1", phone))
	require.NoError(t, h.Register(ctx, "c2", "p1", laptop))
	require.NoError(t, h.Register(ctx, "c3", "p2", other))

	require.NoError(t, h.SendToPlayer(ctx, "p1", "MatchFound", map[string]string{"sessionId": "g1"}))

	assert.Equal(t, "MatchFound", recvEnvelope(t, phone, time.Second).Event)
	assert.Equal(t, "MatchFound", recvEnvelope(t, laptop, time.Second).Event)
	recvNoEnvelope(t, other, 50*time.Millisecond)
}

func TestHub_RemoveFromGroupStopsDelivery(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	out := make(chan Envelope, 2)
	require.NoError(t, h.Register(ctx, "c1", "p1", out))
	require.NoError(t, h.AddToGroup(ctx, "c1", "g1"))
	require.NoError(t, h.RemoveFromGroup(ctx, "c1", "g1"))
	require.NoError(t, h.RemoveFromGroup(ctx, "missing", "g1"))
	require.NoError(t, h.SendToGroup(ctx, "g1", "GameEnded", nil))

	recvNoEnvelope(t, out, 50*time.Millisecond)
	assert.Empty(t, view(t, h).Groups)
}

func TestHub_DropSlowClient(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	out := make(chan Envelope, 1)
	require.NoError(t, h.Register(ctx, "c1", "p1", out))
	require.NoError(t, h.AddToGroup(ctx, "c1", "g1"))

	require.NoError(t, h.SendToGroup(ctx, "g1", "CountdownTick", 3))
	require.NoError(t, h.SendToGroup(ctx, "g1", "CountdownTick", 2))

	v := view(t, h)
	assert.Equal(t, 0, v.NumConns, "slow client should be dropped")
	assert.Empty(t, v.Groups)

	assert.Equal(t, "CountdownTick", recvEnvelope(t, out, time.Second).Event)
	_, ok := <-out
	assert.False(t, ok, "outbox should be closed after drop")
}

func TestHub_ShutdownClosesOutboxes(t *testing.T) {
	h := newTestHub(t)
	ctx := context.Background()

	out := make(chan Envelope, 1)
	require.NoError(t, h.Register(ctx, "c1", "p1", out))
	h.Shutdown()

	select {
	case _, ok := <-out:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatalf("outbox not closed on shutdown")
	}

	err := h.SendToGroup(ctx, "g1", "GameEnded", nil)
	assert.ErrorIs(t, err, ErrHubClosed)
}

func TestBindings_LastWriterWins(t *testing.T) {
	var b Bindings

	_, ok := b.Lookup("p1")
	assert.False(t, ok)

	b.Bind("p1", "c1")
	b.Bind("p1", "c2")
	got, ok := b.Lookup("p1")
	require.True(t, ok)
	assert.Equal(t, "c2", got)

	b.Unbind("p1", "c1") // stale connection closing
	got, _ = b.Lookup("p1")
	assert.Equal(t, "c2", got)

	b.Unbind("p1", "c2")
	_, ok = b.Lookup("p1")
	assert.False(t, ok)
}
