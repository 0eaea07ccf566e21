package game

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DoyleJ11/word-battle-backend/internal/hub"
	"github.com/DoyleJ11/word-battle-backend/internal/matchmaking"
	"github.com/DoyleJ11/word-battle-backend/internal/round"
	"github.com/DoyleJ11/word-battle-backend/internal/store"
	"github.com/DoyleJ11/word-battle-backend/pkg/types"
)

type fixedWord string

func (w fixedWord) GenerateWord(context.Context, string, string, []string) (string, error) {
	return string(w), nil
}

type harness struct {
	svc      *Service
	hub      *hub.Hub
	bindings *hub.Bindings
	mem      *store.Memory
}

func newHarness(t *testing.T, maxRounds int) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	mem := store.NewMemory()
	h := hub.NewHub(ctx, zap.NewNop())
	bindings := &hub.Bindings{}
	orch := round.NewOrchestrator(mem, fixedWord("GARDEN"), h, bindings,
		round.Config{CountdownSeconds: 30, Tick: time.Second}, zap.NewNop())
	t.Cleanup(orch.Close)
	coord := matchmaking.NewCoordinator(mem, h, orch,
		matchmaking.Config{JoinGrace: time.Minute, MaxRounds: maxRounds, Language: "en", Difficulty: "hard"}, zap.NewNop())
	t.Cleanup(coord.Close)

	return &harness{
		svc:      NewService(coord, orch, h, mem, zap.NewNop()),
		hub:      h,
		bindings: bindings,
		mem:      mem,
	}
}

func (h *harness) connect(t *testing.T, playerID, connID string) chan hub.Envelope {
	t.Helper()
	out := make(chan hub.Envelope, 64)
	require.NoError(t, h.svc.Identify(context.Background(), playerID, "name-"+playerID))
	require.NoError(t, h.hub.Register(context.Background(), connID, playerID, out))
	h.bindings.Bind(playerID, connID)
	return out
}

// helper: wait for one event, skipping the ones in between
func expect(t *testing.T, ch <-chan hub.Envelope, event string) hub.Envelope {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case env, ok := <-ch:
			if !ok {
				t.Fatalf("outbox closed while waiting for %s", event)
			}
			if env.Event == event {
				return env
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", event)
			return hub.Envelope{}
		}
	}
}

func TestService_FullGame(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()
	p1 := h.connect(t, "p1", "c1")
	p2 := h.connect(t, "p2", "c2")

	require.NoError(t, h.svc.JoinMatchmaking(ctx, "p1"))
	expect(t, p1, types.EventMatchMakingJoined)
	require.NoError(t, h.svc.JoinMatchmaking(ctx, "p2"))

	found := expect(t, p1, types.EventMatchFound).Payload.(types.MatchFound)
	assert.Equal(t, found, expect(t, p2, types.EventMatchFound).Payload.(types.MatchFound))
	assert.Equal(t, []string{"p1", "p2"}, found.MatchedPlayerIDs)

	require.NoError(t, h.svc.JoinSession(ctx, found.SessionID, "p1", "c1"))
	require.NoError(t, h.svc.JoinSession(ctx, found.SessionID, "p2", "c2"))

	expect(t, p1, types.EventAllPlayersJoined)
	started := expect(t, p2, types.EventRoundStarted).Payload.(types.RoundStarted)
	assert.Equal(t, 1, started.RoundNumber)

	require.NoError(t, h.svc.SubmitAnswer(ctx, started.RoundID, "p2", "danger"))
	miss := expect(t, p2, types.EventIncorrectAnswer).Payload.(types.IncorrectAnswer)
	assert.Equal(t, "danger", miss.Answer)

	require.NoError(t, h.svc.SubmitAnswer(ctx, started.RoundID, "p1", "  garden "))
	hit := expect(t, p1, types.EventCorrectAnswer).Payload.(types.CorrectAnswer)
	assert.Equal(t, "GARDEN", hit.TrueWord)

	ended := expect(t, p2, types.EventRoundEnded).Payload.(types.RoundEnded)
	require.NotNil(t, ended.WinnerPlayerID)
	assert.Equal(t, "p1", *ended.WinnerPlayerID)

	over := expect(t, p2, types.EventGameEnded).Payload.(types.GameEnded)
	assert.Equal(t, []string{"p1"}, over.WinnerPlayerIDs)
	assert.Equal(t, 6, over.Participants[0].Score)
	assert.Equal(t, "name-p1", over.Participants[0].Name)
}

func TestService_LeaveSessionNotifiesGroup(t *testing.T) {
	h := newHarness(t, 3)
	ctx := context.Background()
	p1 := h.connect(t, "p1", "c1")
	h.connect(t, "p2", "c2")

	require.NoError(t, h.svc.JoinMatchmaking(ctx, "p1"))
	require.NoError(t, h.svc.JoinMatchmaking(ctx, "p2"))
	found := expect(t, p1, types.EventMatchFound).Payload.(types.MatchFound)
	require.NoError(t, h.svc.JoinSession(ctx, found.SessionID, "p1", "c1"))
	require.NoError(t, h.svc.JoinSession(ctx, found.SessionID, "p2", "c2"))
	expect(t, p1, types.EventRoundStarted)

	require.NoError(t, h.svc.LeaveSession(ctx, found.SessionID, "p2", "c2"))
	left := expect(t, p1, types.EventPlayerLeft).Payload.(types.PlayerLeft)
	assert.Equal(t, "p2", left.PlayerID)
}

func TestService_RejectsBlankArguments(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()

	assert.ErrorIs(t, h.svc.JoinMatchmaking(ctx, " "), ErrInvalidArgument)
	assert.ErrorIs(t, h.svc.LeaveMatchmaking(ctx, ""), ErrInvalidArgument)
	assert.ErrorIs(t, h.svc.JoinSession(ctx, "", "p1", "c1"), ErrInvalidArgument)
	assert.ErrorIs(t, h.svc.SubmitAnswer(ctx, "r1", "", "x"), ErrInvalidArgument)
	assert.ErrorIs(t, h.svc.LeaveSession(ctx, "s1", "", ""), ErrInvalidArgument)
	assert.ErrorIs(t, h.svc.Identify(ctx, "", "Ana"), ErrInvalidArgument)
	assert.ErrorIs(t, h.svc.SendChat(ctx, "s1", "p1", "   "), ErrInvalidArgument)
}

func TestService_SendChat(t *testing.T) {
	h := newHarness(t, 3)
	ctx := context.Background()
	p1 := h.connect(t, "p1", "c1")
	p2 := h.connect(t, "p2", "c2")
	h.connect(t, "p3", "c3")

	require.NoError(t, h.svc.JoinMatchmaking(ctx, "p1"))
	require.NoError(t, h.svc.JoinMatchmaking(ctx, "p2"))
	found := expect(t, p1, types.EventMatchFound).Payload.(types.MatchFound)
	require.NoError(t, h.svc.JoinSession(ctx, found.SessionID, "p1", "c1"))
	require.NoError(t, h.svc.JoinSession(ctx, found.SessionID, "p2", "c2"))
	expect(t, p2, types.EventAllPlayersJoined)

	require.NoError(t, h.svc.SendChat(ctx, found.SessionID, "p1", " good luck "))
	for _, out := range []chan hub.Envelope{p1, p2} {
		msg := expect(t, out, types.EventReceiveChat).Payload.(types.ChatMessage)
		assert.Equal(t, types.ChatMessage{PlayerID: "p1", Message: "good luck"}, msg)
	}

	assert.ErrorIs(t, h.svc.SendChat(ctx, found.SessionID, "p3", "hi"), ErrNotInSession)
	assert.ErrorIs(t, h.svc.SendChat(ctx, "nope", "p1", "hi"), ErrNotInSession)
	long := strings.Repeat("é", MaxChatRunes+1)
	assert.ErrorIs(t, h.svc.SendChat(ctx, found.SessionID, "p1", long), ErrInvalidArgument)
	assert.NoError(t, h.svc.SendChat(ctx, found.SessionID, "p1", long[:len(long)-2]))
}

func TestService_JoinUnknownSession(t *testing.T) {
	h := newHarness(t, 1)
	err := h.svc.JoinSession(context.Background(), "nope", "p1", "c1")
	assert.ErrorIs(t, err, matchmaking.ErrNotMatched)
}
