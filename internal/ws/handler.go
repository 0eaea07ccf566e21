package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/word-battle-backend/internal/game"
	"github.com/DoyleJ11/word-battle-backend/internal/hub"
	"github.com/DoyleJ11/word-battle-backend/internal/matchmaking"
	"github.com/DoyleJ11/word-battle-backend/internal/round"
	"github.com/DoyleJ11/word-battle-backend/internal/types"
)

const (
	writeTimeout = 3 * time.Second
	idleTimeout  = 5 * time.Minute
	outboxSize   = 32
)

// Service is the set of operations a connection can invoke.
type Service interface {
	Identify(ctx context.Context, playerID, name string) error
	JoinMatchmaking(ctx context.Context, playerID string) error
	LeaveMatchmaking(ctx context.Context, playerID string) error
	JoinSession(ctx context.Context, sessionID, playerID, connID string) error
	SubmitAnswer(ctx context.Context, roundID, playerID, answer string) error
	LeaveSession(ctx context.Context, sessionID, playerID, connID string) error
	SendChat(ctx context.Context, sessionID, playerID, message string) error
}

// Handler upgrades /ws?player=<id>&name=<display name>. Each connection
// gets a writer goroutine draining its hub outbox and a reader loop that
// turns client messages into service calls.
func Handler(svc Service, h *hub.Hub, bindings *hub.Bindings, logger *zap.Logger) http.HandlerFunc {
	logger = logger.Named("ws")
	return func(w http.ResponseWriter, r *http.Request) {
		playerID := r.URL.Query().Get("player")
		if playerID == "" {
			http.Error(w, "missing player", http.StatusBadRequest)
			return
		}
		if err := svc.Identify(r.Context(), playerID, r.URL.Query().Get("name")); err != nil {
			logger.Error("identify failed", zap.String("player_id", playerID), zap.Error(err))
			http.Error(w, "could not register player", http.StatusInternalServerError)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// In dev ONLY, you can loosen origin checks:
			// OriginPatterns: []string{"http://localhost:*", "http://127.0.0.1:*"},
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		connID := uuid.NewString()
		log := logger.With(zap.String("conn_id", connID), zap.String("player_id", playerID))

		out := make(chan hub.Envelope, outboxSize)
		if err := h.Register(r.Context(), connID, playerID, out); err != nil {
			log.Warn("register failed", zap.Error(err))
			return
		}
		bindings.Bind(playerID, connID)
		log.Info("connected")
		defer func() {
			bindings.Unbind(playerID, connID)
			cleanup := context.WithoutCancel(r.Context())
			_ = h.Unregister(cleanup, connID)
			_ = svc.LeaveMatchmaking(cleanup, playerID)
			log.Info("disconnected")
		}()

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for env := range out {
				payload, err := json.Marshal(types.ServerMessage{Type: env.Event, Payload: env.Payload})
				if err != nil {
					log.Error("encode event", zap.String("event", env.Event), zap.Error(err))
					continue
				}
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
			// The hub closed the outbox: either we were too slow or it shut down.
			if writeCtx.Err() == nil {
				_ = conn.Close(websocket.StatusTryAgainLater, "dropped")
			}
		}()

		// Reader loop
		for {
			ctx, cancel := context.WithTimeout(r.Context(), idleTimeout)
			_, data, err := conn.Read(ctx)
			cancel()
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("read ended", zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				writeError(r.Context(), conn, "bad json")
				continue
			}
			if err := dispatch(r.Context(), svc, cm, playerID, connID); err != nil {
				msg := clientError(err)
				if msg == "" {
					log.Error("command failed", zap.String("type", cm.Type), zap.Error(err))
					msg = "internal error"
				}
				writeError(r.Context(), conn, msg)
			}
		}
	}
}

var errUnknownType = errors.New("unknown type")

func dispatch(ctx context.Context, svc Service, m types.ClientMessage, playerID, connID string) error {
	switch m.Type {
	case types.CmdJoinMatchmaking:
		return svc.JoinMatchmaking(ctx, playerID)
	case types.CmdLeaveMatchmaking:
		return svc.LeaveMatchmaking(ctx, playerID)
	case types.CmdJoinSession:
		return svc.JoinSession(ctx, m.SessionID, playerID, connID)
	case types.CmdSubmitAnswer:
		return svc.SubmitAnswer(ctx, m.RoundID, playerID, m.Answer)
	case types.CmdLeaveSession:
		return svc.LeaveSession(ctx, m.SessionID, playerID, connID)
	case types.CmdSendChat:
		return svc.SendChat(ctx, m.SessionID, playerID, m.Message)
	default:
		return errUnknownType
	}
}

// clientError is the text shown to the client for errors it caused, or
// "" for anything that should only be logged.
func clientError(err error) string {
	switch {
	case errors.Is(err, errUnknownType):
		return "unknown type"
	case errors.Is(err, game.ErrInvalidArgument):
		return err.Error()
	case errors.Is(err, matchmaking.ErrNotMatched):
		return "not matched into this session"
	case errors.Is(err, matchmaking.ErrPlayersNotFound):
		return "matchmaking failed"
	case errors.Is(err, round.ErrNotParticipant):
		return "not a player in this game"
	case errors.Is(err, game.ErrNotInSession):
		return "not a player in this session"
	default:
		return ""
	}
}

func writeError(ctx context.Context, conn *websocket.Conn, msg string) {
	payload, _ := json.Marshal(types.ServerMessage{Type: "Error", Error: msg})
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = conn.Write(ctx, websocket.MessageText, payload)
}
