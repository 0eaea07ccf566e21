package game

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/DoyleJ11/word-battle-backend/internal/store"
	"github.com/DoyleJ11/word-battle-backend/pkg/types"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotInSession    = errors.New("player is not in this session")
)

// MaxChatRunes bounds a single chat message.
const MaxChatRunes = 500

type Matchmaker interface {
	Enqueue(ctx context.Context, playerID string) error
	Dequeue(ctx context.Context, playerID string) error
	ConfirmJoin(ctx context.Context, sessionID, playerID, connID string) error
	Withdraw(sessionID, playerID string)
}

type Rounds interface {
	SubmitAnswer(ctx context.Context, roundID, playerID, answer string) error
}

type Broadcaster interface {
	SendToGroup(ctx context.Context, groupID, event string, payload any) error
	RemoveFromGroup(ctx context.Context, connID, groupID string) error
}

type Directory interface {
	UpsertPlayer(ctx context.Context, p *store.Player) error
	GetGame(ctx context.Context, id string) (*store.Game, error)
}

// Service is what the transport calls. It validates arguments and hands
// each operation to the component that owns it.
type Service struct {
	match   Matchmaker
	rounds  Rounds
	bus     Broadcaster
	players Directory
	logger  *zap.Logger
}

func NewService(match Matchmaker, rounds Rounds, bus Broadcaster, players Directory, logger *zap.Logger) *Service {
	return &Service{match: match, rounds: rounds, bus: bus, players: players, logger: logger.Named("game")}
}

// Identify records the player so matchmaking can resolve them later.
func (s *Service) Identify(ctx context.Context, playerID, name string) error {
	if err := required("player id", playerID); err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" {
		name = playerID
	}
	if err := s.players.UpsertPlayer(ctx, &store.Player{ID: playerID, Name: name}); err != nil {
		return fmt.Errorf("identify player: %w", err)
	}
	return nil
}

func (s *Service) JoinMatchmaking(ctx context.Context, playerID string) error {
	if err := required("player id", playerID); err != nil {
		return err
	}
	return s.match.Enqueue(ctx, playerID)
}

func (s *Service) LeaveMatchmaking(ctx context.Context, playerID string) error {
	if err := required("player id", playerID); err != nil {
		return err
	}
	return s.match.Dequeue(ctx, playerID)
}

func (s *Service) JoinSession(ctx context.Context, sessionID, playerID, connID string) error {
	if err := required("session id", sessionID); err != nil {
		return err
	}
	if err := required("player id", playerID); err != nil {
		return err
	}
	return s.match.ConfirmJoin(ctx, sessionID, playerID, connID)
}

func (s *Service) SubmitAnswer(ctx context.Context, roundID, playerID, answer string) error {
	if err := required("round id", roundID); err != nil {
		return err
	}
	if err := required("player id", playerID); err != nil {
		return err
	}
	return s.rounds.SubmitAnswer(ctx, roundID, playerID, strings.TrimSpace(answer))
}

// LeaveSession withdraws any pending join, stops delivering the session's
// events to connID and tells the rest of the group.
func (s *Service) LeaveSession(ctx context.Context, sessionID, playerID, connID string) error {
	if err := required("session id", sessionID); err != nil {
		return err
	}
	if err := required("player id", playerID); err != nil {
		return err
	}
	s.match.Withdraw(sessionID, playerID)

	if connID != "" {
		if err := s.bus.RemoveFromGroup(ctx, connID, sessionID); err != nil {
			return fmt.Errorf("leave group: %w", err)
		}
	}
	if err := s.bus.SendToGroup(ctx, sessionID, types.EventPlayerLeft, types.PlayerLeft{PlayerID: playerID}); err != nil {
		s.logger.Warn("broadcast failed", zap.String("session_id", sessionID), zap.Error(err))
	}
	s.logger.Info("player left session", zap.String("session_id", sessionID), zap.String("player_id", playerID))
	return nil
}

// SendChat relays a message to everyone in the session. Only the
// session's players may talk in it.
func (s *Service) SendChat(ctx context.Context, sessionID, playerID, message string) error {
	if err := required("session id", sessionID); err != nil {
		return err
	}
	if err := required("player id", playerID); err != nil {
		return err
	}
	message = strings.TrimSpace(message)
	if err := required("message", message); err != nil {
		return err
	}
	if utf8.RuneCountInString(message) > MaxChatRunes {
		return fmt.Errorf("%w: message is longer than %d characters", ErrInvalidArgument, MaxChatRunes)
	}

	game, err := s.players.GetGame(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotInSession
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if !game.HasPlayer(playerID) {
		return ErrNotInSession
	}

	if err := s.bus.SendToGroup(ctx, sessionID, types.EventReceiveChat, types.ChatMessage{PlayerID: playerID, Message: message}); err != nil {
		return fmt.Errorf("send chat: %w", err)
	}
	return nil
}

func required(name, v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidArgument, name)
	}
	return nil
}
