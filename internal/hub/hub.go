package hub

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

var ErrHubClosed = errors.New("hub closed")

// Envelope is one named event on its way to a connection.
type Envelope struct {
	Event   string
	Payload any
}

type HubMsg interface{ isHubMsg() }

type Register struct {
	ConnID   string
	PlayerID string
	Outbox   chan Envelope // closed by the hub when the connection is dropped
}

type Unregister struct{ ConnID string }

type AddToGroup struct {
	ConnID  string
	GroupID string
}

type RemoveFromGroup struct {
	ConnID  string
	GroupID string
}

type SendGroup struct {
	GroupID string
	Env     Envelope
}

type SendPlayer struct {
	PlayerID string
	Env      Envelope
}

type GetView struct {
	Reply chan View
}

type ShutdownHub struct{}

func (Register) isHubMsg()        {}
func (Unregister) isHubMsg()      {}
func (AddToGroup) isHubMsg()      {}
func (RemoveFromGroup) isHubMsg() {}
func (SendGroup) isHubMsg()       {}
func (SendPlayer) isHubMsg()      {}
func (GetView) isHubMsg()         {}
func (ShutdownHub) isHubMsg()     {}

// View is a point-in-time copy of the hub's bookkeeping.
type View struct {
	NumConns int
	Groups   map[string][]string // group -> conn ids
}

type conn struct {
	playerID string
	outbox   chan Envelope
	groups   map[string]struct{}
}

// Hub owns every live connection, the session groups and the
// player -> connections index. All of it is touched only by loop, so
// events from one sender reach members in the order they were sent.
type Hub struct {
	inbox   chan HubMsg
	conns   map[string]*conn
	groups  map[string]map[string]struct{}
	players map[string]map[string]struct{}
	logger  *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewHub(parent context.Context, logger *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:   make(chan HubMsg, 256),
		conns:   make(map[string]*conn),
		groups:  make(map[string]map[string]struct{}),
		players: make(map[string]map[string]struct{}),
		logger:  logger.Named("hub"),
		ctx:     ctx,
		cancel:  cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) send(ctx context.Context, m HubMsg) error {
	select {
	case <-h.ctx.Done():
		return ErrHubClosed
	default:
	}
	select {
	case h.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-h.ctx.Done():
		return ErrHubClosed
	}
}

func (h *Hub) Register(ctx context.Context, connID, playerID string, outbox chan Envelope) error {
	return h.send(ctx, Register{ConnID: connID, PlayerID: playerID, Outbox: outbox})
}

func (h *Hub) Unregister(ctx context.Context, connID string) error {
	return h.send(ctx, Unregister{ConnID: connID})
}

func (h *Hub) AddToGroup(ctx context.Context, connID, groupID string) error {
	return h.send(ctx, AddToGroup{ConnID: connID, GroupID: groupID})
}

func (h *Hub) RemoveFromGroup(ctx context.Context, connID, groupID string) error {
	return h.send(ctx, RemoveFromGroup{ConnID: connID, GroupID: groupID})
}

func (h *Hub) SendToGroup(ctx context.Context, groupID, event string, payload any) error {
	return h.send(ctx, SendGroup{GroupID: groupID, Env: Envelope{Event: event, Payload: payload}})
}

func (h *Hub) SendToPlayer(ctx context.Context, playerID, event string, payload any) error {
	return h.send(ctx, SendPlayer{PlayerID: playerID, Env: Envelope{Event: event, Payload: payload}})
}

func (h *Hub) Shutdown() {
	select {
	case h.inbox <- ShutdownHub{}:
	case <-h.ctx.Done():
	}
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Register:
				if old := h.conns[msg.ConnID]; old != nil {
					h.drop(msg.ConnID)
				}
				h.conns[msg.ConnID] = &conn{
					playerID: msg.PlayerID,
					outbox:   msg.Outbox,
					groups:   make(map[string]struct{}),
				}
				if msg.PlayerID != "" {
					addMember(h.players, msg.PlayerID, msg.ConnID)
				}

			case Unregister:
				h.drop(msg.ConnID)

			case AddToGroup:
				c := h.conns[msg.ConnID]
				if c == nil {
					h.logger.Debug("add to group for unknown connection",
						zap.String("conn_id", msg.ConnID), zap.String("group", msg.GroupID))
					break
				}
				c.groups[msg.GroupID] = struct{}{}
				addMember(h.groups, msg.GroupID, msg.ConnID)

			case RemoveFromGroup:
				if c := h.conns[msg.ConnID]; c != nil {
					delete(c.groups, msg.GroupID)
				}
				removeMember(h.groups, msg.GroupID, msg.ConnID)

			case SendGroup:
				for connID := range h.groups[msg.GroupID] {
					h.deliver(connID, msg.Env)
				}

			case SendPlayer:
				for connID := range h.players[msg.PlayerID] {
					h.deliver(connID, msg.Env)
				}

			case GetView:
				v := View{NumConns: len(h.conns), Groups: make(map[string][]string, len(h.groups))}
				for g, members := range h.groups {
					for id := range members {
						v.Groups[g] = append(v.Groups[g], id)
					}
				}
				msg.Reply <- v

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) deliver(connID string, env Envelope) {
	c := h.conns[connID]
	if c == nil {
		return
	}
	select {
	case c.outbox <- env:
		// ok
	default:
		// Client is slow/full - drop them.
		h.logger.Warn("dropping slow connection",
			zap.String("conn_id", connID), zap.String("player_id", c.playerID), zap.String("event", env.Event))
		h.drop(connID)
	}
}

func (h *Hub) drop(connID string) {
	c := h.conns[connID]
	if c == nil {
		return
	}
	for g := range c.groups {
		removeMember(h.groups, g, connID)
	}
	if c.playerID != "" {
		removeMember(h.players, c.playerID, connID)
	}
	delete(h.conns, connID)
	close(c.outbox)
}

func (h *Hub) shutdown() {
	h.cancel()
	for id := range h.conns {
		h.drop(id)
	}
}

func addMember(index map[string]map[string]struct{}, key, connID string) {
	members := index[key]
	if members == nil {
		members = make(map[string]struct{})
		index[key] = members
	}
	members[connID] = struct{}{}
}

func removeMember(index map[string]map[string]struct{}, key, connID string) {
	members := index[key]
	if members == nil {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(index, key)
	}
}
