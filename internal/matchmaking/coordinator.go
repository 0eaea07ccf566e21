package matchmaking

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/word-battle-backend/internal/store"
	"github.com/DoyleJ11/word-battle-backend/pkg/types"
)

var (
	ErrNotMatched      = errors.New("player is not pending in this session")
	ErrPlayersNotFound = errors.New("matched players not found")
)

const (
	msgJoinTimeout = "You did not join the game in time."
	msgPeerTimeout = "The other player did not join the game in time."
	msgPeerLeft    = "The other player left the match."
)

// abandonCause says why a pending session was given up.
type abandonCause int

const (
	causeTimeout abandonCause = iota
	causeLeft
)

type Broadcaster interface {
	SendToPlayer(ctx context.Context, playerID, event string, payload any) error
	SendToGroup(ctx context.Context, groupID, event string, payload any) error
	AddToGroup(ctx context.Context, connID, groupID string) error
	RemoveFromGroup(ctx context.Context, connID, groupID string) error
}

type RoundStarter interface {
	StartRound(ctx context.Context, sessionID string, roundNumber int, language, difficulty string) error
}

type Store interface {
	GetPlayers(ctx context.Context, ids []string) ([]store.Player, error)
	CreateGame(ctx context.Context, g *store.Game) error
}

type Config struct {
	JoinGrace  time.Duration
	MaxRounds  int
	Language   string
	Difficulty string
}

// pending is the join status of a matched session that has not started.
type pending struct {
	expected []string // seat order
	joined   map[string]struct{}
}

type grace struct {
	sessionID string
	cancel    context.CancelFunc
}

// Coordinator pairs queued players and supervises their joins. The
// queue, the join status and the grace handles each have their own lock;
// no lock is held across a store or broadcast call.
type Coordinator struct {
	store  Store
	bus    Broadcaster
	rounds RoundStarter
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	queueMu sync.Mutex
	queue   []string

	joinMu sync.Mutex
	joins  map[string]*pending // session id

	graceMu sync.Mutex
	graces  map[string]*grace // player id
}

func NewCoordinator(st Store, bus Broadcaster, rounds RoundStarter, cfg Config, logger *zap.Logger) *Coordinator {
	if cfg.JoinGrace <= 0 {
		cfg.JoinGrace = 10 * time.Second
	}
	if cfg.MaxRounds < 1 {
		cfg.MaxRounds = 5
	}
	base, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		store:  st,
		bus:    bus,
		rounds: rounds,
		cfg:    cfg,
		logger: logger.Named("matchmaking"),
		now:    time.Now,
		base:   base,
		cancel: cancel,
		joins:  make(map[string]*pending),
		graces: make(map[string]*grace),
	}
}

// Enqueue adds the player to the waiting queue once and acknowledges.
// Queueing again gives up any match the player has not started yet.
// When two players are waiting the oldest two are paired into a new
// session; a pairing failure is reported to both and returned.
func (c *Coordinator) Enqueue(ctx context.Context, playerID string) error {
	for _, sessionID := range c.pendingFor(playerID) {
		c.logger.Info("requeued player leaves pending match",
			zap.String("session_id", sessionID), zap.String("player_id", playerID))
		c.abandon(sessionID, playerID, causeLeft)
	}

	c.queueMu.Lock()
	if !slices.Contains(c.queue, playerID) {
		c.queue = append(c.queue, playerID)
	}
	var pair []string
	if len(c.queue) >= 2 {
		pair = slices.Clone(c.queue[:2])
		c.queue = slices.Delete(c.queue, 0, 2)
	}
	c.queueMu.Unlock()

	c.notify(ctx, playerID, types.EventMatchMakingJoined, types.MatchMakingJoined{PlayerID: playerID})
	if pair == nil {
		c.logger.Debug("player queued", zap.String("player_id", playerID))
		return nil
	}
	return c.pair(context.WithoutCancel(ctx), pair)
}

// Dequeue removes the player from the waiting queue if present.
func (c *Coordinator) Dequeue(ctx context.Context, playerID string) error {
	c.removeFromQueue(playerID)
	c.notify(ctx, playerID, types.EventMatchMakingLeft, types.MatchMakingLeft{PlayerID: playerID})
	return nil
}

// Queue returns the waiting players, oldest first.
func (c *Coordinator) Queue() []string {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	return slices.Clone(c.queue)
}

func (c *Coordinator) removeFromQueue(playerID string) {
	c.queueMu.Lock()
	defer c.queueMu.Unlock()
	if i := slices.Index(c.queue, playerID); i >= 0 {
		c.queue = slices.Delete(c.queue, i, i+1)
	}
}

func (c *Coordinator) pair(ctx context.Context, ids []string) error {
	log := c.logger.With(zap.Strings("player_ids", ids))

	players, err := c.store.GetPlayers(ctx, ids)
	if err != nil || len(players) != len(ids) {
		if err == nil {
			err = ErrPlayersNotFound
		}
		log.Warn("pairing aborted", zap.Error(err))
		c.failAll(ctx, ids, types.ReasonPlayersNotFound, "Could not find the matched players.")
		return fmt.Errorf("resolve players: %w", err)
	}

	g := &store.Game{
		ID:        uuid.NewString(),
		MaxRounds: c.cfg.MaxRounds,
		CreatedAt: c.now().UTC(),
	}
	for seat, id := range ids {
		g.Participants = append(g.Participants, store.GamePlayer{PlayerID: id, Seat: seat})
	}
	if err := c.store.CreateGame(ctx, g); err != nil {
		log.Error("create session failed", zap.Error(err))
		c.failAll(ctx, ids, types.ReasonSessionCreate, "Could not create the game session.")
		return fmt.Errorf("create session: %w", err)
	}

	// Join state and timers exist before anyone can learn the session id.
	c.joinMu.Lock()
	c.joins[g.ID] = &pending{expected: ids, joined: make(map[string]struct{}, len(ids))}
	c.joinMu.Unlock()
	for _, id := range ids {
		c.armGrace(g.ID, id)
	}

	log.Info("match found", zap.String("session_id", g.ID))
	for _, id := range ids {
		c.notify(ctx, id, types.EventMatchFound, types.MatchFound{SessionID: g.ID, MatchedPlayerIDs: ids})
	}
	return nil
}

// ConfirmJoin records the player as present and adds connID to the
// session group. The last confirmation announces the game and starts
// round 1; it happens exactly once per session.
func (c *Coordinator) ConfirmJoin(ctx context.Context, sessionID, playerID, connID string) error {
	log := c.logger.With(zap.String("session_id", sessionID), zap.String("player_id", playerID))

	if !c.expects(sessionID, playerID) {
		log.Debug("join rejected")
		return ErrNotMatched
	}
	if connID != "" {
		if err := c.bus.AddToGroup(ctx, connID, sessionID); err != nil {
			return fmt.Errorf("add to group: %w", err)
		}
	}

	c.joinMu.Lock()
	p := c.joins[sessionID]
	if p == nil {
		c.joinMu.Unlock()
		// abandoned between the check and now
		if connID != "" {
			_ = c.bus.RemoveFromGroup(ctx, connID, sessionID)
		}
		return ErrNotMatched
	}
	c.cancelGrace(playerID, sessionID)
	p.joined[playerID] = struct{}{}
	ready := len(p.joined) == len(p.expected)
	if ready {
		delete(c.joins, sessionID)
	}
	c.joinMu.Unlock()

	if !ready {
		log.Debug("waiting for other players")
		return nil
	}

	log.Info("all players joined")
	if err := c.bus.SendToGroup(ctx, sessionID, types.EventAllPlayersJoined, types.AllPlayersJoined{SessionID: sessionID}); err != nil {
		log.Warn("broadcast failed", zap.String("event", types.EventAllPlayersJoined), zap.Error(err))
	}
	return c.rounds.StartRound(context.WithoutCancel(ctx), sessionID, 1, c.cfg.Language, c.cfg.Difficulty)
}

// pendingFor lists the sessions still waiting on joins that include playerID.
func (c *Coordinator) pendingFor(playerID string) []string {
	c.joinMu.Lock()
	defer c.joinMu.Unlock()
	var ids []string
	for id, p := range c.joins {
		if slices.Contains(p.expected, playerID) {
			ids = append(ids, id)
		}
	}
	return ids
}

func (c *Coordinator) expects(sessionID, playerID string) bool {
	c.joinMu.Lock()
	defer c.joinMu.Unlock()
	p := c.joins[sessionID]
	return p != nil && slices.Contains(p.expected, playerID)
}

// Withdraw drops a player out of matchmaking entirely. If their session
// was still waiting for joins it is abandoned and the others are told
// the player left.
func (c *Coordinator) Withdraw(sessionID, playerID string) {
	c.removeFromQueue(playerID)
	if !c.expects(sessionID, playerID) {
		c.cancelGrace(playerID, sessionID)
		return
	}
	c.abandon(sessionID, playerID, causeLeft)
}

// Close stops every grace timer and waits for them to exit.
func (c *Coordinator) Close() {
	c.cancel()
	c.wg.Wait()
}

func (c *Coordinator) armGrace(sessionID, playerID string) {
	ctx, cancel := context.WithCancel(c.base)
	g := &grace{sessionID: sessionID, cancel: cancel}

	c.graceMu.Lock()
	old := c.graces[playerID]
	if old != nil {
		old.cancel()
	}
	c.graces[playerID] = g
	c.graceMu.Unlock()

	c.wg.Add(1)
	go c.runGrace(ctx, g, playerID)

	// A handle from another match means that match lost this player.
	if old != nil && old.sessionID != sessionID {
		c.abandon(old.sessionID, playerID, causeLeft)
	}
}

// cancelGrace removes and stops the player's timer for sessionID.
func (c *Coordinator) cancelGrace(playerID, sessionID string) {
	c.graceMu.Lock()
	g := c.graces[playerID]
	if g == nil || g.sessionID != sessionID {
		c.graceMu.Unlock()
		return
	}
	delete(c.graces, playerID)
	c.graceMu.Unlock()
	g.cancel()
}

// claimGrace lets a fired timer take its own handle. It fails when a
// confirmation or a newer match already replaced it.
func (c *Coordinator) claimGrace(playerID string, g *grace) bool {
	c.graceMu.Lock()
	defer c.graceMu.Unlock()
	if c.graces[playerID] != g {
		return false
	}
	delete(c.graces, playerID)
	return true
}

func (c *Coordinator) runGrace(ctx context.Context, g *grace, playerID string) {
	defer c.wg.Done()
	defer g.cancel()
	defer c.recoverTask("join grace", zap.String("session_id", g.sessionID), zap.String("player_id", playerID))

	t := time.NewTimer(c.cfg.JoinGrace)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return
	case <-t.C:
	}

	if !c.claimGrace(playerID, g) {
		return
	}
	c.logger.Info("join grace expired", zap.String("session_id", g.sessionID), zap.String("player_id", playerID))
	c.abandon(g.sessionID, playerID, causeTimeout)
}

// abandon discards a pending session and tells every matched player why.
// A player who left is not told. Only the first caller for a session
// does anything.
func (c *Coordinator) abandon(sessionID, culprit string, cause abandonCause) {
	c.joinMu.Lock()
	p := c.joins[sessionID]
	delete(c.joins, sessionID)
	c.joinMu.Unlock()
	if p == nil {
		return
	}

	ctx := c.base
	for _, id := range p.expected {
		c.cancelGrace(id, sessionID)
		c.removeFromQueue(id)

		var failed types.MatchMakingFailed
		_, joined := p.joined[id]
		switch {
		case cause == causeLeft && id == culprit:
			continue
		case cause == causeLeft:
			failed = types.MatchMakingFailed{Reason: types.ReasonPeerLeft, Message: msgPeerLeft}
		case id == culprit || !joined:
			failed = types.MatchMakingFailed{Reason: types.ReasonJoinTimeout, Message: msgJoinTimeout}
		default:
			failed = types.MatchMakingFailed{Reason: types.ReasonPeerTimeout, Message: msgPeerTimeout}
		}
		c.notify(ctx, id, types.EventMatchMakingFailed, failed)
	}
}

func (c *Coordinator) failAll(ctx context.Context, ids []string, reason, message string) {
	for _, id := range ids {
		c.notify(ctx, id, types.EventMatchMakingFailed, types.MatchMakingFailed{Reason: reason, Message: message})
	}
}

func (c *Coordinator) notify(ctx context.Context, playerID, event string, payload any) {
	if err := c.bus.SendToPlayer(ctx, playerID, event, payload); err != nil {
		c.logger.Warn("notify failed",
			zap.String("player_id", playerID), zap.String("event", event), zap.Error(err))
	}
}

func (c *Coordinator) recoverTask(task string, fields ...zap.Field) {
	if p := recover(); p != nil {
		c.logger.Error("background task panicked",
			append(fields, zap.String("task", task), zap.Any("panic", p))...)
	}
}
