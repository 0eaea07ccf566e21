package round

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/DoyleJ11/word-battle-backend/internal/engine"
	"github.com/DoyleJ11/word-battle-backend/internal/store"
	"github.com/DoyleJ11/word-battle-backend/pkg/types"
)

var (
	ErrGameNotFound     = errors.New("game not found")
	ErrNotParticipant   = errors.New("player is not in this game")
	ErrRoundStartFailed = errors.New("round start failed")
	ErrClosed           = errors.New("orchestrator closed")
)

type Broadcaster interface {
	SendToGroup(ctx context.Context, groupID, event string, payload any) error
	SendToPlayer(ctx context.Context, playerID, event string, payload any) error
	RemoveFromGroup(ctx context.Context, connID, groupID string) error
}

type WordSupplier interface {
	GenerateWord(ctx context.Context, language, difficulty string, playerIDs []string) (string, error)
}

// Bindings resolves a player's current connection, if one is known.
type Bindings interface {
	Lookup(playerID string) (string, bool)
}

type Repository interface {
	store.Games
	store.Rounds
	store.Answers
	RecordResult(ctx context.Context, playerID string, score int, result engine.Result) error
}

type Config struct {
	CountdownSeconds int
	Tick             time.Duration
}

type countdown struct {
	roundID string
	phase   engine.RoundPhase // guarded by Orchestrator.mu
	cancel  context.CancelFunc
	done    chan struct{}
}

// Orchestrator runs rounds from word selection to the final standings.
// Countdowns run on their own goroutines rooted in the orchestrator's
// lifetime, not the request that started them; Close stops them all.
type Orchestrator struct {
	repo     Repository
	words    WordSupplier
	bus      Broadcaster
	bindings Bindings
	cfg      Config
	logger   *zap.Logger
	now      func() time.Time

	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	countdowns map[string]*countdown
}

func NewOrchestrator(repo Repository, words WordSupplier, bus Broadcaster, bindings Bindings, cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.CountdownSeconds < 0 {
		cfg.CountdownSeconds = 0
	}
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	base, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		repo:       repo,
		words:      words,
		bus:        bus,
		bindings:   bindings,
		cfg:        cfg,
		logger:     logger.Named("round"),
		now:        time.Now,
		base:       base,
		cancel:     cancel,
		countdowns: make(map[string]*countdown),
	}
}

// StartRound picks a word, persists the round, announces it and arms its
// countdown. No round is created when the session or word lookup fails.
func (o *Orchestrator) StartRound(ctx context.Context, sessionID string, roundNumber int, language, difficulty string) error {
	if o.base.Err() != nil {
		return ErrClosed
	}
	log := o.logger.With(zap.String("session_id", sessionID), zap.Int("round_number", roundNumber))

	game, err := o.repo.GetGame(ctx, sessionID)
	if errors.Is(err, store.ErrNotFound) {
		log.Warn("session not found")
		o.broadcast(ctx, sessionID, types.EventGameNotFound, types.GameNotFound{SessionID: sessionID})
		return ErrGameNotFound
	}
	if err != nil {
		return o.failStart(ctx, log, sessionID, roundNumber, "session_unavailable", fmt.Errorf("load session: %w", err))
	}

	word, err := o.words.GenerateWord(ctx, language, difficulty, game.PlayerIDs())
	if err != nil {
		return o.failStart(ctx, log, sessionID, roundNumber, "word_unavailable", fmt.Errorf("generate word: %w", err))
	}

	r := &store.Round{
		ID:            uuid.NewString(),
		GameID:        sessionID,
		RoundNumber:   roundNumber,
		ScrambledWord: engine.Scramble(word),
		TrueWord:      word,
		Language:      language,
		Difficulty:    difficulty,
		CreatedAt:     o.now().UTC(),
	}
	if err := o.repo.CreateRound(ctx, r); err != nil {
		return o.failStart(ctx, log, sessionID, roundNumber, "storage_unavailable", fmt.Errorf("create round: %w", err))
	}
	log.Info("round started", zap.String("round_id", r.ID), zap.String("scrambled", r.ScrambledWord))
	log.Debug("round word", zap.String("round_id", r.ID), zap.String("word", word))

	// The handle exists before anyone learns the round id, so an answer
	// racing the announcement can still cancel it. Ticks wait for ready.
	cctx, cd := o.install(r.ID)
	ready := make(chan struct{})
	o.wg.Add(1)
	go o.runCountdown(cctx, cd, sessionID, ready)

	o.broadcast(ctx, sessionID, types.EventRoundStarted, types.RoundStarted{
		RoundID:          r.ID,
		ScrambledWord:    r.ScrambledWord,
		RoundNumber:      roundNumber,
		MaxRounds:        game.MaxRounds,
		CountdownSeconds: o.cfg.CountdownSeconds,
	})
	close(ready)
	return nil
}

func (o *Orchestrator) failStart(ctx context.Context, log *zap.Logger, sessionID string, roundNumber int, reason string, err error) error {
	log.Error("round start failed", zap.String("reason", reason), zap.Error(err))
	o.broadcast(ctx, sessionID, types.EventRoundStartFailed, types.RoundStartFailed{
		SessionID:   sessionID,
		RoundNumber: roundNumber,
		Reason:      reason,
	})
	return fmt.Errorf("%w: %w", ErrRoundStartFailed, err)
}

// SubmitAnswer records and announces an answer. A correct answer stops
// the countdown and ends the round on the caller's goroutine.
func (o *Orchestrator) SubmitAnswer(ctx context.Context, roundID, playerID, answer string) error {
	log := o.logger.With(zap.String("round_id", roundID), zap.String("player_id", playerID))

	r, err := o.repo.GetRound(ctx, roundID)
	if errors.Is(err, store.ErrNotFound) {
		log.Debug("answer for unknown round")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load round: %w", err)
	}
	if r.Ended() {
		log.Debug("answer for ended round")
		return nil
	}

	game, err := o.repo.GetGame(ctx, r.GameID)
	if errors.Is(err, store.ErrNotFound) {
		log.Warn("round belongs to unknown session", zap.String("session_id", r.GameID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if !game.HasPlayer(playerID) {
		return ErrNotParticipant
	}

	correct, score := engine.Judge(answer, r.TrueWord)
	rec := &store.AnswerRecord{
		PlayerID:  playerID,
		GameID:    r.GameID,
		RoundID:   r.ID,
		Word:      answer,
		Score:     score,
		IsCorrect: correct,
		Timestamp: o.now().UTC(),
	}
	if err := o.repo.RecordAnswer(ctx, rec); err != nil {
		return fmt.Errorf("record answer: %w", err)
	}

	o.broadcast(ctx, r.GameID, types.EventAnswerSubmitted, types.AnswerSubmitted{
		PlayerID:  playerID,
		Answer:    answer,
		IsCorrect: correct,
	})
	if !correct {
		o.notify(ctx, playerID, types.EventIncorrectAnswer, types.IncorrectAnswer{RoundID: r.ID, Answer: answer})
		return nil
	}
	o.notify(ctx, playerID, types.EventCorrectAnswer, types.CorrectAnswer{RoundID: r.ID, TrueWord: r.TrueWord})

	o.CancelCountdown(roundID)
	winner := playerID
	return o.endRound(context.WithoutCancel(ctx), roundID, &winner)
}

// EndRound ends a round without a winner. Calling it for a round that
// already ended does nothing.
func (o *Orchestrator) EndRound(ctx context.Context, roundID string) error {
	return o.endRound(ctx, roundID, nil)
}

func (o *Orchestrator) endRound(ctx context.Context, roundID string, winnerID *string) error {
	log := o.logger.With(zap.String("round_id", roundID))

	r, err := o.repo.GetRound(ctx, roundID)
	if errors.Is(err, store.ErrNotFound) {
		log.Debug("end for unknown round")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load round: %w", err)
	}
	log = log.With(zap.String("session_id", r.GameID), zap.Int("round_number", r.RoundNumber))

	game, err := o.repo.GetGame(ctx, r.GameID)
	if errors.Is(err, store.ErrNotFound) {
		log.Warn("round belongs to unknown session")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	won, err := o.repo.EndRound(ctx, roundID, winnerID, o.now().UTC())
	if err != nil {
		return fmt.Errorf("end round: %w", err)
	}
	if !won {
		log.Debug("round already ended")
		return nil
	}
	o.CancelCountdown(roundID)

	o.broadcast(ctx, r.GameID, types.EventRoundEnded, types.RoundEnded{
		RoundID:        r.ID,
		TrueWord:       r.TrueWord,
		WinnerPlayerID: winnerID,
	})
	log.Info("round ended", zap.Stringp("winner", winnerID))

	if r.RoundNumber < game.MaxRounds {
		return o.StartRound(ctx, game.ID, r.RoundNumber+1, r.Language, r.Difficulty)
	}
	return o.finishGame(ctx, log, game)
}

func (o *Orchestrator) finishGame(ctx context.Context, log *zap.Logger, game *store.Game) error {
	records, err := o.repo.AnswersForGame(ctx, game.ID)
	if err != nil {
		return fmt.Errorf("load answers: %w", err)
	}
	answers := make([]engine.Answer, len(records))
	for i, rec := range records {
		answers[i] = engine.Answer{PlayerID: rec.PlayerID, Score: rec.Score}
	}

	playerIDs := game.PlayerIDs()
	outcome := engine.Tally(playerIDs, answers)

	var errs error
	scores := make(map[string]int, len(outcome.Standings))
	for _, st := range outcome.Standings {
		scores[st.PlayerID] = st.Score
		if err := o.repo.RecordResult(ctx, st.PlayerID, st.Score, st.Result); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("record result for %s: %w", st.PlayerID, err))
		}
	}
	if errs != nil {
		log.Error("failed to persist player stats", zap.Error(errs))
	}

	names := make(map[string]string, len(game.Participants))
	for _, p := range game.Participants {
		names[p.PlayerID] = p.Player.Name
	}
	participants := make([]types.Participant, len(playerIDs))
	for i, id := range playerIDs {
		participants[i] = types.Participant{ID: id, Name: names[id], Score: scores[id]}
	}

	o.broadcast(ctx, game.ID, types.EventGameEnded, types.GameEnded{
		SessionID:       game.ID,
		Participants:    participants,
		WinnerPlayerIDs: outcome.Winners,
	})
	log.Info("game ended", zap.Strings("winners", outcome.Winners), zap.Bool("draw", outcome.Draw))

	if o.bindings != nil {
		for _, id := range playerIDs {
			connID, ok := o.bindings.Lookup(id)
			if !ok {
				continue
			}
			if err := o.bus.RemoveFromGroup(ctx, connID, game.ID); err != nil {
				log.Debug("remove from group failed", zap.String("player_id", id), zap.Error(err))
			}
		}
	}
	return errs
}

// CancelCountdown stops a round's countdown and waits for its goroutine
// to exit. It is a no-op when the round has no live countdown.
func (o *Orchestrator) CancelCountdown(roundID string) {
	o.mu.Lock()
	cd := o.countdowns[roundID]
	if cd == nil {
		o.mu.Unlock()
		return
	}
	delete(o.countdowns, roundID)
	cd.phase = engine.PhaseEnded
	o.mu.Unlock()

	cd.cancel()
	<-cd.done
}

// ActiveCountdowns reports how many rounds currently have a live countdown.
func (o *Orchestrator) ActiveCountdowns() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.countdowns)
}

// Close cancels every countdown and waits for them to exit.
func (o *Orchestrator) Close() {
	o.cancel()
	o.wg.Wait()
}

func (o *Orchestrator) install(roundID string) (context.Context, *countdown) {
	ctx, cancel := context.WithCancel(o.base)
	phase, _ := engine.PhaseCreated.Transition(engine.PhaseCountingDown)
	cd := &countdown{roundID: roundID, phase: phase, cancel: cancel, done: make(chan struct{})}

	o.mu.Lock()
	stale := o.countdowns[roundID]
	if stale != nil {
		stale.phase = engine.PhaseEnded
	}
	o.countdowns[roundID] = cd
	o.mu.Unlock()

	if stale != nil {
		o.logger.Warn("replaced stale countdown", zap.String("round_id", roundID))
		stale.cancel()
	}
	return ctx, cd
}

// expire claims the end of the round for the timer. It fails when the
// countdown was cancelled first.
func (o *Orchestrator) expire(cd *countdown) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	next, err := cd.phase.Transition(engine.PhaseEnded)
	if err != nil {
		return false
	}
	cd.phase = next
	if o.countdowns[cd.roundID] == cd {
		delete(o.countdowns, cd.roundID)
	}
	return true
}

func (o *Orchestrator) forget(cd *countdown) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.countdowns[cd.roundID] == cd {
		delete(o.countdowns, cd.roundID)
	}
}

func (o *Orchestrator) runCountdown(ctx context.Context, cd *countdown, sessionID string, ready <-chan struct{}) {
	defer o.wg.Done()
	defer close(cd.done)
	defer o.forget(cd)
	defer o.recoverTask("countdown", zap.String("round_id", cd.roundID))

	log := o.logger.With(zap.String("round_id", cd.roundID), zap.String("session_id", sessionID))

	select {
	case <-ctx.Done():
		log.Debug("countdown cancelled before start")
		return
	case <-ready:
	}

	ticker := time.NewTicker(o.cfg.Tick)
	defer ticker.Stop()

	for remaining := o.cfg.CountdownSeconds; remaining >= 0; remaining-- {
		err := o.bus.SendToGroup(ctx, sessionID, types.EventCountdownTick, types.CountdownTick{
			RoundID:          cd.roundID,
			SecondsRemaining: remaining,
		})
		if err != nil && ctx.Err() == nil {
			log.Warn("countdown tick not delivered", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			log.Debug("countdown cancelled")
			return
		case <-ticker.C:
		}
	}

	if !o.expire(cd) {
		log.Debug("countdown lost race to cancellation")
		return
	}
	if err := o.endRound(o.base, cd.roundID, nil); err != nil {
		log.Error("end round after countdown failed", zap.Error(err))
	}
}

func (o *Orchestrator) broadcast(ctx context.Context, groupID, event string, payload any) {
	if err := o.bus.SendToGroup(ctx, groupID, event, payload); err != nil {
		o.logger.Warn("broadcast failed",
			zap.String("group", groupID), zap.String("event", event), zap.Error(err))
	}
}

func (o *Orchestrator) notify(ctx context.Context, playerID, event string, payload any) {
	if err := o.bus.SendToPlayer(ctx, playerID, event, payload); err != nil {
		o.logger.Warn("notify failed",
			zap.String("player_id", playerID), zap.String("event", event), zap.Error(err))
	}
}

func (o *Orchestrator) recoverTask(task string, fields ...zap.Field) {
	if p := recover(); p != nil {
		o.logger.Error("background task panicked",
			append(fields, zap.String("task", task), zap.Any("panic", p))...)
	}
}
