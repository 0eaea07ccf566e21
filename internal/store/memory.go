package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DoyleJ11/word-battle-backend/internal/engine"
)

// Memory is an in-process Store. Records are copied on the way in and out
// so callers never share mutable state with the store.
type Memory struct {
	mu      sync.RWMutex
	players map[string]Player
	stats   map[string]PlayerStats
	games   map[string]Game
	rounds  map[string]Round
	answers []AnswerRecord
	words   []WordHistory
	nextID  uint
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		players: make(map[string]Player),
		stats:   make(map[string]PlayerStats),
		games:   make(map[string]Game),
		rounds:  make(map[string]Round),
	}
}

func (m *Memory) UpsertPlayer(_ context.Context, p *Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	m.players[p.ID] = *p
	return nil
}

func (m *Memory) GetPlayers(_ context.Context, ids []string) ([]Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Player, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.players[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *Memory) GetStats(_ context.Context, playerID string) (*PlayerStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.stats[playerID]
	if !ok {
		return nil, ErrNotFound
	}
	return &st, nil
}

func (m *Memory) RecordResult(_ context.Context, playerID string, score int, result engine.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.stats[playerID]
	if !ok {
		st = PlayerStats{ID: uuid.NewString(), PlayerID: playerID}
	}
	applyResult(&st, score, result)
	st.UpdatedAt = time.Now().UTC()
	m.stats[playerID] = st
	return nil
}

func (m *Memory) CreateGame(_ context.Context, g *Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.games[g.ID]; ok {
		return ErrDuplicate
	}
	for i := range g.Participants {
		g.Participants[i].GameID = g.ID
		if p, ok := m.players[g.Participants[i].PlayerID]; ok {
			g.Participants[i].Player = p
		}
	}
	cp := *g
	cp.Participants = slices.Clone(g.Participants)
	m.games[g.ID] = cp
	return nil
}

func (m *Memory) GetGame(_ context.Context, id string) (*Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[id]
	if !ok {
		return nil, ErrNotFound
	}
	g.Participants = slices.Clone(g.Participants)
	return &g, nil
}

func (m *Memory) CreateRound(_ context.Context, r *Round) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rounds[r.ID]; ok {
		return ErrDuplicate
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	m.rounds[r.ID] = *r
	return nil
}

func (m *Memory) GetRound(_ context.Context, id string) (*Round, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rounds[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *Memory) ListRounds(_ context.Context, gameID string) ([]Round, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Round
	for _, r := range m.rounds {
		if r.GameID == gameID {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b Round) int { return a.RoundNumber - b.RoundNumber })
	return out, nil
}

func (m *Memory) EndRound(_ context.Context, id string, winnerID *string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rounds[id]
	if !ok {
		return false, ErrNotFound
	}
	if r.EndedAt != nil {
		return false, nil
	}
	r.EndedAt = &at
	r.WinnerID = winnerID
	m.rounds[id] = r
	return true, nil
}

func (m *Memory) RecordAnswer(_ context.Context, a *AnswerRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	a.ID = m.nextID
	m.answers = append(m.answers, *a)
	return nil
}

func (m *Memory) AnswersForGame(_ context.Context, gameID string) ([]AnswerRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []AnswerRecord
	for _, a := range m.answers {
		if a.GameID == gameID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *Memory) RecentWords(_ context.Context, userIDs []string, since time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	for _, w := range m.words {
		if !w.Timestamp.Before(since) && slices.Contains(userIDs, w.UserID) && !slices.Contains(out, w.Word) {
			out = append(out, w.Word)
		}
	}
	return out, nil
}

func (m *Memory) WordUsed(_ context.Context, word string, userIDs []string, since time.Time) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, w := range m.words {
		if w.Word == word && !w.Timestamp.Before(since) && slices.Contains(userIDs, w.UserID) {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) RecordWord(_ context.Context, word string, userIDs []string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range userIDs {
		m.nextID++
		m.words = append(m.words, WordHistory{ID: m.nextID, UserID: id, Word: word, Timestamp: at})
	}
	return nil
}
