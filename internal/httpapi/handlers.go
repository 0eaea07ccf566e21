package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/word-battle-backend/internal/store"
)

// Reader is the read-only slice of the store the HTTP API exposes.
type Reader interface {
	GetStats(ctx context.Context, playerID string) (*store.PlayerStats, error)
	GetGame(ctx context.Context, id string) (*store.Game, error)
	ListRounds(ctx context.Context, gameID string) ([]store.Round, error)
}

type statsView struct {
	PlayerID     string `json:"playerId"`
	TotalGames   int    `json:"totalGames"`
	TotalScore   int    `json:"totalScore"`
	HighestScore int    `json:"highestScore"`
	Win          int    `json:"win"`
	Lose         int    `json:"lose"`
	Draw         int    `json:"draw"`
}

type playerView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Seat int    `json:"seat"`
}

type roundView struct {
	ID            string     `json:"id"`
	RoundNumber   int        `json:"roundNumber"`
	ScrambledWord string     `json:"scrambledWord"`
	TrueWord      string     `json:"trueWord,omitempty"` // only once ended
	WinnerID      *string    `json:"winnerId"`
	EndedAt       *time.Time `json:"endedAt"`
}

type sessionView struct {
	ID        string       `json:"id"`
	MaxRounds int          `json:"maxRounds"`
	CreatedAt time.Time    `json:"createdAt"`
	Players   []playerView `json:"players"`
	Rounds    []roundView  `json:"rounds"`
}

func PlayerStats(rd Reader, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		st, err := rd.GetStats(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			// a player who never finished a game has all-zero stats
			writeJSON(w, http.StatusOK, statsView{PlayerID: id})
			return
		}
		if err != nil {
			logger.Error("load stats", zap.String("player_id", id), zap.Error(err))
			http.Error(w, "failed to load stats", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, statsView{
			PlayerID:     st.PlayerID,
			TotalGames:   st.TotalGames,
			TotalScore:   st.TotalScore,
			HighestScore: st.HighestScore,
			Win:          st.Win,
			Lose:         st.Lose,
			Draw:         st.Draw,
		})
	}
}

func Session(rd Reader, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		g, err := rd.GetGame(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		if err != nil {
			logger.Error("load session", zap.String("session_id", id), zap.Error(err))
			http.Error(w, "failed to load session", http.StatusInternalServerError)
			return
		}
		rounds, err := rd.ListRounds(r.Context(), id)
		if err != nil {
			logger.Error("load rounds", zap.String("session_id", id), zap.Error(err))
			http.Error(w, "failed to load session", http.StatusInternalServerError)
			return
		}

		view := sessionView{
			ID:        g.ID,
			MaxRounds: g.MaxRounds,
			CreatedAt: g.CreatedAt,
			Players:   make([]playerView, 0, len(g.Participants)),
			Rounds:    make([]roundView, 0, len(rounds)),
		}
		for _, p := range g.Participants {
			view.Players = append(view.Players, playerView{ID: p.PlayerID, Name: p.Player.Name, Seat: p.Seat})
		}
		slices.SortFunc(view.Players, func(a, b playerView) int { return a.Seat - b.Seat })
		for _, rnd := range rounds {
			rv := roundView{
				ID:            rnd.ID,
				RoundNumber:   rnd.RoundNumber,
				ScrambledWord: rnd.ScrambledWord,
				WinnerID:      rnd.WinnerID,
				EndedAt:       rnd.EndedAt,
			}
			if rnd.Ended() {
				rv.TrueWord = rnd.TrueWord
			}
			view.Rounds = append(view.Rounds, rv)
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
