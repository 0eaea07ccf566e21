package store

import (
	"context"
	"errors"
	"time"

	"github.com/DoyleJ11/word-battle-backend/internal/engine"
)

var ErrNotFound = errors.New("record not found")
var ErrDuplicate = errors.New("record already exists")

type Players interface {
	UpsertPlayer(ctx context.Context, p *Player) error
	GetPlayers(ctx context.Context, ids []string) ([]Player, error)
	GetStats(ctx context.Context, playerID string) (*PlayerStats, error)
	// RecordResult folds one finished game into the player's stats,
	// creating the stats row on first use.
	RecordResult(ctx context.Context, playerID string, score int, result engine.Result) error
}

type Games interface {
	CreateGame(ctx context.Context, g *Game) error
	GetGame(ctx context.Context, id string) (*Game, error)
}

type Rounds interface {
	CreateRound(ctx context.Context, r *Round) error
	GetRound(ctx context.Context, id string) (*Round, error)
	ListRounds(ctx context.Context, gameID string) ([]Round, error)
	// EndRound marks the round ended if it is still open and reports
	// whether this call performed the transition.
	EndRound(ctx context.Context, id string, winnerID *string, at time.Time) (bool, error)
}

type Answers interface {
	RecordAnswer(ctx context.Context, a *AnswerRecord) error
	AnswersForGame(ctx context.Context, gameID string) ([]AnswerRecord, error)
}

type WordHistories interface {
	RecentWords(ctx context.Context, userIDs []string, since time.Time) ([]string, error)
	WordUsed(ctx context.Context, word string, userIDs []string, since time.Time) (bool, error)
	RecordWord(ctx context.Context, word string, userIDs []string, at time.Time) error
}

// Store is every repository the server needs.
type Store interface {
	Players
	Games
	Rounds
	Answers
	WordHistories
}

func applyResult(st *PlayerStats, score int, result engine.Result) {
	st.TotalGames++
	st.TotalScore += score
	if score > st.HighestScore {
		st.HighestScore = score
	}
	switch result {
	case engine.ResultWin:
		st.Win++
	case engine.ResultLoss:
		st.Lose++
	default:
		st.Draw++
	}
}
