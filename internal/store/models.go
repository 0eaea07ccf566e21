package store

import (
	"sort"
	"time"
)

type Player struct {
	ID        string `gorm:"primaryKey"`
	Name      string `gorm:"not null"`
	CreatedAt time.Time
}

type PlayerStats struct {
	ID           string `gorm:"primaryKey"`
	PlayerID     string `gorm:"uniqueIndex;not null"`
	TotalGames   int
	TotalScore   int
	HighestScore int
	Win          int
	Lose         int
	Draw         int
	UpdatedAt    time.Time
}

// Game is a session between a fixed set of players.
type Game struct {
	ID           string `gorm:"primaryKey"`
	MaxRounds    int    `gorm:"not null"`
	CreatedAt    time.Time
	Participants []GamePlayer `gorm:"foreignKey:GameID"`
}

type GamePlayer struct {
	GameID   string `gorm:"primaryKey"`
	PlayerID string `gorm:"primaryKey"`
	Seat     int    `gorm:"not null"`
	Player   Player `gorm:"foreignKey:PlayerID"`
}

// PlayerIDs returns the participant ids in seat order.
func (g *Game) PlayerIDs() []string {
	seats := make([]GamePlayer, len(g.Participants))
	copy(seats, g.Participants)
	sort.Slice(seats, func(i, j int) bool { return seats[i].Seat < seats[j].Seat })

	ids := make([]string, len(seats))
	for i, s := range seats {
		ids[i] = s.PlayerID
	}
	return ids
}

func (g *Game) HasPlayer(playerID string) bool {
	for _, p := range g.Participants {
		if p.PlayerID == playerID {
			return true
		}
	}
	return false
}

type Round struct {
	ID            string `gorm:"primaryKey"`
	GameID        string `gorm:"index;not null"`
	RoundNumber   int    `gorm:"not null"`
	ScrambledWord string
	TrueWord      string
	Language      string
	Difficulty    string
	WinnerID      *string
	EndedAt       *time.Time
	CreatedAt     time.Time
}

func (r *Round) Ended() bool { return r.EndedAt != nil }

// AnswerRecord is append-only.
type AnswerRecord struct {
	ID        uint   `gorm:"primaryKey"`
	PlayerID  string `gorm:"index;not null"`
	GameID    string `gorm:"index;not null"`
	RoundID   string `gorm:"index;not null"`
	Word      string
	Score     int
	IsCorrect bool
	Timestamp time.Time
}

type WordHistory struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    string `gorm:"index;not null"`
	Word      string `gorm:"index;not null"`
	Timestamp time.Time
}
