package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/DoyleJ11/word-battle-backend/internal/engine"
)

const pgUniqueViolation = "23505"

// Postgres is the GORM-backed Store.
type Postgres struct {
	db *gorm.DB
}

var _ Store = (*Postgres)(nil)

// OpenPostgres connects and migrates the schema.
func OpenPostgres(dsn string) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	s := NewPostgres(db)
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func NewPostgres(db *gorm.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Migrate() error {
	err := s.db.AutoMigrate(
		&Player{}, &PlayerStats{}, &Game{}, &GamePlayer{},
		&Round{}, &AnswerRecord{}, &WordHistory{},
	)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Postgres) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func mapErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}

func (s *Postgres) UpsertPlayer(ctx context.Context, p *Player) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name"}),
	}).Create(p).Error
	return mapErr(err)
}

func (s *Postgres) GetPlayers(ctx context.Context, ids []string) ([]Player, error) {
	var players []Player
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&players).Error; err != nil {
		return nil, mapErr(err)
	}
	return players, nil
}

func (s *Postgres) GetStats(ctx context.Context, playerID string) (*PlayerStats, error) {
	var st PlayerStats
	if err := s.db.WithContext(ctx).Where("player_id = ?", playerID).First(&st).Error; err != nil {
		return nil, mapErr(err)
	}
	return &st, nil
}

func (s *Postgres) RecordResult(ctx context.Context, playerID string, score int, result engine.Result) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var st PlayerStats
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("player_id = ?", playerID).First(&st).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			st = PlayerStats{ID: uuid.NewString(), PlayerID: playerID}
			applyResult(&st, score, result)
			return mapErr(tx.Create(&st).Error)
		}
		if err != nil {
			return mapErr(err)
		}
		applyResult(&st, score, result)
		return mapErr(tx.Save(&st).Error)
	})
}

func (s *Postgres) CreateGame(ctx context.Context, g *Game) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Participants").Create(g).Error; err != nil {
			return err
		}
		if len(g.Participants) == 0 {
			return nil
		}
		for i := range g.Participants {
			g.Participants[i].GameID = g.ID
		}
		return tx.Omit("Player").Create(&g.Participants).Error
	})
	return mapErr(err)
}

func (s *Postgres) GetGame(ctx context.Context, id string) (*Game, error) {
	var g Game
	err := s.db.WithContext(ctx).
		Preload("Participants", func(db *gorm.DB) *gorm.DB { return db.Order("seat") }).
		Preload("Participants.Player").
		First(&g, "id = ?", id).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return &g, nil
}

func (s *Postgres) CreateRound(ctx context.Context, r *Round) error {
	return mapErr(s.db.WithContext(ctx).Create(r).Error)
}

func (s *Postgres) GetRound(ctx context.Context, id string) (*Round, error) {
	var r Round
	if err := s.db.WithContext(ctx).First(&r, "id = ?", id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &r, nil
}

func (s *Postgres) ListRounds(ctx context.Context, gameID string) ([]Round, error) {
	var rounds []Round
	err := s.db.WithContext(ctx).Where("game_id = ?", gameID).Order("round_number").Find(&rounds).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return rounds, nil
}

func (s *Postgres) EndRound(ctx context.Context, id string, winnerID *string, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&Round{}).
		Where("id = ? AND ended_at IS NULL", id).
		Updates(map[string]any{"ended_at": at, "winner_id": winnerID})
	if res.Error != nil {
		return false, mapErr(res.Error)
	}
	if res.RowsAffected == 1 {
		return true, nil
	}
	// Distinguish "already ended" from "no such round".
	if _, err := s.GetRound(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (s *Postgres) RecordAnswer(ctx context.Context, a *AnswerRecord) error {
	return mapErr(s.db.WithContext(ctx).Create(a).Error)
}

func (s *Postgres) AnswersForGame(ctx context.Context, gameID string) ([]AnswerRecord, error) {
	var answers []AnswerRecord
	if err := s.db.WithContext(ctx).Where("game_id = ?", gameID).Order("id").Find(&answers).Error; err != nil {
		return nil, mapErr(err)
	}
	return answers, nil
}

func (s *Postgres) RecentWords(ctx context.Context, userIDs []string, since time.Time) ([]string, error) {
	var words []string
	err := s.db.WithContext(ctx).Model(&WordHistory{}).
		Where("user_id IN ? AND timestamp >= ?", userIDs, since).
		Distinct("word").Pluck("word", &words).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return words, nil
}

func (s *Postgres) WordUsed(ctx context.Context, word string, userIDs []string, since time.Time) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&WordHistory{}).
		Where("word = ? AND user_id IN ? AND timestamp >= ?", word, userIDs, since).
		Count(&n).Error
	if err != nil {
		return false, mapErr(err)
	}
	return n > 0, nil
}

func (s *Postgres) RecordWord(ctx context.Context, word string, userIDs []string, at time.Time) error {
	if len(userIDs) == 0 {
		return nil
	}
	entries := make([]WordHistory, len(userIDs))
	for i, id := range userIDs {
		entries[i] = WordHistory{UserID: id, Word: word, Timestamp: at}
	}
	return mapErr(s.db.WithContext(ctx).Create(&entries).Error)
}
