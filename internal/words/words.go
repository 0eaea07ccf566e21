package words

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	MinLetters = 5
	MaxLetters = 10
)

var ErrNoSuitableWord = errors.New("no suitable word generated")

// Request is what a Generator is asked for.
type Request struct {
	Language   string
	Difficulty string
	Exclude    []string
}

// Generator produces one candidate word. It does not consult history.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

type History interface {
	RecentWords(ctx context.Context, userIDs []string, since time.Time) ([]string, error)
	WordUsed(ctx context.Context, word string, userIDs []string, since time.Time) (bool, error)
	RecordWord(ctx context.Context, word string, userIDs []string, at time.Time) error
}

type Options struct {
	MaxAttempts   int
	HistoryPeriod time.Duration
}

// Supplier hands out words that none of the given players has seen
// within the history period, asking the generator again on repeats.
type Supplier struct {
	gen     Generator
	history History
	opts    Options
	logger  *zap.Logger
	now     func() time.Time
}

func NewSupplier(gen Generator, history History, opts Options, logger *zap.Logger) *Supplier {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 5
	}
	if opts.HistoryPeriod <= 0 {
		opts.HistoryPeriod = 30 * 24 * time.Hour
	}
	return &Supplier{
		gen:     gen,
		history: history,
		opts:    opts,
		logger:  logger.Named("words"),
		now:     time.Now,
	}
}

func (s *Supplier) GenerateWord(ctx context.Context, language, difficulty string, playerIDs []string) (string, error) {
	since := s.now().Add(-s.opts.HistoryPeriod)

	excluded, err := s.history.RecentWords(ctx, playerIDs, since)
	if err != nil {
		return "", fmt.Errorf("load word history: %w", err)
	}

	var word string
	for attempt := 1; attempt <= s.opts.MaxAttempts; attempt++ {
		candidate, err := s.gen.Generate(ctx, Request{Language: language, Difficulty: difficulty, Exclude: excluded})
		if err != nil {
			return "", fmt.Errorf("generate word (attempt %d): %w", attempt, err)
		}
		candidate = strings.TrimSpace(candidate)
		excluded = append(excluded, candidate)

		if !Valid(candidate) {
			s.logger.Debug("rejected malformed word", zap.String("word", candidate), zap.Int("attempt", attempt))
			continue
		}
		word = candidate

		used, err := s.history.WordUsed(ctx, candidate, playerIDs, since)
		if err != nil {
			return "", fmt.Errorf("check word history: %w", err)
		}
		if !used {
			break
		}
		s.logger.Debug("word already seen by players", zap.String("word", candidate), zap.Int("attempt", attempt))
	}

	if word == "" {
		return "", ErrNoSuitableWord
	}
	if err := s.history.RecordWord(ctx, word, playerIDs, s.now().UTC()); err != nil {
		return "", fmt.Errorf("record word history: %w", err)
	}
	return word, nil
}

// Valid reports whether w is a single word of MinLetters..MaxLetters letters.
func Valid(w string) bool {
	n := utf8.RuneCountInString(w)
	if n < MinLetters || n > MaxLetters {
		return false
	}
	for _, r := range w {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
