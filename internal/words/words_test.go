package words

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DoyleJ11/word-battle-backend/internal/store"
)

type scripted struct {
	words []string
	err   error
	reqs  []Request
}

func (s *scripted) Generate(_ context.Context, req Request) (string, error) {
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return "", s.err
	}
	w := s.words[0]
	if len(s.words) > 1 {
		s.words = s.words[1:]
	}
	return w, nil
}

func TestSupplier_SkipsWordsPlayersAlreadySaw(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.RecordWord(ctx, "GARDEN", []string{"p2"}, time.Now().Add(-time.Hour)))

	gen := &scripted{words: []string{"GARDEN", "PLANET"}}
	s := NewSupplier(gen, mem, Options{MaxAttempts: 5}, zap.NewNop())

	word, err := s.GenerateWord(ctx, "en", "hard", []string{"p1", "p2"})
	require.NoError(t, err)
	assert.Equal(t, "PLANET", word)
	require.Len(t, gen.reqs, 2)
	assert.Equal(t, []string{"GARDEN"}, gen.reqs[0].Exclude)

	for _, id := range []string{"p1", "p2"} {
		used, err := mem.WordUsed(ctx, "PLANET", []string{id}, time.Now().Add(-time.Minute))
		require.NoError(t, err)
		assert.True(t, used, "word should be recorded for %s", id)
	}
}

func TestSupplier_RejectsMalformedWords(t *testing.T) {
	gen := &scripted{words: []string{"two words", "abc", "supercalifragilistic", "candle"}}
	s := NewSupplier(gen, store.NewMemory(), Options{MaxAttempts: 5}, zap.NewNop())

	word, err := s.GenerateWord(context.Background(), "en", "easy", []string{"p1"})
	require.NoError(t, err)
	assert.Equal(t, "candle", word)
	assert.Len(t, gen.reqs, 4)
}

func TestSupplier_GivesUpAfterAttempts(t *testing.T) {
	gen := &scripted{words: []string{"no"}}
	s := NewSupplier(gen, store.NewMemory(), Options{MaxAttempts: 3}, zap.NewNop())

	_, err := s.GenerateWord(context.Background(), "en", "easy", []string{"p1"})
	assert.ErrorIs(t, err, ErrNoSuitableWord)
	assert.Len(t, gen.reqs, 3)
}

func TestSupplier_RepeatStillReturnedWhenBudgetExhausted(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.RecordWord(ctx, "GARDEN", []string{"p1"}, time.Now()))

	gen := &scripted{words: []string{"GARDEN"}}
	s := NewSupplier(gen, mem, Options{MaxAttempts: 2}, zap.NewNop())

	word, err := s.GenerateWord(ctx, "en", "easy", []string{"p1"})
	require.NoError(t, err)
	assert.Equal(t, "GARDEN", word)
}

func TestSupplier_PropagatesUpstreamFailure(t *testing.T) {
	boom := errors.New("upstream down")
	s := NewSupplier(&scripted{err: boom}, store.NewMemory(), Options{}, zap.NewNop())

	_, err := s.GenerateWord(context.Background(), "en", "easy", []string{"p1"})
	assert.ErrorIs(t, err, boom)
}

func TestOpenAI_Generate(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":" Garden.\n"}}]}`))
	}))
	defer srv.Close()

	o := NewOpenAI("secret", "gpt-4.1-mini", srv.URL)
	word, err := o.Generate(context.Background(), Request{Language: "en", Difficulty: "hard", Exclude: []string{"planet"}})
	require.NoError(t, err)
	assert.Equal(t, "Garden", word)
	assert.Equal(t, "gpt-4.1-mini", got.Model)
	require.Len(t, got.Messages, 2)
	assert.True(t, strings.Contains(got.Messages[0].Content, "planet"))
}

func TestOpenAI_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewOpenAI("k", "m", srv.URL).Generate(context.Background(), Request{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestOpenAI_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := NewOpenAI("k", "m", srv.URL).Generate(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestList_HonoursExclusions(t *testing.T) {
	l := NewList([]string{"garden", "planet"})
	for i := 0; i < 20; i++ {
		w, err := l.Generate(context.Background(), Request{Exclude: []string{"GARDEN"}})
		require.NoError(t, err)
		assert.Equal(t, "PLANET", w)
	}

	w, err := l.Generate(context.Background(), Request{Exclude: []string{"garden", "planet"}})
	require.NoError(t, err)
	assert.Contains(t, []string{"GARDEN", "PLANET"}, w)
}
