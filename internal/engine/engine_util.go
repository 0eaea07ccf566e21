package engine

import (
	"math/rand/v2"
	"sort"
)

// scrambleAttempts bounds how often Scramble reshuffles a word that came
// back in its original order.
const scrambleAttempts = 8

// Scramble returns a uniform random permutation of the word's letters.
func Scramble(word string) string {
	return ScrambleWith(rand.Shuffle, word)
}

// ScrambleWith is Scramble with an injectable shuffle, e.g. (*rand.Rand).Shuffle.
func ScrambleWith(shuffle func(n int, swap func(i, j int)), word string) string {
	letters := []rune(word)
	if len(letters) < 2 || !hasDistinct(letters) {
		return word
	}

	out := make([]rune, len(letters))
	for range scrambleAttempts {
		copy(out, letters)
		shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
		if string(out) != word {
			break
		}
	}
	return string(out)
}

func hasDistinct(letters []rune) bool {
	for _, r := range letters[1:] {
		if r != letters[0] {
			return true
		}
	}
	return false
}

// Answer is the part of a persisted answer record the tally needs.
type Answer struct {
	PlayerID string
	Score    int
}

type Standing struct {
	PlayerID string
	Score    int
	Result   Result
}

type Outcome struct {
	Standings []Standing
	Winners   []string
	Draw      bool
}

// Tally sums scores per participant and decides the game. Participants
// with no answers score zero. More than one player at the maximum is a
// draw with no winners. Answers from non-participants are ignored.
func Tally(participants []string, answers []Answer) Outcome {
	totals := make(map[string]int, len(participants))
	for _, id := range participants {
		totals[id] = 0
	}
	for _, a := range answers {
		if _, ok := totals[a.PlayerID]; ok {
			totals[a.PlayerID] += a.Score
		}
	}

	out := Outcome{Winners: []string{}}
	if len(participants) == 0 {
		return out
	}

	best, atBest := 0, 0
	for i, id := range participants {
		s := totals[id]
		switch {
		case i == 0 || s > best:
			best, atBest = s, 1
		case s == best:
			atBest++
		}
	}
	out.Draw = atBest > 1

	for _, id := range participants {
		st := Standing{PlayerID: id, Score: totals[id], Result: ResultLoss}
		switch {
		case out.Draw:
			st.Result = ResultDraw
		case st.Score == best:
			st.Result = ResultWin
			out.Winners = append(out.Winners, id)
		}
		out.Standings = append(out.Standings, st)
	}

	sort.SliceStable(out.Standings, func(i, j int) bool {
		return out.Standings[i].Score > out.Standings[j].Score
	})
	return out
}
