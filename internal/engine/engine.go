package engine

import (
	"errors"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var ErrInvalidTransition = errors.New("invalid round transition")
var ErrRoundEnded = errors.New("round already ended")

type RoundPhase string

const (
	PhaseCreated      RoundPhase = "created"
	PhaseCountingDown RoundPhase = "counting_down"
	PhaseEnded        RoundPhase = "ended"
)

type Result string

const (
	ResultWin  Result = "win"
	ResultLoss Result = "loss"
	ResultDraw Result = "draw"
)

// Transition moves a round from p to next following RoundOrder.
// Ended is terminal, so any transition out of it reports ErrRoundEnded.
func (p RoundPhase) Transition(next RoundPhase) (RoundPhase, error) {
	if p == PhaseEnded {
		return p, ErrRoundEnded
	}
	for _, step := range RoundOrder {
		if step.From == p && step.To == next {
			return next, nil
		}
	}
	return p, ErrInvalidTransition
}

var folder = cases.Fold()

// Judge compares an answer against the true word ignoring case and
// Unicode normalization form. A correct answer scores the word's length.
func Judge(answer, trueWord string) (bool, int) {
	if trueWord == "" {
		return false, 0
	}
	a := folder.String(norm.NFC.String(answer))
	w := folder.String(norm.NFC.String(trueWord))
	if a != w {
		return false, 0
	}
	return true, WordScore(trueWord)
}

// WordScore is the number of code points in the word.
func WordScore(word string) int {
	return utf8.RuneCountInString(word)
}
