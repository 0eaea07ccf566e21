package words

import (
	"context"
	"math/rand/v2"
	"slices"
	"strings"
)

// DefaultWords is used when no upstream generator is configured.
var DefaultWords = []string{
	"garden", "planet", "bridge", "candle", "winter", "pocket", "silver",
	"thunder", "compass", "lantern", "harbor", "glacier", "volcano", "meteor",
	"rhythm", "melody", "canvas", "mosaic", "phantom", "enigma", "paradox",
	"falcon", "panther", "dolphin", "octopus", "beetle", "temple", "fortress",
	"pyramid", "tunnel", "factory", "stadium", "diamond", "crystal", "mirror",
	"shadow", "helmet", "shield", "anchor", "hammer", "coffee", "burger",
	"honey", "vanilla", "cinnamon", "tornado", "eclipse", "aurora", "gravity",
	"harmony", "velocity", "circuit", "antenna", "satellite", "keyboard",
}

// List picks from a fixed word list, honouring exclusions when it can.
type List struct {
	words []string
}

func NewList(words []string) *List {
	if len(words) == 0 {
		words = DefaultWords
	}
	return &List{words: words}
}

func (l *List) Generate(_ context.Context, req Request) (string, error) {
	excluded := make([]string, len(req.Exclude))
	for i, w := range req.Exclude {
		excluded[i] = strings.ToLower(w)
	}

	candidates := make([]string, 0, len(l.words))
	for _, w := range l.words {
		if !slices.Contains(excluded, strings.ToLower(w)) {
			candidates = append(candidates, w)
		}
	}
	if len(candidates) == 0 {
		candidates = l.words
	}
	return strings.ToUpper(candidates[rand.IntN(len(candidates))]), nil
}
