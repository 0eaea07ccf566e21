package engine

type RoundStep struct {
	From RoundPhase
	To   RoundPhase
}

// Created -> Ended covers a round whose countdown never got installed.
var RoundOrder = []RoundStep{
	{From: PhaseCreated, To: PhaseCountingDown},
	{From: PhaseCountingDown, To: PhaseEnded},
	{From: PhaseCreated, To: PhaseEnded},
}
