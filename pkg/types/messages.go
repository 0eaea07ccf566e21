package types

// Server -> Client events. Every frame is {"type": <event>, "payload": {...}}.
//
// Addressed to one identity:
//   MatchMakingJoined, MatchMakingLeft, MatchFound, MatchMakingFailed,
//   CorrectAnswer, IncorrectAnswer
//
// Addressed to a session group:
//   AllPlayersJoined, GameNotFound, RoundStarted, RoundStartFailed,
//   CountdownTick, AnswerSubmitted, RoundEnded, GameEnded, PlayerLeft,
//   ReceiveChat
//
// The true word never appears in RoundStarted; it is revealed by RoundEnded.

const (
	EventMatchMakingJoined = "MatchMakingJoined"
	EventMatchMakingLeft   = "MatchMakingLeft"
	EventMatchFound        = "MatchFound"
	EventMatchMakingFailed = "MatchMakingFailed"
	EventAllPlayersJoined  = "AllPlayersJoined"
	EventGameNotFound      = "GameNotFound"
	EventRoundStarted      = "RoundStarted"
	EventRoundStartFailed  = "RoundStartFailed"
	EventCountdownTick     = "CountdownTick"
	EventAnswerSubmitted   = "AnswerSubmitted"
	EventRoundEnded        = "RoundEnded"
	EventGameEnded         = "GameEnded"
	EventPlayerLeft        = "PlayerLeft"
	EventCorrectAnswer     = "CorrectAnswer"
	EventIncorrectAnswer   = "IncorrectAnswer"
	EventReceiveChat       = "ReceiveChat"
)

// MatchMakingFailed reasons.
const (
	ReasonJoinTimeout     = "join_timeout"
	ReasonPeerTimeout     = "peer_join_timeout"
	ReasonPlayersNotFound = "players_not_found"
	ReasonSessionCreate   = "session_create_failed"
	ReasonPeerLeft        = "peer_left"
)

type MatchMakingJoined struct {
	PlayerID string `json:"playerId"`
}

type MatchMakingLeft struct {
	PlayerID string `json:"playerId"`
}

type MatchFound struct {
	SessionID        string   `json:"sessionId"`
	MatchedPlayerIDs []string `json:"matchedPlayerIds"`
}

type MatchMakingFailed struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

type AllPlayersJoined struct {
	SessionID string `json:"sessionId"`
}

type GameNotFound struct {
	SessionID string `json:"sessionId"`
}

type RoundStarted struct {
	RoundID          string `json:"roundId"`
	ScrambledWord    string `json:"scrambledWord"`
	RoundNumber      int    `json:"roundNumber"`
	MaxRounds        int    `json:"maxRounds"`
	CountdownSeconds int    `json:"countdownSeconds"`
}

type RoundStartFailed struct {
	SessionID   string `json:"sessionId"`
	RoundNumber int    `json:"roundNumber"`
	Reason      string `json:"reason"`
}

type CountdownTick struct {
	RoundID          string `json:"roundId"`
	SecondsRemaining int    `json:"secondsRemaining"`
}

type AnswerSubmitted struct {
	PlayerID  string `json:"playerId"`
	Answer    string `json:"answer"`
	IsCorrect bool   `json:"isCorrect"`
}

type RoundEnded struct {
	RoundID        string  `json:"roundId"`
	TrueWord       string  `json:"trueWord"`
	WinnerPlayerID *string `json:"winnerPlayerId"`
}

type Participant struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

type GameEnded struct {
	SessionID       string        `json:"sessionId"`
	Participants    []Participant `json:"participants"`
	WinnerPlayerIDs []string      `json:"winnerPlayerIds"`
}

type PlayerLeft struct {
	PlayerID string `json:"playerId"`
}

// CorrectAnswer goes to the submitter only.
type CorrectAnswer struct {
	RoundID  string `json:"roundId"`
	TrueWord string `json:"trueWord"`
}

// IncorrectAnswer goes to the submitter only. The true word stays hidden
// until RoundEnded.
type IncorrectAnswer struct {
	RoundID string `json:"roundId"`
	Answer  string `json:"answer"`
}

type ChatMessage struct {
	PlayerID string `json:"playerId"`
	Message  string `json:"message"`
}
