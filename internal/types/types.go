package types

// Client -> server commands.
const (
	CmdJoinMatchmaking  = "JoinMatchmaking"
	CmdLeaveMatchmaking = "LeaveMatchmaking"
	CmdJoinSession      = "JoinSession"
	CmdSubmitAnswer     = "SubmitAnswer"
	CmdLeaveSession     = "LeaveSession"
	CmdSendChat         = "SendChat"
)

type ClientMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	RoundID   string `json:"roundId,omitempty"`
	Answer    string `json:"answer,omitempty"`
	Message   string `json:"message,omitempty"`
}

type ServerMessage struct {
	Type    string `json:"type"` // an event name from pkg/types, or "Error"
	Payload any    `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}
