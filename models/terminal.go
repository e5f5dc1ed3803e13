package models

// TerminalState is the dialogue state of a ritual terminal session
type TerminalState string

const (
	TerminalIdle               TerminalState = "idle"
	TerminalAwaitingUsername   TerminalState = "awaiting-username"
	TerminalAwaitingSecretWord TerminalState = "awaiting-secret-word"
	TerminalResolved           TerminalState = "resolved"
)

// LineType drives how the client styles a terminal line
type LineType string

const (
	LineCommand  LineType = "command"
	LineResponse LineType = "response"
	LineError    LineType = "error"
	LineSuccess  LineType = "success"
)

// TerminalLine is one line of terminal output
type TerminalLine struct {
	Text string   `json:"text"`
	Type LineType `json:"type"`
}

// TerminalRequest is the body of POST /api/terminal
type TerminalRequest struct {
	SessionID string `json:"sessionId"`
	Input     string `json:"input"`
}

// TerminalResponse is returned for every terminal input
type TerminalResponse struct {
	SessionID string         `json:"sessionId"`
	State     TerminalState  `json:"state"`
	Lines     []TerminalLine `json:"lines"`
	Reward    *Reward        `json:"reward,omitempty"`
	Redirect  string         `json:"redirect,omitempty"`
	Clear     bool           `json:"clear,omitempty"`
}
