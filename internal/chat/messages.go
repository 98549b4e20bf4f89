// Package chat implements the chat session engine.
//
// The engine accepts WebSocket connections, assigns each a session with
// its own conversation history, and multiplexes concurrent prompts over
// the connection as typed JSON messages. Generations stream token by
// token and can be cancelled out of band without disturbing the session.
package chat

// inboundMessage is the envelope for every client-to-server message.
//
// Action is a closed set: "prompt", "cancel", "clear_history". Anything
// else is answered with an error message, never a dropped connection.
type inboundMessage struct {
	Action   string `json:"action"`
	Prompt   string `json:"prompt,omitempty"`
	PromptID string `json:"promptId,omitempty"`
}

// Inbound action values.
const (
	actionPrompt       = "prompt"
	actionCancel       = "cancel"
	actionClearHistory = "clear_history"
)

// readyMessage greets a freshly connected client with its session id.
type readyMessage struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

// startedMessage acknowledges an accepted prompt.
type startedMessage struct {
	Type      string `json:"type"`
	PromptID  string `json:"promptId"`
	SessionID string `json:"sessionId"`
	Status    string `json:"status"`
}

// tokenMessage carries one generated token.
type tokenMessage struct {
	Type     string `json:"type"`
	PromptID string `json:"promptId"`
	Token    string `json:"token"`
}

// completeMessage ends a prompt's event sequence, both on natural
// completion and on observed cancellation.
type completeMessage struct {
	Type     string `json:"type"`
	PromptID string `json:"promptId"`
	Complete bool   `json:"complete"`
}

// statusMessage acknowledges a cancel request.
type statusMessage struct {
	Type     string `json:"type"`
	PromptID string `json:"promptId"`
	Status   string `json:"status"`
}

// memoryClearedMessage acknowledges a history reset.
type memoryClearedMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Status    string `json:"status"`
}

// errorMessage reports a failure scoped to a prompt or to the message
// that triggered it. The connection always stays open.
type errorMessage struct {
	Type     string `json:"type"`
	Error    string `json:"error"`
	PromptID string `json:"promptId,omitempty"`
}

func newComplete(promptID string) completeMessage {
	return completeMessage{Type: "complete", PromptID: promptID, Complete: true}
}

func newToken(promptID, token string) tokenMessage {
	return tokenMessage{Type: "token", PromptID: promptID, Token: token}
}

func newError(promptID, msg string) errorMessage {
	return errorMessage{Type: "error", Error: msg, PromptID: promptID}
}
