package chat

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/modelplane/modelplane/internal/llama"
)

// Session is the state of one chat connection.
//
// A session lives exactly as long as its WebSocket connection. History is
// in-memory only; it starts as a single system preamble and grows one
// (user, assistant) pair per successfully completed prompt. Cancelled and
// failed prompts leave no trace.
type Session struct {
	id   string
	conn *websocket.Conn

	// writeMu serializes writes; gorilla connections allow only one
	// concurrent writer.
	writeMu sync.Mutex

	// mu guards history and active.
	mu      sync.Mutex
	history []llama.Message
	active  map[string]bool
}

func newSession(id string, conn *websocket.Conn, preamble string) *Session {
	return &Session{
		id:   id,
		conn: conn,
		history: []llama.Message{
			{Role: llama.RoleSystem, Content: preamble},
		},
		active: make(map[string]bool),
	}
}

// ID returns the session's opaque handle.
func (s *Session) ID() string {
	return s.id
}

// send writes one JSON message to the client.
func (s *Session) send(v interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}

// sendError writes an error message; promptID may be empty.
func (s *Session) sendError(promptID, msg string) {
	s.send(newError(promptID, msg))
}

// historyWith returns a copy of the stored history with the user's new
// message appended. The stored history itself is untouched; it only
// advances on successful completion.
func (s *Session) historyWith(prompt string) []llama.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := make([]llama.Message, len(s.history), len(s.history)+1)
	copy(h, s.history)
	return append(h, llama.Message{Role: llama.RoleUser, Content: prompt})
}

// commitTurn appends a completed (user, assistant) exchange to the
// stored history.
func (s *Session) commitTurn(prompt, response string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, llama.Message{Role: llama.RoleUser, Content: prompt})
	if response != "" {
		s.history = append(s.history, llama.Message{Role: llama.RoleAssistant, Content: response})
	}
}

// clearHistory resets the history to the system preamble. In-flight
// prompts are unaffected; they carry their own history copies.
func (s *Session) clearHistory(preamble string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = []llama.Message{{Role: llama.RoleSystem, Content: preamble}}
}

// historyLen returns the current stored history length.
func (s *Session) historyLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// registerPrompt admits a prompt unless the active ceiling is exceeded.
func (s *Session) registerPrompt(promptID string, ceiling int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.active) > ceiling {
		return false
	}
	s.active[promptID] = true
	return true
}

// isActive reports whether the prompt is still registered. Generation
// loops call this between tokens; a false answer is the cancel signal.
func (s *Session) isActive(promptID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[promptID]
}

// removePrompt unregisters a prompt, reporting whether it was present.
func (s *Session) removePrompt(promptID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active[promptID] {
		return false
	}
	delete(s.active, promptID)
	return true
}
