package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/modelplane/modelplane/internal/config"
	"github.com/modelplane/modelplane/internal/llama"
	"github.com/modelplane/modelplane/internal/logger"
)

// upgrader accepts any origin; the daemon fronts a local browser UI and
// binds to localhost by default.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Engine is the chat session engine.
//
// It holds the single inference engine handle and a small worker pool
// that bounds how many blocking generation initiations run at once, so
// connection read loops stay responsive no matter how slow the engine is.
type Engine struct {
	engine   llama.Engine
	preamble string
	ceiling  int

	// workers is a counting semaphore around ChatStream initiation.
	workers chan struct{}
}

// NewEngine creates the chat engine over an inference engine handle.
func NewEngine(eng llama.Engine, cfg config.ChatConfig) *Engine {
	return &Engine{
		engine:   eng,
		preamble: cfg.Preamble,
		ceiling:  cfg.MaxActivePrompts,
		workers:  make(chan struct{}, cfg.Workers),
	}
}

// HandleWS upgrades the request and runs the connection's message loop.
//
// The loop exits when the client disconnects; the session and its history
// die with it. Each accepted prompt runs in its own goroutine, so the
// loop keeps servicing cancel and clear_history messages mid-generation.
func (e *Engine) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sess := newSession(newSessionID(), conn, e.preamble)
	logger.Info("Chat client connected: %s (session %s)", conn.RemoteAddr(), sess.ID())

	if err := sess.send(readyMessage{
		Type:      "ready",
		Message:   "Model is ready",
		SessionID: sess.ID(),
	}); err != nil {
		return
	}

	// ctx ends when this handler returns, aborting in-flight generations
	// once the client is gone.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			logger.Info("Chat client disconnected: session %s", sess.ID())
			return
		}
		e.dispatch(ctx, sess, raw)
	}
}

// dispatch routes one inbound message by its action tag.
func (e *Engine) dispatch(ctx context.Context, sess *Session, raw []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		sess.sendError("", fmt.Sprintf("Invalid JSON: %v", err))
		return
	}

	switch msg.Action {
	case actionPrompt:
		e.handlePrompt(ctx, sess, msg)
	case actionCancel:
		e.handleCancel(sess, msg)
	case actionClearHistory:
		e.handleClearHistory(sess)
	default:
		sess.sendError("", fmt.Sprintf("Unknown action: %s", msg.Action))
	}
}

// handlePrompt admits a prompt and starts its generation task.
func (e *Engine) handlePrompt(ctx context.Context, sess *Session, msg inboundMessage) {
	promptText := strings.TrimSpace(msg.Prompt)
	if promptText == "" {
		sess.sendError("", "Empty prompt")
		return
	}

	promptID := msg.PromptID
	if promptID == "" {
		promptID = uuid.New().String()
	}

	if !sess.registerPrompt(promptID, e.ceiling) {
		sess.sendError(promptID, "Too many active prompts. Wait for current ones to finish.")
		return
	}

	// Acknowledge before the generation task exists, so started always
	// precedes the prompt's first token.
	sess.send(startedMessage{
		Type:      "started",
		PromptID:  promptID,
		SessionID: sess.ID(),
		Status:    "started",
	})

	go e.generate(ctx, sess, promptID, promptText)
}

// handleCancel unregisters an in-flight prompt. The generation task
// observes the missing registration at its next between-token check.
func (e *Engine) handleCancel(sess *Session, msg inboundMessage) {
	if msg.PromptID == "" || !sess.removePrompt(msg.PromptID) {
		return
	}

	sess.send(statusMessage{
		Type:     "status",
		PromptID: msg.PromptID,
		Status:   "canceled",
	})
	logger.Info("Cancel signalled for prompt %s (session %s)", msg.PromptID, sess.ID())
}

// handleClearHistory resets the session history to the preamble.
func (e *Engine) handleClearHistory(sess *Session) {
	sess.clearHistory(e.preamble)

	sess.send(memoryClearedMessage{
		Type:      "memory_cleared",
		SessionID: sess.ID(),
		Status:    "history_cleared",
	})
	logger.Info("Session history reset for %s", sess.ID())
}

// generate runs one prompt to completion, cancellation, or error.
//
// The generation history is a copy of the session's stored history plus
// the user message; the stored history advances only if the generation
// finishes while still registered. That gives cancel its leave-no-trace
// semantics.
func (e *Engine) generate(ctx context.Context, sess *Session, promptID, promptText string) {
	history := sess.historyWith(promptText)

	// The initiation call blocks while the engine evaluates the prompt;
	// bound it with the worker pool so it cannot starve anything else.
	select {
	case e.workers <- struct{}{}:
	case <-ctx.Done():
		sess.removePrompt(promptID)
		return
	}
	stream, err := e.engine.ChatStream(ctx, history)
	<-e.workers

	if err != nil {
		logger.Error("Generation failed to start for prompt %s: %v", promptID, err)
		sess.sendError(promptID, fmt.Sprintf("Server Error: %v", err))
		sess.removePrompt(promptID)
		return
	}

	var response strings.Builder

	for {
		token, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Error("Generation failed for prompt %s: %v", promptID, err)
			sess.sendError(promptID, fmt.Sprintf("Server Error: %v", err))
			sess.removePrompt(promptID)
			stream.Close()
			return
		}

		// Cancellation check between whole tokens: a cancelled prompt
		// completes here without emitting the pending token.
		if !sess.isActive(promptID) {
			logger.Info("Prompt %s cancelled", promptID)
			sess.send(newComplete(promptID))
			go llama.Drain(stream)
			return
		}

		response.WriteString(token)
		if err := sess.send(newToken(promptID, token)); err != nil {
			// Connection gone mid-generation: drop the task quietly.
			logger.Info("Connection closed during prompt %s", promptID)
			sess.removePrompt(promptID)
			stream.Close()
			return
		}
	}

	// Only a still-registered prompt commits its turn; a cancel that
	// raced the final token wins.
	if sess.removePrompt(promptID) {
		sess.commitTurn(promptText, response.String())
		sess.send(newComplete(promptID))
		logger.Info("Prompt %s complete (session %s, history %d)",
			promptID, sess.ID(), sess.historyLen())
	}
}

// newSessionID returns a fresh 8-character opaque session handle.
func newSessionID() string {
	return uuid.New().String()[:8]
}
