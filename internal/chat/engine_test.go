package chat

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelplane/modelplane/internal/config"
	"github.com/modelplane/modelplane/internal/llama"
)

// fakeStream yields whatever the test feeds into tokens and reports
// io.EOF once the channel closes.
type fakeStream struct {
	tokens chan string
}

func (s *fakeStream) Next() (string, error) {
	tok, ok := <-s.tokens
	if !ok {
		return "", io.EOF
	}
	return tok, nil
}

func (s *fakeStream) Close() error { return nil }

// fakeEngine records every history it is asked to generate over and
// hands each created stream to the test through created.
type fakeEngine struct {
	mu      sync.Mutex
	calls   [][]llama.Message
	created chan *fakeStream
	failErr error
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{created: make(chan *fakeStream, 8)}
}

func (f *fakeEngine) ChatStream(ctx context.Context, messages []llama.Message) (llama.TokenStream, error) {
	f.mu.Lock()
	history := make([]llama.Message, len(messages))
	copy(history, messages)
	f.calls = append(f.calls, history)
	err := f.failErr
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}

	s := &fakeStream{tokens: make(chan string, 8)}
	f.created <- s
	return s, nil
}

func (f *fakeEngine) Ping(ctx context.Context) error { return nil }

func (f *fakeEngine) SetModel(name string) {}

func (f *fakeEngine) call(i int) []llama.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

func (f *fakeEngine) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// wsMessage is the loose shape every server-to-client message decodes into.
type wsMessage struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Token     string `json:"token"`
	Error     string `json:"error"`
	Status    string `json:"status"`
	PromptID  string `json:"promptId"`
	SessionID string `json:"sessionId"`
	Complete  bool   `json:"complete"`
}

func dialTestEngine(t *testing.T, eng llama.Engine, cfg config.ChatConfig) (*websocket.Conn, *Engine) {
	t.Helper()

	e := NewEngine(eng, cfg)
	srv := httptest.NewServer(http.HandlerFunc(e.HandleWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn, e
}

func readMessage(t *testing.T, conn *websocket.Conn) wsMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg wsMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func defaultChatConfig() config.ChatConfig {
	return config.ChatConfig{
		Preamble:         "You are a test assistant.",
		MaxActivePrompts: 5,
		Workers:          2,
	}
}

func TestHandleWS_ReadySentOnConnect(t *testing.T) {
	conn, _ := dialTestEngine(t, newFakeEngine(), defaultChatConfig())

	msg := readMessage(t, conn)
	assert.Equal(t, "ready", msg.Type)
	assert.NotEmpty(t, msg.Message)
	assert.NotEmpty(t, msg.SessionID)
}

func TestPrompt_StreamsTokensThenComplete(t *testing.T) {
	eng := newFakeEngine()
	conn, _ := dialTestEngine(t, eng, defaultChatConfig())
	readMessage(t, conn) // ready

	require.NoError(t, conn.WriteJSON(map[string]string{
		"action": "prompt", "prompt": "hello", "promptId": "p1",
	}))

	started := readMessage(t, conn)
	assert.Equal(t, "started", started.Type)
	assert.Equal(t, "p1", started.PromptID)

	stream := <-eng.created
	stream.tokens <- "Hi"
	stream.tokens <- " there"
	close(stream.tokens)

	tok := readMessage(t, conn)
	assert.Equal(t, "token", tok.Type)
	assert.Equal(t, "Hi", tok.Token)
	assert.Equal(t, "p1", tok.PromptID)

	tok = readMessage(t, conn)
	assert.Equal(t, " there", tok.Token)

	done := readMessage(t, conn)
	assert.Equal(t, "complete", done.Type)
	assert.True(t, done.Complete)
	assert.Equal(t, "p1", done.PromptID)

	// The generation saw the preamble plus the user message.
	history := eng.call(0)
	require.Len(t, history, 2)
	assert.Equal(t, llama.RoleSystem, history[0].Role)
	assert.Equal(t, "You are a test assistant.", history[0].Content)
	assert.Equal(t, llama.RoleUser, history[1].Role)
	assert.Equal(t, "hello", history[1].Content)
}

func TestPrompt_CompletedTurnCommitsToHistory(t *testing.T) {
	eng := newFakeEngine()
	conn, _ := dialTestEngine(t, eng, defaultChatConfig())
	readMessage(t, conn) // ready

	require.NoError(t, conn.WriteJSON(map[string]string{
		"action": "prompt", "prompt": "first question", "promptId": "p1",
	}))
	readMessage(t, conn) // started

	stream := <-eng.created
	stream.tokens <- "first answer"
	close(stream.tokens)
	readMessage(t, conn) // token
	readMessage(t, conn) // complete

	require.NoError(t, conn.WriteJSON(map[string]string{
		"action": "prompt", "prompt": "second question", "promptId": "p2",
	}))
	readMessage(t, conn) // started

	stream = <-eng.created
	close(stream.tokens)
	readMessage(t, conn) // complete

	// The second generation carries the committed first exchange.
	history := eng.call(1)
	require.Len(t, history, 4)
	assert.Equal(t, "first question", history[1].Content)
	assert.Equal(t, llama.RoleAssistant, history[2].Role)
	assert.Equal(t, "first answer", history[2].Content)
	assert.Equal(t, "second question", history[3].Content)
}

func TestCancel_LeavesNoHistoryTrace(t *testing.T) {
	eng := newFakeEngine()
	conn, _ := dialTestEngine(t, eng, defaultChatConfig())
	readMessage(t, conn) // ready

	require.NoError(t, conn.WriteJSON(map[string]string{
		"action": "prompt", "prompt": "doomed question", "promptId": "p1",
	}))
	readMessage(t, conn) // started

	stream := <-eng.created
	stream.tokens <- "partial"
	tok := readMessage(t, conn)
	require.Equal(t, "token", tok.Type)

	require.NoError(t, conn.WriteJSON(map[string]string{
		"action": "cancel", "promptId": "p1",
	}))

	status := readMessage(t, conn)
	assert.Equal(t, "status", status.Type)
	assert.Equal(t, "canceled", status.Status)

	// The next token lets the generation observe the cancellation; it
	// closes out with a complete message and commits nothing.
	stream.tokens <- "never delivered"
	done := readMessage(t, conn)
	assert.Equal(t, "complete", done.Type)
	assert.Equal(t, "p1", done.PromptID)
	close(stream.tokens)

	require.NoError(t, conn.WriteJSON(map[string]string{
		"action": "prompt", "prompt": "fresh question", "promptId": "p2",
	}))
	readMessage(t, conn) // started

	stream = <-eng.created
	close(stream.tokens)
	readMessage(t, conn) // complete

	history := eng.call(1)
	require.Len(t, history, 2)
	assert.Equal(t, llama.RoleSystem, history[0].Role)
	assert.Equal(t, "fresh question", history[1].Content)
}

func TestCancel_UnknownPromptIgnored(t *testing.T) {
	eng := newFakeEngine()
	conn, _ := dialTestEngine(t, eng, defaultChatConfig())
	readMessage(t, conn) // ready

	require.NoError(t, conn.WriteJSON(map[string]string{
		"action": "cancel", "promptId": "ghost",
	}))

	// No acknowledgement for an unknown prompt; the connection stays
	// healthy and the next message round-trips normally.
	require.NoError(t, conn.WriteJSON(map[string]string{"action": "clear_history"}))
	msg := readMessage(t, conn)
	assert.Equal(t, "memory_cleared", msg.Type)
}

func TestClearHistory(t *testing.T) {
	eng := newFakeEngine()
	conn, _ := dialTestEngine(t, eng, defaultChatConfig())
	readMessage(t, conn) // ready

	require.NoError(t, conn.WriteJSON(map[string]string{
		"action": "prompt", "prompt": "remember this", "promptId": "p1",
	}))
	readMessage(t, conn) // started

	stream := <-eng.created
	stream.tokens <- "stored"
	close(stream.tokens)
	readMessage(t, conn) // token
	readMessage(t, conn) // complete

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "clear_history"}))
	msg := readMessage(t, conn)
	assert.Equal(t, "memory_cleared", msg.Type)
	assert.Equal(t, "history_cleared", msg.Status)

	require.NoError(t, conn.WriteJSON(map[string]string{
		"action": "prompt", "prompt": "what did I say?", "promptId": "p2",
	}))
	readMessage(t, conn) // started

	stream = <-eng.created
	close(stream.tokens)
	readMessage(t, conn) // complete

	history := eng.call(1)
	require.Len(t, history, 2)
	assert.Equal(t, llama.RoleSystem, history[0].Role)
}

func TestPrompt_EmptyRejected(t *testing.T) {
	conn, _ := dialTestEngine(t, newFakeEngine(), defaultChatConfig())
	readMessage(t, conn) // ready

	require.NoError(t, conn.WriteJSON(map[string]string{
		"action": "prompt", "prompt": "   ",
	}))

	msg := readMessage(t, conn)
	assert.Equal(t, "error", msg.Type)
	assert.NotEmpty(t, msg.Error)
}

func TestPrompt_GenerationFailure(t *testing.T) {
	eng := newFakeEngine()
	eng.failErr = io.ErrUnexpectedEOF
	conn, _ := dialTestEngine(t, eng, defaultChatConfig())
	readMessage(t, conn) // ready

	require.NoError(t, conn.WriteJSON(map[string]string{
		"action": "prompt", "prompt": "hello", "promptId": "p1",
	}))

	var sawError bool
	for i := 0; i < 2; i++ {
		msg := readMessage(t, conn)
		if msg.Type == "error" {
			sawError = true
			assert.Equal(t, "p1", msg.PromptID)
			assert.NotEmpty(t, msg.Error)
		}
	}
	assert.True(t, sawError)
}

func TestPrompt_TooManyActive(t *testing.T) {
	eng := newFakeEngine()
	cfg := defaultChatConfig()
	cfg.MaxActivePrompts = 0 // admits a single concurrent prompt
	conn, _ := dialTestEngine(t, eng, cfg)
	readMessage(t, conn) // ready

	require.NoError(t, conn.WriteJSON(map[string]string{
		"action": "prompt", "prompt": "slow one", "promptId": "p1",
	}))
	readMessage(t, conn) // started
	stream := <-eng.created

	require.NoError(t, conn.WriteJSON(map[string]string{
		"action": "prompt", "prompt": "one too many", "promptId": "p2",
	}))

	msg := readMessage(t, conn)
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, "p2", msg.PromptID)
	assert.Contains(t, msg.Error, "Too many active prompts")

	close(stream.tokens)
	readMessage(t, conn) // p1 complete
}

// instantEngine returns an already-exhausted token supply, so tokens
// are available the moment ChatStream returns.
type instantEngine struct {
	tokens []string
}

func (f *instantEngine) ChatStream(ctx context.Context, messages []llama.Message) (llama.TokenStream, error) {
	s := &fakeStream{tokens: make(chan string, len(f.tokens))}
	for _, tok := range f.tokens {
		s.tokens <- tok
	}
	close(s.tokens)
	return s, nil
}

func (f *instantEngine) Ping(ctx context.Context) error { return nil }

func (f *instantEngine) SetModel(name string) {}

func TestPrompt_StartedPrecedesTokens(t *testing.T) {
	eng := &instantEngine{tokens: []string{"a", "b"}}
	conn, _ := dialTestEngine(t, eng, defaultChatConfig())
	readMessage(t, conn) // ready

	require.NoError(t, conn.WriteJSON(map[string]string{
		"action": "prompt", "prompt": "hello", "promptId": "p1",
	}))

	// Even with tokens ready immediately, the acknowledgement comes first.
	msg := readMessage(t, conn)
	require.Equal(t, "started", msg.Type)
	require.Equal(t, "p1", msg.PromptID)

	msg = readMessage(t, conn)
	assert.Equal(t, "token", msg.Type)
	assert.Equal(t, "a", msg.Token)

	msg = readMessage(t, conn)
	assert.Equal(t, "b", msg.Token)

	msg = readMessage(t, conn)
	assert.Equal(t, "complete", msg.Type)
}

func TestDispatch_InvalidJSON(t *testing.T) {
	conn, _ := dialTestEngine(t, newFakeEngine(), defaultChatConfig())
	readMessage(t, conn) // ready

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{broken")))

	msg := readMessage(t, conn)
	assert.Equal(t, "error", msg.Type)
	assert.Contains(t, msg.Error, "Invalid JSON")
}

func TestDispatch_UnknownAction(t *testing.T) {
	conn, _ := dialTestEngine(t, newFakeEngine(), defaultChatConfig())
	readMessage(t, conn) // ready

	require.NoError(t, conn.WriteJSON(map[string]string{"action": "reboot"}))

	msg := readMessage(t, conn)
	assert.Equal(t, "error", msg.Type)
	assert.Contains(t, msg.Error, "Unknown action")
}

func TestPrompt_GeneratedPromptID(t *testing.T) {
	eng := newFakeEngine()
	conn, _ := dialTestEngine(t, eng, defaultChatConfig())
	readMessage(t, conn) // ready

	require.NoError(t, conn.WriteJSON(map[string]string{
		"action": "prompt", "prompt": "no id supplied",
	}))

	started := readMessage(t, conn)
	assert.Equal(t, "started", started.Type)
	assert.NotEmpty(t, started.PromptID)

	stream := <-eng.created
	close(stream.tokens)
	done := readMessage(t, conn)
	assert.Equal(t, "complete", done.Type)
	assert.Equal(t, started.PromptID, done.PromptID)
}
