// Package llama defines the inference engine contract and an HTTP client
// for llama.cpp-compatible servers.
//
// The chat engine owns exactly one Engine handle. The Engine contract is
// deliberately narrow: a blocking call that turns a chat history into a
// pull-style token stream. Everything about weights, GPU memory, and
// sampling lives on the other side of it.
package llama

import "context"

// Role values for chat messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one (role, content) entry in a chat history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TokenStream yields generated tokens one at a time.
//
// Next blocks until a token is available and returns io.EOF once the
// generation is finished. Close releases the underlying connection and
// may be called at any point to abandon the stream.
type TokenStream interface {
	Next() (string, error)
	Close() error
}

// Engine is the inference engine handle.
//
// ChatStream blocks while the engine evaluates the prompt, then returns
// the token stream for the completion. Implementations must honor ctx
// cancellation both during initiation and between tokens.
type Engine interface {
	// ChatStream starts a generation over the supplied history.
	ChatStream(ctx context.Context, messages []Message) (TokenStream, error)

	// Ping verifies the engine is reachable. Used at startup, where an
	// unreachable engine is fatal.
	Ping(ctx context.Context) error

	// SetModel records the model name for subsequent generations. Called
	// when the active-model registry changes; in-flight generations are
	// unaffected.
	SetModel(name string)
}

// Drain reads a stream to completion, discarding tokens, then closes it.
// Used when a consumer abandons a generation but the stream should still
// be released cleanly.
func Drain(stream TokenStream) {
	for {
		if _, err := stream.Next(); err != nil {
			stream.Close()
			return
		}
	}
}
