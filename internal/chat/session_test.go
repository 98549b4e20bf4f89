package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/modelplane/modelplane/internal/llama"
)

func TestSession_HistoryWithDoesNotMutateStored(t *testing.T) {
	s := newSession("s1", nil, "preamble")

	h := s.historyWith("question")
	assert.Len(t, h, 2)
	assert.Equal(t, 1, s.historyLen())

	// The copy is independent of later commits.
	s.commitTurn("question", "answer")
	assert.Len(t, h, 2)
	assert.Equal(t, 3, s.historyLen())
}

func TestSession_CommitTurnSkipsEmptyResponse(t *testing.T) {
	s := newSession("s1", nil, "preamble")

	s.commitTurn("question", "")
	assert.Equal(t, 2, s.historyLen())
}

func TestSession_ClearHistoryResetsToPreamble(t *testing.T) {
	s := newSession("s1", nil, "preamble")
	s.commitTurn("q", "a")
	assert.Equal(t, 3, s.historyLen())

	s.clearHistory("preamble")
	assert.Equal(t, 1, s.historyLen())

	h := s.historyWith("next")
	assert.Equal(t, llama.RoleSystem, h[0].Role)
	assert.Equal(t, "preamble", h[0].Content)
}

func TestSession_PromptRegistrationCeiling(t *testing.T) {
	s := newSession("s1", nil, "preamble")

	assert.True(t, s.registerPrompt("p1", 1))
	assert.True(t, s.registerPrompt("p2", 1))
	// len(active) is now 2, above the ceiling.
	assert.False(t, s.registerPrompt("p3", 1))

	assert.True(t, s.removePrompt("p1"))
	assert.False(t, s.removePrompt("p1"))
	assert.True(t, s.registerPrompt("p3", 1))
}

func TestSession_IsActive(t *testing.T) {
	s := newSession("s1", nil, "preamble")

	assert.False(t, s.isActive("p1"))
	s.registerPrompt("p1", 5)
	assert.True(t, s.isActive("p1"))
	s.removePrompt("p1")
	assert.False(t, s.isActive("p1"))
}
