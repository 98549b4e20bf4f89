// Package download implements the model acquisition pipeline.
//
// The pipeline drives an external fetcher (wget or curl) through each
// model's ordered mirror methods with bounded retries, parses progress from
// the fetcher's stderr, and reports everything as a typed event stream.
// Finished artifacts are renamed atomically from the temp directory into
// the download directory; the chat engine's model loader picks them up
// from there.
package download

import (
	"sync"
	"time"
)

// Event type values. Every stream begins with EventStarted and ends with
// exactly one of EventCompleted, EventCancelled, or EventError.
const (
	EventStarted   = "started"
	EventInfo      = "info"
	EventProgress  = "progress"
	EventWarning   = "warning"
	EventCompleted = "completed"
	EventCancelled = "cancelled"
	EventError     = "error"
)

// Event is one record in a download's event stream.
type Event struct {
	// Type is one of the Event* constants.
	Type string `json:"type"`

	// ModelID and ModelName are set on started events.
	ModelID   string `json:"model_id,omitempty"`
	ModelName string `json:"model_name,omitempty"`

	// Message carries human-readable detail for info, warning, cancelled,
	// and error events.
	Message string `json:"message,omitempty"`

	// Progress is the percentage complete, set on progress and completed
	// events.
	Progress int `json:"progress,omitempty"`

	// SpeedMbps and EtaSeconds are transfer estimates on progress events.
	SpeedMbps  float64 `json:"speed_mbps,omitempty"`
	EtaSeconds int     `json:"eta_seconds,omitempty"`

	// Method names the fetcher kind on progress and completed events.
	Method string `json:"method,omitempty"`
}

// Terminal reports whether the event ends its stream.
func (e Event) Terminal() bool {
	switch e.Type {
	case EventCompleted, EventCancelled, EventError:
		return true
	}
	return false
}

// session tracks one in-flight download. At most one session exists per
// model id at a time.
type session struct {
	modelID   string
	startTime time.Time

	// cancel is closed, once, when cancellation is requested.
	cancel     chan struct{}
	cancelOnce sync.Once

	mu       sync.Mutex
	progress int
}

func newSession(modelID string) *session {
	return &session{
		modelID:   modelID,
		startTime: time.Now(),
		cancel:    make(chan struct{}),
	}
}

// signalCancel requests cooperative cancellation. Safe to call repeatedly.
func (s *session) signalCancel() {
	s.cancelOnce.Do(func() { close(s.cancel) })
}

// cancelled reports whether cancellation has been requested.
func (s *session) cancelled() bool {
	select {
	case <-s.cancel:
		return true
	default:
		return false
	}
}

func (s *session) setProgress(p int) {
	s.mu.Lock()
	s.progress = p
	s.mu.Unlock()
}

func (s *session) getProgress() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}
