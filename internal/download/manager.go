package download

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/modelplane/modelplane/internal/catalog"
	"github.com/modelplane/modelplane/internal/logger"
)

// ErrNotFound is returned by Status for ids the catalog does not know.
var ErrNotFound = errors.New("model not found")

const (
	// defaultMaxRetries is how many times one method is attempted before
	// falling back to the next.
	defaultMaxRetries = 2

	// defaultRetryBackoff is the pause before a retry of the same method.
	defaultRetryBackoff = 2 * time.Second

	// defaultCancelGrace is how long Cancel waits before pruning leftover
	// temp files, giving the killed fetcher time to let go of them.
	defaultCancelGrace = time.Second
)

// ModelInfo is a catalog entry annotated with its local download state.
type ModelInfo struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Filename      string  `json:"filename"`
	SizeGB        float64 `json:"size_gb"`
	IsDownloaded  bool    `json:"is_downloaded"`
	IsDownloading bool    `json:"is_downloading"`
}

// ModelStatus is the single-model view including live progress.
type ModelStatus struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	IsDownloaded  bool    `json:"is_downloaded"`
	IsDownloading bool    `json:"is_downloading"`
	Progress      int     `json:"progress"`
	FilePath      *string `json:"file_path"`
}

// Manager owns all download sessions and exposes the pipeline operations.
//
// The active-session map is guarded by a mutex: entry points mutate it
// exclusively and status queries read a snapshot. A model id appears at
// most once.
type Manager struct {
	cat *catalog.Catalog

	mu     sync.Mutex
	active map[string]*session

	maxRetries   int
	retryBackoff time.Duration
	cancelGrace  time.Duration
}

// NewManager creates a Manager over the given catalog.
func NewManager(cat *catalog.Catalog) *Manager {
	return &Manager{
		cat:          cat,
		active:       make(map[string]*session),
		maxRetries:   defaultMaxRetries,
		retryBackoff: defaultRetryBackoff,
		cancelGrace:  defaultCancelGrace,
	}
}

// Models reports every catalog entry with its download state.
func (m *Manager) Models() []ModelInfo {
	result := make([]ModelInfo, 0, m.cat.Len())
	for i := range m.cat.Models {
		desc := &m.cat.Models[i]
		result = append(result, ModelInfo{
			ID:            desc.ID,
			Name:          desc.DisplayName,
			Filename:      desc.Filename,
			SizeGB:        desc.SizeGB,
			IsDownloaded:  fileExists(m.cat.ArtifactPath(desc)),
			IsDownloading: m.lookup(desc.ID) != nil,
		})
	}
	return result
}

// Status reports a single model's state including live progress.
func (m *Manager) Status(modelID string) (ModelStatus, error) {
	desc := m.cat.Get(modelID)
	if desc == nil {
		return ModelStatus{}, fmt.Errorf("%w: %s", ErrNotFound, modelID)
	}

	st := ModelStatus{
		ID:           modelID,
		Name:         desc.DisplayName,
		IsDownloaded: fileExists(m.cat.ArtifactPath(desc)),
	}
	if sess := m.lookup(modelID); sess != nil {
		st.IsDownloading = true
		st.Progress = sess.getProgress()
	}
	if st.IsDownloaded {
		p := m.cat.ArtifactPath(desc)
		st.FilePath = &p
	}
	return st, nil
}

// ActiveCount returns the number of in-flight downloads.
func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Download starts acquiring a model and returns its event stream.
//
// The returned channel yields a started event first, then info, progress,
// and warning interleavings, and exactly one of completed, cancelled, or
// error before the channel closes. ctx
// abandonment (the SSE client going away) stops the pipeline without a
// terminal event.
func (m *Manager) Download(ctx context.Context, modelID string) <-chan Event {
	events := make(chan Event, 16)
	go m.run(ctx, modelID, events)
	return events
}

// Cancel requests cooperative cancellation of an in-flight download.
//
// Returns false when no session is active for the id. The call returns
// promptly; temp-file pruning happens asynchronously after a short grace
// period so the killed fetcher can release its output file.
func (m *Manager) Cancel(modelID string) bool {
	sess := m.lookup(modelID)
	if sess == nil {
		return false
	}

	sess.signalCancel()
	logger.Info("Download cancelled: %s", modelID)

	go func() {
		time.Sleep(m.cancelGrace)
		m.pruneTempFiles()
	}()

	return true
}

// run produces the event stream for one download. It always closes events.
func (m *Manager) run(ctx context.Context, modelID string, events chan<- Event) {
	defer close(events)

	emit := func(ev Event) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !ValidateModelID(modelID) {
		emit(Event{Type: EventError, Message: "invalid model id"})
		return
	}

	desc := m.cat.Get(modelID)
	if desc == nil {
		emit(Event{Type: EventError, Message: "model not found"})
		return
	}

	finalFile := m.cat.ArtifactPath(desc)
	if fileExists(finalFile) {
		emit(Event{Type: EventCompleted, Progress: 100, Message: "already downloaded"})
		return
	}

	sess, ok := m.register(modelID)
	if !ok {
		emit(Event{Type: EventError, Message: "download already in progress"})
		return
	}
	defer m.unregister(modelID)

	if !emit(Event{Type: EventStarted, ModelID: modelID, ModelName: desc.DisplayName}) {
		return
	}

	tempFile := m.cat.TempArtifactPath(desc)

	for idx, method := range desc.Methods {
		if !emit(Event{
			Type:    EventInfo,
			Message: fmt.Sprintf("Method %d/%d: %s", idx+1, len(desc.Methods), method.Kind),
		}) {
			return
		}

		if !ValidateURL(method.URL, m.cat) {
			if !emit(Event{Type: EventWarning, Message: fmt.Sprintf("URL not allowed: %s", method.Kind)}) {
				return
			}
			continue
		}

		if !ValidateFilename(desc.Filename) {
			emit(Event{Type: EventError, Message: "invalid filename"})
			return
		}

		for retry := 0; retry < m.maxRetries; retry++ {
			if retry > 0 {
				if !emit(Event{
					Type:    EventInfo,
					Message: fmt.Sprintf("Attempt %d/%d", retry+1, m.maxRetries),
				}) {
					return
				}
				select {
				case <-time.After(m.retryBackoff):
				case <-sess.cancel:
					// No point spawning another fetcher just to kill it.
					emit(Event{Type: EventCancelled, Message: "cancelled by user"})
					return
				case <-ctx.Done():
					return
				}
			}

			err := m.execute(ctx, sess, method.Kind, method.URL, tempFile, desc.SizeGB, emit)
			if err == nil {
				if renameErr := os.Rename(tempFile, finalFile); renameErr != nil {
					logger.Error("Failed to move artifact into place for %s: %v", modelID, renameErr)
					emit(Event{Type: EventError, Message: "failed to move artifact into place"})
					return
				}
				logger.Info("Download complete: %s via %s", modelID, method.Kind)
				emit(Event{Type: EventCompleted, Progress: 100, Method: method.Kind})
				return
			}

			os.Remove(tempFile)

			if errors.Is(err, errCancelled) {
				emit(Event{Type: EventCancelled, Message: "cancelled by user"})
				return
			}
			if errors.Is(err, errClientGone) {
				logger.Info("Download consumer disconnected: %s", modelID)
				return
			}

			logger.Warn("Fetch failed for %s via %s (attempt %d): %v", modelID, method.Kind, retry+1, err)
			if retry == m.maxRetries-1 {
				if !emit(Event{
					Type:    EventWarning,
					Message: fmt.Sprintf("Failed after %d attempts", m.maxRetries),
				}) {
					return
				}
			}
		}
	}

	emit(Event{Type: EventError, Message: "all methods failed"})
}

// register adds a session for modelID unless one is already active.
func (m *Manager) register(modelID string) (*session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.active[modelID]; exists {
		return nil, false
	}
	sess := newSession(modelID)
	m.active[modelID] = sess
	return sess, true
}

func (m *Manager) unregister(modelID string) {
	m.mu.Lock()
	delete(m.active, modelID)
	m.mu.Unlock()
}

func (m *Manager) lookup(modelID string) *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active[modelID]
}

// pruneTempFiles removes every *.tmp file in the temp directory.
func (m *Manager) pruneTempFiles() {
	matches, err := filepath.Glob(filepath.Join(m.cat.TempPath, "*.tmp"))
	if err != nil {
		return
	}
	for _, path := range matches {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Warn("Failed to prune temp file %s: %v", path, err)
		}
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
