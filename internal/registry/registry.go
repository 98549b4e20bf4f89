// Package registry persists the active-model record.
//
// The registry is a single small JSON document at a fixed path recording
// which model the host is currently serving. It is the rendezvous point
// between the model-switch API (writer) and the chat engine and registry
// lookout (readers). Writes are atomic (temp file + rename) and suppressed
// when the requested name already matches the stored one, so re-asserting
// the current selection never churns the file or its mtime.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StatusActive is the only status currently written to the record.
const StatusActive = "active"

// ErrCorrupt indicates the registry file exists but cannot be parsed.
var ErrCorrupt = errors.New("registry record is corrupt")

// Record is the persisted active-model document.
type Record struct {
	ModelName   string `json:"model_name"`
	LastUpdated string `json:"last_updated"`
	Status      string `json:"status"`
}

// Registry reads and writes the active-model record at a fixed path.
type Registry struct {
	path string

	// now is the clock used for LastUpdated. Replaced in tests.
	now func() time.Time
}

// New creates a Registry backed by the file at path.
func New(path string) *Registry {
	return &Registry{path: path, now: time.Now}
}

// Path returns the location of the backing file.
func (r *Registry) Path() string {
	return r.path
}

// ReadCurrent returns the currently designated model name.
//
// A missing or empty file yields "" with no error; only an unreadable or
// corrupt record is reported as a failure.
func (r *Registry) ReadCurrent() (string, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read registry %s: %w", r.path, err)
	}

	if len(data) == 0 {
		return "", nil
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrCorrupt, r.path, err)
	}
	return rec.ModelName, nil
}

// SetCurrent designates name as the active model.
//
// The write is suppressed when name already matches the stored record:
// the file is left untouched and changed is false. Otherwise the record is
// replaced atomically via a temp file rename, creating the containing
// directory if needed. A corrupt existing record does not block the write;
// it is simply overwritten.
func (r *Registry) SetCurrent(name string) (changed bool, err error) {
	current, err := r.ReadCurrent()
	if err != nil && !errors.Is(err, ErrCorrupt) {
		return false, err
	}
	if err == nil && current == name {
		return false, nil
	}

	rec := Record{
		ModelName:   name,
		LastUpdated: r.now().Format(time.RFC3339),
		Status:      StatusActive,
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return false, fmt.Errorf("failed to encode registry record: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return false, fmt.Errorf("failed to create registry directory: %w", err)
	}

	// Write-to-temp-then-rename so readers never observe a torn record.
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return false, fmt.Errorf("failed to write registry temp file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		os.Remove(tmp)
		return false, fmt.Errorf("failed to replace registry record: %w", err)
	}

	return true, nil
}
