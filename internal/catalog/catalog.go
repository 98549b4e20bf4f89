// Package catalog loads and serves the immutable model catalog.
//
// The catalog is a JSON document describing every model the download
// pipeline knows about: where artifacts and temporaries live, which mirror
// hosts are allowed, and the ordered transfer methods for each model. It is
// loaded once at startup and never modified at runtime; a missing or invalid
// catalog is a fatal startup error.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Fetcher kinds accepted in a TransferMethod.
const (
	MethodWget = "wget"
	MethodCurl = "curl"
)

// TransferMethod is one mirror/transfer approach for a model.
//
// The order of methods within a ModelDescriptor is the fallback priority:
// the pipeline tries each in turn until one succeeds.
type TransferMethod struct {
	// Kind selects the fetcher shape, either "wget" or "curl".
	Kind string `json:"type"`

	// URL is the https download location. The host must suffix-match one
	// of the catalog's allowed domains.
	URL string `json:"url"`
}

// ModelDescriptor is a single catalog entry.
type ModelDescriptor struct {
	// ID is the short unique identifier used in API paths.
	ID string `json:"id"`

	// DisplayName is the human-readable model name.
	DisplayName string `json:"name"`

	// Filename is the artifact file name, always ending in ".gguf".
	Filename string `json:"filename"`

	// SizeGB is the expected artifact size, used for speed/ETA estimates.
	SizeGB float64 `json:"size_gb"`

	// Methods is the ordered mirror fallback chain.
	Methods []TransferMethod `json:"methods"`
}

// Catalog is the parsed catalog document plus an id index.
type Catalog struct {
	// DownloadPath is the directory finished artifacts are moved into.
	DownloadPath string `json:"download_path"`

	// TempPath is the directory in-flight downloads write to.
	TempPath string `json:"temp_path"`

	// LogPath is the directory for the daemon's log files.
	LogPath string `json:"log_path"`

	// AllowedDomains lists host suffixes download URLs may resolve to.
	AllowedDomains []string `json:"allowed_domains"`

	// Models lists every known model in catalog order.
	Models []ModelDescriptor `json:"models"`

	byID map[string]*ModelDescriptor
}

// Load reads and validates the catalog document at path.
//
// The download, temp, and log directories are created if absent. Load
// returns an error for a missing file, malformed JSON, a duplicate model
// id, or an entry without transfer methods; callers treat all of these as
// fatal at startup.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}

	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}

	if c.DownloadPath == "" || c.TempPath == "" {
		return nil, fmt.Errorf("catalog %s: download_path and temp_path are required", path)
	}

	c.byID = make(map[string]*ModelDescriptor, len(c.Models))
	for i := range c.Models {
		m := &c.Models[i]
		if m.ID == "" {
			return nil, fmt.Errorf("catalog %s: model entry %d has no id", path, i)
		}
		if _, dup := c.byID[m.ID]; dup {
			return nil, fmt.Errorf("catalog %s: duplicate model id %q", path, m.ID)
		}
		if len(m.Methods) == 0 {
			return nil, fmt.Errorf("catalog %s: model %q has no transfer methods", path, m.ID)
		}
		for _, method := range m.Methods {
			if method.Kind != MethodWget && method.Kind != MethodCurl {
				return nil, fmt.Errorf("catalog %s: model %q has unsupported method %q", path, m.ID, method.Kind)
			}
		}
		c.byID[m.ID] = m
	}

	for _, dir := range []string{c.DownloadPath, c.TempPath, c.LogPath} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create catalog directory %s: %w", dir, err)
		}
	}

	return &c, nil
}

// Get returns the descriptor for id, or nil if the catalog has no such model.
func (c *Catalog) Get(id string) *ModelDescriptor {
	return c.byID[id]
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	return len(c.Models)
}

// ArtifactPath returns the final on-disk location for a model's artifact.
func (c *Catalog) ArtifactPath(m *ModelDescriptor) string {
	return filepath.Join(c.DownloadPath, m.Filename)
}

// TempArtifactPath returns the in-flight temporary location for a model's
// artifact. The ".tmp" suffix keeps partial files out of the loader's view.
func (c *Catalog) TempArtifactPath(m *ModelDescriptor) string {
	return filepath.Join(c.TempPath, m.Filename+".tmp")
}

// HostAllowed reports whether host suffix-matches one of the allowed domains.
//
// Matching is case-insensitive. An empty allow-list rejects every host.
func (c *Catalog) HostAllowed(host string) bool {
	host = strings.ToLower(host)
	for _, d := range c.AllowedDomains {
		if strings.HasSuffix(host, strings.ToLower(d)) {
			return true
		}
	}
	return false
}
