// switch.go implements the model management surface: switching the active
// model, enumerating the readonly model directory, and the management
// health check.
package handlers

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/modelplane/modelplane/internal/logger"
)

// modelExtensions are the artifact formats the model loader understands.
var modelExtensions = []string{".gguf", ".bin", ".ggml"}

// SwitchRequest is the switch-model request body.
type SwitchRequest struct {
	ModelName string `json:"model_name"`
}

// SwitchResponse reports the outcome of a switch request.
type SwitchResponse struct {
	Status       string `json:"status"`
	CurrentModel string `json:"current_model"`
	Message      string `json:"message"`
	NeedsRestart bool   `json:"needs_restart"`
}

// AvailableModelsResponse lists the readonly model directory's contents.
type AvailableModelsResponse struct {
	Status          string   `json:"status"`
	AvailableModels []string `json:"available_models"`
	ModelsDirectory string   `json:"models_directory"`
	Readonly        bool     `json:"readonly"`
}

// HealthResponse is the management health document.
type HealthResponse struct {
	Status          string `json:"status"`
	Service         string `json:"service"`
	Version         string `json:"version"`
	ModelsDirectory string `json:"models_directory"`
	ConfigFile      string `json:"config_file"`
	CurrentModel    string `json:"current_model"`
	ReadonlyModels  bool   `json:"readonly_models"`
}

// SwitchModel designates a new active model.
//
// The named model must resolve to something under the readonly models
// directory: an exact file, the name plus a known extension, or a
// directory containing at least one model file. Re-asserting the current
// selection returns already_active and performs no registry write.
//
// HTTP Method: POST
// Endpoint: /switch-model
func (h *Handler) SwitchModel(w http.ResponseWriter, r *http.Request) {
	var req SwitchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.ModelName == "" {
		h.WriteError(w, "model_name is required", http.StatusBadRequest)
		return
	}

	logger.Info("Switch requested: %s", req.ModelName)

	current, err := h.registry.ReadCurrent()
	if err != nil {
		// A corrupt record should not wedge switching; the write below
		// replaces it.
		logger.Warn("Registry read failed during switch: %v", err)
	}

	if current == req.ModelName {
		h.WriteJSON(w, SwitchResponse{
			Status:       "already_active",
			CurrentModel: req.ModelName,
			Message:      fmt.Sprintf("Model %s is already active", req.ModelName),
			NeedsRestart: false,
		}, http.StatusOK)
		return
	}

	if !h.modelExists(req.ModelName) {
		h.WriteError(w, "Model not found in models directory", http.StatusNotFound)
		return
	}

	if _, err := h.registry.SetCurrent(req.ModelName); err != nil {
		logger.Error("Registry write failed for %s: %v", req.ModelName, err)
		h.WriteError(w, "Failed to save model configuration", http.StatusInternalServerError)
		return
	}

	logger.Info("Active model switched to %s", req.ModelName)
	h.WriteJSON(w, SwitchResponse{
		Status:       "success",
		CurrentModel: req.ModelName,
		Message:      fmt.Sprintf("Model switched to %s", req.ModelName),
		NeedsRestart: false,
	}, http.StatusOK)
}

// modelExists checks whether name resolves under the readonly models
// directory. The directory is never written, only probed.
func (h *Handler) modelExists(name string) bool {
	dir := h.config.Paths.ModelsDir

	// Exact file name.
	if fi, err := os.Stat(filepath.Join(dir, name)); err == nil && !fi.IsDir() {
		return true
	}

	// Name plus a known extension.
	for _, ext := range modelExtensions {
		if fi, err := os.Stat(filepath.Join(dir, name+ext)); err == nil && !fi.IsDir() {
			return true
		}
	}

	// Directory holding at least one model file.
	if fi, err := os.Stat(filepath.Join(dir, name)); err == nil && fi.IsDir() {
		entries, err := os.ReadDir(filepath.Join(dir, name))
		if err != nil {
			return false
		}
		for _, entry := range entries {
			if !entry.IsDir() && isModelFile(entry.Name()) {
				return true
			}
		}
	}

	return false
}

// AvailableModels enumerates model files under the readonly directory.
//
// HTTP Method: GET
// Endpoint: /models/available
func (h *Handler) AvailableModels(w http.ResponseWriter, r *http.Request) {
	var names []string

	err := filepath.WalkDir(h.config.Paths.ModelsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// A missing or partially readable directory yields an empty
			// listing rather than a failure.
			return fs.SkipDir
		}
		if !d.IsDir() && isModelFile(d.Name()) {
			names = append(names, d.Name())
		}
		return nil
	})
	if err != nil {
		logger.Error("Failed to enumerate models directory: %v", err)
		h.WriteError(w, "Failed to list models", http.StatusInternalServerError)
		return
	}

	sort.Strings(names)
	if names == nil {
		names = []string{}
	}

	absDir, _ := filepath.Abs(h.config.Paths.ModelsDir)
	h.WriteJSON(w, AvailableModelsResponse{
		Status:          "success",
		AvailableModels: names,
		ModelsDirectory: absDir,
		Readonly:        true,
	}, http.StatusOK)
}

// Health reports the management surface's health document.
//
// HTTP Method: GET
// Endpoint: /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	current, err := h.registry.ReadCurrent()
	if err != nil {
		logger.Warn("Registry read failed during health check: %v", err)
	}

	absDir, _ := filepath.Abs(h.config.Paths.ModelsDir)
	absRegistry, _ := filepath.Abs(h.registry.Path())

	h.WriteJSON(w, HealthResponse{
		Status:          "healthy",
		Service:         "modelplane",
		Version:         h.version,
		ModelsDirectory: absDir,
		ConfigFile:      absRegistry,
		CurrentModel:    current,
		ReadonlyModels:  true,
	}, http.StatusOK)
}

func isModelFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, known := range modelExtensions {
		if ext == known {
			return true
		}
	}
	return false
}
