// Package handlers provides the HTTP request handlers for the modelplane
// daemon.
//
// Three surfaces share one listener: model management (switch-model,
// available models, health), the download pipeline (list, status, SSE
// progress stream, cancel), and the chat WebSocket. Handlers validate
// input, delegate to the business layers, and shape JSON responses; they
// hold no state of their own beyond injected dependencies.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/modelplane/modelplane/internal/chat"
	"github.com/modelplane/modelplane/internal/config"
	"github.com/modelplane/modelplane/internal/download"
	"github.com/modelplane/modelplane/internal/logger"
	"github.com/modelplane/modelplane/internal/registry"
)

// Handler bundles the dependencies the endpoint handlers need.
type Handler struct {
	// config holds listener settings and filesystem paths.
	config *config.Config

	// registry is the active-model record store.
	registry *registry.Registry

	// downloads is the model acquisition pipeline.
	downloads *download.Manager

	// chatEngine serves the WebSocket chat surface.
	chatEngine *chat.Engine

	// version is the daemon version string for diagnostics.
	version string
}

// NewHandler creates a Handler with the provided dependencies.
func NewHandler(
	cfg *config.Config,
	reg *registry.Registry,
	downloads *download.Manager,
	chatEngine *chat.Engine,
	version string,
) *Handler {
	return &Handler{
		config:     cfg,
		registry:   reg,
		downloads:  downloads,
		chatEngine: chatEngine,
		version:    version,
	}
}

// errorResponse is the standard error body for every non-SSE endpoint.
type errorResponse struct {
	Error string `json:"error"`
}

// WriteJSON serializes data to the client with the given status code.
func (h *Handler) WriteJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response: %v", err)
	}
}

// WriteError writes a standardized error response.
func (h *Handler) WriteError(w http.ResponseWriter, message string, statusCode int) {
	h.WriteJSON(w, errorResponse{Error: message}, statusCode)
}

// ChatWS hands the connection to the chat engine.
func (h *Handler) ChatWS(w http.ResponseWriter, r *http.Request) {
	h.chatEngine.HandleWS(w, r)
}
