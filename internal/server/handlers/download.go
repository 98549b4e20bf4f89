// download.go implements the download pipeline's HTTP surface, including
// the SSE progress stream.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/modelplane/modelplane/internal/download"
	"github.com/modelplane/modelplane/internal/logger"
)

// ListModelsResponse wraps the catalog listing.
type ListModelsResponse struct {
	Success bool                 `json:"success"`
	Models  []download.ModelInfo `json:"models"`
}

// StatusResponse wraps a single model's download status.
type StatusResponse struct {
	Success bool `json:"success"`
	download.ModelStatus
}

// CancelResponse reports the outcome of a cancel request.
type CancelResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// DownloadHealthResponse is the download surface's health document.
type DownloadHealthResponse struct {
	Status          string `json:"status"`
	ActiveDownloads int    `json:"active_downloads"`
}

// ListModels reports every catalog entry with its download state.
//
// HTTP Method: GET
// Endpoint: /api/models
func (h *Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, ListModelsResponse{
		Success: true,
		Models:  h.downloads.Models(),
	}, http.StatusOK)
}

// ModelStatus reports one model's download state including live progress.
//
// HTTP Method: GET
// Endpoint: /api/models/{id}/status
func (h *Handler) ModelStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !download.ValidateModelID(id) {
		h.WriteError(w, "Invalid model id", http.StatusBadRequest)
		return
	}

	status, err := h.downloads.Status(id)
	if err != nil {
		if errors.Is(err, download.ErrNotFound) {
			h.WriteError(w, err.Error(), http.StatusNotFound)
			return
		}
		logger.Error("Status query failed for %s: %v", id, err)
		h.WriteError(w, "Failed to query model status", http.StatusInternalServerError)
		return
	}

	h.WriteJSON(w, StatusResponse{Success: true, ModelStatus: status}, http.StatusOK)
}

// DownloadModel streams a model download as Server-Sent Events.
//
// Each pipeline event becomes one `data: <json>` frame. The stream ends
// after the pipeline's terminal event; a client disconnect cancels the
// underlying transfer via the request context.
//
// HTTP Method: GET (EventSource-compatible)
// Endpoint: /api/models/{id}/download
func (h *Handler) DownloadModel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !download.ValidateModelID(id) {
		h.WriteError(w, "Invalid model id", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.WriteError(w, "Streaming not supported by this server", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering if behind proxy.

	logger.Info("Download requested: %s", id)

	for event := range h.downloads.Download(r.Context(), id) {
		payload, err := json.Marshal(event)
		if err != nil {
			logger.Error("Failed to encode download event: %v", err)
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}
}

// CancelDownload requests cancellation of an in-flight download.
//
// HTTP Method: DELETE
// Endpoint: /api/models/{id}/download
func (h *Handler) CancelDownload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !download.ValidateModelID(id) {
		h.WriteError(w, "Invalid model id", http.StatusBadRequest)
		return
	}

	if h.downloads.Cancel(id) {
		h.WriteJSON(w, CancelResponse{Success: true, Message: "Cancelled"}, http.StatusOK)
		return
	}
	h.WriteJSON(w, CancelResponse{Success: false, Message: "No active download"}, http.StatusOK)
}

// DownloadHealth reports the download surface's health.
//
// HTTP Method: GET
// Endpoint: /api/health
func (h *Handler) DownloadHealth(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, DownloadHealthResponse{
		Status:          "ok",
		ActiveDownloads: h.downloads.ActiveCount(),
	}, http.StatusOK)
}
