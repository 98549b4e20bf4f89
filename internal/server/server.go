// Package server wires the HTTP listener for the modelplane daemon.
//
// One listener carries all three surfaces: model management, the download
// pipeline, and the chat WebSocket. Routing uses net/http's pattern mux;
// a permissive CORS layer fronts everything because the expected client
// is a browser UI served from elsewhere on the same host.
package server

import (
	"net/http"

	"github.com/modelplane/modelplane/internal/server/handlers"
)

// New builds the daemon's http.Server.
func New(addr string, h *handlers.Handler) *http.Server {
	mux := http.NewServeMux()

	// Model management surface.
	mux.HandleFunc("POST /switch-model", h.SwitchModel)
	mux.HandleFunc("GET /models/available", h.AvailableModels)
	mux.HandleFunc("GET /health", h.Health)

	// Download pipeline surface.
	mux.HandleFunc("GET /api/models", h.ListModels)
	mux.HandleFunc("GET /api/models/{id}/status", h.ModelStatus)
	mux.HandleFunc("GET /api/models/{id}/download", h.DownloadModel)
	mux.HandleFunc("DELETE /api/models/{id}/download", h.CancelDownload)
	mux.HandleFunc("GET /api/health", h.DownloadHealth)

	// Chat surface.
	mux.HandleFunc("GET /ws", h.ChatWS)

	return &http.Server{
		Addr:    addr,
		Handler: withCORS(mux),
	}
}

// withCORS answers preflight requests and marks every response as
// cross-origin readable.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
