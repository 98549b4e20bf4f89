// Package main is the entry point for the modelplane daemon and CLI.
//
// modelplane is the control plane for a local LLM serving host: it
// switches the active model, downloads model artifacts with streaming
// progress, and serves the chat WebSocket backed by a llama.cpp-style
// inference engine.
//
// Usage:
//
//	modelplane [command] [flags]
//
// Available commands:
//
//	serve   - Start the control plane daemon
//	models  - List catalog models and their download state
//	version - Display version information
package main

import (
	"os"

	"github.com/modelplane/modelplane/cmd/modelplane/app"
)

func main() {
	cmd := app.NewModelplaneCommand()
	if err := cmd.Execute(); err != nil {
		// Error is already printed by cobra, just exit
		os.Exit(1)
	}
}
