// Package app implements the modelplane command-line interface.
package app

import (
	"github.com/spf13/cobra"
)

// Version is the CLI/daemon version, overridable at build time via
// -ldflags "-X github.com/modelplane/modelplane/cmd/modelplane/app.Version=...".
var Version = "0.3.0"

// GlobalOptions holds options shared across commands.
type GlobalOptions struct {
	// ConfigPath is an optional YAML config file for the daemon.
	ConfigPath string

	// ServerURL is the daemon address client commands talk to.
	ServerURL string
}

// NewModelplaneCommand creates the root command with all subcommands
// attached.
func NewModelplaneCommand() *cobra.Command {
	globalOpts := &GlobalOptions{}

	cmd := &cobra.Command{
		Use:   "modelplane",
		Short: "Control plane for a local LLM serving host",
		Long: `modelplane manages a single-GPU LLM serving host: which model is
active, which model files are on disk, and the chat surface that
streams tokens from the inference engine.

The daemon exposes three surfaces on one port:
  - model management   (POST /switch-model, GET /models/available)
  - download pipeline  (GET /api/models, SSE progress streams)
  - chat               (WebSocket at /ws)`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&globalOpts.ConfigPath, "config", "",
		"path to YAML config file")
	cmd.PersistentFlags().StringVar(&globalOpts.ServerURL, "server", "http://localhost:8001",
		"daemon address for client commands")

	cmd.AddCommand(NewServeCommand(globalOpts))
	cmd.AddCommand(NewModelsCommand(globalOpts))
	cmd.AddCommand(NewDownloadCommand(globalOpts))
	cmd.AddCommand(NewCancelCommand(globalOpts))
	cmd.AddCommand(NewSwitchCommand(globalOpts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}
