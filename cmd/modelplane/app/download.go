package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modelplane/modelplane/internal/client"
	"github.com/modelplane/modelplane/internal/download"
)

// NewDownloadCommand creates the download command, which starts a
// download on the daemon and renders its progress stream.
func NewDownloadCommand(globalOpts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "download <model-id>",
		Short: "Download a catalog model through the daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDownload(globalOpts, args[0])
		},
	}
}

func runDownload(opts *GlobalOptions, modelID string) error {
	c := client.New(opts.ServerURL)

	result, err := c.StreamDownload(modelID, renderDownloadEvent)
	if err != nil {
		return err
	}

	switch result.Status {
	case download.EventCancelled:
		fmt.Println("Download cancelled")
	default:
		fmt.Printf("Download complete (%s)\n", result.Method)
	}
	return nil
}

// renderDownloadEvent prints one line per event; progress updates
// overwrite each other with a carriage return.
func renderDownloadEvent(ev download.Event) {
	switch ev.Type {
	case download.EventStarted:
		fmt.Printf("Downloading %s\n", ev.ModelName)
	case download.EventInfo:
		fmt.Println(ev.Message)
	case download.EventWarning:
		fmt.Printf("warning: %s\n", ev.Message)
	case download.EventProgress:
		fmt.Printf("\r%3d%%  %.1f MB/s  ETA %ds   ", ev.Progress, ev.SpeedMbps, ev.EtaSeconds)
	case download.EventCompleted, download.EventCancelled:
		fmt.Println()
	}
}

// NewCancelCommand creates the cancel command, which stops an in-flight
// download on the daemon.
func NewCancelCommand(globalOpts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <model-id>",
		Short: "Cancel an in-flight model download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := client.New(globalOpts.ServerURL).CancelDownload(args[0])
			if err != nil {
				return err
			}
			fmt.Println(result.Message)
			return nil
		},
	}
}
