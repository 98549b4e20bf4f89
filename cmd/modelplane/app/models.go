package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// modelsResponse mirrors the daemon's /api/models body.
type modelsResponse struct {
	Success bool `json:"success"`
	Models  []struct {
		ID            string  `json:"id"`
		Name          string  `json:"name"`
		Filename      string  `json:"filename"`
		SizeGB        float64 `json:"size_gb"`
		IsDownloaded  bool    `json:"is_downloaded"`
		IsDownloading bool    `json:"is_downloading"`
	} `json:"models"`
}

// NewModelsCommand creates the models command, which lists the catalog
// with each model's local download state.
func NewModelsCommand(globalOpts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List catalog models and their download state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runModels(globalOpts)
		},
	}
}

func runModels(opts *GlobalOptions) error {
	client := &http.Client{Timeout: 10 * time.Second}

	resp, err := client.Get(opts.ServerURL + "/api/models")
	if err != nil {
		return fmt.Errorf("cannot connect to modelplane at %s\n\nIs the daemon running? Start it with: modelplane serve", opts.ServerURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server error: status %d", resp.StatusCode)
	}

	var body modelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSIZE\tSTATE")
	for _, m := range body.Models {
		state := "available"
		if m.IsDownloading {
			state = "downloading"
		} else if m.IsDownloaded {
			state = "downloaded"
		}
		fmt.Fprintf(w, "%s\t%s\t%.1f GB\t%s\n", m.ID, m.Name, m.SizeGB, state)
	}
	return w.Flush()
}
