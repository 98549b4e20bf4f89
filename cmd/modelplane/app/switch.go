package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/modelplane/modelplane/internal/client"
)

// NewSwitchCommand creates the switch command, which designates the
// active model on the daemon.
func NewSwitchCommand(globalOpts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "switch <model-name>",
		Short: "Designate the active model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := client.New(globalOpts.ServerURL).SwitchModel(args[0])
			if err != nil {
				return err
			}
			fmt.Println(result.Message)
			return nil
		},
	}
}
