package cli

import (
	"github.com/spf13/cobra"
	"github.com/trebuchet-org/treb-proxy/internal/cli/render"
)

// NewShowCmd creates the show command
func NewShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <contract>",
		Short: "Show the registry entry of a contract's proxy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			record, err := app.ShowProxy.Run(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return render.NewProxyRenderer(cmd.OutOrStdout(), app.Config.JSON).Render(record)
		},
	}
}
