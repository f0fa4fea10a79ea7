package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/trebuchet-org/treb-proxy/internal/cli/render"
	"github.com/trebuchet-org/treb-proxy/internal/usecase"
)

// NewRemoveCmd creates the remove command
func NewRemoveCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "remove <contract>",
		Aliases: []string{"rm"},
		Short:   "Forget a contract's proxy",
		Long: `Remove a contract's entry from the proxy registry. The proxy itself stays
on chain; the next deploy of the contract creates a new proxy.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			result, err := app.RemoveProxy.Run(cmd.Context(), usecase.RemoveProxyParams{
				ContractName: args[0],
				Force:        yes,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !result.Removed {
				fmt.Fprintln(out, render.FormatWarning("Removal cancelled"))
				return nil
			}
			fmt.Fprintln(out, render.FormatSuccess(fmt.Sprintf("Removed %s (proxy %s) from %s",
				result.Record.ContractName, result.Record.Address.Hex(), app.Config.Deployment.RegistryPath)))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}
