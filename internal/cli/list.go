package cli

import (
	"github.com/spf13/cobra"
	"github.com/trebuchet-org/treb-proxy/internal/cli/render"
	"github.com/trebuchet-org/treb-proxy/internal/domain/models"
	"github.com/trebuchet-org/treb-proxy/internal/usecase"
)

// NewListCmd creates the list command
func NewListCmd() *cobra.Command {
	var (
		contractName string
		kind         string
		format       string
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List proxies from the registry",
		Example: `  # List all proxies
  treb-proxy list

  # List Counter proxies as YAML
  treb-proxy list --contract counter --format yaml

  # List proxies created through a factory
  treb-proxy list --kind factory`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			if app.Config.JSON && format == "" {
				format = string(render.FormatJSON)
			}
			outFormat, err := render.ParseFormat(format)
			if err != nil {
				return err
			}

			result, err := app.ListProxies.Run(cmd.Context(), usecase.ListProxiesParams{
				ContractName: contractName,
				Kind:         models.ProxyKind(kind),
			})
			if err != nil {
				return err
			}

			return render.NewProxiesRenderer(cmd.OutOrStdout(), outFormat).Render(result)
		},
	}

	cmd.Flags().StringVar(&contractName, "contract", "", "Filter by contract name (case-insensitive substring)")
	cmd.Flags().StringVar(&kind, "kind", "", "Filter by proxy kind (transparent, factory)")
	cmd.Flags().StringVar(&format, "format", "", "Output format: table, json or yaml")

	return cmd
}
