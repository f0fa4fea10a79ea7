package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/trebuchet-org/treb-proxy/internal/cli/render"
	"github.com/trebuchet-org/treb-proxy/internal/usecase"
)

// NewDeployCmd creates the deploy command
func NewDeployCmd() *cobra.Command {
	var (
		reinitialize bool
		ctorArgs     []string
	)

	cmd := &cobra.Command{
		Use:   "deploy [contract] [initializer args...]",
		Short: "Deploy a contract behind a proxy, or upgrade its existing proxy",
		Long: `Deploy a new implementation of a contract and point its proxy at it.

If the registry has no proxy for the contract yet, a proxy is created and
the initializer (initialize, init, __init or initializer) is called through
it with the given arguments. Otherwise the recorded proxy is upgraded and the
arguments are ignored unless --reinitialize is set.

Arrays are written as [a,b,c]. Without a contract name an artifact can be
picked interactively.`,
		Example: `  # First deploy calls initialize(10)
  treb-proxy deploy Counter 10 --network sepolia

  # Later deploys upgrade the same proxy
  treb-proxy deploy Counter --network sepolia

  # Upgrade and call the initializer again
  treb-proxy deploy Counter 20 --reinitialize

  # Use an ERC1967Factory instead of deploying proxy artifacts
  treb-proxy deploy Token --proxy-kind factory --factory-address 0x0000000000006396FF2a80c067f99B3d2Ab4Df24`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			var contractName string
			if len(args) > 0 {
				contractName, args = args[0], args[1:]
			} else {
				names, err := app.Artifacts.List(cmd.Context())
				if err != nil {
					return err
				}
				contractName, err = app.Selector.SelectArtifact(cmd.Context(), names, "Select a contract to deploy")
				if err != nil {
					return err
				}
			}

			result, err := app.DeployUpgradeable.Run(cmd.Context(), usecase.DeployUpgradeableParams{
				ContractName:       contractName,
				RawInitArgs:        args,
				RawConstructorArgs: ctorArgs,
				Reinitialize:       reinitialize,
			})
			if err != nil {
				return fmt.Errorf("deploy %s: %w", contractName, err)
			}

			return render.NewDeployResultRenderer(cmd.OutOrStdout(), app.Config.JSON).Render(result)
		},
	}

	cmd.Flags().BoolVar(&reinitialize, "reinitialize", false, "Call the initializer when upgrading an existing proxy")
	cmd.Flags().StringArrayVar(&ctorArgs, "ctor-arg", nil, "Implementation constructor argument (repeatable, in order)")
	cmd.Flags().String("proxy-kind", "", "Proxy kind for new proxies: transparent or factory (default transparent)")
	cmd.Flags().String("proxy-artifact", "", "Artifact deployed as the transparent proxy (default AdminUpgradeabilityProxy)")
	cmd.Flags().String("factory-address", "", "ERC1967Factory address used by the factory proxy kind")
	cmd.Flags().String("admin", "", "Proxy admin (default: the signer)")
	cmd.Flags().Uint("retry-attempts", 0, "Submission attempts per transaction (default 1)")

	return cmd
}
