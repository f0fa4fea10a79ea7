package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/trebuchet-org/treb-proxy/internal/adapters/progress"
	"github.com/trebuchet-org/treb-proxy/internal/app"
	"github.com/trebuchet-org/treb-proxy/internal/config"
	"github.com/trebuchet-org/treb-proxy/internal/usecase"
)

// contextKey is the type for context keys
type contextKey string

const (
	// appKey is the context key for the app instance
	appKey contextKey = "app"
	// releaseKey is the context key for the func that stops the spinner and
	// cancels the command timeout
	releaseKey contextKey = "release"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "treb-proxy",
		Short: "Deploy and upgrade contracts behind upgradeable proxies",
		Long: `treb-proxy deploys compiled contracts behind upgradeable proxies and keeps
a JSON registry of the proxy address for every contract.

The first deploy of a contract creates its implementation and a proxy. Every
later deploy of the same contract creates a new implementation and upgrades
the recorded proxy, so the address users interact with never changes.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip for help/version commands
			if cmd.Name() == "version" || cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}

			projectRoot, err := config.FindProjectRoot()
			if err != nil {
				return err
			}

			v := config.SetupViper(projectRoot, cmd)
			sink, stop := newProgressSink(v)

			appInstance, err := app.InitApp(v, sink)
			if err != nil {
				return fmt.Errorf("failed to initialize app: %w", err)
			}

			ctx := context.WithValue(cmd.Context(), appKey, appInstance)

			cancel := func() {}
			if appInstance.Config.Timeout > 0 {
				ctx, cancel = context.WithTimeout(ctx, appInstance.Config.Timeout)
			}
			release := func() {
				stop()
				cancel()
			}
			ctx = context.WithValue(ctx, releaseKey, release)

			cmd.SetContext(ctx)
			return nil
		},
	}

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.String("rpc-url", "", "Node URL (http, https, ws, wss or an .ipc path)")
	flags.StringP("network", "n", "", "Network from foundry.toml [rpc_endpoints] (e.g., sepolia)")
	flags.String("private-key", "", "Hex private key used to sign transactions")
	flags.String("build-dir", "", "Directory containing compiled artifacts (defaults to foundry out dir or ./build)")
	flags.String("registry", "", "Path of the proxy registry file (default proxy.json)")
	flags.String("gas-price", "", "Gas price in wei (default: ask the node)")
	flags.Uint64("gas-limit", 0, "Gas limit per transaction (default: estimate)")
	flags.Duration("timeout", 0, "How long to wait for each transaction to be mined (default 5m)")
	flags.Bool("debug", false, "Enable debug output")
	flags.Bool("non-interactive", false, "Disable interactive prompts")
	flags.Bool("json", false, "Output in JSON format")

	rootCmd.AddGroup(&cobra.Group{
		ID:    "main",
		Title: "Main Commands",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "management",
		Title: "Registry Commands",
	})

	deployCmd := NewDeployCmd()
	deployCmd.GroupID = "main"
	rootCmd.AddCommand(deployCmd)

	listCmd := NewListCmd()
	listCmd.GroupID = "management"
	rootCmd.AddCommand(listCmd)

	showCmd := NewShowCmd()
	showCmd.GroupID = "management"
	rootCmd.AddCommand(showCmd)

	removeCmd := NewRemoveCmd()
	removeCmd.GroupID = "management"
	rootCmd.AddCommand(removeCmd)

	configCmd := NewConfigCmd()
	configCmd.GroupID = "management"
	rootCmd.AddCommand(configCmd)

	rootCmd.AddCommand(NewVersionCmd())

	for _, sub := range rootCmd.Commands() {
		releaseAfterRun(sub)
	}

	return rootCmd
}

// releaseAfterRun makes cmd release what PersistentPreRunE acquired whether
// RunE succeeds or not. cobra skips PostRun hooks after an error.
func releaseAfterRun(cmd *cobra.Command) {
	run := cmd.RunE
	if run == nil {
		return
	}
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		defer func() {
			if release, ok := cmd.Context().Value(releaseKey).(func()); ok {
				release()
			}
		}()
		return run(cmd, args)
	}
}

// newProgressSink picks a spinner for interactive text output and a no-op
// sink otherwise. The returned func stops the spinner.
func newProgressSink(v *viper.Viper) (usecase.ProgressSink, func()) {
	if v.GetBool("json") || v.GetBool("non_interactive") {
		return progress.NewNopSink(), func() {}
	}
	sink := progress.NewSpinnerSink()
	return sink, sink.Stop
}

// getApp retrieves the app instance from the command context
func getApp(cmd *cobra.Command) (*app.App, error) {
	appInstance := cmd.Context().Value(appKey)
	if appInstance == nil {
		return nil, fmt.Errorf("app not initialized")
	}

	app, ok := appInstance.(*app.App)
	if !ok {
		return nil, fmt.Errorf("invalid app instance")
	}

	return app, nil
}
