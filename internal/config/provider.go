package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/trebuchet-org/treb-proxy/internal/domain"
	"github.com/trebuchet-org/treb-proxy/internal/domain/config"
	"github.com/trebuchet-org/treb-proxy/internal/domain/models"
)

// Provider creates RuntimeConfig for Wire dependency injection
func Provider(v *viper.Viper) (*config.RuntimeConfig, error) {
	projectRoot := v.GetString("project_root")
	if projectRoot == "" {
		var err error
		projectRoot, err = FindProjectRoot()
		if err != nil {
			return nil, fmt.Errorf("failed to find project root: %w", err)
		}
	}

	loadDotEnv(projectRoot)

	cfg := &config.RuntimeConfig{
		ProjectRoot:    projectRoot,
		DataDir:        filepath.Join(projectRoot, ".treb"),
		Debug:          v.GetBool("debug"),
		NonInteractive: v.GetBool("non_interactive"),
		JSON:           v.GetBool("json"),
		Timeout:        v.GetDuration("command_timeout"),
	}

	foundryConfig, err := loadFoundryConfig(projectRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to load foundry config: %w", err)
	}
	cfg.FoundryConfig = foundryConfig

	rpcURL := strings.TrimSpace(v.GetString("rpc_url"))
	if networkName := v.GetString("network"); networkName != "" {
		if rpcURL != "" {
			return nil, &domain.ConfigError{Field: "network", Reason: "cannot be combined with rpc_url"}
		}
		network, err := NewNetworkResolver(foundryConfig).Resolve(networkName)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve network %s: %w", networkName, err)
		}
		cfg.Network = network
		rpcURL = network.RPCURL
	} else if rpcURL != "" {
		cfg.Network = &config.Network{RPCURL: rpcURL}
	}

	deployment, err := deploymentConfig(v, projectRoot, foundryConfig)
	if err != nil {
		return nil, err
	}
	deployment.NodeURL = rpcURL
	if err := deployment.Validate(); err != nil {
		return nil, err
	}
	cfg.Deployment = deployment

	return cfg, nil
}

func deploymentConfig(v *viper.Viper, projectRoot string, foundryConfig *config.FoundryConfig) (config.DeploymentConfig, error) {
	dc := config.DeploymentConfig{
		PrivateKey:          strings.TrimSpace(v.GetString("private_key")),
		GasLimit:            v.GetUint64("gas_limit"),
		ProxyKind:           models.ProxyKind(strings.ToLower(v.GetString("proxy_kind"))),
		ProxyArtifact:       v.GetString("proxy_artifact"),
		ConfirmationTimeout: v.GetDuration("confirmation_timeout"),
		PollInterval:        v.GetDuration("poll_interval"),
		Retry: config.RetryPolicy{
			MaxAttempts:     v.GetUint("retry_attempts"),
			InitialInterval: v.GetDuration("retry_interval"),
		},
	}

	if raw := strings.TrimSpace(v.GetString("gas_price")); raw != "" {
		price, ok := new(big.Int).SetString(raw, 0)
		if !ok {
			return dc, &domain.ConfigError{Field: "gas_price", Reason: fmt.Sprintf("%q is not an integer amount of wei", raw)}
		}
		dc.GasPrice = price
	}

	var err error
	if dc.FactoryAddress, err = optionalAddress(v, "factory_address"); err != nil {
		return dc, err
	}
	if dc.Admin, err = optionalAddress(v, "admin"); err != nil {
		return dc, err
	}

	buildDir := v.GetString("build_dir")
	if buildDir == "" {
		buildDir = foundryConfig.OutDir()
	}
	if buildDir == "" {
		buildDir = config.DefaultBuildDir
	}
	dc.BuildDir = resolvePath(projectRoot, buildDir)
	dc.RegistryPath = resolvePath(projectRoot, v.GetString("registry"))

	return dc, nil
}

func optionalAddress(v *viper.Viper, key string) (common.Address, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, &domain.ConfigError{Field: key, Reason: fmt.Sprintf("%q is not a valid address", raw)}
	}
	return common.HexToAddress(raw), nil
}

func resolvePath(root, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// FindProjectRoot walks up from current directory to find foundry.toml,
// falling back to the current directory
func FindProjectRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	dir := cwd
	for {
		if _, err := os.Stat(filepath.Join(dir, "foundry.toml")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return cwd, nil
		}
		dir = parent
	}
}

// SetupViper creates and configures a viper instance
func SetupViper(projectRoot string, cmd *cobra.Command) *viper.Viper {
	v := viper.New()

	v.SetConfigName("config.local")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(projectRoot, ".treb"))

	v.SetEnvPrefix("TREB_PROXY")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	v.SetDefault("project_root", projectRoot)
	v.SetDefault("debug", false)
	v.SetDefault("non_interactive", false)
	v.SetDefault("registry", config.DefaultRegistryFile)
	v.SetDefault("proxy_kind", string(models.ProxyKindTransparent))
	v.SetDefault("proxy_artifact", config.DefaultProxyArtifact)
	v.SetDefault("confirmation_timeout", config.DefaultConfirmationTimeout)
	v.SetDefault("poll_interval", config.DefaultPollInterval)
	v.SetDefault("retry_attempts", 1)
	v.SetDefault("retry_interval", config.DefaultRetryInterval)

	// Try to read config file (ignore error if not found)
	_ = v.ReadInConfig()

	if cmd != nil {
		bind := func(f *pflag.Flag) {
			if err := v.BindPFlag(flagKey(f.Name), f); err != nil {
				panic(err)
			}
		}
		cmd.Flags().VisitAll(bind)
		cmd.InheritedFlags().VisitAll(bind)
	}

	return v
}

// flagKeys lists flags whose config key differs from the flag name
var flagKeys = map[string]string{
	"timeout": "confirmation_timeout",
}

// flagKey maps a flag name like --rpc-url to its config key rpc_url
func flagKey(name string) string {
	if key, ok := flagKeys[name]; ok {
		return key
	}
	return strings.ReplaceAll(name, "-", "_")
}
