package config

import (
	"strings"

	"github.com/samber/lo"
	"github.com/trebuchet-org/treb-proxy/internal/domain"
	"github.com/trebuchet-org/treb-proxy/internal/domain/config"
)

// NetworkResolver resolves network names against foundry.toml [rpc_endpoints]
type NetworkResolver struct {
	foundryConfig *config.FoundryConfig
}

// NewNetworkResolver creates a new network resolver
func NewNetworkResolver(foundryConfig *config.FoundryConfig) *NetworkResolver {
	return &NetworkResolver{foundryConfig: foundryConfig}
}

// Resolve resolves a network name to its configuration
func (r *NetworkResolver) Resolve(networkName string) (*config.Network, error) {
	endpoints := r.endpoints()
	rpcURL, exists := endpoints[networkName]
	if !exists {
		return nil, &domain.NotFoundError{
			Kind:        "network",
			Name:        networkName,
			Path:        "foundry.toml [rpc_endpoints]",
			Suggestions: domain.Suggest(networkName, lo.Keys(endpoints)),
		}
	}

	// An unset variable expands to nothing or leaves the URL without a host
	if strings.TrimSpace(rpcURL) == "" || strings.HasSuffix(rpcURL, "://") {
		return nil, &domain.ConfigError{Field: "network", Reason: "rpc endpoint for " + networkName + " is empty; is its environment variable set?"}
	}

	return &config.Network{Name: networkName, RPCURL: rpcURL}, nil
}

func (r *NetworkResolver) endpoints() map[string]string {
	if r.foundryConfig == nil {
		return nil
	}
	return r.foundryConfig.RpcEndpoints
}
