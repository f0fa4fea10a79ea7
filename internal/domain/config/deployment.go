package config

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/trebuchet-org/treb-proxy/internal/domain"
	"github.com/trebuchet-org/treb-proxy/internal/domain/models"
)

const (
	DefaultBuildDir            = "build"
	DefaultRegistryFile        = "proxy.json"
	DefaultProxyArtifact       = "AdminUpgradeabilityProxy"
	DefaultConfirmationTimeout = 5 * time.Minute
	DefaultPollInterval        = time.Second
	DefaultRetryInterval       = 2 * time.Second
)

// RetryPolicy controls resubmission of transactions whose submission failed.
// Reverted or unconfirmed transactions are never retried.
type RetryPolicy struct {
	MaxAttempts     uint
	InitialInterval time.Duration
}

// DeploymentConfig holds everything needed to talk to a node and deploy.
// It is resolved once at startup and not modified afterwards.
type DeploymentConfig struct {
	NodeURL    string
	PrivateKey string

	GasPrice *big.Int // nil means ask the node
	GasLimit uint64   // 0 means estimate

	BuildDir     string
	RegistryPath string

	ProxyKind      models.ProxyKind
	ProxyArtifact  string
	FactoryAddress common.Address
	Admin          common.Address // zero means the signer

	ConfirmationTimeout time.Duration
	PollInterval        time.Duration
	Retry               RetryPolicy
}

// Validate checks the settings that are present. Missing node URL or key are
// accepted here so that read-only commands work without them.
func (c DeploymentConfig) Validate() error {
	if c.NodeURL != "" {
		if err := validateNodeURL(c.NodeURL); err != nil {
			return err
		}
	}
	if c.PrivateKey != "" {
		if _, err := ParsePrivateKey(c.PrivateKey); err != nil {
			return err
		}
	}
	if !c.ProxyKind.Valid() {
		return &domain.ConfigError{Field: "proxy_kind", Reason: "must be transparent or factory, got " + string(c.ProxyKind)}
	}
	if c.ProxyKind == models.ProxyKindFactory && c.FactoryAddress == (common.Address{}) {
		return &domain.ConfigError{Field: "factory_address", Reason: "required when proxy_kind is factory"}
	}
	if c.ProxyKind == models.ProxyKindTransparent && c.ProxyArtifact == "" {
		return &domain.ConfigError{Field: "proxy_artifact", Reason: "required when proxy_kind is transparent"}
	}
	if c.BuildDir == "" {
		return &domain.ConfigError{Field: "build_dir", Reason: "must not be empty"}
	}
	if c.RegistryPath == "" {
		return &domain.ConfigError{Field: "registry", Reason: "must not be empty"}
	}
	if c.GasPrice != nil && c.GasPrice.Sign() < 0 {
		return &domain.ConfigError{Field: "gas_price", Reason: "must not be negative"}
	}
	return nil
}

// ValidateForDeploy additionally requires a node and a signing key
func (c DeploymentConfig) ValidateForDeploy() error {
	if c.NodeURL == "" {
		return &domain.ConfigError{Field: "rpc_url", Reason: "a node URL is required (use --rpc-url or --network)"}
	}
	if c.PrivateKey == "" {
		return &domain.ConfigError{Field: "private_key", Reason: "a private key is required to sign transactions"}
	}
	return c.Validate()
}

func validateNodeURL(raw string) error {
	// IPC endpoints are plain filesystem paths
	if strings.HasSuffix(raw, ".ipc") {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return &domain.ConfigError{Field: "rpc_url", Reason: "malformed URL", Err: err}
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return &domain.ConfigError{Field: "rpc_url", Reason: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}
	if u.Host == "" {
		return &domain.ConfigError{Field: "rpc_url", Reason: "missing host"}
	}
	return nil
}

// ParsePrivateKey decodes a hex private key with or without 0x prefix
func ParsePrivateKey(privateKeyHex string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, &domain.ConfigError{Field: "private_key", Reason: "not a valid secp256k1 hex key", Err: err}
	}
	return key, nil
}
