package usecase

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/trebuchet-org/treb-proxy/internal/domain/config"
	"github.com/trebuchet-org/treb-proxy/internal/domain/models"
)

// ShowConfigResult is the resolved configuration with secrets removed
type ShowConfigResult struct {
	NetworkName         string           `json:"network,omitempty"`
	NodeURL             string           `json:"rpcUrl,omitempty"`
	Signer              *common.Address  `json:"signer,omitempty"`
	BuildDir            string           `json:"buildDir"`
	RegistryPath        string           `json:"registry"`
	ProxyKind           models.ProxyKind `json:"proxyKind"`
	ProxyArtifact       string           `json:"proxyArtifact,omitempty"`
	FactoryAddress      *common.Address  `json:"factoryAddress,omitempty"`
	Admin               *common.Address  `json:"admin,omitempty"`
	ConfirmationTimeout time.Duration    `json:"confirmationTimeout"`
	RetryAttempts       uint             `json:"retryAttempts"`
	ConfigPath          string           `json:"configPath"`
	ConfigExists        bool             `json:"configExists"`
}

// ShowConfig is a use case for showing configuration
type ShowConfig struct {
	cfg *config.RuntimeConfig
}

// NewShowConfig creates a new ShowConfig use case
func NewShowConfig(cfg *config.RuntimeConfig) *ShowConfig {
	return &ShowConfig{cfg: cfg}
}

// Run executes the show config use case
func (uc *ShowConfig) Run(ctx context.Context) (*ShowConfigResult, error) {
	dc := uc.cfg.Deployment
	configPath := filepath.Join(uc.cfg.DataDir, "config.local.json")
	_, statErr := os.Stat(configPath)

	result := &ShowConfigResult{
		NodeURL:             dc.NodeURL,
		BuildDir:            dc.BuildDir,
		RegistryPath:        dc.RegistryPath,
		ProxyKind:           dc.ProxyKind,
		ConfirmationTimeout: dc.ConfirmationTimeout,
		RetryAttempts:       dc.Retry.MaxAttempts,
		ConfigPath:          configPath,
		ConfigExists:        statErr == nil,
	}
	if uc.cfg.Network != nil {
		result.NetworkName = uc.cfg.Network.Name
	}
	if dc.PrivateKey != "" {
		key, err := config.ParsePrivateKey(dc.PrivateKey)
		if err != nil {
			return nil, err
		}
		signer := crypto.PubkeyToAddress(key.PublicKey)
		result.Signer = &signer
	}

	switch dc.ProxyKind {
	case models.ProxyKindFactory:
		factory := dc.FactoryAddress
		result.FactoryAddress = &factory
	default:
		result.ProxyArtifact = dc.ProxyArtifact
	}
	if dc.Admin != (common.Address{}) {
		admin := dc.Admin
		result.Admin = &admin
	}

	return result, nil
}
