package proxy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/trebuchet-org/treb-proxy/internal/domain"
	"github.com/trebuchet-org/treb-proxy/internal/domain/models"
	"github.com/trebuchet-org/treb-proxy/internal/usecase"
)

const upgradeableProxyABI = `[
  {"type":"function","name":"upgradeTo","inputs":[{"name":"newImplementation","type":"address"}],"outputs":[],"stateMutability":"nonpayable"},
  {"type":"function","name":"upgradeToAndCall","inputs":[{"name":"newImplementation","type":"address"},{"name":"data","type":"bytes"}],"outputs":[],"stateMutability":"payable"}
]`

var proxyABI = mustParseABI(upgradeableProxyABI)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(fmt.Sprintf("invalid built-in ABI: %v", err))
	}
	return parsed
}

// TransparentStrategy deploys one admin-upgradeable proxy per contract from
// the proxy artifact in the build directory. The proxy constructor takes
// (address logic, address admin, bytes data).
type TransparentStrategy struct {
	chain        usecase.ChainClient
	artifacts    usecase.ArtifactRepository
	artifactName string
	log          *slog.Logger
}

// NewTransparentStrategy creates a strategy that deploys artifactName proxies
func NewTransparentStrategy(chain usecase.ChainClient, artifacts usecase.ArtifactRepository, artifactName string, log *slog.Logger) *TransparentStrategy {
	return &TransparentStrategy{
		chain:        chain,
		artifacts:    artifacts,
		artifactName: artifactName,
		log:          log.With("component", "TransparentStrategy"),
	}
}

func (s *TransparentStrategy) Kind() models.ProxyKind {
	return models.ProxyKindTransparent
}

// DeployProxy deploys a new proxy pointing at implementation
func (s *TransparentStrategy) DeployProxy(ctx context.Context, implementation, admin common.Address, initData []byte) (*usecase.ProxySubmission, error) {
	artifact, err := s.artifacts.Load(ctx, s.artifactName)
	if err != nil {
		return nil, fmt.Errorf("failed to load proxy artifact: %w", err)
	}

	inputs := artifact.ConstructorInputs()
	if len(inputs) != 3 {
		return nil, &domain.ConfigError{
			Field:  "proxy_artifact",
			Reason: fmt.Sprintf("%s constructor must take (address, address, bytes), it takes %d arguments", artifact.Name, len(inputs)),
		}
	}
	if initData == nil {
		initData = []byte{}
	}
	args, err := artifact.ABI.Pack("", implementation, admin, initData)
	if err != nil {
		return nil, &domain.ConfigError{Field: "proxy_artifact", Reason: "cannot encode proxy constructor", Err: err}
	}

	addr, hash, err := s.chain.SendDeployTransaction(ctx, artifact.Bytecode, args)
	if err != nil {
		return nil, err
	}
	s.log.Debug("proxy deployment sent", "proxy", addr.Hex(), "implementation", implementation.Hex(), "tx", hash.Hex())
	return &usecase.ProxySubmission{TxHash: hash, Address: addr}, nil
}

// ResolveProxyAddress prefers the receipt's contract address over the prediction
func (s *TransparentStrategy) ResolveProxyAddress(sub *usecase.ProxySubmission, receipt *types.Receipt) (common.Address, error) {
	if receipt != nil && receipt.ContractAddress != (common.Address{}) {
		return receipt.ContractAddress, nil
	}
	if sub.Address == (common.Address{}) {
		return common.Address{}, fmt.Errorf("no contract address for proxy transaction %s", sub.TxHash.Hex())
	}
	return sub.Address, nil
}

// UpgradeProxy points proxy at implementation, calling initData through the
// proxy when it is not empty.
func (s *TransparentStrategy) UpgradeProxy(ctx context.Context, proxy, implementation common.Address, initData []byte) (common.Hash, error) {
	var (
		data []byte
		err  error
	)
	if len(initData) == 0 {
		data, err = proxyABI.Pack("upgradeTo", implementation)
	} else {
		data, err = proxyABI.Pack("upgradeToAndCall", implementation, initData)
	}
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode upgrade call: %w", err)
	}
	return s.chain.SendCallTransaction(ctx, proxy, data)
}

var _ usecase.ProxyStrategy = (*TransparentStrategy)(nil)
