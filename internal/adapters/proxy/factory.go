package proxy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/lmittmann/w3"
	"github.com/trebuchet-org/treb-proxy/internal/domain/models"
	"github.com/trebuchet-org/treb-proxy/internal/usecase"
)

var (
	funcDeployAndCall  = w3.MustNewFunc("deployAndCall(address,address,bytes)", "address")
	funcUpgrade        = w3.MustNewFunc("upgrade(address,address)", "")
	funcUpgradeAndCall = w3.MustNewFunc("upgradeAndCall(address,address,bytes)", "")
	eventDeployed      = w3.MustNewEvent("Deployed(address indexed,address indexed,address indexed)")
)

// FactoryStrategy creates ERC1967 proxies through a shared ERC1967Factory.
// The signer must be the proxy admin to upgrade through the factory.
type FactoryStrategy struct {
	chain   usecase.ChainClient
	factory common.Address
	log     *slog.Logger
}

// NewFactoryStrategy creates a strategy using the factory at factory
func NewFactoryStrategy(chain usecase.ChainClient, factory common.Address, log *slog.Logger) *FactoryStrategy {
	return &FactoryStrategy{
		chain:   chain,
		factory: factory,
		log:     log.With("component", "FactoryStrategy", "factory", factory.Hex()),
	}
}

func (s *FactoryStrategy) Kind() models.ProxyKind {
	return models.ProxyKindFactory
}

// DeployProxy calls deployAndCall on the factory. The proxy address is only
// known from the Deployed event in the receipt.
func (s *FactoryStrategy) DeployProxy(ctx context.Context, implementation, admin common.Address, initData []byte) (*usecase.ProxySubmission, error) {
	if initData == nil {
		initData = []byte{}
	}
	calldata, err := funcDeployAndCall.EncodeArgs(implementation, admin, initData)
	if err != nil {
		return nil, fmt.Errorf("failed to encode deployAndCall: %w", err)
	}
	hash, err := s.chain.SendCallTransaction(ctx, s.factory, calldata)
	if err != nil {
		return nil, err
	}
	s.log.Debug("factory deployment sent", "implementation", implementation.Hex(), "tx", hash.Hex())
	return &usecase.ProxySubmission{TxHash: hash}, nil
}

// ResolveProxyAddress reads the proxy address from the factory's Deployed event
func (s *FactoryStrategy) ResolveProxyAddress(sub *usecase.ProxySubmission, receipt *types.Receipt) (common.Address, error) {
	if receipt == nil {
		return common.Address{}, fmt.Errorf("no receipt for factory transaction %s", sub.TxHash.Hex())
	}
	for _, log := range receipt.Logs {
		if log.Address != s.factory {
			continue
		}
		var proxy, implementation, admin common.Address
		if err := eventDeployed.DecodeArgs(log, &proxy, &implementation, &admin); err == nil {
			return proxy, nil
		}
	}
	return common.Address{}, fmt.Errorf("Deployed event from factory %s not found in receipt of %s", s.factory.Hex(), sub.TxHash.Hex())
}

// UpgradeProxy calls upgrade or upgradeAndCall on the factory
func (s *FactoryStrategy) UpgradeProxy(ctx context.Context, proxy, implementation common.Address, initData []byte) (common.Hash, error) {
	var (
		calldata []byte
		err      error
	)
	if len(initData) == 0 {
		calldata, err = funcUpgrade.EncodeArgs(proxy, implementation)
	} else {
		calldata, err = funcUpgradeAndCall.EncodeArgs(proxy, implementation, initData)
	}
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode factory upgrade: %w", err)
	}
	return s.chain.SendCallTransaction(ctx, s.factory, calldata)
}

var _ usecase.ProxyStrategy = (*FactoryStrategy)(nil)
