package adapters

import (
	"github.com/google/wire"
	"github.com/trebuchet-org/treb-proxy/internal/adapters/artifacts"
	"github.com/trebuchet-org/treb-proxy/internal/adapters/blockchain"
	"github.com/trebuchet-org/treb-proxy/internal/adapters/environment"
	"github.com/trebuchet-org/treb-proxy/internal/adapters/interactive"
	"github.com/trebuchet-org/treb-proxy/internal/adapters/proxy"
	"github.com/trebuchet-org/treb-proxy/internal/adapters/registry"
	"github.com/trebuchet-org/treb-proxy/internal/usecase"
)

// FSSet provides filesystem-based implementations
var FSSet = wire.NewSet(
	registry.NewFileStore,
	wire.Bind(new(usecase.ProxyRegistryStore), new(*registry.FileStore)),

	artifacts.NewRepository,
	wire.Bind(new(usecase.ArtifactRepository), new(*artifacts.Repository)),
)

// InteractiveSet provides interactive implementations
var InteractiveSet = wire.NewSet(
	interactive.NewSelectorAdapter,
	wire.Bind(new(usecase.ArtifactSelector), new(*interactive.SelectorAdapter)),
	wire.Bind(new(usecase.Confirmer), new(*interactive.SelectorAdapter)),
)

// BlockchainSet provides blockchain-based implementations
var BlockchainSet = wire.NewSet(
	blockchain.Dial,
	wire.Bind(new(usecase.ChainClient), new(*blockchain.Client)),

	proxy.NewStrategy,

	environment.NewArgParser,
	wire.Bind(new(usecase.ArgumentParser), new(*environment.ArgParser)),
)

// AllAdapters includes all adapter sets
var AllAdapters = wire.NewSet(
	FSSet,
	InteractiveSet,
	BlockchainSet,
)
