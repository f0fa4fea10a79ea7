package usecase

import (
	"context"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/trebuchet-org/treb-proxy/internal/domain/models"
)

// ArtifactRepository loads compiled contract artifacts
type ArtifactRepository interface {
	Load(ctx context.Context, contractName string) (*models.ContractArtifact, error)
	List(ctx context.Context) ([]string, error)
}

// ProxyRegistryStore handles persistence of the proxy registry
type ProxyRegistryStore interface {
	// Load returns an empty registry when the file does not exist
	Load(ctx context.Context) (models.ProxyRegistry, error)
	// Save replaces the registry file atomically
	Save(ctx context.Context, registry models.ProxyRegistry) error
	Path() string
}

// ChainClient sends signed transactions and waits for their receipts
type ChainClient interface {
	// SendDeployTransaction submits a contract creation with bytecode followed
	// by the encoded constructor args, returning the expected contract address.
	SendDeployTransaction(ctx context.Context, bytecode []byte, args []byte) (common.Address, common.Hash, error)
	SendCallTransaction(ctx context.Context, to common.Address, data []byte) (common.Hash, error)
	// WaitForConfirmation blocks until the transaction is mined or ctx expires.
	// A mined transaction with failed status is returned together with an error.
	WaitForConfirmation(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	SignerAddress() common.Address
	ProviderEndpoint() string
}

// ProxySubmission is a proxy creation transaction that has been sent
type ProxySubmission struct {
	TxHash common.Hash
	// Address is the predicted proxy address, zero when it is only known from the receipt
	Address common.Address
}

// ProxyStrategy creates and upgrades one kind of proxy
type ProxyStrategy interface {
	Kind() models.ProxyKind
	DeployProxy(ctx context.Context, implementation, admin common.Address, initData []byte) (*ProxySubmission, error)
	ResolveProxyAddress(submission *ProxySubmission, receipt *types.Receipt) (common.Address, error)
	UpgradeProxy(ctx context.Context, proxy, implementation common.Address, initData []byte) (common.Hash, error)
}

// ArgumentParser converts command line strings into ABI-typed values
type ArgumentParser interface {
	ParseArgs(inputs abi.Arguments, raw []string) ([]any, error)
}

// Confirmer asks the user to confirm a destructive action
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// ArtifactSelector lets the user pick one artifact when none was named
type ArtifactSelector interface {
	SelectArtifact(ctx context.Context, names []string, prompt string) (string, error)
}

// Progress tracking interfaces

// ProgressEvent represents a progress update
type ProgressEvent struct {
	Stage    string
	Current  int
	Total    int
	Message  string
	Spinner  bool
	Metadata interface{}
}

// ProgressSink receives progress events
type ProgressSink interface {
	OnProgress(ctx context.Context, event ProgressEvent)
	Info(message string)
	Error(message string)
}

// NopProgress is a no-op implementation of ProgressSink
type NopProgress struct{}

func (NopProgress) OnProgress(context.Context, ProgressEvent) {}
func (NopProgress) Info(string)                               {}
func (NopProgress) Error(string)                              {}
