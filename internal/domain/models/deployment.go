package models

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// DeployState tracks a single contract through a deploy call
type DeployState string

const (
	DeployStateNotDeployed DeployState = "not_deployed"
	DeployStateDeploying   DeployState = "deploying"
	DeployStateUpgrading   DeployState = "upgrading"
	DeployStateDeployed    DeployState = "deployed"
)

// DeployResult is produced once per successful deploy call
type DeployResult struct {
	ContractName          string         `json:"contractName"`
	ContractAddress       common.Address `json:"contractAddress"`
	ImplementationAddress common.Address `json:"implementationAddress"`
	Kind                  ProxyKind      `json:"kind"`

	// TransactionHash is the implementation deployment transaction.
	TransactionHash common.Hash `json:"transactionHash"`
	// ProxyTransactionHash is the proxy creation or upgrade transaction.
	ProxyTransactionHash common.Hash `json:"proxyTransactionHash"`

	SignerAddress    common.Address `json:"signerAddress"`
	ProviderEndpoint string         `json:"providerEndpoint"`
	IsNewProxy       bool           `json:"isNewProxy"`
	Reinitialized    bool           `json:"reinitialized,omitempty"`

	ABI abi.ABI `json:"-"`
}
