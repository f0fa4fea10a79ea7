package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/trebuchet-org/treb-proxy/internal/domain"
	"github.com/trebuchet-org/treb-proxy/internal/domain/config"
	"github.com/trebuchet-org/treb-proxy/internal/domain/models"
)

// Deployment stages reported in DeploymentError.Stage
const (
	StageDeployImplementation = "deploy implementation"
	StageDeployProxy          = "deploy proxy"
	StageUpgradeProxy         = "upgrade proxy"
	StageSaveRegistry         = "save registry"
)

// DeployUpgradeableParams contains parameters for a deploy or upgrade
type DeployUpgradeableParams struct {
	// Artifact to deploy. When nil, ContractName is loaded from the build directory.
	Artifact     *models.ContractArtifact
	ContractName string

	// InitArgs are passed to the initializer on first deploy, or on upgrade
	// when Reinitialize is set. RawInitArgs are parsed against the initializer
	// inputs when InitArgs is nil.
	InitArgs    []any
	RawInitArgs []string

	// ConstructorArgs are passed to the implementation constructor
	ConstructorArgs    []any
	RawConstructorArgs []string

	Reinitialize bool
}

func (p DeployUpgradeableParams) hasInitArgs() bool {
	return len(p.InitArgs) > 0 || len(p.RawInitArgs) > 0
}

// DeployUpgradeable deploys contracts behind upgradeable proxies and keeps
// the proxy registry in sync.
type DeployUpgradeable struct {
	cfg       *config.RuntimeConfig
	artifacts ArtifactRepository
	registry  ProxyRegistryStore
	chain     ChainClient
	strategy  ProxyStrategy
	args      ArgumentParser
	sink      ProgressSink
	log       *slog.Logger
	now       func() time.Time
}

// NewDeployUpgradeable creates a new DeployUpgradeable use case
func NewDeployUpgradeable(
	cfg *config.RuntimeConfig,
	artifacts ArtifactRepository,
	registry ProxyRegistryStore,
	chain ChainClient,
	strategy ProxyStrategy,
	args ArgumentParser,
	sink ProgressSink,
	log *slog.Logger,
) *DeployUpgradeable {
	return &DeployUpgradeable{
		cfg:       cfg,
		artifacts: artifacts,
		registry:  registry,
		chain:     chain,
		strategy:  strategy,
		args:      args,
		sink:      sink,
		log:       log.With("component", "DeployUpgradeable"),
		now:       time.Now,
	}
}

// Run deploys the contract behind a new proxy, or upgrades the proxy already
// recorded for it in the registry. The proxy address never changes once recorded.
//
// Run is not idempotent: every call deploys a new implementation. On any
// failure the registry is left as it was.
func (uc *DeployUpgradeable) Run(ctx context.Context, params DeployUpgradeableParams) (*models.DeployResult, error) {
	if err := uc.cfg.Deployment.ValidateForDeploy(); err != nil {
		return nil, err
	}

	artifact, err := uc.resolveArtifact(ctx, params)
	if err != nil {
		return nil, err
	}

	registry, err := uc.registry.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load proxy registry: %w", err)
	}

	ctorData, err := uc.encodeConstructor(artifact, params)
	if err != nil {
		return nil, err
	}

	existing := registry.Get(artifact.Name)
	if existing == nil {
		initData, err := uc.encodeInitializer(artifact, params)
		if err != nil {
			return nil, err
		}
		return uc.deployNew(ctx, artifact, ctorData, initData)
	}

	if existing.Kind != "" && existing.Kind != uc.strategy.Kind() {
		return nil, &domain.ConfigError{
			Field:  "proxy_kind",
			Reason: fmt.Sprintf("%s is recorded as a %s proxy but %s is configured", artifact.Name, existing.Kind, uc.strategy.Kind()),
		}
	}

	var initData []byte
	if params.Reinitialize {
		if _, ok := artifact.Initializer(); !ok {
			return nil, &domain.ConfigError{
				Field:  "reinitialize",
				Reason: fmt.Sprintf("%s declares no initializer", artifact.Name),
			}
		}
		if initData, err = uc.encodeInitializer(artifact, params); err != nil {
			return nil, err
		}
	} else if params.hasInitArgs() {
		uc.log.Warn("ignoring initializer arguments on upgrade; pass reinitialize to call the initializer",
			"contract", artifact.Name)
		uc.sink.Info(fmt.Sprintf("Ignoring initializer arguments: %s is already deployed", artifact.Name))
	}

	return uc.upgrade(ctx, artifact, existing, ctorData, initData)
}

func (uc *DeployUpgradeable) deployNew(ctx context.Context, artifact *models.ContractArtifact, ctorData, initData []byte) (*models.DeployResult, error) {
	name := artifact.Name
	uc.transition(ctx, name, models.DeployStateNotDeployed, models.DeployStateDeploying)

	implAddr, implTx, err := uc.deployImplementation(ctx, artifact, ctorData)
	if err != nil {
		return nil, err
	}

	admin := uc.cfg.Deployment.Admin
	if admin == (common.Address{}) {
		admin = uc.chain.SignerAddress()
	}

	uc.sink.OnProgress(ctx, ProgressEvent{
		Stage:   string(models.DeployStateDeploying),
		Message: fmt.Sprintf("Deploying %s proxy for %s", uc.strategy.Kind(), name),
		Spinner: true,
	})
	sub, err := submitWithRetry(ctx, uc.cfg.Deployment.Retry, uc.log, StageDeployProxy, func() (*ProxySubmission, error) {
		return uc.strategy.DeployProxy(ctx, implAddr, admin, initData)
	})
	if err != nil {
		return nil, uc.fail(name, StageDeployProxy, common.Hash{}, err)
	}
	receipt, err := uc.waitFor(ctx, sub.TxHash)
	if err != nil {
		return nil, uc.fail(name, StageDeployProxy, sub.TxHash, err)
	}
	proxyAddr, err := uc.strategy.ResolveProxyAddress(sub, receipt)
	if err != nil {
		return nil, uc.fail(name, StageDeployProxy, sub.TxHash, err)
	}

	record := &models.ProxyRecord{
		Address:        proxyAddr,
		Implementation: implAddr,
		Kind:           uc.strategy.Kind(),
		Admin:          admin,
		LastDeployedAt: uc.now().UTC(),
	}
	if err := uc.persist(ctx, name, record); err != nil {
		return nil, err
	}
	uc.transition(ctx, name, models.DeployStateDeploying, models.DeployStateDeployed)

	return &models.DeployResult{
		ContractName:          name,
		ContractAddress:       proxyAddr,
		ImplementationAddress: implAddr,
		Kind:                  uc.strategy.Kind(),
		TransactionHash:       implTx,
		ProxyTransactionHash:  sub.TxHash,
		SignerAddress:         uc.chain.SignerAddress(),
		ProviderEndpoint:      uc.chain.ProviderEndpoint(),
		IsNewProxy:            true,
		ABI:                   artifact.ABI,
	}, nil
}

func (uc *DeployUpgradeable) upgrade(ctx context.Context, artifact *models.ContractArtifact, existing *models.ProxyRecord, ctorData, initData []byte) (*models.DeployResult, error) {
	name := artifact.Name
	uc.transition(ctx, name, models.DeployStateDeployed, models.DeployStateUpgrading)

	implAddr, implTx, err := uc.deployImplementation(ctx, artifact, ctorData)
	if err != nil {
		return nil, err
	}

	uc.sink.OnProgress(ctx, ProgressEvent{
		Stage:   string(models.DeployStateUpgrading),
		Message: fmt.Sprintf("Upgrading proxy %s to %s", existing.Address.Hex(), implAddr.Hex()),
		Spinner: true,
	})
	upgradeTx, err := submitWithRetry(ctx, uc.cfg.Deployment.Retry, uc.log, StageUpgradeProxy, func() (common.Hash, error) {
		return uc.strategy.UpgradeProxy(ctx, existing.Address, implAddr, initData)
	})
	if err != nil {
		return nil, uc.fail(name, StageUpgradeProxy, common.Hash{}, err)
	}
	if _, err := uc.waitFor(ctx, upgradeTx); err != nil {
		return nil, uc.fail(name, StageUpgradeProxy, upgradeTx, err)
	}

	record := existing.Clone()
	record.Implementation = implAddr
	record.Kind = uc.strategy.Kind()
	record.LastDeployedAt = uc.now().UTC()
	if err := uc.persist(ctx, name, record); err != nil {
		return nil, err
	}
	uc.transition(ctx, name, models.DeployStateUpgrading, models.DeployStateDeployed)

	return &models.DeployResult{
		ContractName:          name,
		ContractAddress:       existing.Address,
		ImplementationAddress: implAddr,
		Kind:                  uc.strategy.Kind(),
		TransactionHash:       implTx,
		ProxyTransactionHash:  upgradeTx,
		SignerAddress:         uc.chain.SignerAddress(),
		ProviderEndpoint:      uc.chain.ProviderEndpoint(),
		IsNewProxy:            false,
		Reinitialized:         len(initData) > 0,
		ABI:                   artifact.ABI,
	}, nil
}

type sentDeploy struct {
	address common.Address
	hash    common.Hash
}

func (uc *DeployUpgradeable) deployImplementation(ctx context.Context, artifact *models.ContractArtifact, ctorData []byte) (common.Address, common.Hash, error) {
	uc.sink.OnProgress(ctx, ProgressEvent{
		Stage:   "implementation",
		Message: fmt.Sprintf("Deploying %s implementation", artifact.Name),
		Spinner: true,
	})

	sent, err := submitWithRetry(ctx, uc.cfg.Deployment.Retry, uc.log, StageDeployImplementation, func() (sentDeploy, error) {
		addr, hash, err := uc.chain.SendDeployTransaction(ctx, artifact.Bytecode, ctorData)
		return sentDeploy{address: addr, hash: hash}, err
	})
	if err != nil {
		return common.Address{}, common.Hash{}, uc.fail(artifact.Name, StageDeployImplementation, common.Hash{}, err)
	}
	uc.log.Debug("implementation submitted", "contract", artifact.Name, "tx", sent.hash.Hex(), "address", sent.address.Hex())

	receipt, err := uc.waitFor(ctx, sent.hash)
	if err != nil {
		return common.Address{}, common.Hash{}, uc.fail(artifact.Name, StageDeployImplementation, sent.hash, err)
	}
	if receipt.ContractAddress != (common.Address{}) {
		sent.address = receipt.ContractAddress
	}
	return sent.address, sent.hash, nil
}

// waitFor waits for a receipt within the confirmation timeout and rejects failed receipts
func (uc *DeployUpgradeable) waitFor(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	timeout := uc.cfg.Deployment.ConfirmationTimeout
	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	receipt, err := uc.chain.WaitForConfirmation(waitCtx, txHash)
	if err != nil {
		if !errors.Is(err, domain.ErrTimeout) && ctx.Err() == nil && errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
			return nil, &domain.TimeoutError{TxHash: txHash.Hex(), Timeout: timeout}
		}
		return receipt, err
	}
	if receipt == nil {
		return nil, fmt.Errorf("no receipt for %s", txHash.Hex())
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w in block %v", domain.ErrTransactionReverted, receipt.BlockNumber)
	}
	return receipt, nil
}

// persist re-reads the registry right before writing so entries added by
// other processes since Run started are kept.
func (uc *DeployUpgradeable) persist(ctx context.Context, name string, record *models.ProxyRecord) error {
	latest, err := uc.registry.Load(ctx)
	if err != nil {
		return uc.fail(name, StageSaveRegistry, common.Hash{},
			fmt.Errorf("proxy %s is live but the registry could not be reloaded: %w", record.Address.Hex(), err))
	}
	latest.Upsert(name, record)
	if err := uc.registry.Save(ctx, latest); err != nil {
		return uc.fail(name, StageSaveRegistry, common.Hash{},
			fmt.Errorf("proxy %s is live but %s could not be written: %w", record.Address.Hex(), uc.registry.Path(), err))
	}
	uc.log.Info("registry updated", "contract", name, "proxy", record.Address.Hex(), "implementation", record.Implementation.Hex())
	return nil
}

func (uc *DeployUpgradeable) resolveArtifact(ctx context.Context, params DeployUpgradeableParams) (*models.ContractArtifact, error) {
	if params.Artifact != nil {
		if params.Artifact.Name == "" {
			return nil, &domain.ConfigError{Field: "artifact", Reason: "artifact has no contract name"}
		}
		return params.Artifact, nil
	}
	if params.ContractName == "" {
		return nil, &domain.ConfigError{Field: "contract", Reason: "a contract name or artifact is required"}
	}
	return uc.artifacts.Load(ctx, params.ContractName)
}

func (uc *DeployUpgradeable) encodeConstructor(artifact *models.ContractArtifact, params DeployUpgradeableParams) ([]byte, error) {
	inputs := artifact.ConstructorInputs()
	values := params.ConstructorArgs
	if values == nil && len(params.RawConstructorArgs) > 0 {
		parsed, err := uc.args.ParseArgs(inputs, params.RawConstructorArgs)
		if err != nil {
			return nil, &domain.ConfigError{Field: "constructor_args", Reason: "cannot parse arguments", Err: err}
		}
		values = parsed
	}
	if len(values) != len(inputs) {
		return nil, &domain.ConfigError{
			Field:  "constructor_args",
			Reason: fmt.Sprintf("%s constructor expects %d arguments, got %d", artifact.Name, len(inputs), len(values)),
		}
	}
	if len(inputs) == 0 {
		return nil, nil
	}
	data, err := artifact.ABI.Pack("", values...)
	if err != nil {
		return nil, &domain.ConfigError{Field: "constructor_args", Reason: "cannot encode arguments", Err: err}
	}
	return data, nil
}

// encodeInitializer returns the initializer calldata, or nil when the
// artifact has no initializer and no arguments were given.
func (uc *DeployUpgradeable) encodeInitializer(artifact *models.ContractArtifact, params DeployUpgradeableParams) ([]byte, error) {
	method, ok := artifact.Initializer()
	if !ok {
		if params.hasInitArgs() {
			return nil, &domain.ConfigError{
				Field:  "args",
				Reason: fmt.Sprintf("%s declares no initializer to receive arguments", artifact.Name),
			}
		}
		return nil, nil
	}

	values := params.InitArgs
	if values == nil && len(params.RawInitArgs) > 0 {
		parsed, err := uc.args.ParseArgs(method.Inputs, params.RawInitArgs)
		if err != nil {
			return nil, &domain.ConfigError{Field: "args", Reason: "cannot parse initializer arguments", Err: err}
		}
		values = parsed
	}
	if len(values) != len(method.Inputs) {
		return nil, &domain.ConfigError{
			Field:  "args",
			Reason: fmt.Sprintf("%s.%s expects %d arguments, got %d", artifact.Name, method.RawName, len(method.Inputs), len(values)),
		}
	}

	data, err := artifact.ABI.Pack(method.Name, values...)
	if err != nil {
		return nil, &domain.ConfigError{Field: "args", Reason: "cannot encode initializer arguments", Err: err}
	}
	return data, nil
}

func (uc *DeployUpgradeable) transition(ctx context.Context, name string, from, to models.DeployState) {
	uc.log.Debug("deploy state", "contract", name, "from", from, "to", to)
	uc.sink.OnProgress(ctx, ProgressEvent{Stage: string(to), Message: fmt.Sprintf("%s: %s", name, to)})
}

func (uc *DeployUpgradeable) fail(name, stage string, txHash common.Hash, err error) error {
	de := &domain.DeploymentError{ContractName: name, Stage: stage, Err: err}
	if txHash != (common.Hash{}) {
		de.TxHash = txHash.Hex()
	}
	uc.log.Error("deployment failed", "contract", name, "stage", stage, "tx", de.TxHash, "error", err)
	uc.sink.Error(de.Error())
	return de
}

// submitWithRetry retries send on submission errors according to policy.
// Configuration errors are never retried.
func submitWithRetry[T any](ctx context.Context, policy config.RetryPolicy, log *slog.Logger, stage string, send func() (T, error)) (T, error) {
	if policy.MaxAttempts <= 1 {
		return send()
	}

	b := backoff.NewExponentialBackOff()
	if policy.InitialInterval > 0 {
		b.InitialInterval = policy.InitialInterval
	}

	return backoff.Retry(ctx, func() (T, error) {
		v, err := send()
		if err != nil && errors.Is(err, domain.ErrConfig) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(policy.MaxAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn("transaction submission failed, retrying", "stage", stage, "error", err, "retry_in", next)
		}),
	)
}
