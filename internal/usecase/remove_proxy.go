package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/trebuchet-org/treb-proxy/internal/domain"
	"github.com/trebuchet-org/treb-proxy/internal/domain/config"
	"github.com/trebuchet-org/treb-proxy/internal/domain/models"
)

// RemoveProxyParams contains parameters for removing a registry entry
type RemoveProxyParams struct {
	ContractName string
	Force        bool // skip confirmation
}

// RemoveProxyResult describes what was removed
type RemoveProxyResult struct {
	Record  *models.ProxyRecord
	Removed bool // false when the user declined
}

// RemoveProxy deletes a record from the registry. The proxy itself stays on chain.
type RemoveProxy struct {
	cfg       *config.RuntimeConfig
	registry  ProxyRegistryStore
	confirmer Confirmer
	log       *slog.Logger
}

// NewRemoveProxy creates a new RemoveProxy use case
func NewRemoveProxy(cfg *config.RuntimeConfig, registry ProxyRegistryStore, confirmer Confirmer, log *slog.Logger) *RemoveProxy {
	return &RemoveProxy{
		cfg:       cfg,
		registry:  registry,
		confirmer: confirmer,
		log:       log.With("component", "RemoveProxy"),
	}
}

// Run executes the remove proxy use case
func (uc *RemoveProxy) Run(ctx context.Context, params RemoveProxyParams) (*RemoveProxyResult, error) {
	registry, err := uc.registry.Load(ctx)
	if err != nil {
		return nil, err
	}

	record, err := lookupProxy(registry, params.ContractName, uc.registry.Path())
	if err != nil {
		return nil, err
	}

	if !params.Force {
		if uc.cfg.NonInteractive {
			return nil, &domain.ConfigError{Field: "yes", Reason: "removing a registry entry in non-interactive mode requires --yes"}
		}
		ok, err := uc.confirmer.Confirm(ctx, fmt.Sprintf("Remove %s (%s) from %s", record.ContractName, record.Address.Hex(), uc.registry.Path()))
		if err != nil {
			return nil, fmt.Errorf("confirmation failed: %w", err)
		}
		if !ok {
			return &RemoveProxyResult{Record: record}, nil
		}
	}

	registry.Remove(params.ContractName)
	if err := uc.registry.Save(ctx, registry); err != nil {
		return nil, fmt.Errorf("failed to save proxy registry: %w", err)
	}
	uc.log.Info("removed registry entry", "contract", params.ContractName, "proxy", record.Address.Hex())

	return &RemoveProxyResult{Record: record, Removed: true}, nil
}
