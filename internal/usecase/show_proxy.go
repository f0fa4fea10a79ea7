package usecase

import (
	"context"

	"github.com/trebuchet-org/treb-proxy/internal/domain"
	"github.com/trebuchet-org/treb-proxy/internal/domain/models"
)

// ShowProxy is the use case for looking up a single proxy record
type ShowProxy struct {
	registry ProxyRegistryStore
}

// NewShowProxy creates a new ShowProxy use case
func NewShowProxy(registry ProxyRegistryStore) *ShowProxy {
	return &ShowProxy{registry: registry}
}

// Run returns the record for contractName or a NotFoundError with suggestions
func (uc *ShowProxy) Run(ctx context.Context, contractName string) (*models.ProxyRecord, error) {
	registry, err := uc.registry.Load(ctx)
	if err != nil {
		return nil, err
	}
	return lookupProxy(registry, contractName, uc.registry.Path())
}

func lookupProxy(registry models.ProxyRegistry, name, path string) (*models.ProxyRecord, error) {
	if rec := registry.Get(name); rec != nil {
		return rec, nil
	}
	return nil, &domain.NotFoundError{
		Kind:        "proxy",
		Name:        name,
		Path:        path,
		Suggestions: domain.Suggest(name, registry.Names()),
	}
}
