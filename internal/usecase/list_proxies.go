package usecase

import (
	"context"
	"strings"

	"github.com/samber/lo"
	"github.com/trebuchet-org/treb-proxy/internal/domain/models"
)

// ListProxiesParams contains parameters for listing proxies
type ListProxiesParams struct {
	ContractName string // case-insensitive substring filter
	Kind         models.ProxyKind
}

// ProxyListResult contains the result of listing proxies
type ProxyListResult struct {
	Proxies      []*models.ProxyRecord
	RegistryPath string
	Total        int // records in the registry before filtering
}

// ListProxies is the use case for listing registered proxies
type ListProxies struct {
	registry ProxyRegistryStore
	sink     ProgressSink
}

// NewListProxies creates a new ListProxies use case
func NewListProxies(registry ProxyRegistryStore, sink ProgressSink) *ListProxies {
	return &ListProxies{
		registry: registry,
		sink:     sink,
	}
}

// Run executes the list proxies use case
func (uc *ListProxies) Run(ctx context.Context, params ListProxiesParams) (*ProxyListResult, error) {
	uc.sink.OnProgress(ctx, ProgressEvent{
		Stage:   "loading",
		Message: "Loading proxy registry",
		Spinner: true,
	})

	registry, err := uc.registry.Load(ctx)
	if err != nil {
		return nil, err
	}

	filter := strings.ToLower(params.ContractName)
	proxies := lo.Filter(registry.Records(), func(rec *models.ProxyRecord, _ int) bool {
		if filter != "" && !strings.Contains(strings.ToLower(rec.ContractName), filter) {
			return false
		}
		return params.Kind == "" || rec.Kind == params.Kind
	})

	uc.sink.OnProgress(ctx, ProgressEvent{Stage: "completed"})

	return &ProxyListResult{
		Proxies:      proxies,
		RegistryPath: uc.registry.Path(),
		Total:        len(registry),
	}, nil
}
