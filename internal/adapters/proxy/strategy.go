package proxy

import (
	"fmt"
	"log/slog"

	"github.com/trebuchet-org/treb-proxy/internal/domain"
	"github.com/trebuchet-org/treb-proxy/internal/domain/config"
	"github.com/trebuchet-org/treb-proxy/internal/domain/models"
	"github.com/trebuchet-org/treb-proxy/internal/usecase"
)

// NewStrategy returns the strategy selected by the proxy_kind setting
func NewStrategy(cfg *config.RuntimeConfig, chain usecase.ChainClient, artifacts usecase.ArtifactRepository, log *slog.Logger) (usecase.ProxyStrategy, error) {
	dc := cfg.Deployment
	switch dc.ProxyKind {
	case models.ProxyKindTransparent, "":
		name := dc.ProxyArtifact
		if name == "" {
			name = config.DefaultProxyArtifact
		}
		return NewTransparentStrategy(chain, artifacts, name, log), nil
	case models.ProxyKindFactory:
		return NewFactoryStrategy(chain, dc.FactoryAddress, log), nil
	default:
		return nil, &domain.ConfigError{Field: "proxy_kind", Reason: fmt.Sprintf("unsupported proxy kind %q", dc.ProxyKind)}
	}
}
