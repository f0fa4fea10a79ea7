package app

import (
	"log/slog"

	"github.com/trebuchet-org/treb-proxy/internal/domain/config"
	"github.com/trebuchet-org/treb-proxy/internal/usecase"
)

// App is the main application container that holds all use cases
type App struct {
	// Configuration
	Config *config.RuntimeConfig
	Log    *slog.Logger

	// Shared dependencies
	Artifacts usecase.ArtifactRepository
	Selector  usecase.ArtifactSelector

	// Use cases
	DeployUpgradeable *usecase.DeployUpgradeable
	ListProxies       *usecase.ListProxies
	ShowProxy         *usecase.ShowProxy
	RemoveProxy       *usecase.RemoveProxy
	ShowConfig        *usecase.ShowConfig
}

// NewApp creates a new application instance with all use cases
func NewApp(
	cfg *config.RuntimeConfig,
	log *slog.Logger,
	artifacts usecase.ArtifactRepository,
	selector usecase.ArtifactSelector,
	deployUpgradeable *usecase.DeployUpgradeable,
	listProxies *usecase.ListProxies,
	showProxy *usecase.ShowProxy,
	removeProxy *usecase.RemoveProxy,
	showConfig *usecase.ShowConfig,
) (*App, error) {
	return &App{
		Config:            cfg,
		Log:               log,
		Artifacts:         artifacts,
		Selector:          selector,
		DeployUpgradeable: deployUpgradeable,
		ListProxies:       listProxies,
		ShowProxy:         showProxy,
		RemoveProxy:       removeProxy,
		ShowConfig:        showConfig,
	}, nil
}
