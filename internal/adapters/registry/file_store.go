package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/trebuchet-org/treb-proxy/internal/domain"
	"github.com/trebuchet-org/treb-proxy/internal/domain/config"
	"github.com/trebuchet-org/treb-proxy/internal/domain/models"
	"github.com/trebuchet-org/treb-proxy/internal/usecase"
)

// FileStore persists the proxy registry as a single JSON file
type FileStore struct {
	path string
	log  *slog.Logger
}

// NewFileStore creates a store for the configured registry path
func NewFileStore(cfg *config.RuntimeConfig, log *slog.Logger) *FileStore {
	return &FileStore{
		path: cfg.Deployment.RegistryPath,
		log:  log.With("component", "registry"),
	}
}

// Path returns the registry file path
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the registry. A missing file yields an empty registry.
func (s *FileStore) Load(ctx context.Context) (models.ProxyRegistry, error) {
	reg, err := LoadFile(s.path)
	if err != nil {
		return nil, err
	}
	s.log.Debug("loaded proxy registry", "path", s.path, "entries", len(reg))
	return reg, nil
}

// Save writes the registry atomically
func (s *FileStore) Save(ctx context.Context, registry models.ProxyRegistry) error {
	if err := SaveFile(s.path, registry); err != nil {
		return err
	}
	s.log.Debug("saved proxy registry", "path", s.path, "entries", len(registry))
	return nil
}

// LoadFile reads a registry file. A missing or blank file yields an empty
// registry; anything that is not a valid registry is a ParseError.
func LoadFile(path string) (models.ProxyRegistry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return models.ProxyRegistry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read proxy registry %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return models.ProxyRegistry{}, nil
	}

	var reg models.ProxyRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, &domain.ParseError{Path: path, Reason: "invalid proxy registry", Err: err}
	}
	if reg == nil {
		reg = models.ProxyRegistry{}
	}
	return reg, nil
}

// SaveFile writes the registry to a temp file in the same directory and
// renames it over path, so readers never observe a partial file.
func SaveFile(path string, registry models.ProxyRegistry) error {
	data, err := json.MarshalIndent(registry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode proxy registry: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp registry file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write proxy registry: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync proxy registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close proxy registry: %w", err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("failed to set registry permissions: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to replace proxy registry: %w", err)
	}
	return nil
}

var _ usecase.ProxyRegistryStore = (*FileStore)(nil)
