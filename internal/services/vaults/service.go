// Package vaults resolves remote vault metadata. Sessions reference
// vaults by ID; the CLI also accepts names, so lookups fall back to a
// name match against the listing.
package vaults

import (
	"context"
	"fmt"
	"sync"

	"github.com/lsvault/lsvault/internal/events"
	"github.com/lsvault/lsvault/internal/models"
)

// Lister is the slice of the vault API the service needs.
type Lister interface {
	ListVaults(ctx context.Context) ([]models.Vault, error)
}

// Service manages vault metadata with a per-process cache.
type Service struct {
	api    Lister
	logger *events.Logger

	mu     sync.Mutex
	vaults map[string]models.Vault
}

// NewService creates a vault service.
func NewService(api Lister, logger *events.Logger) *Service {
	return &Service{
		api:    api,
		logger: logger.WithField("service", "vaults"),
		vaults: make(map[string]models.Vault),
	}
}

// ListVaults fetches the vault list and refreshes the cache.
func (s *Service) ListVaults(ctx context.Context) ([]models.Vault, error) {
	s.logger.Debug("Fetching vault list")

	vaults, err := s.api.ListVaults(ctx)
	if err != nil {
		return nil, fmt.Errorf("list vaults: %w", err)
	}

	s.mu.Lock()
	s.vaults = make(map[string]models.Vault, len(vaults))
	for _, v := range vaults {
		s.vaults[v.ID] = v
	}
	s.mu.Unlock()

	s.logger.WithField("count", len(vaults)).Info("Fetched vaults")
	return vaults, nil
}

// GetVault resolves a vault by ID, or by name when no ID matches. A cold
// or stale cache triggers one refresh before giving up.
func (s *Service) GetVault(ctx context.Context, idOrName string) (*models.Vault, error) {
	if v, ok := s.lookup(idOrName); ok {
		return v, nil
	}

	if _, err := s.ListVaults(ctx); err != nil {
		return nil, fmt.Errorf("get vault %q: %w", idOrName, err)
	}

	if v, ok := s.lookup(idOrName); ok {
		return v, nil
	}

	return nil, fmt.Errorf("vault %q: %w", idOrName, models.ErrVaultNotFound)
}

func (s *Service) lookup(idOrName string) (*models.Vault, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.vaults[idOrName]; ok {
		return &v, true
	}
	for _, v := range s.vaults {
		if v.Name == idOrName {
			return &v, true
		}
	}
	return nil, false
}

// ClearCache drops cached vault metadata.
func (s *Service) ClearCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vaults = make(map[string]models.Vault)
}
