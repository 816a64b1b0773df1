// Package auth manages the login session. It exchanges credentials for
// an API token, persists the token through the creds store, and arms the
// transport client so later requests authenticate.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/lsvault/lsvault/internal/creds"
	"github.com/lsvault/lsvault/internal/events"
)

// TokenClient is the slice of the transport client the service needs.
type TokenClient interface {
	Login(ctx context.Context, email, password string) (string, error)
	SetToken(token string)
}

// CredentialStore persists credentials between runs. Satisfied by
// *creds.Store.
type CredentialStore interface {
	Save(c *creds.Credentials) error
	Load() (*creds.Credentials, error)
	Clear() error
}

// Service handles authentication operations.
type Service struct {
	client TokenClient
	store  CredentialStore
	logger *events.Logger
}

// NewService creates an auth service.
func NewService(client TokenClient, store CredentialStore, logger *events.Logger) *Service {
	return &Service{
		client: client,
		store:  store,
		logger: logger.WithField("service", "auth"),
	}
}

// Login authenticates with email and password, arms the client with the
// returned token, and persists it for later runs. A persistence failure
// is logged but does not fail the login; the session still works until
// the process exits.
func (s *Service) Login(ctx context.Context, email, password string) error {
	s.logger.WithField("email", email).Info("Logging in")

	token, err := s.client.Login(ctx, email, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	s.client.SetToken(token)

	c := &creds.Credentials{
		Token:   token,
		Email:   email,
		SavedAt: time.Now().UTC(),
	}
	if err := s.store.Save(c); err != nil {
		s.logger.WithError(err).Warn("Failed to persist credentials")
	} else {
		s.logger.Info("Login successful")
	}

	return nil
}

// Restore loads stored credentials and arms the client. Returns
// models.ErrNotAuthenticated (wrapped) when no usable credentials exist.
func (s *Service) Restore() (*creds.Credentials, error) {
	c, err := s.store.Load()
	if err != nil {
		return nil, err
	}

	s.client.SetToken(c.Token)
	s.logger.WithField("email", c.Email).Debug("Restored credentials")
	return c, nil
}

// Logout clears stored credentials and disarms the client. The API has
// no sign-out endpoint; tokens are revoked server-side by expiry.
func (s *Service) Logout() error {
	s.client.SetToken("")

	if err := s.store.Clear(); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}

	s.logger.Info("Logged out")
	return nil
}
