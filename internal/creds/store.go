// Package creds persists the vault API token encrypted at rest. The
// encryption key derives from the machine identity, so a copied
// credentials file is useless on another host.
package creds

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/denisbrodbeck/machineid"

	"github.com/lsvault/lsvault/internal/crypto"
	"github.com/lsvault/lsvault/internal/events"
	"github.com/lsvault/lsvault/internal/models"
)

// appID keys the machine identifier so the derived secret is unique to
// lsvault rather than shared with other tools hashing the same id.
const appID = "lsvault"

const envelopeVersion = 1

// machineSecret returns the machine-bound secret the encryption key is
// derived from. Swapped out in tests.
var machineSecret = func() ([]byte, error) {
	id, err := machineid.ProtectedID(appID)
	if err != nil {
		return nil, fmt.Errorf("read machine id: %w", err)
	}
	return []byte(id), nil
}

// Credentials is the secret material stored for one account.
type Credentials struct {
	Token   string    `json:"token"`
	Email   string    `json:"email,omitempty"`
	SavedAt time.Time `json:"saved_at"`
}

// envelope is the on-disk format: the JSON credentials sealed with
// AES-GCM under a key derived from the machine secret and the per-file
// salt.
type envelope struct {
	Version int    `json:"version"`
	Salt    string `json:"salt"`
	Payload string `json:"payload"`
}

// Store reads and writes the encrypted credentials file.
type Store struct {
	path   string
	logger *events.Logger
}

// NewStore creates a credential store at path.
func NewStore(path string, logger *events.Logger) *Store {
	return &Store{
		path:   path,
		logger: logger.WithField("component", "creds"),
	}
}

// Path returns the credentials file location.
func (s *Store) Path() string {
	return s.path
}

// Save seals the credentials and writes them with owner-only
// permissions. A fresh salt per save means even identical tokens never
// produce identical files.
func (s *Store) Save(c *Credentials) error {
	secret, err := machineSecret()
	if err != nil {
		return err
	}

	salt, err := crypto.NewSalt()
	if err != nil {
		return err
	}

	key, err := crypto.DeriveKey(secret, salt)
	if err != nil {
		return err
	}

	plaintext, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}

	sealed, err := crypto.EncryptData(plaintext, key)
	if err != nil {
		return fmt.Errorf("seal credentials: %w", err)
	}

	env := envelope{
		Version: envelopeVersion,
		Salt:    base64.StdEncoding.EncodeToString(salt),
		Payload: base64.StdEncoding.EncodeToString(sealed),
	}

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create credentials dir: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}

	s.logger.WithField("path", s.path).Debug("Credentials saved")
	return nil
}

// Load opens the stored credentials. A missing file, or one sealed on a
// different machine, reports models.ErrNotAuthenticated so callers
// prompt for a fresh login instead of surfacing a crypto failure.
func (s *Store) Load() (*Credentials, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, models.ErrNotAuthenticated
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse credentials file: %w", err)
	}
	if env.Version != envelopeVersion {
		return nil, fmt.Errorf("unsupported credentials version: %d", env.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil {
		return nil, fmt.Errorf("decode salt: %w", err)
	}

	sealed, err := base64.StdEncoding.DecodeString(env.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	secret, err := machineSecret()
	if err != nil {
		return nil, err
	}

	key, err := crypto.DeriveKey(secret, salt)
	if err != nil {
		return nil, err
	}

	plaintext, err := crypto.DecryptData(sealed, key)
	if err != nil {
		s.logger.WithError(err).Warn("Stored credentials unreadable on this machine")
		return nil, fmt.Errorf("credentials sealed for another machine: %w", models.ErrNotAuthenticated)
	}

	var c Credentials
	if err := json.Unmarshal(plaintext, &c); err != nil {
		return nil, fmt.Errorf("decode credentials: %w", err)
	}

	return &c, nil
}

// Clear removes the credentials file; a missing file is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove credentials: %w", err)
	}
	return nil
}
