package auth_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lsvault/lsvault/internal/creds"
	"github.com/lsvault/lsvault/internal/events"
	"github.com/lsvault/lsvault/internal/models"
	"github.com/lsvault/lsvault/internal/services/auth"
)

// fakeClient records the token the service arms it with.
type fakeClient struct {
	token      string
	setCalls   int
	loginErr   error
	loginToken string
}

func (c *fakeClient) Login(_ context.Context, email, password string) (string, error) {
	if c.loginErr != nil {
		return "", c.loginErr
	}
	return c.loginToken, nil
}

func (c *fakeClient) SetToken(token string) {
	c.token = token
	c.setCalls++
}

// memStore is an in-memory CredentialStore.
type memStore struct {
	creds   *creds.Credentials
	saveErr error
	clears  int
}

func (m *memStore) Save(c *creds.Credentials) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	saved := *c
	m.creds = &saved
	return nil
}

func (m *memStore) Load() (*creds.Credentials, error) {
	if m.creds == nil {
		return nil, models.ErrNotAuthenticated
	}
	loaded := *m.creds
	return &loaded, nil
}

func (m *memStore) Clear() error {
	m.creds = nil
	m.clears++
	return nil
}

func authLogger() *events.Logger {
	var buf bytes.Buffer
	return events.NewTestLogger(events.DebugLevel, "json", &buf)
}

func TestAuthService(t *testing.T) {
	client := &fakeClient{loginToken: "tok-123"}
	store := &memStore{}
	service := auth.NewService(client, store, authLogger())

	t.Run("successful login", func(t *testing.T) {
		err := service.Login(context.Background(), "user@example.com", "password")
		require.NoError(t, err)

		assert.Equal(t, "tok-123", client.token)

		require.NotNil(t, store.creds)
		assert.Equal(t, "tok-123", store.creds.Token)
		assert.Equal(t, "user@example.com", store.creds.Email)
		assert.WithinDuration(t, time.Now(), store.creds.SavedAt, time.Minute)
	})

	t.Run("restore arms client", func(t *testing.T) {
		fresh := &fakeClient{}
		service2 := auth.NewService(fresh, store, authLogger())

		c, err := service2.Restore()
		require.NoError(t, err)
		assert.Equal(t, "tok-123", c.Token)
		assert.Equal(t, "user@example.com", c.Email)
		assert.Equal(t, "tok-123", fresh.token)
	})

	t.Run("logout", func(t *testing.T) {
		err := service.Logout()
		require.NoError(t, err)

		assert.Empty(t, client.token)
		assert.Equal(t, 1, store.clears)

		_, err = service.Restore()
		assert.ErrorIs(t, err, models.ErrNotAuthenticated)
	})
}

func TestAuthLoginFailure(t *testing.T) {
	client := &fakeClient{loginErr: &models.APIError{StatusCode: 401, Message: "bad password"}}
	store := &memStore{}
	service := auth.NewService(client, store, authLogger())

	err := service.Login(context.Background(), "user@example.com", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "login failed")

	assert.Zero(t, client.setCalls)
	assert.Nil(t, store.creds)
}

func TestAuthLoginSurvivesSaveFailure(t *testing.T) {
	client := &fakeClient{loginToken: "tok-456"}
	store := &memStore{saveErr: errors.New("disk full")}
	service := auth.NewService(client, store, authLogger())

	// The session must still work for this process even when the
	// token cannot be persisted.
	err := service.Login(context.Background(), "user@example.com", "password")
	require.NoError(t, err)
	assert.Equal(t, "tok-456", client.token)
}

func TestAuthRestoreUnauthenticated(t *testing.T) {
	client := &fakeClient{}
	service := auth.NewService(client, &memStore{}, authLogger())

	_, err := service.Restore()
	assert.ErrorIs(t, err, models.ErrNotAuthenticated)
	assert.Zero(t, client.setCalls)
}
