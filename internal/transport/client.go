package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/http2"

	"github.com/lsvault/lsvault/internal/config"
	"github.com/lsvault/lsvault/internal/events"
	"github.com/lsvault/lsvault/internal/models"
)

// Client is the HTTP implementation of VaultAPI. Every call runs under
// the configured retry policy.
type Client struct {
	client    *http.Client
	baseURL   string
	userAgent string
	token     string
	logger    *events.Logger
	retry     RetryPolicy
}

// NewClient creates an API client.
func NewClient(cfg *config.APIConfig, logger *events.Logger) *Client {
	// Create transport with HTTP/2 support
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			NextProtos: []string{"h2", "http/1.1"},
		},
	}

	if err := http2.ConfigureTransport(transport); err != nil {
		logger.WithError(err).Warn("Failed to configure HTTP/2")
	}

	retry := RetryPolicy{MaxRetries: cfg.MaxRetries, InitialDelay: cfg.RetryDelay}
	if retry.InitialDelay <= 0 {
		retry.InitialDelay = DefaultRetryPolicy().InitialDelay
	}

	return &Client{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		retry:     retry,
		logger:    logger.WithField("component", "api_client"),
	}
}

// SetToken sets the authentication token.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Token returns the current authentication token.
func (c *Client) Token() string {
	return c.token
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	payload := map[string]string{
		"email":    email,
		"password": password,
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/auth/login", payload, &resp); err != nil {
		return "", err
	}

	if resp.Token == "" {
		return "", fmt.Errorf("login response missing token")
	}

	return resp.Token, nil
}

// ListVaults returns the vaults visible to the authenticated user.
func (c *Client) ListVaults(ctx context.Context) ([]models.Vault, error) {
	var resp struct {
		Vaults []models.Vault `json:"vaults"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/vaults", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Vaults, nil
}

// ListDocuments returns the full document listing of a vault.
func (c *Client) ListDocuments(ctx context.Context, vaultID string) ([]models.Document, error) {
	var resp struct {
		Documents []models.Document `json:"documents"`
	}
	path := "/api/v1/vaults/" + url.PathEscape(vaultID) + "/documents"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Documents, nil
}

// GetDocument fetches one document's content and listing row.
func (c *Client) GetDocument(ctx context.Context, vaultID, path string) ([]byte, models.Document, error) {
	var resp struct {
		Content  []byte          `json:"content"`
		Document models.Document `json:"document"`
	}
	if err := c.doJSON(ctx, http.MethodGet, documentPath(vaultID, path), nil, &resp); err != nil {
		return nil, models.Document{}, err
	}
	return resp.Content, resp.Document, nil
}

// PutDocument uploads content and returns the listing row the server
// stored for it.
func (c *Client) PutDocument(ctx context.Context, vaultID, path string, content []byte, modifiedAt time.Time) (models.Document, error) {
	payload := struct {
		Content        []byte    `json:"content"`
		FileModifiedAt time.Time `json:"fileModifiedAt"`
	}{
		Content:        content,
		FileModifiedAt: modifiedAt.UTC(),
	}

	var resp struct {
		Document models.Document `json:"document"`
	}
	if err := c.doJSON(ctx, http.MethodPut, documentPath(vaultID, path), payload, &resp); err != nil {
		return models.Document{}, err
	}
	return resp.Document, nil
}

// DeleteDocument removes a document. A document that is already gone
// counts as deleted, so retried deletes stay idempotent.
func (c *Client) DeleteDocument(ctx context.Context, vaultID, path string) error {
	err := c.doJSON(ctx, http.MethodDelete, documentPath(vaultID, path), nil, nil)

	var apiErr *models.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return nil
	}
	return err
}

// doJSON performs one API call under the retry policy, encoding payload
// and decoding the response body into out when non-nil.
func (c *Client) doJSON(ctx context.Context, method, path string, payload, out interface{}) error {
	requestURL := c.baseURL + path

	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"method": method,
		"url":    requestURL,
		"size":   len(body),
	}).Debug("Sending request")

	return c.retry.Do(ctx, c.logger, method+" "+path, func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, requestURL, reader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.userAgent)
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("execute request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		c.logger.WithFields(map[string]interface{}{
			"status": resp.StatusCode,
			"size":   len(respBody),
		}).Debug("Received response")

		if resp.StatusCode >= 400 {
			return decodeAPIError(resp.StatusCode, respBody)
		}

		if out != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}
		}

		return nil
	})
}

// decodeAPIError maps an error response onto models.APIError so retry
// and abort classification can inspect the status code.
func decodeAPIError(status int, body []byte) error {
	var apiErr models.APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		apiErr.StatusCode = status
		return &apiErr
	}

	return &models.APIError{
		StatusCode: status,
		Code:       http.StatusText(status),
		Message:    strings.TrimSpace(string(body)),
	}
}

// documentPath builds the URL path for one document, escaping each
// segment while keeping the separators addressable.
func documentPath(vaultID, docPath string) string {
	segments := strings.Split(docPath, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return "/api/v1/vaults/" + url.PathEscape(vaultID) + "/documents/" + strings.Join(segments, "/")
}
