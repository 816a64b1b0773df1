package models

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error codes for structured error handling.
const (
	ErrCodeAuth          = "AUTH_ERROR"
	ErrCodeVaultNotFound = "VAULT_NOT_FOUND"
	ErrCodeNetwork       = "NETWORK_ERROR"
	ErrCodeQuota         = "QUOTA_EXCEEDED"
	ErrCodePermission    = "PERMISSION_DENIED"
	ErrCodeStorage       = "STORAGE_ERROR"
	ErrCodeState         = "STATE_ERROR"
	ErrCodeConfig        = "CONFIG_ERROR"
	ErrCodeConflict      = "SYNC_CONFLICT"
)

// Sentinel errors
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrVaultNotFound    = errors.New("vault not found")
	ErrDocumentNotFound = errors.New("document not found")
	ErrSessionNotFound  = errors.New("sync session not found")
	ErrSessionExists    = errors.New("sync session already exists")
	ErrSyncInProgress   = errors.New("sync already in progress")
	ErrModeForbidden    = errors.New("direction not allowed by session mode")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrWatcherStopped   = errors.New("watcher stopped")
)

// APIError represents an error reported by the vault API.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
	RequestID  string `json:"request_id,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}

// SyncError provides detailed sync failure information.
type SyncError struct {
	SyncID string
	Op     string
	Path   string
	Err    error
}

func (e *SyncError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("sync %s: %s %s: %v", e.SyncID, e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("sync %s: %s: %v", e.SyncID, e.Op, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// Rejection keywords that mark an error as final rather than transient.
// Matching is case-insensitive substring search over the full error text,
// so wrapped errors classify the same as their cause.
var (
	quotaKeywords      = []string{"quota", "storage limit", "limit exceeded"}
	permissionKeywords = []string{"permission", "forbidden", "unauthorized", "access denied"}
)

// IsQuotaError reports whether an error is a remote capacity violation.
// Quota errors recur for every subsequent entry in a batch, so callers
// abort instead of retrying.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusPaymentRequired, http.StatusRequestEntityTooLarge, http.StatusInsufficientStorage:
			return true
		}
	}

	return containsAny(err.Error(), quotaKeywords)
}

// IsPermissionError reports whether an error is an authorization
// rejection. Never transient; retrying cannot succeed.
func IsPermissionError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return true
		}
	}

	return containsAny(err.Error(), permissionKeywords)
}

// IsRetryable reports whether an operation may be retried. Quota and
// permission failures are final, other API errors follow their status
// code, and everything else is assumed transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if IsQuotaError(err) || IsPermissionError(err) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusRequestTimeout,
			apiErr.StatusCode == http.StatusTooManyRequests:
			return true
		case apiErr.StatusCode >= 500:
			return true
		case apiErr.StatusCode >= 400:
			return false
		}
	}

	return true
}

func containsAny(msg string, keywords []string) bool {
	msg = strings.ToLower(msg)
	for _, kw := range keywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}
