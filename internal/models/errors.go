package models

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for coordinator preconditions and lifecycle.
var (
	ErrOffline           = errors.New("device is offline")
	ErrRecordNotFound    = errors.New("record not found")
	ErrUnknownCollection = errors.New("unknown collection")
	ErrSyncInProgress    = errors.New("sync already in progress")
	ErrClosed            = errors.New("coordinator is closed")
)

// APIError represents a structured error from the remote endpoint.
type APIError struct {
	StatusCode int    `json:"status_code"`
	Code       string `json:"code,omitempty"`
	Message    string `json:"message,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("API error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the failure is transient (5xx or rate limit).
// Anything else is a caller error and retrying will not help.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests ||
		(e.StatusCode >= 500 && e.StatusCode < 600)
}

// OperationError describes one failed delivery inside a sync pass.
type OperationError struct {
	Collection Collection    `json:"collection"`
	Kind       OperationKind `json:"kind"`
	TargetID   string        `json:"target_id,omitempty"`
	Message    string        `json:"message"`
}

func (e OperationError) Error() string {
	return fmt.Sprintf("%s %s %s: %s", e.Kind, e.Collection, e.TargetID, e.Message)
}
