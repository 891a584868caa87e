package models

import (
	"encoding/json"
	"time"
)

// OperationKind classifies a queued mutation.
type OperationKind string

const (
	OpCreate OperationKind = "create"
	OpUpdate OperationKind = "update"
	OpDelete OperationKind = "delete"
)

// OperationStatus tracks an operation through the queue lifecycle.
type OperationStatus string

const (
	StatusPending   OperationStatus = "pending"
	StatusRetry     OperationStatus = "retry"
	StatusCompleted OperationStatus = "completed"
	StatusFailed    OperationStatus = "failed"
)

// Sync limits. These are protocol constants, not configuration.
const (
	// SyncBatchSize bounds how many operations a single batch may hold.
	SyncBatchSize = 10

	// MaxSyncAttempts is the delivery ceiling before an operation is
	// marked failed permanently.
	MaxSyncAttempts = 3

	// BatchYield is the pause between batches so the host process stays
	// responsive during a long drain.
	BatchYield = 50 * time.Millisecond

	// MaxLocalStorageBytes is the local storage budget reported in status.
	MaxLocalStorageBytes = 50 << 20
)

// Operation is a pending mutation awaiting remote application.
type Operation struct {
	ID          string          `json:"id"`
	Kind        OperationKind   `json:"kind"`
	Collection  Collection      `json:"collection"`
	TargetID    string          `json:"target_id,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	QueuedAt    time.Time       `json:"queued_at"`
	Attempts    int             `json:"attempts"`
	Status      OperationStatus `json:"status"`
	LastError   string          `json:"last_error,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// Eligible reports whether the operation may be drained for delivery.
func (o *Operation) Eligible() bool {
	return o.Status == StatusPending || o.Status == StatusRetry
}

// Terminal reports whether the operation has left the retry cycle.
func (o *Operation) Terminal() bool {
	return o.Status == StatusCompleted ||
		(o.Status == StatusFailed && o.Attempts >= MaxSyncAttempts)
}

// DecodePayload unmarshals the payload into a field map. A nil payload
// (delete operations) yields a nil map.
func (o *Operation) DecodePayload() (map[string]interface{}, error) {
	if len(o.Payload) == 0 {
		return nil, nil
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(o.Payload, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}
