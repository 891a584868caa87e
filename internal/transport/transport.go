package transport

import (
	"context"

	"github.com/mindwellhq/mindsync/internal/models"
)

// Transport is the remote endpoint contract consumed by the
// synchronizer. The wire format beyond this capability set is the
// server's concern.
type Transport interface {
	// CreateRecord pushes a full record and returns the server-side id.
	CreateRecord(ctx context.Context, collection models.Collection, payload map[string]interface{}) (string, error)

	// UpdateRecord applies a partial-field patch to an existing record.
	UpdateRecord(ctx context.Context, collection models.Collection, id string, patch map[string]interface{}) error

	// DeleteRecord removes a record.
	DeleteRecord(ctx context.Context, collection models.Collection, id string) error

	// Authentication
	SetToken(token string)
	GetToken() string

	// Lifecycle
	Close() error
}
