package transport

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/mindwellhq/mindsync/internal/models"
)

// Call records one remote invocation, in arrival order.
type Call struct {
	Kind       models.OperationKind
	Collection models.Collection
	TargetID   string
	Payload    map[string]interface{}
}

// MockTransport provides an in-memory Transport for testing: it records
// every call in order and supports per-target and blanket error
// injection.
type MockTransport struct {
	mu sync.Mutex

	// Calls holds every invocation in arrival order.
	Calls []Call

	// FailTargets maps "collection/id" (or "collection/" for creates
	// without a target) to the error to return.
	FailTargets map[string]error

	// FailAll, when set, fails every call.
	FailAll error

	// FailFirstN fails the first N calls, then succeeds.
	FailFirstN int

	// CreatedIDs maps client payload ids to server ids assigned.
	CreatedIDs map[string]string

	token string
	calls int
}

// NewMockTransport creates a mock transport.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		FailTargets: make(map[string]error),
		CreatedIDs:  make(map[string]string),
	}
}

// FailTarget injects an error for one collection/id pair.
func (m *MockTransport) FailTarget(collection models.Collection, id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailTargets[string(collection)+"/"+id] = err
}

// CallOrder returns "kind collection/id" strings in arrival order.
func (m *MockTransport) CallOrder() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	order := make([]string, len(m.Calls))
	for i, call := range m.Calls {
		order[i] = fmt.Sprintf("%s %s/%s", call.Kind, call.Collection, call.TargetID)
	}
	return order
}

func (m *MockTransport) CreateRecord(ctx context.Context, collection models.Collection, payload map[string]interface{}) (string, error) {
	targetID, _ := payload["id"].(string)

	if err := m.record(models.OpCreate, collection, targetID, payload); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	serverID := uuid.NewString()
	if targetID != "" {
		m.CreatedIDs[targetID] = serverID
	}
	return serverID, nil
}

func (m *MockTransport) UpdateRecord(ctx context.Context, collection models.Collection, id string, patch map[string]interface{}) error {
	return m.record(models.OpUpdate, collection, id, patch)
}

func (m *MockTransport) DeleteRecord(ctx context.Context, collection models.Collection, id string) error {
	return m.record(models.OpDelete, collection, id, nil)
}

func (m *MockTransport) SetToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
}

func (m *MockTransport) GetToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

func (m *MockTransport) Close() error {
	return nil
}

// record tracks the call and resolves injected failures.
func (m *MockTransport) record(kind models.OperationKind, collection models.Collection, targetID string, payload map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, Call{
		Kind:       kind,
		Collection: collection,
		TargetID:   targetID,
		Payload:    payload,
	})

	m.calls++
	if m.FailAll != nil {
		return m.FailAll
	}
	if m.FailFirstN >= m.calls {
		return fmt.Errorf("injected failure for call %d", m.calls)
	}
	if err, ok := m.FailTargets[string(collection)+"/"+targetID]; ok {
		return err
	}
	return nil
}
