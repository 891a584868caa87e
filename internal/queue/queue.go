package queue

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mindwellhq/mindsync/internal/events"
	"github.com/mindwellhq/mindsync/internal/models"
	"github.com/mindwellhq/mindsync/internal/store"
)

// Queue is an ordered, durable log of pending mutations. The in-memory
// slice is authoritative; the durable store is its crash-recovery image.
// All methods are safe for concurrent use.
type Queue struct {
	store  store.Store
	logger *events.Logger

	mu  sync.Mutex
	ops []*models.Operation
}

// New loads the persisted queue from the durable store. A missing key
// yields an empty queue; a corrupt one is logged and discarded rather
// than blocking startup.
func New(st store.Store, logger *events.Logger) (*Queue, error) {
	q := &Queue{
		store:  st,
		logger: logger.WithField("component", "operation_queue"),
	}

	data, err := st.Get(models.QueueKey)
	switch {
	case err == store.ErrKeyNotFound:
		return q, nil
	case err != nil:
		return nil, fmt.Errorf("load queue: %w", err)
	}

	var ops []*models.Operation
	if err := json.Unmarshal(data, &ops); err != nil {
		q.logger.WithError(err).Error("Persisted queue is corrupt, starting empty")
		return q, nil
	}

	q.ops = ops
	q.logger.WithField("count", len(ops)).Debug("Loaded operation queue")
	return q, nil
}

// Enqueue appends a mutation and persists the queue synchronously
// before returning, so a crash immediately afterwards cannot lose it.
// Persistence failures are logged; the in-memory queue stays
// authoritative until the next successful flush.
func (q *Queue) Enqueue(kind models.OperationKind, collection models.Collection, targetID string, payload map[string]interface{}) (*models.Operation, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		raw = data
	}

	op := &models.Operation{
		ID:         uuid.NewString(),
		Kind:       kind,
		Collection: collection,
		TargetID:   targetID,
		Payload:    raw,
		QueuedAt:   time.Now().UTC(),
		Attempts:   0,
		Status:     models.StatusPending,
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.ops = append(q.ops, op)
	q.persist()

	q.logger.WithFields(map[string]interface{}{
		"op_id":      op.ID,
		"kind":       op.Kind,
		"collection": op.Collection,
	}).Debug("Enqueued operation")

	clone := *op
	return &clone, nil
}

// Drain returns up to batchSize eligible operations in enqueue order.
// Operations are not removed; completion is explicit so a crash
// mid-batch cannot lose work.
func (q *Queue) Drain(batchSize int) []models.Operation {
	if batchSize <= 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	var batch []models.Operation
	for _, op := range q.ops {
		if !op.Eligible() {
			continue
		}
		batch = append(batch, *op)
		if len(batch) >= batchSize {
			break
		}
	}
	return batch
}

// MarkCompleted records successful delivery. Calling it twice for the
// same id is a no-op.
func (q *Queue) MarkCompleted(operationID string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	op := q.find(operationID)
	if op == nil || op.Status == models.StatusCompleted {
		return
	}

	now := time.Now().UTC()
	op.Status = models.StatusCompleted
	op.CompletedAt = &now
	op.LastError = ""
	q.persist()
}

// MarkFailed records a failed delivery attempt. Below the retry ceiling
// the operation becomes eligible again; at the ceiling it is failed
// permanently. Marking an already terminal operation is a no-op.
func (q *Queue) MarkFailed(operationID string, opErr error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	op := q.find(operationID)
	if op == nil || op.Terminal() {
		return
	}

	op.Attempts++
	if opErr != nil {
		op.LastError = opErr.Error()
	}

	if op.Attempts >= models.MaxSyncAttempts {
		op.Status = models.StatusFailed
		q.persist()
		q.logger.WithFields(map[string]interface{}{
			"op_id":    op.ID,
			"attempts": op.Attempts,
			"error":    op.LastError,
		}).Warn("Operation failed permanently")
		return
	}

	op.Status = models.StatusRetry
}

// PurgeTerminal removes completed operations and permanently failed
// ones from the queue and its durable representation.
func (q *Queue) PurgeTerminal() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.ops[:0]
	removed := 0
	for _, op := range q.ops {
		if op.Terminal() {
			removed++
			continue
		}
		kept = append(kept, op)
	}
	q.ops = kept

	if removed > 0 {
		q.persist()
		q.logger.WithField("removed", removed).Debug("Purged terminal operations")
	}
	return removed
}

// Len returns the total number of operations held, terminal included.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// PendingCount returns the number of operations still awaiting delivery.
func (q *Queue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	count := 0
	for _, op := range q.ops {
		if op.Eligible() {
			count++
		}
	}
	return count
}

// Snapshot returns a copy of every operation, for status displays.
func (q *Queue) Snapshot() []models.Operation {
	q.mu.Lock()
	defer q.mu.Unlock()

	snapshot := make([]models.Operation, len(q.ops))
	for i, op := range q.ops {
		snapshot[i] = *op
	}
	return snapshot
}

// find returns the operation with the given id, or nil.
func (q *Queue) find(operationID string) *models.Operation {
	for _, op := range q.ops {
		if op.ID == operationID {
			return op
		}
	}
	return nil
}

// persist writes the durable image: eligible operations plus failed
// ones not yet purged. Completed operations never hit disk. Callers
// must hold the lock.
func (q *Queue) persist() {
	durable := make([]*models.Operation, 0, len(q.ops))
	for _, op := range q.ops {
		if op.Status == models.StatusCompleted {
			continue
		}
		durable = append(durable, op)
	}

	data, err := json.Marshal(durable)
	if err != nil {
		q.logger.WithError(err).Error("Failed to marshal queue")
		return
	}

	if err := q.store.Set(models.QueueKey, data); err != nil {
		q.logger.WithError(err).Error("Failed to persist queue")
	}
}
