package sync

import (
	"context"
	"sync"
	"time"

	"github.com/mindwellhq/mindsync/internal/cache"
	"github.com/mindwellhq/mindsync/internal/events"
	"github.com/mindwellhq/mindsync/internal/models"
	"github.com/mindwellhq/mindsync/internal/queue"
	"github.com/mindwellhq/mindsync/internal/transport"
)

// Synchronizer drains the operation queue against the remote endpoint
// in bounded batches and reconciles unsynced cached records.
type Synchronizer struct {
	transport transport.Transport
	queue     *queue.Queue
	cache     *cache.RecordCache
	logger    *events.Logger

	batchSize int
	yield     time.Duration
}

// Result summarizes one sync pass. Per-operation failures are captured
// here and never propagate as errors out of a pass.
type Result struct {
	Successful int                     `json:"successful"`
	Failed     int                     `json:"failed"`
	Errors     []models.OperationError `json:"errors,omitempty"`
}

// NewSynchronizer creates a synchronizer with the fixed batch limits.
func NewSynchronizer(t transport.Transport, q *queue.Queue, c *cache.RecordCache, logger *events.Logger) *Synchronizer {
	return &Synchronizer{
		transport: t,
		queue:     q,
		cache:     c,
		logger:    logger.WithField("component", "synchronizer"),
		batchSize: models.SyncBatchSize,
		yield:     models.BatchYield,
	}
}

// ProcessQueue drains eligible operations in a single pass. Each
// operation is attempted at most once per invocation; a failed one
// becomes eligible again only on the next invocation. Batch N is fully
// resolved before batch N+1 starts, with a short yield in between.
func (s *Synchronizer) ProcessQueue(ctx context.Context) (*Result, error) {
	eligible := s.queue.Drain(s.queue.PendingCount())
	result := &Result{}

	if len(eligible) == 0 {
		return result, nil
	}

	s.logger.WithField("operations", len(eligible)).Info("Processing sync queue")

	for start := 0; start < len(eligible); start += s.batchSize {
		if start > 0 {
			if err := s.pause(ctx); err != nil {
				return result, err
			}
		}

		end := start + s.batchSize
		if end > len(eligible) {
			end = len(eligible)
		}
		s.processBatch(ctx, eligible[start:end], result)
	}

	s.queue.PurgeTerminal()

	s.logger.WithFields(map[string]interface{}{
		"successful": result.Successful,
		"failed":     result.Failed,
	}).Info("Queue pass finished")

	return result, nil
}

// processBatch dispatches one batch with independent per-operation
// outcomes. Operations touching the same record run sequentially in
// enqueue order; unrelated records run concurrently. All outcomes are
// collected; nothing short-circuits.
func (s *Synchronizer) processBatch(ctx context.Context, batch []models.Operation, result *Result) {
	groups := groupByTarget(batch)

	var wg sync.WaitGroup
	var mu sync.Mutex

	for _, group := range groups {
		wg.Add(1)
		go func(ops []models.Operation) {
			defer wg.Done()
			for _, op := range ops {
				outcome := s.attempt(ctx, op)

				mu.Lock()
				if outcome != nil {
					result.Failed++
					result.Errors = append(result.Errors, *outcome)
				} else {
					result.Successful++
				}
				mu.Unlock()
			}
		}(group)
	}

	wg.Wait()
}

// attempt delivers one operation and records the outcome on the queue
// and cache. Returns nil on success.
func (s *Synchronizer) attempt(ctx context.Context, op models.Operation) *models.OperationError {
	err := s.dispatch(ctx, op)
	if err == nil {
		s.queue.MarkCompleted(op.ID)

		switch op.Kind {
		case models.OpCreate, models.OpUpdate:
			s.cache.MarkSynced(op.Collection, op.TargetID, time.Now().UTC())
		}

		s.logger.WithFields(map[string]interface{}{
			"op_id":      op.ID,
			"kind":       op.Kind,
			"collection": op.Collection,
		}).Debug("Operation synced")
		return nil
	}

	s.queue.MarkFailed(op.ID, err)

	// The queue just incremented attempts; at the ceiling the record
	// keeps its unsynced flag with the failure attached.
	if op.Attempts+1 >= models.MaxSyncAttempts && op.Kind != models.OpDelete {
		s.cache.SetSyncError(op.Collection, op.TargetID, err.Error())
	}

	s.logger.WithError(err).WithFields(map[string]interface{}{
		"op_id":    op.ID,
		"kind":     op.Kind,
		"attempts": op.Attempts + 1,
	}).Warn("Operation sync failed")

	return &models.OperationError{
		Collection: op.Collection,
		Kind:       op.Kind,
		TargetID:   op.TargetID,
		Message:    err.Error(),
	}
}

// dispatch issues the remote call for one operation.
func (s *Synchronizer) dispatch(ctx context.Context, op models.Operation) error {
	payload, err := op.DecodePayload()
	if err != nil {
		return err
	}

	switch op.Kind {
	case models.OpCreate:
		_, err = s.transport.CreateRecord(ctx, op.Collection, payload)
		return err
	case models.OpUpdate:
		return s.transport.UpdateRecord(ctx, op.Collection, op.TargetID, payload)
	case models.OpDelete:
		return s.transport.DeleteRecord(ctx, op.Collection, op.TargetID)
	default:
		return &models.OperationError{
			Collection: op.Collection,
			Kind:       op.Kind,
			TargetID:   op.TargetID,
			Message:    "unknown operation kind",
		}
	}
}

// SyncOfflineData is the reconciliation pass: every cached record still
// flagged unsynced is re-pushed create-style, independent of the queue.
// It heals records whose queue operation was lost or failed terminally.
func (s *Synchronizer) SyncOfflineData(ctx context.Context) (*Result, error) {
	type pending struct {
		collection models.Collection
		record     models.CachedRecord
	}

	var work []pending
	for _, collection := range models.Collections() {
		for _, record := range s.cache.Unsynced(collection) {
			work = append(work, pending{collection: collection, record: record})
		}
	}

	result := &Result{}
	if len(work) == 0 {
		return result, nil
	}

	s.logger.WithField("records", len(work)).Info("Reconciling unsynced records")

	for start := 0; start < len(work); start += s.batchSize {
		if start > 0 {
			if err := s.pause(ctx); err != nil {
				return result, err
			}
		}

		end := start + s.batchSize
		if end > len(work) {
			end = len(work)
		}

		var wg sync.WaitGroup
		var mu sync.Mutex

		for _, item := range work[start:end] {
			wg.Add(1)
			go func(p pending) {
				defer wg.Done()

				_, err := s.transport.CreateRecord(ctx, p.collection, p.record.SyncPayload())

				mu.Lock()
				defer mu.Unlock()

				if err != nil {
					result.Failed++
					result.Errors = append(result.Errors, models.OperationError{
						Collection: p.collection,
						Kind:       models.OpCreate,
						TargetID:   p.record.ID,
						Message:    err.Error(),
					})
					return
				}

				s.cache.MarkSynced(p.collection, p.record.ID, time.Now().UTC())
				result.Successful++
			}(item)
		}

		wg.Wait()
	}

	s.logger.WithFields(map[string]interface{}{
		"successful": result.Successful,
		"failed":     result.Failed,
	}).Info("Reconciliation finished")

	return result, nil
}

// pause yields between batches so the host stays responsive.
func (s *Synchronizer) pause(ctx context.Context) error {
	select {
	case <-time.After(s.yield):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// groupByTarget splits a batch into per-record groups, preserving
// enqueue order inside each group and the first-seen order of groups.
func groupByTarget(batch []models.Operation) [][]models.Operation {
	index := make(map[string]int)
	var groups [][]models.Operation

	for _, op := range batch {
		key := string(op.Collection) + "/" + op.TargetID
		if i, ok := index[key]; ok {
			groups[i] = append(groups[i], op)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, []models.Operation{op})
	}
	return groups
}
