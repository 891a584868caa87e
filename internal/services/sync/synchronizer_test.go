package sync_test

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindwellhq/mindsync/internal/cache"
	"github.com/mindwellhq/mindsync/internal/events"
	"github.com/mindwellhq/mindsync/internal/models"
	"github.com/mindwellhq/mindsync/internal/queue"
	syncer "github.com/mindwellhq/mindsync/internal/services/sync"
	"github.com/mindwellhq/mindsync/internal/store"
	"github.com/mindwellhq/mindsync/internal/transport"
)

type fixture struct {
	transport *transport.MockTransport
	queue     *queue.Queue
	cache     *cache.RecordCache
	sync      *syncer.Synchronizer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	var buf bytes.Buffer
	logger := events.NewTestLogger(events.DebugLevel, "json", &buf)
	st := store.NewMockStore()

	q, err := queue.New(st, logger)
	require.NoError(t, err)

	c, err := cache.New(st, logger)
	require.NoError(t, err)

	mock := transport.NewMockTransport()
	return &fixture{
		transport: mock,
		queue:     q,
		cache:     c,
		sync:      syncer.NewSynchronizer(mock, q, c, logger),
	}
}

func (f *fixture) insertRecord(t *testing.T, collection models.Collection, id string) {
	t.Helper()
	f.cache.Insert(collection, models.CachedRecord{
		ID:           id,
		Fields:       map[string]interface{}{"note": "hello"},
		LastModified: time.Now().UTC(),
	})
}

func (f *fixture) enqueue(t *testing.T, kind models.OperationKind, collection models.Collection, id string) *models.Operation {
	t.Helper()
	var payload map[string]interface{}
	if kind != models.OpDelete {
		payload = map[string]interface{}{"id": id, "note": "hello"}
	}
	op, err := f.queue.Enqueue(kind, collection, id, payload)
	require.NoError(t, err)
	return op
}

func TestProcessQueueEmpty(t *testing.T) {
	f := newFixture(t)

	result, err := f.sync.ProcessQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Successful)
	assert.Empty(t, f.transport.Calls)
}

func TestProcessQueueDeliversAll(t *testing.T) {
	f := newFixture(t)

	f.insertRecord(t, models.MoodEntries, "m1")
	f.enqueue(t, models.OpCreate, models.MoodEntries, "m1")
	f.enqueue(t, models.OpDelete, models.JournalEntries, "j1")

	result, err := f.sync.ProcessQueue(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Successful)
	assert.Equal(t, 0, result.Failed)
	assert.Len(t, f.transport.Calls, 2)

	// Success confirms the cached record.
	got, ok := f.cache.Get(models.MoodEntries, "m1")
	require.True(t, ok)
	assert.True(t, got.Synced)

	// Terminal operations are purged at the end of the pass.
	assert.Equal(t, 0, f.queue.Len())
}

func TestProcessQueueSameRecordOrdering(t *testing.T) {
	f := newFixture(t)

	f.insertRecord(t, models.MoodEntries, "m1")
	f.enqueue(t, models.OpCreate, models.MoodEntries, "m1")
	f.enqueue(t, models.OpUpdate, models.MoodEntries, "m1")
	f.enqueue(t, models.OpDelete, models.MoodEntries, "m1")

	result, err := f.sync.ProcessQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Successful)

	assert.Equal(t, []string{
		"create moodEntries/m1",
		"update moodEntries/m1",
		"delete moodEntries/m1",
	}, f.transport.CallOrder())
}

func TestProcessQueueIndependentOutcomes(t *testing.T) {
	f := newFixture(t)

	f.insertRecord(t, models.MoodEntries, "ok")
	f.insertRecord(t, models.MoodEntries, "bad")
	f.enqueue(t, models.OpCreate, models.MoodEntries, "ok")
	f.enqueue(t, models.OpCreate, models.MoodEntries, "bad")

	f.transport.FailTarget(models.MoodEntries, "bad", &models.APIError{StatusCode: 500, Message: "boom"})

	result, err := f.sync.ProcessQueue(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Successful)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "bad", result.Errors[0].TargetID)

	okRecord, _ := f.cache.Get(models.MoodEntries, "ok")
	assert.True(t, okRecord.Synced)
	badRecord, _ := f.cache.Get(models.MoodEntries, "bad")
	assert.False(t, badRecord.Synced)
}

func TestProcessQueueSingleAttemptPerPass(t *testing.T) {
	f := newFixture(t)

	f.insertRecord(t, models.MoodEntries, "m1")
	op := f.enqueue(t, models.OpCreate, models.MoodEntries, "m1")
	f.transport.FailAll = &models.APIError{StatusCode: 503, Message: "down"}

	result, err := f.sync.ProcessQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)

	// Exactly one delivery attempt this pass.
	assert.Len(t, f.transport.Calls, 1)

	snapshot := f.queue.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, op.ID, snapshot[0].ID)
	assert.Equal(t, models.StatusRetry, snapshot[0].Status)
	assert.Equal(t, 1, snapshot[0].Attempts)

	// The next pass retries it.
	f.transport.FailAll = nil
	result, err = f.sync.ProcessQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Successful)
	assert.Len(t, f.transport.Calls, 2)
}

func TestProcessQueueRetryCeiling(t *testing.T) {
	f := newFixture(t)

	f.insertRecord(t, models.JournalEntries, "j1")
	f.enqueue(t, models.OpUpdate, models.JournalEntries, "j1")
	f.transport.FailAll = &models.APIError{StatusCode: 500, Message: "persistent failure"}

	for i := 0; i < models.MaxSyncAttempts; i++ {
		_, err := f.sync.ProcessQueue(context.Background())
		require.NoError(t, err)
	}

	// Permanently failed and purged; the record keeps the error.
	assert.Equal(t, 0, f.queue.Len())
	assert.Len(t, f.transport.Calls, models.MaxSyncAttempts)

	record, ok := f.cache.Get(models.JournalEntries, "j1")
	require.True(t, ok)
	assert.False(t, record.Synced)
	assert.Contains(t, record.SyncError, "persistent failure")

	// Nothing left to deliver.
	result, err := f.sync.ProcessQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Successful+result.Failed)
}

func TestProcessQueueManyBatches(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 25; i++ {
		id := string(rune('a' + i))
		f.insertRecord(t, models.MoodEntries, id)
		f.enqueue(t, models.OpCreate, models.MoodEntries, id)
	}

	start := time.Now()
	result, err := f.sync.ProcessQueue(context.Background())
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, 25, result.Successful)
	assert.Len(t, f.transport.Calls, 25)

	// 25 operations means three batches and two yields between them.
	assert.GreaterOrEqual(t, elapsed, 2*models.BatchYield)
}

func TestProcessQueueContextCancelled(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 15; i++ {
		id := string(rune('a' + i))
		f.insertRecord(t, models.MoodEntries, id)
		f.enqueue(t, models.OpCreate, models.MoodEntries, id)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := f.sync.ProcessQueue(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	// The first batch completed before the inter-batch yield observed
	// the cancellation.
	assert.Equal(t, models.SyncBatchSize, result.Successful)
}

func TestSyncOfflineData(t *testing.T) {
	f := newFixture(t)

	f.insertRecord(t, models.MoodEntries, "m1")
	f.insertRecord(t, models.JournalEntries, "j1")
	f.cache.MarkSynced(models.JournalEntries, "j1", time.Now().UTC())

	result, err := f.sync.SyncOfflineData(context.Background())
	require.NoError(t, err)

	// Only the unsynced record is pushed.
	assert.Equal(t, 1, result.Successful)
	require.Len(t, f.transport.Calls, 1)
	call := f.transport.Calls[0]
	assert.Equal(t, models.OpCreate, call.Kind)
	assert.Equal(t, "m1", call.Payload["id"])

	record, _ := f.cache.Get(models.MoodEntries, "m1")
	assert.True(t, record.Synced)
}

func TestSyncOfflineDataManyBatches(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 15; i++ {
		f.insertRecord(t, models.MoodEntries, fmt.Sprintf("m-%d", i))
	}
	for i := 0; i < 10; i++ {
		f.insertRecord(t, models.JournalEntries, fmt.Sprintf("j-%d", i))
	}

	start := time.Now()
	result, err := f.sync.SyncOfflineData(context.Background())
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, 25, result.Successful)
	assert.Equal(t, 0, result.Failed)
	assert.Len(t, f.transport.Calls, 25)

	// 25 records means three batches and two yields between them.
	assert.GreaterOrEqual(t, elapsed, 2*models.BatchYield)

	for i := 0; i < 15; i++ {
		record, ok := f.cache.Get(models.MoodEntries, fmt.Sprintf("m-%d", i))
		require.True(t, ok)
		assert.True(t, record.Synced)
	}
	for i := 0; i < 10; i++ {
		record, ok := f.cache.Get(models.JournalEntries, fmt.Sprintf("j-%d", i))
		require.True(t, ok)
		assert.True(t, record.Synced)
	}
}

func TestSyncOfflineDataFailureKeepsUnsynced(t *testing.T) {
	f := newFixture(t)

	f.insertRecord(t, models.CrisisEvents, "c1")
	f.transport.FailAll = &models.APIError{StatusCode: 500, Message: "boom"}

	result, err := f.sync.SyncOfflineData(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "c1", result.Errors[0].TargetID)

	record, _ := f.cache.Get(models.CrisisEvents, "c1")
	assert.False(t, record.Synced)
}
