package offline_test

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindwellhq/mindsync/internal/cache"
	"github.com/mindwellhq/mindsync/internal/connectivity"
	"github.com/mindwellhq/mindsync/internal/events"
	"github.com/mindwellhq/mindsync/internal/models"
	"github.com/mindwellhq/mindsync/internal/queue"
	"github.com/mindwellhq/mindsync/internal/services/offline"
	syncer "github.com/mindwellhq/mindsync/internal/services/sync"
	"github.com/mindwellhq/mindsync/internal/store"
	"github.com/mindwellhq/mindsync/internal/transport"
)

// fakeProber reports a settable connectivity answer.
type fakeProber struct {
	mu     sync.Mutex
	online bool
}

func (p *fakeProber) Probe(ctx context.Context) (bool, models.ConnectionType) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.online {
		return true, models.ConnectionWifi
	}
	return false, models.ConnectionNone
}

func (p *fakeProber) set(online bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online = online
}

type fixture struct {
	store       *store.MockStore
	transport   *transport.MockTransport
	queue       *queue.Queue
	cache       *cache.RecordCache
	prober      *fakeProber
	monitor     *connectivity.Monitor
	coordinator *offline.Coordinator
}

func newFixture(t *testing.T, online bool) *fixture {
	t.Helper()

	var buf bytes.Buffer
	logger := events.NewTestLogger(events.DebugLevel, "json", &buf)

	st := store.NewMockStore()
	q, err := queue.New(st, logger)
	require.NoError(t, err)
	c, err := cache.New(st, logger)
	require.NoError(t, err)

	mock := transport.NewMockTransport()
	prober := &fakeProber{online: online}
	monitor := connectivity.NewMonitor(prober, 10*time.Millisecond, logger)
	synchronizer := syncer.NewSynchronizer(mock, q, c, logger)

	coordinator := offline.New(st, c, q, synchronizer, monitor, logger)

	return &fixture{
		store:       st,
		transport:   mock,
		queue:       q,
		cache:       c,
		prober:      prober,
		monitor:     monitor,
		coordinator: coordinator,
	}
}

// start wires the coordinator before the first probe, mirroring the
// client composition order.
func (f *fixture) start(t *testing.T, ctx context.Context) {
	t.Helper()
	f.coordinator.Start(ctx)
	f.monitor.Start(ctx)
	t.Cleanup(func() {
		require.NoError(t, f.coordinator.Close())
		f.monitor.Stop()
	})
}

func TestSaveWhileOffline(t *testing.T) {
	f := newFixture(t, false)
	f.start(t, context.Background())

	record, err := f.coordinator.Save(models.MoodEntries, map[string]interface{}{"mood": 4})
	require.NoError(t, err)

	assert.NotEmpty(t, record.ID)
	assert.True(t, record.Offline)
	assert.False(t, record.Synced)

	// Readable immediately, no network involved.
	got, err := f.coordinator.Read(models.MoodEntries, cache.Filter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, record.ID, got[0].ID)

	assert.Empty(t, f.transport.Calls)
	assert.Equal(t, 1, f.queue.PendingCount())
}

func TestSaveUnknownCollection(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.coordinator.Save(models.Collection("petPhotos"), map[string]interface{}{})
	assert.ErrorIs(t, err, models.ErrUnknownCollection)
}

func TestUpdateAndDeleteFailFast(t *testing.T) {
	f := newFixture(t, false)

	err := f.coordinator.Update(models.MoodEntries, "missing", map[string]interface{}{"mood": 1})
	assert.ErrorIs(t, err, models.ErrRecordNotFound)

	err = f.coordinator.Delete(models.MoodEntries, "missing")
	assert.ErrorIs(t, err, models.ErrRecordNotFound)

	// Failed mutations queue nothing.
	assert.Equal(t, 0, f.queue.Len())
}

func TestUpdateQueuesPatch(t *testing.T) {
	f := newFixture(t, false)

	record, err := f.coordinator.Save(models.JournalEntries, map[string]interface{}{"text": "draft"})
	require.NoError(t, err)

	require.NoError(t, f.coordinator.Update(models.JournalEntries, record.ID,
		map[string]interface{}{"text": "final"}))

	got, _ := f.cache.Get(models.JournalEntries, record.ID)
	assert.Equal(t, "final", got.Fields["text"])
	assert.Equal(t, 2, f.queue.PendingCount())
}

func TestReconnectTriggersSync(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.start(t, ctx)

	require.Eventually(t, func() bool {
		return f.coordinator.State() == offline.StateOffline
	}, time.Second, 5*time.Millisecond)

	record, err := f.coordinator.Save(models.MoodEntries, map[string]interface{}{"mood": 6})
	require.NoError(t, err)

	f.prober.set(true)

	require.Eventually(t, func() bool {
		got, _ := f.cache.Get(models.MoodEntries, record.ID)
		return got.Synced
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		return f.coordinator.State() == offline.StateOnlineIdle
	}, 2*time.Second, 10*time.Millisecond)

	// The queued create was delivered with the client-assigned id.
	require.NotEmpty(t, f.transport.Calls)
	assert.Equal(t, record.ID, f.transport.Calls[0].Payload["id"])
	assert.Equal(t, 0, f.queue.PendingCount())
}

func TestGoingOfflineStopsNothingInFlight(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.start(t, ctx)

	require.Eventually(t, func() bool {
		return f.coordinator.State() == offline.StateOnlineIdle
	}, time.Second, 5*time.Millisecond)

	f.prober.set(false)

	require.Eventually(t, func() bool {
		return f.coordinator.State() == offline.StateOffline
	}, time.Second, 5*time.Millisecond)

	// Saves still work; they just stay local.
	record, err := f.coordinator.Save(models.CrisisEvents, map[string]interface{}{"severity": "low"})
	require.NoError(t, err)
	assert.True(t, record.Offline)
}

func TestForceSyncAllOffline(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.start(t, ctx)

	require.Eventually(t, func() bool {
		return f.coordinator.State() == offline.StateOffline
	}, time.Second, 5*time.Millisecond)

	_, err := f.coordinator.Save(models.MoodEntries, map[string]interface{}{"mood": 2})
	require.NoError(t, err)

	_, err = f.coordinator.ForceSyncAll(ctx)
	assert.ErrorIs(t, err, models.ErrOffline)

	// The queue is untouched.
	assert.Equal(t, 1, f.queue.PendingCount())
	assert.Empty(t, f.transport.Calls)
}

func TestForceSyncAllOnline(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.start(t, ctx)

	record, err := f.coordinator.Save(models.TherapySessions, map[string]interface{}{"topic": "sleep"})
	require.NoError(t, err)

	summary, err := f.coordinator.ForceSyncAll(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Queue.Successful)
	assert.Equal(t, 0, summary.Queue.Failed)

	got, _ := f.cache.Get(models.TherapySessions, record.ID)
	assert.True(t, got.Synced)
}

func TestForceSyncReconciliationHealsLostOperations(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.start(t, ctx)

	// A record flagged unsynced with no matching queue operation, as
	// after a terminal queue failure.
	f.cache.Insert(models.JournalEntries, models.CachedRecord{
		ID:           "orphan",
		Fields:       map[string]interface{}{"text": "lost"},
		LastModified: time.Now().UTC(),
	})

	summary, err := f.coordinator.ForceSyncAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Reconciliation.Successful)

	got, _ := f.cache.Get(models.JournalEntries, "orphan")
	assert.True(t, got.Synced)
}

func TestStatus(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	f.start(t, ctx)

	require.Eventually(t, func() bool {
		return f.coordinator.State() == offline.StateOffline
	}, time.Second, 5*time.Millisecond)

	_, err := f.coordinator.Save(models.MoodEntries, map[string]interface{}{"mood": 3})
	require.NoError(t, err)
	_, err = f.coordinator.Save(models.JournalEntries, map[string]interface{}{"text": "hi"})
	require.NoError(t, err)

	status := f.coordinator.Status()

	assert.False(t, status.IsOnline)
	assert.Equal(t, 1, status.OfflineDataCount[models.MoodEntries])
	assert.Equal(t, 1, status.OfflineDataCount[models.JournalEntries])
	assert.Equal(t, 2, status.SyncQueueLength)
	assert.True(t, status.PendingSync)
	assert.Equal(t, 2, status.UnsyncedCount)
	assert.True(t, status.Storage.HasSpace)
	assert.Greater(t, status.DataSize, int64(0))
	assert.Equal(t, int64(models.MaxLocalStorageBytes), status.Storage.MaxSize)
}

func TestPreferences(t *testing.T) {
	f := newFixture(t, false)

	f.coordinator.SetPreference("reminders", true)

	value, ok := f.coordinator.Preference("reminders")
	require.True(t, ok)
	assert.Equal(t, true, value)
}

func TestCloseWaitsForPass(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.coordinator.Start(ctx)
	f.monitor.Start(ctx)
	defer f.monitor.Stop()

	_, err := f.coordinator.Save(models.MoodEntries, map[string]interface{}{"mood": 5})
	require.NoError(t, err)

	_, err = f.coordinator.ForceSyncAll(ctx)
	require.NoError(t, err)

	require.NoError(t, f.coordinator.Close())
	require.NoError(t, f.coordinator.Close())
}

func TestForceSyncAllAfterClose(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.coordinator.Start(ctx)
	f.monitor.Start(ctx)
	defer f.monitor.Stop()

	_, err := f.coordinator.Save(models.MoodEntries, map[string]interface{}{"mood": 5})
	require.NoError(t, err)

	require.NoError(t, f.coordinator.Close())

	_, err = f.coordinator.ForceSyncAll(ctx)
	assert.ErrorIs(t, err, models.ErrClosed)

	// Nothing was delivered after shutdown.
	assert.Empty(t, f.transport.Calls)
	assert.Equal(t, 1, f.queue.PendingCount())
}
