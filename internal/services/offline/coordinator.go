package offline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mindwellhq/mindsync/internal/cache"
	"github.com/mindwellhq/mindsync/internal/connectivity"
	"github.com/mindwellhq/mindsync/internal/events"
	"github.com/mindwellhq/mindsync/internal/models"
	"github.com/mindwellhq/mindsync/internal/queue"
	syncer "github.com/mindwellhq/mindsync/internal/services/sync"
	"github.com/mindwellhq/mindsync/internal/store"
)

// State is the coordinator's position in its sync lifecycle.
type State string

const (
	StateOffline       State = "offline"
	StateOnlineIdle    State = "online-idle"
	StateOnlineSyncing State = "online-syncing"
)

// Summary aggregates the two passes of a full sync.
type Summary struct {
	Queue          *syncer.Result `json:"queue"`
	Reconciliation *syncer.Result `json:"reconciliation"`
}

// Coordinator owns the offline data lifecycle: it exposes the
// query/mutate API used by feature code, wires connectivity transitions
// to sync passes, and reports aggregate status. It is constructed
// explicitly with its collaborators injected; there is no package-level
// instance.
type Coordinator struct {
	store   store.Store
	cache   *cache.RecordCache
	queue   *queue.Queue
	sync    *syncer.Synchronizer
	monitor *connectivity.Monitor
	logger  *events.Logger

	mu          sync.Mutex
	state       State
	closed      bool
	unsubscribe func()
	passes      sync.WaitGroup
}

// New creates a coordinator. Call Start to begin reacting to
// connectivity transitions.
func New(
	st store.Store,
	recordCache *cache.RecordCache,
	opQueue *queue.Queue,
	synchronizer *syncer.Synchronizer,
	monitor *connectivity.Monitor,
	logger *events.Logger,
) *Coordinator {
	c := &Coordinator{
		store:   st,
		cache:   recordCache,
		queue:   opQueue,
		sync:    synchronizer,
		monitor: monitor,
		logger:  logger.WithField("component", "sync_coordinator"),
		state:   StateOffline,
	}

	if monitor.State().IsOnline {
		c.state = StateOnlineIdle
	}

	return c
}

// Start subscribes to connectivity transitions. Reconnection triggers a
// background sync pass; disconnection stops new passes without
// cancelling one already in flight.
func (c *Coordinator) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.unsubscribe != nil || c.closed {
		return
	}

	c.unsubscribe = c.monitor.Subscribe(func(state models.ConnectivityState) {
		switch state.Transition() {
		case models.BecameOnline:
			if !c.beginPass() {
				return
			}
			c.logger.Info("Back online, starting sync")
			go func() {
				defer c.passes.Done()
				c.runSyncPass(ctx)
			}()

		case models.BecameOffline:
			c.mu.Lock()
			c.state = StateOffline
			c.mu.Unlock()
			// One-time notice; per-operation sync noise stays out of
			// the user's way.
			c.logger.Info("Offline: changes are stored locally and sync on reconnect")
		}
	})
}

// Close detaches from the monitor and waits for an in-flight pass.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	c.passes.Wait()
	return nil
}

// State returns the coordinator's lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Save stores a new record locally and queues its creation for the
// remote endpoint. It never blocks on the network.
func (c *Coordinator) Save(collection models.Collection, fields map[string]interface{}) (*models.CachedRecord, error) {
	if !collection.Valid() {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownCollection, collection)
	}

	record := models.CachedRecord{
		ID:           uuid.NewString(),
		Fields:       fields,
		Offline:      !c.monitor.State().IsOnline,
		Synced:       false,
		LastModified: time.Now().UTC(),
	}

	c.cache.Insert(collection, record)

	if _, err := c.queue.Enqueue(models.OpCreate, collection, record.ID, record.SyncPayload()); err != nil {
		return nil, fmt.Errorf("enqueue create: %w", err)
	}

	clone := record.Clone()
	return &clone, nil
}

// Read serves records from the local cache only; remote reads belong to
// the online-first fetch path, not this core.
func (c *Coordinator) Read(collection models.Collection, filter cache.Filter) ([]models.CachedRecord, error) {
	if !collection.Valid() {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownCollection, collection)
	}
	return c.cache.List(collection, filter), nil
}

// Update patches a cached record and queues the remote update. An
// unknown id fails fast without queuing anything.
func (c *Coordinator) Update(collection models.Collection, id string, patch map[string]interface{}) error {
	if !collection.Valid() {
		return fmt.Errorf("%w: %s", models.ErrUnknownCollection, collection)
	}

	if err := c.cache.Apply(collection, id, patch); err != nil {
		return err
	}

	if _, err := c.queue.Enqueue(models.OpUpdate, collection, id, patch); err != nil {
		return fmt.Errorf("enqueue update: %w", err)
	}
	return nil
}

// Delete removes a cached record and queues the remote deletion. An
// unknown id fails fast without queuing anything.
func (c *Coordinator) Delete(collection models.Collection, id string) error {
	if !collection.Valid() {
		return fmt.Errorf("%w: %s", models.ErrUnknownCollection, collection)
	}

	if err := c.cache.Delete(collection, id); err != nil {
		return err
	}

	if _, err := c.queue.Enqueue(models.OpDelete, collection, id, nil); err != nil {
		return fmt.Errorf("enqueue delete: %w", err)
	}
	return nil
}

// SetPreference stores a user preference in the offline preferences
// object.
func (c *Coordinator) SetPreference(key string, value interface{}) {
	c.cache.SetPreference(key, value)
}

// Preference returns a stored user preference.
func (c *Coordinator) Preference(key string) (interface{}, bool) {
	return c.cache.Preference(key)
}

// ForceSyncAll runs both sync passes immediately, regardless of the
// lifecycle state. It fails fast with ErrOffline when disconnected and
// with ErrClosed after Close, leaving the queue untouched either way.
func (c *Coordinator) ForceSyncAll(ctx context.Context) (*Summary, error) {
	if !c.monitor.State().IsOnline {
		return nil, models.ErrOffline
	}

	if !c.beginPass() {
		return nil, models.ErrClosed
	}
	defer c.passes.Done()

	return c.runSyncPass(ctx), nil
}

// beginPass registers a sync pass with the lifecycle. It refuses once
// Close has run, so the pass counter never grows while Close waits on
// it. The caller owns the matching Done.
func (c *Coordinator) beginPass() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	c.passes.Add(1)
	return true
}

// Status reports aggregate counts for UI display. Nothing internal
// branches on it.
func (c *Coordinator) Status() models.SyncStatus {
	connectivityState := c.monitor.State()

	size, err := c.store.Size()
	if err != nil {
		c.logger.WithError(err).Warn("Failed to measure storage size")
	}

	pending := c.queue.PendingCount()

	return models.SyncStatus{
		IsOnline:         connectivityState.IsOnline,
		ConnectionType:   connectivityState.ConnectionType,
		OfflineDataCount: c.cache.Counts(),
		SyncQueueLength:  pending,
		PendingSync:      pending > 0,
		Storage:          models.NewStorageStatus(size),
		DataSize:         c.cache.DataSize(),
		UnsyncedCount:    c.cache.UnsyncedCount(),
	}
}

// QueueSnapshot exposes queued operations for inspection tools.
func (c *Coordinator) QueueSnapshot() []models.Operation {
	return c.queue.Snapshot()
}

// PurgeTerminal removes completed and permanently failed operations.
func (c *Coordinator) PurgeTerminal() int {
	return c.queue.PurgeTerminal()
}

// runSyncPass executes the queue pass then the reconciliation pass.
// The queue goes first: it carries explicit user intent. Completion
// moves the state to idle unless connectivity dropped meanwhile.
func (c *Coordinator) runSyncPass(ctx context.Context) *Summary {
	c.mu.Lock()
	c.state = StateOnlineSyncing
	c.mu.Unlock()

	summary := &Summary{}

	queueResult, err := c.sync.ProcessQueue(ctx)
	summary.Queue = queueResult
	if err != nil {
		c.logger.WithError(err).Warn("Queue pass interrupted")
	}

	reconResult, err := c.sync.SyncOfflineData(ctx)
	summary.Reconciliation = reconResult
	if err != nil {
		c.logger.WithError(err).Warn("Reconciliation pass interrupted")
	}

	c.mu.Lock()
	if c.state == StateOnlineSyncing {
		if c.monitor.State().IsOnline {
			c.state = StateOnlineIdle
		} else {
			c.state = StateOffline
		}
	}
	c.mu.Unlock()

	return summary
}
