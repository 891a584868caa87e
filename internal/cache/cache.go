package cache

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mindwellhq/mindsync/internal/events"
	"github.com/mindwellhq/mindsync/internal/models"
	"github.com/mindwellhq/mindsync/internal/store"
)

// Filter narrows List results.
type Filter struct {
	// Limit caps the number of records returned; zero means no cap.
	Limit int

	// Since keeps only records modified at or after the given time.
	Since time.Time

	// Synced, when set, keeps only records matching the flag.
	Synced *bool
}

// RecordCache holds the locally persisted domain records, one typed
// slice per collection, backed by the durable store. Mutations persist
// best-effort: a failed write is logged and memory stays authoritative.
type RecordCache struct {
	store  store.Store
	logger *events.Logger

	mu      sync.Mutex
	records map[models.Collection][]*models.CachedRecord
	prefs   map[string]interface{}
}

// New loads all collections and preferences from the durable store.
func New(st store.Store, logger *events.Logger) (*RecordCache, error) {
	c := &RecordCache{
		store:   st,
		logger:  logger.WithField("component", "record_cache"),
		records: make(map[models.Collection][]*models.CachedRecord),
		prefs:   make(map[string]interface{}),
	}

	keys := make([]string, 0, len(models.Collections())+1)
	for _, collection := range models.Collections() {
		keys = append(keys, collection.StorageKey())
	}
	keys = append(keys, models.PreferencesKey)

	values, err := st.MultiGet(keys)
	if err != nil {
		return nil, fmt.Errorf("load cache: %w", err)
	}

	for _, collection := range models.Collections() {
		data, ok := values[collection.StorageKey()]
		if !ok {
			continue
		}
		var records []*models.CachedRecord
		if err := json.Unmarshal(data, &records); err != nil {
			c.logger.WithError(err).WithField("collection", collection).Error("Cached collection is corrupt, discarding")
			continue
		}
		c.records[collection] = records
	}

	if data, ok := values[models.PreferencesKey]; ok {
		if err := json.Unmarshal(data, &c.prefs); err != nil {
			c.logger.WithError(err).Error("Preferences are corrupt, discarding")
			c.prefs = make(map[string]interface{})
		}
	}

	return c, nil
}

// Insert adds a record and persists the collection.
func (c *RecordCache) Insert(collection models.Collection, record models.CachedRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	clone := record.Clone()
	c.records[collection] = append(c.records[collection], &clone)
	c.persist(collection)
}

// Get returns a copy of the record with the given id.
func (c *RecordCache) Get(collection models.Collection, id string) (models.CachedRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if record := c.find(collection, id); record != nil {
		return record.Clone(), true
	}
	return models.CachedRecord{}, false
}

// Apply merges a patch into a record. Returns ErrRecordNotFound for an
// unknown id.
func (c *RecordCache) Apply(collection models.Collection, id string, patch map[string]interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	record := c.find(collection, id)
	if record == nil {
		return models.ErrRecordNotFound
	}

	record.ApplyPatch(patch, time.Now().UTC())
	c.persist(collection)
	return nil
}

// Delete removes a record. Returns ErrRecordNotFound for an unknown id.
func (c *RecordCache) Delete(collection models.Collection, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	records := c.records[collection]
	for i, record := range records {
		if record.ID == id {
			c.records[collection] = append(records[:i], records[i+1:]...)
			c.persist(collection)
			return nil
		}
	}
	return models.ErrRecordNotFound
}

// List returns copies of records matching the filter, oldest first.
func (c *RecordCache) List(collection models.Collection, filter Filter) []models.CachedRecord {
	c.mu.Lock()
	defer c.mu.Unlock()

	var result []models.CachedRecord
	for _, record := range c.records[collection] {
		if !filter.Since.IsZero() && record.LastModified.Before(filter.Since) {
			continue
		}
		if filter.Synced != nil && record.Synced != *filter.Synced {
			continue
		}
		result = append(result, record.Clone())
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}
	return result
}

// Unsynced returns copies of all records awaiting remote confirmation.
func (c *RecordCache) Unsynced(collection models.Collection) []models.CachedRecord {
	synced := false
	return c.List(collection, Filter{Synced: &synced})
}

// MarkSynced flags a record as confirmed by the remote endpoint.
func (c *RecordCache) MarkSynced(collection models.Collection, id string, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	record := c.find(collection, id)
	if record == nil {
		return
	}
	record.MarkSynced(at)
	c.persist(collection)
}

// SetSyncError attaches a terminal sync failure to a record, leaving it
// flagged unsynced.
func (c *RecordCache) SetSyncError(collection models.Collection, id, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	record := c.find(collection, id)
	if record == nil {
		return
	}
	record.SyncError = message
	c.persist(collection)
}

// Counts returns per-collection record totals.
func (c *RecordCache) Counts() map[models.Collection]int {
	c.mu.Lock()
	defer c.mu.Unlock()

	counts := make(map[models.Collection]int, len(models.Collections()))
	for _, collection := range models.Collections() {
		counts[collection] = len(c.records[collection])
	}
	return counts
}

// UnsyncedCount returns the total number of unsynced records.
func (c *RecordCache) UnsyncedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for _, records := range c.records {
		for _, record := range records {
			if !record.Synced {
				count++
			}
		}
	}
	return count
}

// DataSize approximates the serialized size of all cached records.
func (c *RecordCache) DataSize() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var total int64
	for _, records := range c.records {
		if data, err := json.Marshal(records); err == nil {
			total += int64(len(data))
		}
	}
	return total
}

// SetPreference stores a user preference and persists the object.
func (c *RecordCache) SetPreference(key string, value interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.prefs[key] = value

	data, err := json.Marshal(c.prefs)
	if err != nil {
		c.logger.WithError(err).Error("Failed to marshal preferences")
		return
	}
	if err := c.store.Set(models.PreferencesKey, data); err != nil {
		c.logger.WithError(err).Error("Failed to persist preferences")
	}
}

// Preference returns a stored preference.
func (c *RecordCache) Preference(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	value, ok := c.prefs[key]
	return value, ok
}

// find returns the live record with the given id. Callers hold the lock.
func (c *RecordCache) find(collection models.Collection, id string) *models.CachedRecord {
	for _, record := range c.records[collection] {
		if record.ID == id {
			return record
		}
	}
	return nil
}

// persist writes one collection's records. Failures are logged; the
// in-memory copy stays authoritative until the next successful write.
// Callers hold the lock.
func (c *RecordCache) persist(collection models.Collection) {
	data, err := json.Marshal(c.records[collection])
	if err != nil {
		c.logger.WithError(err).WithField("collection", collection).Error("Failed to marshal collection")
		return
	}

	if err := c.store.Set(collection.StorageKey(), data); err != nil {
		c.logger.WithError(err).WithField("collection", collection).Error("Failed to persist collection")
	}
}
