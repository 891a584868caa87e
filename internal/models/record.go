package models

import "time"

// CachedRecord is a locally persisted copy of a domain entity.
type CachedRecord struct {
	ID             string                 `json:"id"`
	Fields         map[string]interface{} `json:"fields"`
	Offline        bool                   `json:"offline"`
	Synced         bool                   `json:"synced"`
	ServerSyncedAt *time.Time             `json:"server_synced_at,omitempty"`
	LastModified   time.Time              `json:"last_modified"`
	SyncError      string                 `json:"sync_error,omitempty"`
}

// ApplyPatch merges partial fields into the record and bumps LastModified.
// The record is flagged unsynced until the matching operation completes.
func (r *CachedRecord) ApplyPatch(patch map[string]interface{}, now time.Time) {
	if r.Fields == nil {
		r.Fields = make(map[string]interface{}, len(patch))
	}
	for k, v := range patch {
		r.Fields[k] = v
	}
	r.Synced = false
	r.LastModified = now
}

// MarkSynced records remote confirmation and clears any stale sync error.
func (r *CachedRecord) MarkSynced(at time.Time) {
	r.Synced = true
	r.ServerSyncedAt = &at
	r.SyncError = ""
}

// Clone returns a deep copy so callers cannot mutate cache internals.
func (r *CachedRecord) Clone() CachedRecord {
	clone := *r
	if r.Fields != nil {
		clone.Fields = make(map[string]interface{}, len(r.Fields))
		for k, v := range r.Fields {
			clone.Fields[k] = v
		}
	}
	if r.ServerSyncedAt != nil {
		t := *r.ServerSyncedAt
		clone.ServerSyncedAt = &t
	}
	return clone
}

// SyncPayload returns the wire payload for a create-style push: the domain
// fields plus the client-assigned identifier.
func (r *CachedRecord) SyncPayload() map[string]interface{} {
	payload := make(map[string]interface{}, len(r.Fields)+1)
	for k, v := range r.Fields {
		payload[k] = v
	}
	payload["id"] = r.ID
	return payload
}
