package models

// StorageStatus summarizes local storage usage against the budget.
type StorageStatus struct {
	HasSpace        bool    `json:"has_space"`
	CurrentSize     int64   `json:"current_size"`
	MaxSize         int64   `json:"max_size"`
	UsagePercentage float64 `json:"usage_percentage"`
}

// SyncStatus is the aggregate surface consumed by UI status displays.
// It is informational only; nothing in the core branches on it.
type SyncStatus struct {
	IsOnline         bool               `json:"is_online"`
	ConnectionType   ConnectionType     `json:"connection_type"`
	OfflineDataCount map[Collection]int `json:"offline_data_count"`
	SyncQueueLength  int                `json:"sync_queue_length"`
	PendingSync      bool               `json:"pending_sync"`
	Storage          StorageStatus      `json:"storage"`
	DataSize         int64              `json:"data_size"`
	UnsyncedCount    int                `json:"unsynced_count"`
}

// NewStorageStatus computes usage against the fixed local budget.
func NewStorageStatus(currentSize int64) StorageStatus {
	pct := float64(currentSize) / float64(MaxLocalStorageBytes) * 100
	return StorageStatus{
		HasSpace:        currentSize < MaxLocalStorageBytes,
		CurrentSize:     currentSize,
		MaxSize:         MaxLocalStorageBytes,
		UsagePercentage: pct,
	}
}
