package models_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindwellhq/mindsync/internal/models"
)

func TestOperationEligible(t *testing.T) {
	op := models.Operation{Status: models.StatusPending}
	assert.True(t, op.Eligible())

	op.Status = models.StatusRetry
	assert.True(t, op.Eligible())

	op.Status = models.StatusCompleted
	assert.False(t, op.Eligible())

	op.Status = models.StatusFailed
	assert.False(t, op.Eligible())
}

func TestOperationTerminal(t *testing.T) {
	op := models.Operation{Status: models.StatusCompleted}
	assert.True(t, op.Terminal())

	op = models.Operation{Status: models.StatusFailed, Attempts: models.MaxSyncAttempts}
	assert.True(t, op.Terminal())

	op = models.Operation{Status: models.StatusRetry, Attempts: 1}
	assert.False(t, op.Terminal())
}

func TestOperationDecodePayload(t *testing.T) {
	op := models.Operation{Payload: json.RawMessage(`{"mood":7}`)}

	fields, err := op.DecodePayload()
	require.NoError(t, err)
	assert.Equal(t, float64(7), fields["mood"])

	op.Payload = nil
	fields, err = op.DecodePayload()
	require.NoError(t, err)
	assert.Nil(t, fields)

	op.Payload = json.RawMessage(`{{`)
	_, err = op.DecodePayload()
	assert.Error(t, err)
}

func TestCollectionValid(t *testing.T) {
	for _, c := range models.Collections() {
		assert.True(t, c.Valid())
	}
	assert.False(t, models.Collection("petPhotos").Valid())
	assert.Equal(t, "offline_moodEntries", models.MoodEntries.StorageKey())
}

func TestCachedRecordApplyPatch(t *testing.T) {
	now := time.Now().UTC()
	record := models.CachedRecord{
		ID:     "m1",
		Fields: map[string]interface{}{"mood": 3, "note": "keep me"},
		Synced: true,
	}

	record.ApplyPatch(map[string]interface{}{"mood": 8}, now)

	assert.Equal(t, 8, record.Fields["mood"])
	assert.Equal(t, "keep me", record.Fields["note"])
	assert.False(t, record.Synced)
	assert.Equal(t, now, record.LastModified)
}

func TestCachedRecordApplyPatchNilFields(t *testing.T) {
	record := models.CachedRecord{ID: "m1"}
	record.ApplyPatch(map[string]interface{}{"mood": 2}, time.Now().UTC())
	assert.Equal(t, 2, record.Fields["mood"])
}

func TestCachedRecordClone(t *testing.T) {
	at := time.Now().UTC()
	record := models.CachedRecord{
		ID:             "m1",
		Fields:         map[string]interface{}{"mood": 5},
		ServerSyncedAt: &at,
	}

	clone := record.Clone()
	clone.Fields["mood"] = 1
	*clone.ServerSyncedAt = at.Add(time.Hour)

	assert.Equal(t, 5, record.Fields["mood"])
	assert.Equal(t, at, *record.ServerSyncedAt)
}

func TestCachedRecordSyncPayload(t *testing.T) {
	record := models.CachedRecord{
		ID:     "m1",
		Fields: map[string]interface{}{"mood": 5},
	}

	payload := record.SyncPayload()
	assert.Equal(t, "m1", payload["id"])
	assert.Equal(t, 5, payload["mood"])
}

func TestConnectivityTransition(t *testing.T) {
	state := models.ConnectivityState{IsOnline: true, WasOnline: false}
	assert.Equal(t, models.BecameOnline, state.Transition())

	state = models.ConnectivityState{IsOnline: false, WasOnline: true}
	assert.Equal(t, models.BecameOffline, state.Transition())

	state = models.ConnectivityState{IsOnline: true, WasOnline: true}
	assert.Empty(t, state.Transition())
}

func TestAPIErrorRetryable(t *testing.T) {
	assert.True(t, (&models.APIError{StatusCode: 500}).Retryable())
	assert.True(t, (&models.APIError{StatusCode: 503}).Retryable())
	assert.True(t, (&models.APIError{StatusCode: 429}).Retryable())
	assert.False(t, (&models.APIError{StatusCode: 400}).Retryable())
	assert.False(t, (&models.APIError{StatusCode: 404}).Retryable())
}

func TestStorageStatus(t *testing.T) {
	status := models.NewStorageStatus(models.MaxLocalStorageBytes / 2)
	assert.True(t, status.HasSpace)
	assert.InDelta(t, 50.0, status.UsagePercentage, 0.01)

	status = models.NewStorageStatus(models.MaxLocalStorageBytes)
	assert.False(t, status.HasSpace)
}
