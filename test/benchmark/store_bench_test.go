package benchmark

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/mindwellhq/mindsync/internal/events"
	"github.com/mindwellhq/mindsync/internal/models"
	"github.com/mindwellhq/mindsync/internal/store"
)

func benchLogger() *events.Logger {
	var buf bytes.Buffer
	return events.NewTestLogger(events.ErrorLevel, "json", &buf)
}

func collectionPayload(n int) []byte {
	records := make([]*models.CachedRecord, n)
	for i := range records {
		records[i] = &models.CachedRecord{
			ID:     fmt.Sprintf("record-%d", i),
			Fields: map[string]interface{}{"mood": i % 10, "note": "benchmark entry"},
		}
	}
	data, _ := json.Marshal(records)
	return data
}

func BenchmarkJSONStoreSet(b *testing.B) {
	st, err := store.NewJSONStore(b.TempDir(), benchLogger())
	if err != nil {
		b.Fatal(err)
	}
	defer st.Close()

	payload := collectionPayload(100)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if err := st.Set(models.MoodEntries.StorageKey(), payload); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSQLiteStoreSet(b *testing.B) {
	st, err := store.NewSQLiteStore(filepath.Join(b.TempDir(), "bench.db"), benchLogger())
	if err != nil {
		b.Fatal(err)
	}
	defer st.Close()

	payload := collectionPayload(100)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if err := st.Set(models.MoodEntries.StorageKey(), payload); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkJSONStoreGet(b *testing.B) {
	st, err := store.NewJSONStore(b.TempDir(), benchLogger())
	if err != nil {
		b.Fatal(err)
	}
	defer st.Close()

	if err := st.Set(models.MoodEntries.StorageKey(), collectionPayload(100)); err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := st.Get(models.MoodEntries.StorageKey()); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSQLiteStoreGet(b *testing.B) {
	st, err := store.NewSQLiteStore(filepath.Join(b.TempDir(), "bench.db"), benchLogger())
	if err != nil {
		b.Fatal(err)
	}
	defer st.Close()

	if err := st.Set(models.MoodEntries.StorageKey(), collectionPayload(100)); err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := st.Get(models.MoodEntries.StorageKey()); err != nil {
			b.Fatal(err)
		}
	}
}
