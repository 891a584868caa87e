package store

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mindwellhq/mindsync/internal/events"
)

// JSONStore implements file-based key-value storage: one JSON envelope
// per key, written atomically with a checksum and a backup fallback.
type JSONStore struct {
	baseDir string
	logger  *events.Logger

	mu sync.RWMutex
}

// envelope wraps a stored value with integrity metadata.
type envelope struct {
	SchemaVersion int             `json:"schema_version"`
	Checksum      string          `json:"checksum"`
	Value         json.RawMessage `json:"value"`
}

// NewJSONStore creates a JSON file store rooted at baseDir.
func NewJSONStore(baseDir string, logger *events.Logger) (*JSONStore, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	return &JSONStore{
		baseDir: baseDir,
		logger:  logger.WithField("component", "json_store"),
	}, nil
}

// Get reads a value, falling back to the backup file on corruption.
func (s *JSONStore) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.get(key)
}

func (s *JSONStore) get(key string) ([]byte, error) {
	path := s.keyPath(key)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}

	value, err := decodeEnvelope(data)
	if err == nil {
		return value, nil
	}

	s.logger.WithError(err).WithField("key", key).Warn("Value corrupt, trying backup")

	backup, backupErr := os.ReadFile(path + ".backup")
	if backupErr != nil {
		return nil, ErrCorrupt
	}
	value, err = decodeEnvelope(backup)
	if err != nil {
		return nil, ErrCorrupt
	}
	return value, nil
}

// Set writes a value atomically, keeping the previous file as backup.
func (s *JSONStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.set(key, value)
}

func (s *JSONStore) set(key string, value []byte) error {
	path := s.keyPath(key)

	data, err := encodeEnvelope(value)
	if err != nil {
		return fmt.Errorf("encode value: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		if err := copyFile(path, path+".backup"); err != nil {
			s.logger.WithError(err).WithField("key", key).Warn("Failed to create backup")
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if file, err := os.Open(tmpPath); err == nil {
		_ = file.Sync()
		_ = file.Close()
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename key file: %w", err)
	}

	return nil
}

// MultiGet reads several keys; missing keys are skipped.
func (s *JSONStore) MultiGet(keys []string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string][]byte, len(keys))
	for _, key := range keys {
		value, err := s.get(key)
		if err == ErrKeyNotFound {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", key, err)
		}
		result[key] = value
	}
	return result, nil
}

// Remove deletes a key and its backup.
func (s *JSONStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.keyPath(key)
	_ = os.Remove(path)
	_ = os.Remove(path + ".backup")
	return nil
}

// Update stages writes in memory and flushes them key by key. File
// storage has no cross-key transaction; a crash mid-flush can leave a
// partial update, which callers accept for this driver.
func (s *JSONStore) Update(fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &jsonTx{store: s, staged: map[string][]byte{}, removed: map[string]bool{}}
	if err := fn(tx); err != nil {
		return err
	}

	for key, value := range tx.staged {
		if err := s.set(key, value); err != nil {
			return fmt.Errorf("flush %s: %w", key, err)
		}
	}
	for key := range tx.removed {
		path := s.keyPath(key)
		_ = os.Remove(path)
		_ = os.Remove(path + ".backup")
	}
	return nil
}

// Keys lists stored keys.
func (s *JSONStore) Keys() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read store directory: %w", err)
	}

	var keys []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if filepath.Ext(name) == ".json" && !strings.HasSuffix(name, ".backup") {
			keys = append(keys, strings.TrimSuffix(name, ".json"))
		}
	}
	return keys, nil
}

// Size sums the stored value bytes.
func (s *JSONStore) Size() (int64, error) {
	keys, err := s.Keys()
	if err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, key := range keys {
		value, err := s.get(key)
		if err != nil {
			continue
		}
		total += int64(len(value))
	}
	return total, nil
}

// Migrate copies all keys into the target store. This is the schema
// evolution path from flat files to a structured backend.
func (s *JSONStore) Migrate(target Store) error {
	keys, err := s.Keys()
	if err != nil {
		return fmt.Errorf("list keys: %w", err)
	}

	s.logger.WithField("count", len(keys)).Info("Migrating store")

	for _, key := range keys {
		value, err := s.Get(key)
		if err != nil {
			s.logger.WithError(err).WithField("key", key).Error("Failed to read key")
			continue
		}
		if err := target.Set(key, value); err != nil {
			return fmt.Errorf("migrate key %s: %w", key, err)
		}
	}
	return nil
}

// Close releases resources.
func (s *JSONStore) Close() error {
	return nil
}

// jsonTx stages writes for Update.
type jsonTx struct {
	store   *JSONStore
	staged  map[string][]byte
	removed map[string]bool
}

func (tx *jsonTx) Get(key string) ([]byte, error) {
	if tx.removed[key] {
		return nil, ErrKeyNotFound
	}
	if value, ok := tx.staged[key]; ok {
		return value, nil
	}
	return tx.store.get(key)
}

func (tx *jsonTx) Set(key string, value []byte) error {
	delete(tx.removed, key)
	tx.staged[key] = value
	return nil
}

func (tx *jsonTx) Remove(key string) error {
	delete(tx.staged, key)
	tx.removed[key] = true
	return nil
}

// Helpers

func (s *JSONStore) keyPath(key string) string {
	return filepath.Join(s.baseDir, key+".json")
}

// The checksum is always computed over the compact form: marshalling
// re-indents the embedded value, so hashing the raw bytes on either
// side would never match.
func encodeEnvelope(value []byte) ([]byte, error) {
	if len(value) == 0 {
		value = []byte("null")
	}
	compact, err := compactJSON(value)
	if err != nil {
		return nil, fmt.Errorf("compact value: %w", err)
	}
	hash := sha256.Sum256(compact)
	env := envelope{
		SchemaVersion: CurrentSchemaVersion,
		Checksum:      hex.EncodeToString(hash[:]),
		Value:         json.RawMessage(compact),
	}
	return json.MarshalIndent(env, "", "  ")
}

func decodeEnvelope(data []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("parse envelope: %w", err)
	}

	compact, err := compactJSON(env.Value)
	if err != nil {
		return nil, fmt.Errorf("parse envelope value: %w", err)
	}

	hash := sha256.Sum256(compact)
	if calculated := hex.EncodeToString(hash[:]); calculated != env.Checksum {
		return nil, fmt.Errorf("checksum mismatch: expected %s, got %s", env.Checksum, calculated)
	}
	return env.Value, nil
}

func compactJSON(value []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, value); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
