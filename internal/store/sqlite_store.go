package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mindwellhq/mindsync/internal/events"
)

// SQLiteStore implements durable key-value storage on SQLite. It is the
// structured, queryable backend that flat JSON stores migrate into.
type SQLiteStore struct {
	db     *sql.DB
	logger *events.Logger
}

// NewSQLiteStore opens or creates a SQLite store.
func NewSQLiteStore(dbPath string, logger *events.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &SQLiteStore{
		db:     db,
		logger: logger.WithField("component", "sqlite_store"),
	}

	if err := store.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
    CREATE TABLE IF NOT EXISTS records (
        key TEXT PRIMARY KEY,
        value BLOB NOT NULL,
        updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS schema_info (
        version INTEGER PRIMARY KEY
    );

    INSERT OR IGNORE INTO schema_info (version) VALUES (?);
    `

	if _, err := s.db.Exec(schema, CurrentSchemaVersion); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// Get returns the value for a key.
func (s *SQLiteStore) Get(key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow("SELECT value FROM records WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query key: %w", err)
	}
	return value, nil
}

// Set upserts a value.
func (s *SQLiteStore) Set(key string, value []byte) error {
	_, err := s.db.Exec(`
        INSERT INTO records (key, value, updated_at)
        VALUES (?, ?, CURRENT_TIMESTAMP)
        ON CONFLICT(key) DO UPDATE SET
            value = excluded.value,
            updated_at = CURRENT_TIMESTAMP
    `, key, value)
	if err != nil {
		return fmt.Errorf("upsert key: %w", err)
	}
	return nil
}

// MultiGet reads several keys in one query.
func (s *SQLiteStore) MultiGet(keys []string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	query := "SELECT key, value FROM records WHERE key IN (?"
	args := []interface{}{keys[0]}
	for _, key := range keys[1:] {
		query += ",?"
		args = append(args, key)
	}
	query += ")"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query keys: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		result[key] = value
	}
	return result, rows.Err()
}

// Remove deletes a key.
func (s *SQLiteStore) Remove(key string) error {
	if _, err := s.db.Exec("DELETE FROM records WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete key: %w", err)
	}
	return nil
}

// Update runs fn inside a real SQL transaction, so multi-key writes
// commit atomically.
func (s *SQLiteStore) Update(fn func(tx Tx) error) error {
	sqlTx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = sqlTx.Rollback() }()

	if err := fn(&sqliteTx{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// Keys lists stored keys.
func (s *SQLiteStore) Keys() ([]string, error) {
	rows, err := s.db.Query("SELECT key FROM records ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("query keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Size sums stored value bytes.
func (s *SQLiteStore) Size() (int64, error) {
	var size int64
	err := s.db.QueryRow("SELECT COALESCE(SUM(LENGTH(value)), 0) FROM records").Scan(&size)
	if err != nil {
		return 0, fmt.Errorf("query size: %w", err)
	}
	return size, nil
}

// Migrate copies all keys into the target store.
func (s *SQLiteStore) Migrate(target Store) error {
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

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// sqliteTx adapts a sql.Tx to the Tx interface.
type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) Get(key string) ([]byte, error) {
	var value []byte
	err := t.tx.QueryRow("SELECT value FROM records WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query key: %w", err)
	}
	return value, nil
}

func (t *sqliteTx) Set(key string, value []byte) error {
	_, err := t.tx.Exec(`
        INSERT INTO records (key, value, updated_at)
        VALUES (?, ?, CURRENT_TIMESTAMP)
        ON CONFLICT(key) DO UPDATE SET
            value = excluded.value,
            updated_at = CURRENT_TIMESTAMP
    `, key, value)
	if err != nil {
		return fmt.Errorf("upsert key: %w", err)
	}
	return nil
}

func (t *sqliteTx) Remove(key string) error {
	if _, err := t.tx.Exec("DELETE FROM records WHERE key = ?", key); err != nil {
		return fmt.Errorf("delete key: %w", err)
	}
	return nil
}
