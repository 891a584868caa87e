package store

import "errors"

// Store is key-addressed durable storage. It is the ground truth for the
// operation queue and the cached domain records.
type Store interface {
	// Get returns the value for a key, or ErrKeyNotFound.
	Get(key string) ([]byte, error)

	// Set writes a value durably.
	Set(key string, value []byte) error

	// MultiGet returns values for the given keys. Missing keys are
	// simply absent from the result.
	MultiGet(keys []string) (map[string][]byte, error)

	// Remove deletes a key. Removing a missing key is not an error.
	Remove(key string) error

	// Update runs fn inside an atomic multi-key transaction. Writes are
	// visible to later reads within the transaction and committed as a
	// unit, where the backend supports it.
	Update(fn func(tx Tx) error) error

	// Keys lists every stored key.
	Keys() ([]string, error)

	// Size returns the bytes currently used by stored values.
	Size() (int64, error)

	// Migrate copies every key into the target store.
	Migrate(target Store) error

	// Close releases resources.
	Close() error
}

// Tx is the view of a store inside an Update transaction.
type Tx interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Remove(key string) error
}

// Errors
var (
	ErrKeyNotFound = errors.New("key not found")
	ErrCorrupt     = errors.New("stored value is corrupt")
)

// CurrentSchemaVersion for migrations.
const CurrentSchemaVersion = 1
