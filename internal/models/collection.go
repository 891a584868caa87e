package models

// Collection identifies a domain collection held in the offline store.
type Collection string

const (
	MoodEntries     Collection = "moodEntries"
	JournalEntries  Collection = "journalEntries"
	TherapySessions Collection = "therapySessions"
	CrisisEvents    Collection = "crisisEvents"
)

// Persistence keys outside the per-collection layout.
const (
	PreferencesKey = "offline_preferences"
	QueueKey       = "sync_queue"
)

// Collections returns the closed set of domain collections.
func Collections() []Collection {
	return []Collection{MoodEntries, JournalEntries, TherapySessions, CrisisEvents}
}

// Valid reports whether c is a known collection.
func (c Collection) Valid() bool {
	switch c {
	case MoodEntries, JournalEntries, TherapySessions, CrisisEvents:
		return true
	default:
		return false
	}
}

// StorageKey returns the durable-store key holding this collection's records.
func (c Collection) StorageKey() string {
	return "offline_" + string(c)
}

func (c Collection) String() string {
	return string(c)
}
