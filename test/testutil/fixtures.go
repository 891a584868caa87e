package testutil

// Canned domain payloads for integration tests.

// MoodEntryFields returns a representative mood entry payload.
func MoodEntryFields(mood int) map[string]interface{} {
	return map[string]interface{}{
		"mood":   mood,
		"note":   "logged from test",
		"tags":   []string{"sleep", "work"},
		"source": "manual",
	}
}

// JournalEntryFields returns a representative journal entry payload.
func JournalEntryFields(text string) map[string]interface{} {
	return map[string]interface{}{
		"title": "Evening reflection",
		"text":  text,
	}
}

// TherapySessionFields returns a representative therapy session payload.
func TherapySessionFields(topic string) map[string]interface{} {
	return map[string]interface{}{
		"topic":     topic,
		"completed": false,
	}
}

// CrisisEventFields returns a representative crisis event payload.
func CrisisEventFields(severity string) map[string]interface{} {
	return map[string]interface{}{
		"severity": severity,
		"resolved": false,
	}
}
