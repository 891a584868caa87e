package testutil

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/mindwellhq/mindsync/internal/config"
	"github.com/mindwellhq/mindsync/internal/events"
)

// NewTestLogger returns a quiet JSON logger for tests.
func NewTestLogger() *events.Logger {
	var buf bytes.Buffer
	return events.NewTestLogger(events.DebugLevel, "json", &buf)
}

// TestConfig builds a config pointing at the given API base URL, with
// fast probing and local storage under dataDir.
func TestConfig(baseURL, dataDir string) *config.Config {
	return &config.Config{
		API: config.APIConfig{
			BaseURL:    baseURL,
			Timeout:    5 * time.Second,
			MaxRetries: 0,
			UserAgent:  "mindsync-test",
		},
		Storage: config.StorageConfig{
			DataDir: dataDir,
			Driver:  "json",
		},
		Connectivity: config.ConnectivityConfig{
			Prober:        "http",
			ProbeURL:      baseURL + "/healthz",
			ProbeInterval: 20 * time.Millisecond,
		},
		Log: config.LogConfig{
			Level:  "debug",
			Format: "json",
		},
	}
}

// TestContext returns a context bounded for one test.
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// WaitForCondition polls until the condition holds or the timeout hits.
func WaitForCondition(t *testing.T, condition func() bool, timeout time.Duration, message string) {
	t.Helper()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			t.Fatalf("Timeout waiting for condition: %s", message)
		case <-ticker.C:
			if condition() {
				return
			}
		}
	}
}
