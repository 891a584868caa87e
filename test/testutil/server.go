package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/mindwellhq/mindsync/internal/models"
)

// TestServer implements the record API consumed by the sync client:
//
//	GET    /healthz
//	POST   /api/v1/{collection}
//	PATCH  /api/v1/{collection}/{id}
//	DELETE /api/v1/{collection}/{id}
//
// SetOnline(false) simulates network loss by killing connections before
// any response bytes, so both the prober and the transport observe a
// transport-level failure rather than an HTTP status.
type TestServer struct {
	*httptest.Server

	mu       sync.Mutex
	online   bool
	records  map[models.Collection]map[string]map[string]interface{}
	failNext int
}

// NewTestServer starts a server in the online state.
func NewTestServer() *TestServer {
	ts := &TestServer{
		online:  true,
		records: make(map[models.Collection]map[string]map[string]interface{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", ts.handleHealth)
	mux.HandleFunc("/api/v1/", ts.handleRecords)

	ts.Server = httptest.NewServer(mux)
	return ts
}

// SetOnline toggles simulated connectivity.
func (ts *TestServer) SetOnline(online bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.online = online
}

// FailNext makes the next n record requests answer 503.
func (ts *TestServer) FailNext(n int) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.failNext = n
}

// Record returns a stored record and whether it exists.
func (ts *TestServer) Record(collection models.Collection, id string) (map[string]interface{}, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	record, ok := ts.records[collection][id]
	return record, ok
}

// RecordCount returns how many records a collection holds.
func (ts *TestServer) RecordCount(collection models.Collection) int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.records[collection])
}

func (ts *TestServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if ts.dropIfOffline(w) {
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (ts *TestServer) handleRecords(w http.ResponseWriter, r *http.Request) {
	if ts.dropIfOffline(w) {
		return
	}

	ts.mu.Lock()
	if ts.failNext > 0 {
		ts.failNext--
		ts.mu.Unlock()
		writeError(w, http.StatusServiceUnavailable, "injected outage")
		return
	}
	ts.mu.Unlock()

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/v1/"), "/")
	collection := models.Collection(parts[0])
	if !collection.Valid() {
		writeError(w, http.StatusNotFound, "unknown collection")
		return
	}

	switch {
	case r.Method == http.MethodPost && len(parts) == 1:
		ts.handleCreate(w, r, collection)
	case r.Method == http.MethodPatch && len(parts) == 2:
		ts.handleUpdate(w, r, collection, parts[1])
	case r.Method == http.MethodDelete && len(parts) == 2:
		ts.handleDelete(w, collection, parts[1])
	default:
		writeError(w, http.StatusMethodNotAllowed, "unsupported route")
	}
}

func (ts *TestServer) handleCreate(w http.ResponseWriter, r *http.Request, collection models.Collection) {
	var payload map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	id, _ := payload["id"].(string)
	if id == "" {
		id = uuid.NewString()
	}

	ts.mu.Lock()
	if ts.records[collection] == nil {
		ts.records[collection] = make(map[string]map[string]interface{})
	}
	ts.records[collection][id] = payload
	ts.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"id": id})
}

func (ts *TestServer) handleUpdate(w http.ResponseWriter, r *http.Request, collection models.Collection, id string) {
	var patch map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()

	record, ok := ts.records[collection][id]
	if !ok {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	for k, v := range patch {
		record[k] = v
	}
	w.WriteHeader(http.StatusOK)
}

func (ts *TestServer) handleDelete(w http.ResponseWriter, collection models.Collection, id string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if _, ok := ts.records[collection][id]; !ok {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}
	delete(ts.records[collection], id)
	w.WriteHeader(http.StatusNoContent)
}

// dropIfOffline hijacks and closes the connection when offline so the
// caller sees a network error.
func (ts *TestServer) dropIfOffline(w http.ResponseWriter) bool {
	ts.mu.Lock()
	online := ts.online
	ts.mu.Unlock()

	if online {
		return false
	}

	if hj, ok := w.(http.Hijacker); ok {
		if conn, _, err := hj.Hijack(); err == nil {
			_ = conn.Close()
		}
	}
	return true
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
