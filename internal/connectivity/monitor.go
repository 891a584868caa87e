package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/mindwellhq/mindsync/internal/events"
	"github.com/mindwellhq/mindsync/internal/models"
)

// Listener receives connectivity states on online/offline edges only.
type Listener func(models.ConnectivityState)

// Prober answers whether the remote side is currently reachable.
type Prober interface {
	Probe(ctx context.Context) (online bool, kind models.ConnectionType)
}

// Monitor polls a Prober and raises edge-triggered transition events.
// The state starts optimistically online; Start performs a synchronous
// probe so callers never act on the optimistic default for long.
type Monitor struct {
	prober   Prober
	interval time.Duration
	logger   *events.Logger

	mu        sync.Mutex
	state     models.ConnectivityState
	listeners map[int]Listener
	nextID    int
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewMonitor creates a monitor polling the prober at the given interval.
func NewMonitor(prober Prober, interval time.Duration, logger *events.Logger) *Monitor {
	return &Monitor{
		prober:   prober,
		interval: interval,
		logger:   logger.WithField("component", "connectivity_monitor"),
		state: models.ConnectivityState{
			IsOnline:       true,
			ConnectionType: models.ConnectionUnknown,
			WasOnline:      true,
		},
		listeners: make(map[int]Listener),
	}
}

// Start probes once synchronously, then polls in the background until
// Stop is called or ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.mu.Unlock()

	online, kind := m.prober.Probe(ctx)
	m.apply(online, kind)

	go m.loop(ctx)
}

// Stop halts background polling. It does not reset the last known state.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// State returns the last known connectivity state.
func (m *Monitor) State() models.ConnectivityState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers a listener for transition events and returns an
// idempotent unsubscribe func that removes exactly this registration.
func (m *Monitor) Subscribe(listener Listener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.listeners[id] = listener

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			online, kind := m.prober.Probe(ctx)
			m.apply(online, kind)
		}
	}
}

// apply updates the state and notifies listeners only when the online
// flag actually flips.
func (m *Monitor) apply(online bool, kind models.ConnectionType) {
	m.mu.Lock()

	was := m.state.IsOnline
	m.state = models.ConnectivityState{
		IsOnline:       online,
		ConnectionType: kind,
		WasOnline:      was,
	}

	if was == online {
		m.mu.Unlock()
		return
	}

	state := m.state
	listeners := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.mu.Unlock()

	m.logger.WithFields(map[string]interface{}{
		"transition": state.Transition(),
		"connection": state.ConnectionType,
	}).Info("Connectivity changed")

	for _, listener := range listeners {
		m.notify(listener, state)
	}
}

// notify delivers to one listener; a panicking listener must not block
// delivery to the others.
func (m *Monitor) notify(listener Listener, state models.ConnectivityState) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.WithField("panic", r).Error("Connectivity listener panicked")
		}
	}()
	listener(state)
}
