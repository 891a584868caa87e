package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mindwellhq/mindsync/internal/events"
	"github.com/mindwellhq/mindsync/internal/models"
)

// WSProber holds a persistent WebSocket connection to the probe
// endpoint and treats connection loss as the offline signal. Compared
// to the HTTP prober it detects drops without waiting for a full
// request timeout.
type WSProber struct {
	url    string
	logger *events.Logger

	dialTimeout time.Duration
	pongTimeout time.Duration

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWSProber creates a WebSocket prober. http(s) URLs are converted to
// ws(s) automatically.
func NewWSProber(wsURL string, logger *events.Logger) *WSProber {
	if len(wsURL) > 4 && wsURL[:4] == "http" {
		wsURL = "ws" + wsURL[4:]
	}

	return &WSProber{
		url:         wsURL,
		logger:      logger.WithField("component", "ws_prober"),
		dialTimeout: 10 * time.Second,
		pongTimeout: 5 * time.Second,
	}
}

// Probe verifies the held connection with a ping, re-dialing when there
// is none. A failed ping drops the connection so the next probe dials
// fresh.
func (p *WSProber) Probe(ctx context.Context) (bool, models.ConnectionType) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		if !p.dial(ctx) {
			return false, models.ConnectionNone
		}
	}

	deadline := time.Now().Add(p.pongTimeout)
	if err := p.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
		p.logger.WithError(err).Debug("Ping failed, dropping connection")
		p.drop()

		// One immediate re-dial covers a server-side idle close.
		if p.dial(ctx) {
			return true, models.ConnectionUnknown
		}
		return false, models.ConnectionNone
	}

	return true, models.ConnectionUnknown
}

// Close releases the held connection.
func (p *WSProber) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drop()
	return nil
}

// dial establishes a fresh connection. Callers hold the lock.
func (p *WSProber) dial(ctx context.Context) bool {
	dialer := websocket.Dialer{
		HandshakeTimeout: p.dialTimeout,
	}

	conn, resp, err := dialer.DialContext(ctx, p.url, nil)
	if err != nil {
		if resp != nil {
			p.logger.WithError(err).WithField("status", resp.StatusCode).Debug("Probe dial failed")
		} else {
			p.logger.WithError(err).Debug("Probe dial failed")
		}
		return false
	}

	// Reads only service pong/close frames; payloads are discarded.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	p.conn = conn
	p.logger.Debug("Probe connection established")
	return true
}

// drop closes and forgets the connection. Callers hold the lock.
func (p *WSProber) drop() {
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
