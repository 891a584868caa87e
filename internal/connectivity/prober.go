package connectivity

import (
	"context"
	"net/http"
	"time"

	"github.com/mindwellhq/mindsync/internal/events"
	"github.com/mindwellhq/mindsync/internal/models"
)

// HTTPProber checks reachability with a lightweight GET against a
// health endpoint. Any HTTP response counts as reachable; only a
// transport-level failure means offline.
type HTTPProber struct {
	url    string
	client *http.Client
	logger *events.Logger
}

// NewHTTPProber creates a prober against the given probe URL.
func NewHTTPProber(url string, timeout time.Duration, logger *events.Logger) *HTTPProber {
	return &HTTPProber{
		url: url,
		client: &http.Client{
			Timeout: timeout,
		},
		logger: logger.WithField("component", "http_prober"),
	}
}

// Probe performs one reachability check. The connection type is
// reported as unknown while online: distinguishing wifi from cellular
// needs platform APIs this process does not have.
func (p *HTTPProber) Probe(ctx context.Context) (bool, models.ConnectionType) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		p.logger.WithError(err).Error("Failed to build probe request")
		return false, models.ConnectionNone
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.WithError(err).Debug("Probe failed")
		return false, models.ConnectionNone
	}
	defer resp.Body.Close()

	return true, models.ConnectionUnknown
}
