package client

import (
	"context"
	"fmt"

	"github.com/mindwellhq/mindsync/internal/cache"
	"github.com/mindwellhq/mindsync/internal/config"
	"github.com/mindwellhq/mindsync/internal/connectivity"
	"github.com/mindwellhq/mindsync/internal/events"
	"github.com/mindwellhq/mindsync/internal/queue"
	"github.com/mindwellhq/mindsync/internal/services/offline"
	syncer "github.com/mindwellhq/mindsync/internal/services/sync"
	"github.com/mindwellhq/mindsync/internal/store"
	"github.com/mindwellhq/mindsync/internal/transport"
)

// Client assembles the offline sync stack from configuration and owns
// the lifecycle of every component. The Offline coordinator is the
// surface feature code talks to.
type Client struct {
	Offline *offline.Coordinator
	Monitor *connectivity.Monitor

	config    *config.Config
	logger    *events.Logger
	store     store.Store
	transport transport.Transport
}

// New builds a client from configuration.
func New(cfg *config.Config, logger *events.Logger) (*Client, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	durable, err := newStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	recordCache, err := cache.New(durable, logger)
	if err != nil {
		durable.Close()
		return nil, fmt.Errorf("load cache: %w", err)
	}

	opQueue, err := queue.New(durable, logger)
	if err != nil {
		durable.Close()
		return nil, fmt.Errorf("load queue: %w", err)
	}

	transportClient := transport.NewHTTPClient(&cfg.API, logger)

	prober, err := newProber(cfg, logger)
	if err != nil {
		durable.Close()
		return nil, err
	}
	monitor := connectivity.NewMonitor(prober, cfg.Connectivity.ProbeInterval, logger)

	synchronizer := syncer.NewSynchronizer(transportClient, opQueue, recordCache, logger)
	coordinator := offline.New(durable, recordCache, opQueue, synchronizer, monitor, logger)

	return &Client{
		Offline:   coordinator,
		Monitor:   monitor,
		config:    cfg,
		logger:    logger,
		store:     durable,
		transport: transportClient,
	}, nil
}

// Start begins connectivity monitoring and sync coordination. The
// coordinator subscribes before the first probe so it observes the
// initial transition.
func (c *Client) Start(ctx context.Context) {
	c.Offline.Start(ctx)
	c.Monitor.Start(ctx)
}

// SetToken sets the API authentication token.
func (c *Client) SetToken(token string) {
	c.transport.SetToken(token)
}

// Close shuts components down in dependency order: coordination first,
// then probing, then the transport and store underneath.
func (c *Client) Close() error {
	if err := c.Offline.Close(); err != nil {
		c.logger.WithError(err).Warn("Failed to close coordinator")
	}
	c.Monitor.Stop()

	if err := c.transport.Close(); err != nil {
		c.logger.WithError(err).Warn("Failed to close transport")
	}
	return c.store.Close()
}

func newStore(cfg *config.Config, logger *events.Logger) (store.Store, error) {
	switch cfg.Storage.Driver {
	case "sqlite":
		return store.NewSQLiteStore(cfg.StorePath(), logger)
	case "json":
		return store.NewJSONStore(cfg.StorePath(), logger)
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", cfg.Storage.Driver)
	}
}

func newProber(cfg *config.Config, logger *events.Logger) (connectivity.Prober, error) {
	switch cfg.Connectivity.Prober {
	case "http":
		return connectivity.NewHTTPProber(cfg.Connectivity.ProbeURL, cfg.API.Timeout, logger), nil
	case "websocket":
		return connectivity.NewWSProber(cfg.Connectivity.ProbeURL, logger), nil
	default:
		return nil, fmt.Errorf("unknown connectivity prober: %s", cfg.Connectivity.Prober)
	}
}
