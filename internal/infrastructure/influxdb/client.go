package influxdb

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/graylogic-ha/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second
)

// Client writes published entity states to one InfluxDB v2 bucket.
//
// Writes are synchronous: each state is one HTTP write and its error is
// returned to the caller. The device's recorder worker already queues
// states off the run loop, so nothing here needs to batch.
//
// All methods are safe for concurrent use.
type Client struct {
	client influxdb2.Client
	writer api.WriteAPIBlocking
	closed atomic.Bool
}

// Connect creates the client and verifies the server answers a ping.
//
// Parameters:
//   - cfg: InfluxDB configuration from config.yaml
//
// Returns:
//   - *Client: Client ready for RecordEntityState
//   - error: ErrDisabled, or ErrConnectionFailed wrapping the ping failure
func Connect(cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := ping(ctx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	return &Client{
		client: client,
		writer: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
	}, nil
}

// RecordEntityState writes one published state.
//
// Returns:
//   - error: ErrNotConnected after Close, or ErrWriteFailed wrapping the
//     server response
func (c *Client) RecordEntityState(ctx context.Context, s EntityState) error {
	if c.closed.Load() {
		return ErrNotConnected
	}
	if err := c.writer.WritePoint(ctx, entityStatePoint(s)); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWriteFailed, s.EntityID, err)
	}
	return nil
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.closed.Load() {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := ping(ctx, c.client); err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	return nil
}

// Close releases the HTTP client. Later writes fail with ErrNotConnected.
// Safe to call more than once.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.client.Close()
	return nil
}

func ping(ctx context.Context, client influxdb2.Client) error {
	healthy, err := client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	if !healthy {
		return fmt.Errorf("server not healthy")
	}
	return nil
}
