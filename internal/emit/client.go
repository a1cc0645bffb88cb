package emit

import (
	"context"
	"fmt"
	"sync"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"go.uber.org/zap"

	"github.com/xivstats/collector/internal/config"
)

// Client owns the InfluxDB connection. Delivery is best effort: a failed
// batch is logged and dropped, the next poll produces a fresh one.
type Client struct {
	log *zap.Logger

	mu       sync.Mutex
	cfg      config.ServerConfig
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

func NewClient(cfg config.ServerConfig, log *zap.Logger) *Client {
	c := &Client{log: log}
	c.Update(cfg)
	return c
}

// Enabled reports whether a usable connection is configured.
func (c *Client) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client != nil
}

// Update rebuilds the connection when the settings changed. An incomplete
// configuration tears the connection down.
func (c *Client) Update(cfg config.ServerConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cfg == c.cfg && c.client != nil {
		return
	}
	if c.client != nil {
		c.client.Close()
		c.client = nil
		c.writeAPI = nil
	}
	c.cfg = cfg
	if !cfg.Complete() {
		return
	}
	c.client = influxdb2.NewClient(cfg.URL, cfg.Token)
	c.writeAPI = c.client.WriteAPIBlocking(cfg.Organization, cfg.Bucket)
}

// Write appends one poll's batch.
func (c *Client) Write(ctx context.Context, points []*write.Point) error {
	c.mu.Lock()
	writeAPI := c.writeAPI
	c.mu.Unlock()
	if writeAPI == nil {
		return nil
	}
	if len(points) == 0 {
		return nil
	}
	if err := writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("write %d points: %w", len(points), err)
	}
	return nil
}

// TestConnection pings the server and checks the bucket is visible. A token
// without bucket-list permission passes the lookup leniently; the ping is
// the hard requirement.
func (c *Client) TestConnection(ctx context.Context) error {
	c.mu.Lock()
	client := c.client
	cfg := c.cfg
	c.mu.Unlock()
	if client == nil {
		return fmt.Errorf("store client not configured")
	}
	ok, err := client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping %s: %w", cfg.URL, err)
	}
	if !ok {
		return fmt.Errorf("ping %s: server not ready", cfg.URL)
	}
	buckets, err := client.BucketsAPI().FindBucketsByOrgName(ctx, cfg.Organization)
	if err != nil {
		c.log.Debug("bucket lookup not permitted, skipping check", zap.Error(err))
		return nil
	}
	if buckets != nil {
		for _, b := range *buckets {
			if b.Name == cfg.Bucket {
				return nil
			}
		}
	}
	return fmt.Errorf("bucket %q not found in organization %q", cfg.Bucket, cfg.Organization)
}

// Close releases the connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		c.client.Close()
		c.client = nil
		c.writeAPI = nil
	}
}
