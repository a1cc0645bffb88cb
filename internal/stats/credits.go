package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// CreditSource reads the free-company credit balance visible to the current
// session.
type CreditSource interface {
	Credits() (orgID uint64, credits int64, ok bool)
}

// CreditCache keeps the last known credit balance per organization. The
// balance loads lazily on the foreign side, so a read right after login
// often reports zero; Refresh retries on a short delay and a zero balance is
// never cached over a known good one.
type CreditCache struct {
	dir string
	src CreditSource
	clk clock.Clock
	log *zap.Logger

	maxAttempts int
	retryDelay  time.Duration

	mu      sync.Mutex
	records map[uint64]CreditRecord
	writes  int
}

func NewCreditCache(dir string, src CreditSource, clk clock.Clock, log *zap.Logger) *CreditCache {
	c := &CreditCache{
		dir:         dir,
		src:         src,
		clk:         clk,
		log:         log,
		maxAttempts: 10,
		retryDelay:  100 * time.Millisecond,
		records:     make(map[uint64]CreditRecord),
	}
	c.hydrate()
	return c
}

func (c *CreditCache) hydrate() {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			c.log.Warn("credit cache dir unreadable", zap.Error(err))
		}
		return
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "f.") || !strings.HasSuffix(name, ".json") {
			continue
		}
		path := filepath.Join(c.dir, name)
		raw, err := os.ReadFile(path)
		if err != nil {
			c.log.Warn("skipping unreadable cache file", zap.String("file", path), zap.Error(err))
			continue
		}
		var rec CreditRecord
		if err := json.Unmarshal(raw, &rec); err != nil || rec.OrganizationID == 0 {
			c.log.Warn("skipping unparsable cache file", zap.String("file", path), zap.Error(err))
			continue
		}
		c.records[rec.OrganizationID] = rec
	}
	if n := len(c.records); n > 0 {
		c.log.Info("credit cache hydrated", zap.Int("organizations", n))
	}
}

// Refresh reads the balance with a bounded retry loop. Zero reads within the
// attempt budget are treated as not-loaded-yet; a run of all zeros leaves
// the cache untouched.
func (c *CreditCache) Refresh() {
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		orgID, credits, ok := c.src.Credits()
		if ok && credits > 0 {
			c.store(orgID, credits)
			return
		}
		if attempt < c.maxAttempts {
			c.clk.Sleep(c.retryDelay)
		}
	}
}

func (c *CreditCache) store(orgID uint64, credits int64) {
	rec := CreditRecord{OrganizationID: orgID, Credits: credits}
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, exists := c.records[orgID]; exists && old == rec {
		return
	}
	c.records[orgID] = rec
	if err := writeCacheFile(c.dir, fmt.Sprintf("f.%016x.json", orgID), rec); err != nil {
		c.log.Warn("credit cache write failed", zap.Error(err))
		return
	}
	c.writes++
}

// Writes returns how many cache files have been written since start.
func (c *CreditCache) Writes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes
}

// All returns a snapshot of every cached record.
func (c *CreditCache) All() map[uint64]CreditRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[uint64]CreditRecord, len(c.records))
	for id, rec := range c.records {
		out[id] = rec
	}
	return out
}
