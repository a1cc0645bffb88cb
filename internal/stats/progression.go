package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/xivstats/collector/internal/core/event"
)

// SessionSnapshot is what the session subsystem can see for the logged-in
// character right now.
type SessionSnapshot struct {
	CharacterID      uint64
	GrandCompany     uint8
	GcRank           uint8
	SquadronUnlocked bool
	MaxLevel         int16
	ClassJobLevels   []int16
	CompletedQuests  map[uint32]bool
}

// ProgressionSource reads the live session. ok is false when nobody is
// logged in or the subsystem is absent.
type ProgressionSource interface {
	Read() (SessionSnapshot, bool)
}

// ProgressionCache keeps one ProgressionRecord per character, hydrated from
// disk at startup and recomputed on session events. A record's file is
// rewritten only when the record actually changed, so every sampled
// character stays reportable across restarts without disk churn.
type ProgressionCache struct {
	dir   string
	src   ProgressionSource
	chain *QuestChain
	bus   *event.Bus
	log   *zap.Logger

	mu      sync.Mutex
	records map[uint64]ProgressionRecord
	writes  int
	unsubs  []func()
}

func NewProgressionCache(dir string, src ProgressionSource, chain *QuestChain, bus *event.Bus, log *zap.Logger) *ProgressionCache {
	c := &ProgressionCache{
		dir:     dir,
		src:     src,
		chain:   chain,
		bus:     bus,
		log:     log,
		records: make(map[uint64]ProgressionRecord),
	}
	c.hydrate()
	return c
}

func (c *ProgressionCache) hydrate() {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			c.log.Warn("progression cache dir unreadable", zap.Error(err))
		}
		return
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "l.") || !strings.HasSuffix(name, ".json") {
			continue
		}
		path := filepath.Join(c.dir, name)
		raw, err := os.ReadFile(path)
		if err != nil {
			c.log.Warn("skipping unreadable cache file", zap.String("file", path), zap.Error(err))
			continue
		}
		var rec ProgressionRecord
		if err := json.Unmarshal(raw, &rec); err != nil || rec.CharacterID == 0 {
			c.log.Warn("skipping unparsable cache file", zap.String("file", path), zap.Error(err))
			continue
		}
		c.records[rec.CharacterID] = rec
	}
	if n := len(c.records); n > 0 {
		c.log.Info("progression cache hydrated", zap.Int("characters", n))
	}
}

// Start subscribes to session events. Each event triggers a recompute of the
// logged-in character's record.
func (c *ProgressionCache) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.unsubs) > 0 {
		return
	}
	c.unsubs = []func(){
		event.Subscribe(c.bus, func(event.SessionLoggedIn) { c.Refresh() }),
		event.Subscribe(c.bus, func(event.SessionLoggedOut) { c.Refresh() }),
		event.Subscribe(c.bus, func(event.AreaChanged) { c.Refresh() }),
	}
}

// Stop unsubscribes. Idempotent.
func (c *ProgressionCache) Stop() {
	c.mu.Lock()
	unsubs := c.unsubs
	c.unsubs = nil
	c.mu.Unlock()
	for _, u := range unsubs {
		u()
	}
}

// Refresh recomputes the logged-in character's record and persists it when
// it differs from the cached one.
func (c *ProgressionCache) Refresh() {
	snap, ok := c.src.Read()
	if !ok {
		return
	}
	count, name, genre := c.chain.Progress(snap.CompletedQuests)
	rec := ProgressionRecord{
		CharacterID:      snap.CharacterID,
		GrandCompany:     snap.GrandCompany,
		GcRank:           snap.GcRank,
		SquadronUnlocked: snap.SquadronUnlocked,
		MaxLevel:         snap.MaxLevel,
		ClassJobLevels:   snap.ClassJobLevels,
		MsqCount:         count,
		MsqName:          name,
		MsqGenre:         genre,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if old, exists := c.records[rec.CharacterID]; exists && old.Equal(rec) {
		return
	}
	c.records[rec.CharacterID] = rec
	if err := writeCacheFile(c.dir, fmt.Sprintf("l.%016x.json", rec.CharacterID), rec); err != nil {
		c.log.Warn("progression cache write failed", zap.Error(err))
		return
	}
	c.writes++
}

// Writes returns how many cache files have been written since start.
func (c *ProgressionCache) Writes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes
}

// All returns a snapshot of every cached record.
func (c *ProgressionCache) All() map[uint64]ProgressionRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[uint64]ProgressionRecord, len(c.records))
	for id, rec := range c.records {
		out[id] = rec
	}
	return out
}

func writeCacheFile(dir, name string, v any) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, name), raw, 0o644)
}
