package stats

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xivstats/collector/internal/core/event"
)

type fakeProgressionSource struct {
	snap SessionSnapshot
	ok   bool
}

func (f *fakeProgressionSource) Read() (SessionSnapshot, bool) {
	return f.snap, f.ok
}

func testSnapshot() SessionSnapshot {
	return SessionSnapshot{
		CharacterID:      101,
		GrandCompany:     2,
		GcRank:           7,
		SquadronUnlocked: true,
		MaxLevel:         100,
		ClassJobLevels:   []int16{90, 0, 15},
		CompletedQuests:  map[uint32]bool{1: true},
	}
}

func newTestProgressionCache(t *testing.T, dir string, src ProgressionSource) *ProgressionCache {
	t.Helper()
	chain := builtChain(t, loadQuestTable(t, questGraph))
	return NewProgressionCache(dir, src, chain, event.NewBus(), zap.NewNop())
}

func TestRefreshWritesOnChangeOnly(t *testing.T) {
	dir := t.TempDir()
	src := &fakeProgressionSource{snap: testSnapshot(), ok: true}
	cache := newTestProgressionCache(t, dir, src)

	cache.Refresh()
	assert.Equal(t, 1, cache.Writes())

	// same data: no second write
	cache.Refresh()
	cache.Refresh()
	assert.Equal(t, 1, cache.Writes())

	// changed data: one more write
	src.snap.GcRank = 8
	cache.Refresh()
	assert.Equal(t, 2, cache.Writes())

	rec := cache.All()[101]
	assert.Equal(t, uint8(8), rec.GcRank)
	assert.Equal(t, 1, rec.MsqCount)
	assert.Equal(t, "Opener A", rec.MsqName)
}

func TestRefreshNoSession(t *testing.T) {
	cache := newTestProgressionCache(t, t.TempDir(), &fakeProgressionSource{ok: false})
	cache.Refresh()
	assert.Equal(t, 0, cache.Writes())
	assert.Empty(t, cache.All())
}

func TestHydration(t *testing.T) {
	dir := t.TempDir()
	rec := ProgressionRecord{CharacterID: 101, GcRank: 7, MsqCount: 3, MsqName: "Merged"}
	raw, err := json.Marshal(rec)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, fmt.Sprintf("l.%016x.json", rec.CharacterID)), raw, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "l.garbage.json"), []byte("{broken"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x"), 0o644))

	cache := newTestProgressionCache(t, dir, &fakeProgressionSource{ok: false})

	all := cache.All()
	require.Len(t, all, 1)
	assert.Equal(t, rec, all[101])
}

func TestHydratedRecordNotRewritten(t *testing.T) {
	dir := t.TempDir()
	src := &fakeProgressionSource{snap: testSnapshot(), ok: true}

	first := newTestProgressionCache(t, dir, src)
	first.Refresh()
	require.Equal(t, 1, first.Writes())

	// a fresh cache hydrates the same record; an identical refresh is a no-op
	second := newTestProgressionCache(t, dir, src)
	second.Refresh()
	assert.Equal(t, 0, second.Writes())
}

func TestSessionEventsTriggerRefresh(t *testing.T) {
	dir := t.TempDir()
	src := &fakeProgressionSource{snap: testSnapshot(), ok: true}
	chain := builtChain(t, loadQuestTable(t, questGraph))
	bus := event.NewBus()
	cache := NewProgressionCache(dir, src, chain, bus, zap.NewNop())

	cache.Start()
	cache.Start() // second start is a no-op
	defer cache.Stop()

	event.Emit(bus, event.SessionLoggedIn{CharacterID: 101})
	assert.Equal(t, 1, cache.Writes())

	src.snap.MaxLevel = 105
	event.Emit(bus, event.AreaChanged{CharacterID: 101, TerritoryID: 154})
	assert.Equal(t, 2, cache.Writes())

	cache.Stop()
	cache.Stop() // idempotent
	src.snap.MaxLevel = 110
	event.Emit(bus, event.SessionLoggedOut{CharacterID: 101})
	assert.Equal(t, 2, cache.Writes())
}

func TestProgressionRecordEqual(t *testing.T) {
	a := ProgressionRecord{CharacterID: 1, ClassJobLevels: []int16{90, 15}}
	b := ProgressionRecord{CharacterID: 1, ClassJobLevels: []int16{90, 15}}
	assert.True(t, a.Equal(b))

	b.ClassJobLevels = []int16{90, 16}
	assert.False(t, a.Equal(b))
}
