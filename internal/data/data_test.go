package data

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadItemTable(t *testing.T) {
	path := writeYAML(t, "items.yaml", `
always_hq_categories: [58]
items:
  - {item_id: 5057, name: "Iron Ingot", price: 374, ui_category: 49}
  - {item_id: 19907, name: "Competence Materia V", price: 3000, ui_category: 58}
`)
	table, err := LoadItemTable(path)
	require.NoError(t, err)

	assert.Equal(t, 2, table.Count())
	assert.Nil(t, table.Get(1))

	ingot := table.Get(5057)
	require.NotNil(t, ingot)
	assert.Equal(t, "Iron Ingot", ingot.Name)
	assert.Equal(t, int64(374), ingot.Price)

	assert.True(t, table.AlwaysHQ(58))
	assert.False(t, table.AlwaysHQ(49))
}

func TestHQPrice(t *testing.T) {
	// high quality adds one tenth of the base, rounded up
	assert.Equal(t, int64(110), (&ItemInfo{Price: 100}).HQPrice())
	assert.Equal(t, int64(112), (&ItemInfo{Price: 101}).HQPrice())
	assert.Equal(t, int64(11), (&ItemInfo{Price: 10}).HQPrice())
	assert.Equal(t, int64(2), (&ItemInfo{Price: 1}).HQPrice())
	assert.Equal(t, int64(0), (&ItemInfo{Price: 0}).HQPrice())
}

func TestLoadWorldTable(t *testing.T) {
	path := writeYAML(t, "worlds.yaml", `
worlds:
  - {world_id: 56, name: "Phoenix"}
  - {world_id: 66, name: "Odin"}
`)
	table, err := LoadWorldTable(path)
	require.NoError(t, err)

	assert.Equal(t, 2, table.Count())
	assert.Equal(t, "Phoenix", table.Name(56))
	assert.Equal(t, "", table.Name(999))
}

func TestLoadJobTable(t *testing.T) {
	path := writeYAML(t, "jobs.yaml", `
jobs:
  - {job_id: 1, abbrev: "GLA", name: "Gladiator", exp_index: 0}
  - {job_id: 16, abbrev: "MIN", name: "Miner", exp_index: 16, doh_dol: true}
  - {job_id: 27, abbrev: "SMN", name: "Summoner", exp_index: 5, track_exp: false}
`)
	table, err := LoadJobTable(path)
	require.NoError(t, err)

	assert.Equal(t, 3, table.Count())

	gla := table.Get(1)
	require.NotNil(t, gla)
	assert.True(t, gla.TrackExp)
	assert.False(t, gla.DohDol)

	min := table.Get(16)
	require.NotNil(t, min)
	assert.True(t, min.DohDol)

	smn := table.Get(27)
	require.NotNil(t, smn)
	assert.False(t, smn.TrackExp)
}

func TestLoadQuestTable(t *testing.T) {
	path := writeYAML(t, "quests.yaml", `
quests:
  - {quest_id: 100, name: "Opening", genre: 1}
  - {quest_id: 101, name: "Second", genre: 1, previous_quests: [100]}
`)
	table, err := LoadQuestTable(path)
	require.NoError(t, err)

	assert.Equal(t, 2, table.Count())
	second := table.Get(101)
	require.NotNil(t, second)
	assert.Equal(t, []uint32{100}, second.PreviousQuests)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadItemTable(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
