package stats

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xivstats/collector/internal/data"
)

func loadQuestTable(t *testing.T, body string) *data.QuestTable {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quests.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	table, err := data.LoadQuestTable(path)
	require.NoError(t, err)
	return table
}

func builtChain(t *testing.T, table *data.QuestTable) *QuestChain {
	t.Helper()
	chain := NewQuestChain()
	chain.BuildAsync(table, zap.NewNop())
	require.Eventually(t, func() bool {
		count, _, _ := chain.Progress(nil)
		return count != -1
	}, time.Second, time.Millisecond)
	return chain
}

// Three regional openers merge into a shared chain; position counts the
// longest prerequisite path.
const questGraph = `
quests:
  - {quest_id: 1, name: "Opener A", genre: 10}
  - {quest_id: 2, name: "Opener B", genre: 11}
  - {quest_id: 3, name: "Second A", genre: 10, previous_quests: [1]}
  - {quest_id: 4, name: "Second B", genre: 11, previous_quests: [2]}
  - {quest_id: 5, name: "Merged", genre: 12, previous_quests: [3, 4]}
  - {quest_id: 6, name: "After Merge", genre: 12, previous_quests: [5]}
`

func TestProgressBeforeBuild(t *testing.T) {
	chain := NewQuestChain()
	count, name, genre := chain.Progress(map[uint32]bool{1: true})
	assert.Equal(t, -1, count)
	assert.Equal(t, "", name)
	assert.Equal(t, uint32(0), genre)
}

func TestProgressLinearization(t *testing.T) {
	chain := builtChain(t, loadQuestTable(t, questGraph))

	count, name, genre := chain.Progress(map[uint32]bool{1: true})
	assert.Equal(t, 1, count)
	assert.Equal(t, "Opener A", name)
	assert.Equal(t, uint32(10), genre)

	// merged quest sits after both regional chains
	count, name, _ = chain.Progress(map[uint32]bool{1: true, 3: true, 2: true, 4: true, 5: true})
	assert.Equal(t, 3, count)
	assert.Equal(t, "Merged", name)

	count, name, genre = chain.Progress(map[uint32]bool{1: true, 3: true, 5: true, 6: true})
	assert.Equal(t, 4, count)
	assert.Equal(t, "After Merge", name)
	assert.Equal(t, uint32(12), genre)
}

func TestProgressNothingCompleted(t *testing.T) {
	chain := builtChain(t, loadQuestTable(t, questGraph))

	count, name, genre := chain.Progress(nil)
	assert.Equal(t, 0, count)
	assert.Equal(t, "", name)
	assert.Equal(t, uint32(0), genre)

	// quests outside the main scenario do not count
	count, _, _ = chain.Progress(map[uint32]bool{9999: true})
	assert.Equal(t, 0, count)
}
