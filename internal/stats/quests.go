package stats

import (
	"sync"

	"go.uber.org/zap"

	"github.com/xivstats/collector/internal/data"
)

// QuestChain linearizes the main-scenario quest graph. The three regional
// opening chains merge into one shared chain, so a quest's position is its
// longest prerequisite path. Built once, in the background; progression
// reads report -1 until the build finishes.
type QuestChain struct {
	mu    sync.Mutex
	ready bool
	depth map[uint32]int
	info  map[uint32]*data.QuestInfo
}

func NewQuestChain() *QuestChain {
	return &QuestChain{}
}

// BuildAsync computes quest depths off the caller's goroutine.
func (c *QuestChain) BuildAsync(table *data.QuestTable, log *zap.Logger) {
	go func() {
		depth := make(map[uint32]int, table.Count())
		info := make(map[uint32]*data.QuestInfo, table.Count())
		for _, q := range table.All() {
			info[q.QuestID] = q
		}
		var resolve func(id uint32, trail map[uint32]bool) int
		resolve = func(id uint32, trail map[uint32]bool) int {
			if d, ok := depth[id]; ok {
				return d
			}
			q := info[id]
			if q == nil || trail[id] {
				return 0
			}
			trail[id] = true
			max := 0
			for _, prev := range q.PreviousQuests {
				if d := resolve(prev, trail); d > max {
					max = d
				}
			}
			delete(trail, id)
			depth[id] = max + 1
			return max + 1
		}
		for id := range info {
			resolve(id, make(map[uint32]bool))
		}

		c.mu.Lock()
		c.depth = depth
		c.info = info
		c.ready = true
		c.mu.Unlock()
		log.Info("quest chain built", zap.Int("quests", len(depth)))
	}()
}

// Progress reports how far into the main scenario a character is: the chain
// position of the deepest completed quest, with its name and genre. Returns
// (-1, "", 0) while the chain is still building.
func (c *QuestChain) Progress(completed map[uint32]bool) (count int, name string, genre uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ready {
		return -1, "", 0
	}
	best := 0
	var bestQuest *data.QuestInfo
	for id := range completed {
		if d, ok := c.depth[id]; ok && d > best {
			best = d
			bestQuest = c.info[id]
		}
	}
	if bestQuest == nil {
		return 0, "", 0
	}
	return best, bestQuest.Name, bestQuest.Genre
}
