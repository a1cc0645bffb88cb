package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// QuestInfo holds one main-scenario quest and its prerequisites.
type QuestInfo struct {
	QuestID        uint32
	Name           string
	Genre          uint32
	PreviousQuests []uint32
}

// QuestTable holds the main-scenario quests indexed by QuestID.
type QuestTable struct {
	quests map[uint32]*QuestInfo
}

// Get returns a quest by ID, or nil if not found.
func (t *QuestTable) Get(questID uint32) *QuestInfo {
	return t.quests[questID]
}

// All returns every loaded quest.
func (t *QuestTable) All() []*QuestInfo {
	result := make([]*QuestInfo, 0, len(t.quests))
	for _, q := range t.quests {
		result = append(result, q)
	}
	return result
}

// Count returns total loaded quests.
func (t *QuestTable) Count() int {
	return len(t.quests)
}

type questEntry struct {
	QuestID        uint32   `yaml:"quest_id"`
	Name           string   `yaml:"name"`
	Genre          uint32   `yaml:"genre"`
	PreviousQuests []uint32 `yaml:"previous_quests"`
}

type questListFile struct {
	Quests []questEntry `yaml:"quests"`
}

// LoadQuestTable loads the main-scenario quest chain from YAML.
func LoadQuestTable(path string) (*QuestTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read quests: %w", err)
	}
	var f questListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse quests: %w", err)
	}
	t := &QuestTable{quests: make(map[uint32]*QuestInfo, len(f.Quests))}
	for i := range f.Quests {
		e := &f.Quests[i]
		t.quests[e.QuestID] = &QuestInfo{
			QuestID:        e.QuestID,
			Name:           e.Name,
			Genre:          e.Genre,
			PreviousQuests: e.PreviousQuests,
		}
	}
	return t, nil
}
