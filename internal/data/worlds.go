package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// WorldTable maps world ids to display names.
type WorldTable struct {
	worlds map[uint32]string
}

// Name returns a world's display name, or "" if unknown.
func (t *WorldTable) Name(worldID uint32) string {
	return t.worlds[worldID]
}

// Count returns total loaded worlds.
func (t *WorldTable) Count() int {
	return len(t.worlds)
}

type worldEntry struct {
	WorldID uint32 `yaml:"world_id"`
	Name    string `yaml:"name"`
}

type worldListFile struct {
	Worlds []worldEntry `yaml:"worlds"`
}

// LoadWorldTable loads world definitions from YAML.
func LoadWorldTable(path string) (*WorldTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read worlds: %w", err)
	}
	var f worldListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse worlds: %w", err)
	}
	t := &WorldTable{worlds: make(map[uint32]string, len(f.Worlds))}
	for _, e := range f.Worlds {
		t.worlds[e.WorldID] = e.Name
	}
	return t, nil
}
