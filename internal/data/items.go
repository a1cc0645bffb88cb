package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ItemInfo holds one item template: display name, vendor price and UI
// category, enough to value inventory rows.
type ItemInfo struct {
	ItemID     uint32
	Name       string
	Price      int64
	UICategory uint32
}

// HQPrice is the high-quality vendor price: base plus one tenth rounded up.
func (i *ItemInfo) HQPrice() int64 {
	return i.Price + (i.Price+9)/10
}

// ItemTable holds all items indexed by ItemID.
type ItemTable struct {
	items    map[uint32]*ItemInfo
	alwaysHQ map[uint32]bool
}

// Get returns an item by ID, or nil if not found.
func (t *ItemTable) Get(itemID uint32) *ItemInfo {
	return t.items[itemID]
}

// AlwaysHQ reports whether items of this UI category are always priced at
// the high-quality rate regardless of the row's HQ flag.
func (t *ItemTable) AlwaysHQ(uiCategory uint32) bool {
	return t.alwaysHQ[uiCategory]
}

// Count returns total loaded items.
func (t *ItemTable) Count() int {
	return len(t.items)
}

// --- YAML loading ---

type itemEntry struct {
	ItemID     uint32 `yaml:"item_id"`
	Name       string `yaml:"name"`
	Price      int64  `yaml:"price"`
	UICategory uint32 `yaml:"ui_category"`
}

type itemListFile struct {
	AlwaysHQCategories []uint32    `yaml:"always_hq_categories"`
	Items              []itemEntry `yaml:"items"`
}

// LoadItemTable loads item definitions from YAML.
func LoadItemTable(path string) (*ItemTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read items: %w", err)
	}
	var f itemListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse items: %w", err)
	}
	t := &ItemTable{
		items:    make(map[uint32]*ItemInfo, len(f.Items)),
		alwaysHQ: make(map[uint32]bool, len(f.AlwaysHQCategories)),
	}
	for _, c := range f.AlwaysHQCategories {
		t.alwaysHQ[c] = true
	}
	for i := range f.Items {
		e := &f.Items[i]
		t.items[e.ItemID] = &ItemInfo{
			ItemID:     e.ItemID,
			Name:       e.Name,
			Price:      e.Price,
			UICategory: e.UICategory,
		}
	}
	return t, nil
}
