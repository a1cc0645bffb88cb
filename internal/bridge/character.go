package bridge

import (
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/xivstats/collector/internal/scripting"
	"github.com/xivstats/collector/internal/stats"
)

// Well-known currency item ids.
const (
	ItemGil               = 1
	ItemSealsMaelstrom    = 20
	ItemSealsTwinAdders   = 21
	ItemSealsImmortalFlm  = 22
	ItemFreeCompanyCredit = 80
	ItemVenture           = 21072
	ItemCeruleumTank      = 10155
	ItemRepairKit         = 10373
)

// DefaultBagCapacity is the standard player bag size, used when the
// inventory subsystem does not export its own capacity.
const DefaultBagCapacity = 140

// CharacterSource is what the poll reads. The live bridge and the stand-in
// both satisfy it, so callers never see connection state.
type CharacterSource interface {
	Characters() []stats.Character
	Inventory(characterID uint64) stats.InventorySnapshot
	FilterItems(filterName string) []stats.FilterRow
	BagCapacity(characterID uint64) int
}

// CharacterBridge binds to the inventory subsystem. Until Connect succeeds
// (and again after Disconnect) every read returns empty stand-in data.
type CharacterBridge struct {
	mu   sync.Mutex
	conn *characterConn
}

type characterConn struct {
	listCharacters *Capability
	listInventory  *Capability
	filterItems    *Capability
	bagCapacity    *Capability // optional, older versions lack it
}

func NewCharacterBridge() *CharacterBridge {
	return &CharacterBridge{}
}

// Connect shape-checks the subsystem's exports and swaps the live connection
// in. Any missing required capability fails the whole connect.
func (b *CharacterBridge) Connect(h *Handle) error {
	listCharacters, err := h.Func("list_characters")
	if err != nil {
		return err
	}
	listInventory, err := h.Func("list_inventory")
	if err != nil {
		return err
	}
	filterItems, err := h.Func("filter_items")
	if err != nil {
		return err
	}
	conn := &characterConn{
		listCharacters: listCharacters,
		listInventory:  listInventory,
		filterItems:    filterItems,
		bagCapacity:    h.OptionalFunc("bag_capacity"),
	}
	b.mu.Lock()
	b.conn = conn
	b.mu.Unlock()
	return nil
}

// Disconnect reverts to stand-in data.
func (b *CharacterBridge) Disconnect() {
	b.mu.Lock()
	b.conn = nil
	b.mu.Unlock()
}

func (b *CharacterBridge) current() *characterConn {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn
}

func (b *CharacterBridge) Characters() []stats.Character {
	conn := b.current()
	if conn == nil {
		return nil
	}
	var out []stats.Character
	err := conn.listCharacters.Call(func(v lua.LValue) error {
		tbl, ok := v.(*lua.LTable)
		if !ok {
			return nil
		}
		tbl.ForEach(func(_, row lua.LValue) {
			rt, ok := row.(*lua.LTable)
			if !ok {
				return
			}
			out = append(out, stats.Character{
				ID:             scripting.LID(rt, "id"),
				Kind:           parseKind(scripting.LStr(rt, "kind")),
				OwnerID:        scripting.LID(rt, "owner_id"),
				OrganizationID: scripting.LID(rt, "fc_id"),
				Name:           scripting.LStr(rt, "name"),
				WorldID:        uint32(scripting.LInt(rt, "world_id")),
				ClassJob:       uint8(scripting.LInt(rt, "class_job")),
				Level:          int16(scripting.LInt(rt, "level")),
			})
		})
		return nil
	})
	if err != nil {
		return nil
	}
	return out
}

func (b *CharacterBridge) Inventory(characterID uint64) stats.InventorySnapshot {
	snap := stats.InventorySnapshot{CharacterID: characterID}
	conn := b.current()
	if conn == nil {
		return snap
	}
	err := conn.listInventory.Call(func(v lua.LValue) error {
		tbl, ok := v.(*lua.LTable)
		if !ok {
			return nil
		}
		tbl.ForEach(func(_, row lua.LValue) {
			rt, ok := row.(*lua.LTable)
			if !ok {
				return
			}
			snap.Items = append(snap.Items, stats.InventoryItem{
				ItemID:    uint32(scripting.LInt(rt, "item_id")),
				Quantity:  uint32(scripting.LInt(rt, "quantity")),
				Slot:      parseSlot(scripting.LStr(rt, "slot")),
				Container: uint32(scripting.LInt(rt, "container")),
				HQ:        scripting.LBool(rt, "hq"),
			})
		})
		return nil
	}, idArg(characterID))
	if err != nil {
		return stats.InventorySnapshot{CharacterID: characterID}
	}
	return snap
}

func (b *CharacterBridge) FilterItems(filterName string) []stats.FilterRow {
	conn := b.current()
	if conn == nil {
		return nil
	}
	var out []stats.FilterRow
	err := conn.filterItems.Call(func(v lua.LValue) error {
		tbl, ok := v.(*lua.LTable)
		if !ok {
			return nil
		}
		tbl.ForEach(func(_, row lua.LValue) {
			rt, ok := row.(*lua.LTable)
			if !ok {
				return
			}
			out = append(out, stats.FilterRow{
				CharacterID: scripting.LID(rt, "character_id"),
				ItemID:      uint32(scripting.LInt(rt, "item_id")),
				Quantity:    uint32(scripting.LInt(rt, "quantity")),
				HQ:          scripting.LBool(rt, "hq"),
			})
		})
		return nil
	}, lua.LString(filterName))
	if err != nil {
		return nil
	}
	return out
}

// BagCapacity returns the subsystem's reported main-bag size, or 0 when the
// export is absent or unreadable. Callers fall back to DefaultBagCapacity.
func (b *CharacterBridge) BagCapacity(characterID uint64) int {
	conn := b.current()
	if conn == nil || conn.bagCapacity == nil {
		return 0
	}
	n, err := conn.bagCapacity.Int64(idArg(characterID))
	if err != nil || n < 0 {
		return 0
	}
	return int(n)
}

func parseKind(s string) stats.CharacterKind {
	switch s {
	case "Character":
		return stats.KindPlayer
	case "Retainer":
		return stats.KindRetainer
	case "FreeCompanyChest":
		return stats.KindOrganizationChest
	case "Housing":
		return stats.KindHousing
	default:
		return stats.KindUnknown
	}
}

func parseSlot(s string) stats.SlotCategory {
	switch s {
	case "equipped":
		return stats.SlotEquipped
	case "currency":
		return stats.SlotCurrency
	case "crystal":
		return stats.SlotCrystal
	case "market":
		return stats.SlotMarket
	default:
		return stats.SlotBag
	}
}

// idArg encodes a 64-bit id for Lua as a decimal string; see scripting.LID.
func idArg(id uint64) lua.LValue {
	return lua.LString(stats.FormatID(id))
}

// CurrencyTotals sums the well-known currency items in a snapshot and
// derives free bag slots. capacity <= 0 means the subsystem did not report
// one and the default applies. An empty snapshot therefore yields
// FreeSlots == DefaultBagCapacity.
func CurrencyTotals(snap stats.InventorySnapshot, capacity int) stats.Currencies {
	if capacity <= 0 {
		capacity = DefaultBagCapacity
	}
	var cur stats.Currencies
	used := 0
	for _, it := range snap.Items {
		if it.Slot == stats.SlotBag {
			used++
		}
		q := int64(it.Quantity)
		switch it.ItemID {
		case ItemGil:
			cur.Gil += q
		case ItemSealsMaelstrom:
			cur.GcSealsMaelstrom += q
		case ItemSealsTwinAdders:
			cur.GcSealsTwinAdders += q
		case ItemSealsImmortalFlm:
			cur.GcSealsImmortalFlames += q
		case ItemFreeCompanyCredit:
			cur.FcCredits += q
		case ItemVenture:
			cur.Ventures += q
		case ItemCeruleumTank:
			cur.CeruleumTanks += q
		case ItemRepairKit:
			cur.RepairKits += q
		}
	}
	cur.FreeSlots = int64(capacity - used)
	if cur.FreeSlots < 0 {
		cur.FreeSlots = 0
	}
	return cur
}
