package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xivstats/collector/internal/stats"
)

func connectCharacterBridge(t *testing.T, script string) *CharacterBridge {
	t.Helper()
	eng, _ := newTestEngine(t)
	require.NoError(t, eng.LoadString(script))
	handle, ok := NewResolver(eng).TryLocate("inventory_tools")
	require.True(t, ok)
	b := NewCharacterBridge()
	require.NoError(t, b.Connect(handle))
	return b
}

const characterScript = `
inventory_tools = {
	list_characters = function()
		return {
			{id = "18014398509481985", kind = "Character", name = "A. Example", world_id = 56, fc_id = "9234567890123456789"},
			{id = "18014398509481990", kind = "Retainer", owner_id = "18014398509481985", name = "Helper", class_job = 16, level = 80},
			{id = "9234567890123456789", kind = "FreeCompanyChest", name = "Example FC"},
			{id = "55", kind = "SomethingNew", name = "Future"},
		}
	end,
	list_inventory = function(id)
		if id == "18014398509481985" then
			return {
				{item_id = 1, quantity = 250000, slot = "currency"},
				{item_id = 21072, quantity = 30, slot = "currency"},
				{item_id = 5057, quantity = 99, slot = "bag"},
				{item_id = 5057, quantity = 12, slot = "bag", hq = true},
			}
		end
		return {}
	end,
	filter_items = function(name)
		if name == "metals" then
			return {{character_id = "18014398509481985", item_id = 5057, quantity = 99}}
		end
		return {}
	end,
	bag_capacity = function(id) return 175 end,
}
`

func TestCharacterBridgeConnectShapeCheck(t *testing.T) {
	eng, _ := newTestEngine(t)
	require.NoError(t, eng.LoadString(`inventory_tools = { list_characters = function() return {} end }`))
	handle, ok := NewResolver(eng).TryLocate("inventory_tools")
	require.True(t, ok)

	err := NewCharacterBridge().Connect(handle)
	assert.ErrorIs(t, err, ErrMissingCapability)
}

func TestCharacterBridgeCharacters(t *testing.T) {
	b := connectCharacterBridge(t, characterScript)

	chars := b.Characters()
	require.Len(t, chars, 4)

	assert.Equal(t, uint64(18014398509481985), chars[0].ID)
	assert.Equal(t, stats.KindPlayer, chars[0].Kind)
	assert.Equal(t, uint64(9234567890123456789), chars[0].OrganizationID)
	assert.Equal(t, uint32(56), chars[0].WorldID)

	assert.Equal(t, stats.KindRetainer, chars[1].Kind)
	assert.Equal(t, uint64(18014398509481985), chars[1].OwnerID)
	assert.Equal(t, uint8(16), chars[1].ClassJob)
	assert.Equal(t, int16(80), chars[1].Level)

	assert.Equal(t, stats.KindOrganizationChest, chars[2].Kind)

	// unknown kinds from newer subsystem versions degrade, not crash
	assert.Equal(t, stats.KindUnknown, chars[3].Kind)
}

func TestCharacterBridgeInventoryAndFilters(t *testing.T) {
	b := connectCharacterBridge(t, characterScript)

	inv := b.Inventory(18014398509481985)
	require.Len(t, inv.Items, 4)
	assert.Equal(t, stats.SlotCurrency, inv.Items[0].Slot)
	assert.Equal(t, stats.SlotBag, inv.Items[2].Slot)
	assert.True(t, inv.Items[3].HQ)

	rows := b.FilterItems("metals")
	require.Len(t, rows, 1)
	assert.Equal(t, uint32(5057), rows[0].ItemID)

	assert.Empty(t, b.FilterItems("unknown filter"))
	assert.Equal(t, 175, b.BagCapacity(18014398509481985))
}

func TestCharacterBridgeDisconnected(t *testing.T) {
	b := connectCharacterBridge(t, characterScript)
	b.Disconnect()

	assert.Nil(t, b.Characters())
	assert.Empty(t, b.Inventory(1).Items)
	assert.Nil(t, b.FilterItems("metals"))
	assert.Equal(t, 0, b.BagCapacity(1))
}

func TestStandInCharacterSource(t *testing.T) {
	var src CharacterSource = StandInCharacterSource{}
	assert.Nil(t, src.Characters())
	assert.Empty(t, src.Inventory(7).Items)
	assert.Equal(t, uint64(7), src.Inventory(7).CharacterID)
	assert.Nil(t, src.FilterItems("x"))
	assert.Equal(t, 0, src.BagCapacity(7))
}

func TestCurrencyTotals(t *testing.T) {
	snap := stats.InventorySnapshot{Items: []stats.InventoryItem{
		{ItemID: ItemGil, Quantity: 250000, Slot: stats.SlotCurrency},
		{ItemID: ItemSealsTwinAdders, Quantity: 4200, Slot: stats.SlotCurrency},
		{ItemID: ItemVenture, Quantity: 30, Slot: stats.SlotCurrency},
		{ItemID: ItemCeruleumTank, Quantity: 12, Slot: stats.SlotBag},
		{ItemID: ItemRepairKit, Quantity: 3, Slot: stats.SlotBag},
		{ItemID: 5057, Quantity: 99, Slot: stats.SlotBag},
		{ItemID: 5057, Quantity: 50, Slot: stats.SlotMarket}, // not bag resident
	}}

	cur := CurrencyTotals(snap, 0)
	assert.Equal(t, int64(250000), cur.Gil)
	assert.Equal(t, int64(4200), cur.GcSealsTwinAdders)
	assert.Equal(t, int64(0), cur.GcSealsMaelstrom)
	assert.Equal(t, int64(30), cur.Ventures)
	assert.Equal(t, int64(12), cur.CeruleumTanks)
	assert.Equal(t, int64(3), cur.RepairKits)
	assert.Equal(t, int64(140-3), cur.FreeSlots)
}

func TestCurrencyTotalsEmptySnapshot(t *testing.T) {
	cur := CurrencyTotals(stats.InventorySnapshot{}, 0)
	assert.Equal(t, int64(140), cur.FreeSlots)
	assert.Equal(t, int64(0), cur.Gil)
}

func TestCurrencyTotalsReportedCapacity(t *testing.T) {
	snap := stats.InventorySnapshot{Items: []stats.InventoryItem{
		{ItemID: 5057, Quantity: 1, Slot: stats.SlotBag},
	}}
	cur := CurrencyTotals(snap, 175)
	assert.Equal(t, int64(174), cur.FreeSlots)
}
