package stats

import (
	"slices"
	"strconv"
	"time"
)

// FormatID renders a 64-bit content id as a decimal string. Ids cross the
// Lua boundary as strings because Lua numbers are float64.
func FormatID(id uint64) string {
	return strconv.FormatUint(id, 10)
}

// CharacterKind classifies an entity returned by the inventory subsystem.
type CharacterKind int

const (
	KindUnknown CharacterKind = iota
	KindPlayer
	KindRetainer
	KindOrganizationChest
	KindHousing
)

// String returns the wire name used in point tags. The names match what the
// inventory subsystem has always reported, so existing dashboards keep working.
func (k CharacterKind) String() string {
	switch k {
	case KindPlayer:
		return "Character"
	case KindRetainer:
		return "Retainer"
	case KindOrganizationChest:
		return "FreeCompanyChest"
	case KindHousing:
		return "Housing"
	default:
		return "Unknown"
	}
}

// Character is an immutable per-poll snapshot of one entity known to the
// inventory subsystem. Never persisted; derived records are cached instead.
type Character struct {
	ID             uint64
	Kind           CharacterKind
	OwnerID        uint64 // owning player for retainers, 0 otherwise
	OrganizationID uint64 // free company id, 0 if none
	Name           string
	WorldID        uint32
	ClassJob       uint8 // retainer job, 0 = none assigned
	Level          int16
}

// SlotCategory describes which kind of storage slot an item occupies.
type SlotCategory int

const (
	SlotBag SlotCategory = iota
	SlotEquipped
	SlotCurrency
	SlotCrystal
	SlotMarket
)

// InventoryItem is one stack inside a character's inventory.
type InventoryItem struct {
	ItemID    uint32
	Quantity  uint32
	Slot      SlotCategory
	Container uint32
	HQ        bool
}

// InventorySnapshot is the full item list for one character, rebuilt each poll.
type InventorySnapshot struct {
	CharacterID uint64
	Items       []InventoryItem
}

// Currencies holds the per-character balances derived from an inventory
// snapshot. All integer; never persisted.
type Currencies struct {
	Gil                   int64
	GcSealsMaelstrom      int64
	GcSealsTwinAdders     int64
	GcSealsImmortalFlames int64
	FcCredits             int64
	Ventures              int64
	CeruleumTanks         int64
	RepairKits            int64
	FreeSlots             int64
}

// FilterRow is one item row produced by a named inventory filter.
type FilterRow struct {
	CharacterID uint64
	ItemID      uint32
	Quantity    uint32
	HQ          bool
}

// ProgressionRecord holds per-character facts readable only from the local
// session. Persisted one file per character, rewritten on change only.
type ProgressionRecord struct {
	CharacterID      uint64  `json:"content_id"`
	GrandCompany     uint8   `json:"grand_company"`
	GcRank           uint8   `json:"gc_rank"`
	SquadronUnlocked bool    `json:"squadron_unlocked"`
	MaxLevel         int16   `json:"max_level"`
	ClassJobLevels   []int16 `json:"class_job_levels"`
	MsqCount         int     `json:"msq_count"`
	MsqName          string  `json:"msq_name"`
	MsqGenre         uint32  `json:"msq_genre"`
}

// Equal reports field-for-field equality; used to decide whether the cache
// file needs rewriting.
func (r ProgressionRecord) Equal(o ProgressionRecord) bool {
	return r.CharacterID == o.CharacterID &&
		r.GrandCompany == o.GrandCompany &&
		r.GcRank == o.GcRank &&
		r.SquadronUnlocked == o.SquadronUnlocked &&
		r.MaxLevel == o.MaxLevel &&
		r.MsqCount == o.MsqCount &&
		r.MsqName == o.MsqName &&
		r.MsqGenre == o.MsqGenre &&
		slices.Equal(r.ClassJobLevels, o.ClassJobLevels)
}

// CreditRecord is the persisted free-company credit balance.
type CreditRecord struct {
	OrganizationID uint64 `json:"content_id"`
	Credits        int64  `json:"credits"`
}

// VoyageState is derived from the fleet subsystem's two voyage flags.
type VoyageState int

const (
	NotVoyaging VoyageState = iota
	Voyaging
	Returned
)

// FleetVehicle is one submersible snapshot, derived per poll.
type FleetVehicle struct {
	Name          string
	Index         int
	Rank          uint16
	PredictedRank uint16
	Hull          string
	Stern         string
	Bow           string
	Bridge        string
	Build         string
	VoyageState   VoyageState
	ReturnTime    time.Time
}

// StatisticsUpdate is the correlated snapshot handed to point generation.
// Every Character keyed in a sub-map is also a key of Currencies.
type StatisticsUpdate struct {
	Currencies     map[Character]Currencies
	Fleets         map[Character][]FleetVehicle
	Progression    map[Character]ProgressionRecord
	Credits        map[uint64]CreditRecord
	InventoryItems map[string][]FilterRow

	// TagOrganization marks player characters whose points carry the fc_id tag.
	TagOrganization map[uint64]bool
}
