package bridge

import "github.com/xivstats/collector/internal/stats"

// Stand-ins back every bridge interface while the real subsystem is absent.
// They return empty data and never error, so a missing subsystem thins the
// poll instead of breaking it.

type StandInCharacterSource struct{}

func (StandInCharacterSource) Characters() []stats.Character { return nil }

func (StandInCharacterSource) Inventory(characterID uint64) stats.InventorySnapshot {
	return stats.InventorySnapshot{CharacterID: characterID}
}

func (StandInCharacterSource) FilterItems(string) []stats.FilterRow { return nil }

func (StandInCharacterSource) BagCapacity(uint64) int { return 0 }

type StandInFleetSource struct{}

func (StandInFleetSource) FleetsByOwner() map[uint64][]stats.FleetVehicle { return nil }
