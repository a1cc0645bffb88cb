package bridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xivstats/collector/internal/stats"
)

const fleetScript = `
submarine_tracker = {
	fleets_by_owner = function()
		return {
			{owner_id = "18014398509481985", name = "Unbreakable I", index = 0, rank = 85, predicted_rank = 87,
			 hull = "W", stern = "S", bow = "U", bridge = "C", on_voyage = true, done = false, return_time = 1756600000},
			{owner_id = "18014398509481985", name = "Unbreakable II", index = 1, rank = 40,
			 hull = "S", stern = "S", bow = "S", bridge = "S", build = "SSSS+", on_voyage = true, done = true},
			{owner_id = "18014398509481985", name = "Unbreakable III", index = 2, rank = 10,
			 hull = "S", stern = "S", bow = "S", bridge = "S", on_voyage = false, done = false},
		}
	end,
}
`

func connectFleetBridge(t *testing.T, script string) *FleetBridge {
	t.Helper()
	eng, _ := newTestEngine(t)
	require.NoError(t, eng.LoadString(script))
	handle, ok := NewResolver(eng).TryLocate("submarine_tracker")
	require.True(t, ok)
	b := NewFleetBridge()
	require.NoError(t, b.Connect(handle))
	return b
}

func TestFleetBridgeConnectShapeCheck(t *testing.T) {
	eng, _ := newTestEngine(t)
	require.NoError(t, eng.LoadString(`submarine_tracker = {}`))
	handle, ok := NewResolver(eng).TryLocate("submarine_tracker")
	require.True(t, ok)

	err := NewFleetBridge().Connect(handle)
	assert.ErrorIs(t, err, ErrMissingCapability)
}

func TestFleetBridgeVehicles(t *testing.T) {
	b := connectFleetBridge(t, fleetScript)

	fleets := b.FleetsByOwner()
	require.Len(t, fleets, 1)
	vehicles := fleets[18014398509481985]
	require.Len(t, vehicles, 3)

	first := vehicles[0]
	assert.Equal(t, "Unbreakable I", first.Name)
	assert.Equal(t, uint16(85), first.Rank)
	assert.Equal(t, uint16(87), first.PredictedRank)
	assert.Equal(t, "WSUC", first.Build) // derived from parts when absent
	assert.Equal(t, stats.Voyaging, first.VoyageState)
	assert.Equal(t, time.Unix(1756600000, 0).UTC(), first.ReturnTime)

	second := vehicles[1]
	assert.Equal(t, uint16(40), second.PredictedRank) // falls back to rank
	assert.Equal(t, "SSSS+", second.Build)            // explicit build wins
	assert.Equal(t, stats.Returned, second.VoyageState)

	assert.Equal(t, stats.NotVoyaging, vehicles[2].VoyageState)
}

func TestFleetBridgeDisconnected(t *testing.T) {
	b := connectFleetBridge(t, fleetScript)
	b.Disconnect()
	assert.Nil(t, b.FleetsByOwner())
}

func TestStandInFleetSource(t *testing.T) {
	var src FleetSource = StandInFleetSource{}
	assert.Nil(t, src.FleetsByOwner())
}

func TestVoyageState(t *testing.T) {
	assert.Equal(t, stats.NotVoyaging, voyageState(false, false))
	assert.Equal(t, stats.NotVoyaging, voyageState(false, true))
	assert.Equal(t, stats.Voyaging, voyageState(true, false))
	assert.Equal(t, stats.Returned, voyageState(true, true))
}
