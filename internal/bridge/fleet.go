package bridge

import (
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/xivstats/collector/internal/scripting"
	"github.com/xivstats/collector/internal/stats"
)

// FleetSource is the poll-side view of the fleet subsystem.
type FleetSource interface {
	FleetsByOwner() map[uint64][]stats.FleetVehicle
}

// FleetBridge binds to the submersible tracking subsystem. Vehicles are
// keyed by the owning player id; correlation moves them under the
// organization chest.
type FleetBridge struct {
	mu   sync.Mutex
	conn *fleetConn
}

type fleetConn struct {
	fleetsByOwner *Capability
}

func NewFleetBridge() *FleetBridge {
	return &FleetBridge{}
}

func (b *FleetBridge) Connect(h *Handle) error {
	fleetsByOwner, err := h.Func("fleets_by_owner")
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.conn = &fleetConn{fleetsByOwner: fleetsByOwner}
	b.mu.Unlock()
	return nil
}

func (b *FleetBridge) Disconnect() {
	b.mu.Lock()
	b.conn = nil
	b.mu.Unlock()
}

func (b *FleetBridge) FleetsByOwner() map[uint64][]stats.FleetVehicle {
	b.mu.Lock()
	conn := b.conn
	b.mu.Unlock()
	if conn == nil {
		return nil
	}
	out := make(map[uint64][]stats.FleetVehicle)
	err := conn.fleetsByOwner.Call(func(v lua.LValue) error {
		tbl, ok := v.(*lua.LTable)
		if !ok {
			return nil
		}
		tbl.ForEach(func(_, row lua.LValue) {
			rt, ok := row.(*lua.LTable)
			if !ok {
				return
			}
			owner := scripting.LID(rt, "owner_id")
			if owner == 0 {
				return
			}
			out[owner] = append(out[owner], decodeVehicle(rt))
		})
		return nil
	})
	if err != nil || len(out) == 0 {
		return nil
	}
	return out
}

func decodeVehicle(rt *lua.LTable) stats.FleetVehicle {
	v := stats.FleetVehicle{
		Name:          scripting.LStr(rt, "name"),
		Index:         scripting.LInt(rt, "index"),
		Rank:          uint16(scripting.LInt(rt, "rank")),
		PredictedRank: uint16(scripting.LInt(rt, "predicted_rank")),
		Hull:          scripting.LStr(rt, "hull"),
		Stern:         scripting.LStr(rt, "stern"),
		Bow:           scripting.LStr(rt, "bow"),
		Bridge:        scripting.LStr(rt, "bridge"),
		Build:         scripting.LStr(rt, "build"),
		VoyageState:   voyageState(scripting.LBool(rt, "on_voyage"), scripting.LBool(rt, "done")),
	}
	// Older subsystem versions lack the growth model; the current rank is
	// the best available prediction then.
	if v.PredictedRank == 0 {
		v.PredictedRank = v.Rank
	}
	if v.Build == "" {
		v.Build = v.Hull + v.Stern + v.Bow + v.Bridge
	}
	if ts := int64(scripting.LInt(rt, "return_time")); ts > 0 {
		v.ReturnTime = time.Unix(ts, 0).UTC()
	}
	return v
}

// voyageState derives the reportable state from the subsystem's two flags.
// A vehicle that finished its voyage but has not been collected reports
// Returned, not NotVoyaging.
func voyageState(onVoyage, done bool) stats.VoyageState {
	switch {
	case !onVoyage:
		return stats.NotVoyaging
	case done:
		return stats.Returned
	default:
		return stats.Voyaging
	}
}
