package bridge

import (
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/xivstats/collector/internal/scripting"
	"github.com/xivstats/collector/internal/stats"
)

// SessionBridge binds to the session subsystem, the one source for facts
// only the logged-in client can see: progression state and the free-company
// credit balance. It feeds both local caches.
type SessionBridge struct {
	mu   sync.Mutex
	conn *sessionConn
}

type sessionConn struct {
	readSession *Capability
	readCredits *Capability
}

func NewSessionBridge() *SessionBridge {
	return &SessionBridge{}
}

func (b *SessionBridge) Connect(h *Handle) error {
	readSession, err := h.Func("read_session")
	if err != nil {
		return err
	}
	readCredits, err := h.Func("read_credits")
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.conn = &sessionConn{readSession: readSession, readCredits: readCredits}
	b.mu.Unlock()
	return nil
}

func (b *SessionBridge) Disconnect() {
	b.mu.Lock()
	b.conn = nil
	b.mu.Unlock()
}

func (b *SessionBridge) current() *sessionConn {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn
}

// Read returns the logged-in character's progression snapshot. ok is false
// when the subsystem is absent or nobody is logged in.
func (b *SessionBridge) Read() (stats.SessionSnapshot, bool) {
	conn := b.current()
	if conn == nil {
		return stats.SessionSnapshot{}, false
	}
	var snap stats.SessionSnapshot
	var ok bool
	err := conn.readSession.Call(func(v lua.LValue) error {
		rt, isTbl := v.(*lua.LTable)
		if !isTbl {
			return nil
		}
		snap = stats.SessionSnapshot{
			CharacterID:      scripting.LID(rt, "character_id"),
			GrandCompany:     uint8(scripting.LInt(rt, "grand_company")),
			GcRank:           uint8(scripting.LInt(rt, "gc_rank")),
			SquadronUnlocked: scripting.LBool(rt, "squadron_unlocked"),
			MaxLevel:         int16(scripting.LInt(rt, "max_level")),
		}
		if lv, isTbl := rt.RawGetString("class_job_levels").(*lua.LTable); isTbl {
			lv.ForEach(func(_, n lua.LValue) {
				snap.ClassJobLevels = append(snap.ClassJobLevels, int16(lua.LVAsNumber(n)))
			})
		}
		if qs, isTbl := rt.RawGetString("completed_quests").(*lua.LTable); isTbl {
			snap.CompletedQuests = make(map[uint32]bool)
			qs.ForEach(func(_, n lua.LValue) {
				snap.CompletedQuests[uint32(lua.LVAsNumber(n))] = true
			})
		}
		ok = snap.CharacterID != 0
		return nil
	})
	if err != nil {
		return stats.SessionSnapshot{}, false
	}
	return snap, ok
}

// Credits returns the logged-in character's free-company credit balance.
// ok is false when the subsystem is absent or no organization is visible.
func (b *SessionBridge) Credits() (orgID uint64, credits int64, ok bool) {
	conn := b.current()
	if conn == nil {
		return 0, 0, false
	}
	err := conn.readCredits.Call(func(v lua.LValue) error {
		rt, isTbl := v.(*lua.LTable)
		if !isTbl {
			return nil
		}
		orgID = scripting.LID(rt, "fc_id")
		credits = int64(scripting.LInt(rt, "credits"))
		ok = orgID != 0
		return nil
	})
	if err != nil {
		return 0, 0, false
	}
	return orgID, credits, ok
}
