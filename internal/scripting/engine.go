package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/xivstats/collector/internal/core/event"
)

// Engine wraps a single gopher-lua VM hosting the game subsystems. The VM is
// not goroutine safe; every access goes through Do, which holds the engine
// lock for the whole call including result decoding.
//
// Events raised from scripts are queued while the lock is held and dispatched
// after it is released. Handlers may therefore call back into the engine; an
// inline emit would deadlock them on the non-reentrant lock.
type Engine struct {
	mu      sync.Mutex
	vm      *lua.LState
	bus     *event.Bus
	log     *zap.Logger
	pending []func()
}

// NewEngine creates the host VM, installs the host API and loads every .lua
// file from scriptsDir. A missing directory is not an error; subsystems may
// also arrive later via LoadScript.
func NewEngine(scriptsDir string, bus *event.Bus, log *zap.Logger) (*Engine, error) {
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, bus: bus, log: log}
	e.installHostAPI()

	if err := e.loadDir(scriptsDir); err != nil {
		vm.Close()
		return nil, fmt.Errorf("load subsystem scripts: %w", err)
	}
	dispatch(e.takePending())
	return e, nil
}

// installHostAPI registers the host table scripts use to talk back to the
// collector.
func (e *Engine) installHostAPI() {
	host := e.vm.NewTable()

	host.RawSetString("notify_ready", e.vm.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		e.log.Info("subsystem signalled ready", zap.String("subsystem", name))
		e.queueEmit(func() { event.Emit(e.bus, event.SubsystemReady{Name: name}) })
		return 0
	}))

	host.RawSetString("emit_session_event", e.vm.NewFunction(func(L *lua.LState) int {
		kind := L.CheckString(1)
		id := luaID(L.Get(2))
		switch kind {
		case "login":
			e.queueEmit(func() { event.Emit(e.bus, event.SessionLoggedIn{CharacterID: id}) })
		case "logout":
			e.queueEmit(func() { event.Emit(e.bus, event.SessionLoggedOut{CharacterID: id}) })
		case "area_changed":
			territory := uint32(lua.LVAsNumber(L.Get(3)))
			e.queueEmit(func() { event.Emit(e.bus, event.AreaChanged{CharacterID: id, TerritoryID: territory}) })
		default:
			e.log.Warn("unknown session event kind from script", zap.String("kind", kind))
		}
		return 0
	}))

	host.RawSetString("log", e.vm.NewFunction(func(L *lua.LState) int {
		e.log.Info("script: " + L.CheckString(1))
		return 0
	}))

	e.vm.SetGlobal("host", host)
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// LoadScript loads one script into the running VM. Used when a subsystem
// arrives after startup and by tests.
func (e *Engine) LoadScript(path string) error {
	e.mu.Lock()
	err := e.vm.DoFile(path)
	pending := e.takePending()
	e.mu.Unlock()
	dispatch(pending)
	if err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// LoadString loads inline Lua source. Test helper.
func (e *Engine) LoadString(src string) error {
	e.mu.Lock()
	err := e.vm.DoString(src)
	pending := e.takePending()
	e.mu.Unlock()
	dispatch(pending)
	return err
}

// Do runs fn with exclusive access to the VM. All Lua calls and all decoding
// of Lua values must happen inside fn; values must not escape it. Events the
// call raised are dispatched after the lock is released.
func (e *Engine) Do(fn func(vm *lua.LState) error) error {
	e.mu.Lock()
	err := fn(e.vm)
	pending := e.takePending()
	e.mu.Unlock()
	dispatch(pending)
	return err
}

// queueEmit defers an event until the current VM call returns. Called while
// the engine lock is held (or from NewEngine before the engine is shared).
func (e *Engine) queueEmit(emit func()) {
	e.pending = append(e.pending, emit)
}

func (e *Engine) takePending() []func() {
	pending := e.pending
	e.pending = nil
	return pending
}

func dispatch(pending []func()) {
	for _, emit := range pending {
		emit()
	}
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vm.Close()
}

// --- Lua helpers ---

// LInt reads an integer field from a Lua table.
func LInt(t *lua.LTable, key string) int {
	return int(lua.LVAsNumber(t.RawGetString(key)))
}

// LStr reads a string field from a Lua table.
func LStr(t *lua.LTable, key string) string {
	return lua.LVAsString(t.RawGetString(key))
}

// LBool reads a boolean field from a Lua table.
func LBool(t *lua.LTable, key string) bool {
	return t.RawGetString(key) == lua.LTrue
}

// LID reads a 64-bit id field. Scripts pass ids as decimal strings because
// Lua numbers are float64 and lose precision above 2^53; plain numbers are
// still accepted for small ids.
func LID(t *lua.LTable, key string) uint64 {
	return luaID(t.RawGetString(key))
}

func luaID(v lua.LValue) uint64 {
	switch lv := v.(type) {
	case lua.LString:
		n, err := strconv.ParseUint(string(lv), 10, 64)
		if err != nil {
			return 0
		}
		return n
	case lua.LNumber:
		return uint64(lv)
	default:
		return 0
	}
}
