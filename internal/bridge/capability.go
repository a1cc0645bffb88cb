package bridge

import (
	"errors"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/xivstats/collector/internal/scripting"
)

// ErrMissingCapability marks a subsystem member that is absent or not
// callable. Connect-time shape checks return it so version skew surfaces
// before any data call is made.
var ErrMissingCapability = errors.New("missing capability")

// Resolver locates foreign subsystems by their registered global name.
type Resolver struct {
	eng *scripting.Engine
}

func NewResolver(eng *scripting.Engine) *Resolver {
	return &Resolver{eng: eng}
}

// TryLocate returns a handle to the named subsystem, or false when it is not
// loaded. Absence is an ordinary outcome, never an error.
func (r *Resolver) TryLocate(name string) (*Handle, bool) {
	var found bool
	_ = r.eng.Do(func(vm *lua.LState) error {
		_, found = vm.GetGlobal(name).(*lua.LTable)
		return nil
	})
	if !found {
		return nil, false
	}
	return &Handle{eng: r.eng, subsystem: name}, true
}

// Handle is a located subsystem. Capabilities are resolved against it by
// string key.
type Handle struct {
	eng       *scripting.Engine
	subsystem string
}

// Func resolves a callable member. A missing or non-function member yields
// ErrMissingCapability; callers treat that as a failed connect and retry.
func (h *Handle) Func(name string) (*Capability, error) {
	ok := h.lookupFunc(name)
	if !ok {
		return nil, fmt.Errorf("%s.%s: %w", h.subsystem, name, ErrMissingCapability)
	}
	return &Capability{eng: h.eng, subsystem: h.subsystem, name: name}, nil
}

// OptionalFunc resolves a member that older subsystem versions do not
// export. Returns nil when absent; callers fall back.
func (h *Handle) OptionalFunc(name string) *Capability {
	if !h.lookupFunc(name) {
		return nil
	}
	return &Capability{eng: h.eng, subsystem: h.subsystem, name: name}
}

func (h *Handle) lookupFunc(name string) bool {
	var ok bool
	_ = h.eng.Do(func(vm *lua.LState) error {
		tbl, isTbl := vm.GetGlobal(h.subsystem).(*lua.LTable)
		if !isTbl {
			return nil
		}
		_, ok = tbl.RawGetString(name).(*lua.LFunction)
		return nil
	})
	return ok
}

// Capability is one resolved subsystem function. The member is re-fetched on
// every call so a reloaded script is picked up without reconnecting.
type Capability struct {
	eng       *scripting.Engine
	subsystem string
	name      string
}

// Call invokes the capability under the engine lock and hands the raw result
// to decode while the lock is still held. Decoded values must be plain Go
// data; Lua values must not escape decode.
func (c *Capability) Call(decode func(lua.LValue) error, args ...lua.LValue) error {
	return c.eng.Do(func(vm *lua.LState) error {
		tbl, ok := vm.GetGlobal(c.subsystem).(*lua.LTable)
		if !ok {
			return fmt.Errorf("%s: subsystem gone: %w", c.subsystem, ErrMissingCapability)
		}
		fn, ok := tbl.RawGetString(c.name).(*lua.LFunction)
		if !ok {
			return fmt.Errorf("%s.%s: %w", c.subsystem, c.name, ErrMissingCapability)
		}
		if err := vm.CallByParam(lua.P{
			Fn:      fn,
			NRet:    1,
			Protect: true,
		}, args...); err != nil {
			return fmt.Errorf("call %s.%s: %w", c.subsystem, c.name, err)
		}
		result := vm.Get(-1)
		vm.Pop(1)
		if decode == nil {
			return nil
		}
		return decode(result)
	})
}

// Int64 calls the capability and coerces a numeric result.
func (c *Capability) Int64(args ...lua.LValue) (int64, error) {
	var out int64
	err := c.Call(func(v lua.LValue) error {
		out = int64(lua.LVAsNumber(v))
		return nil
	}, args...)
	return out, err
}
