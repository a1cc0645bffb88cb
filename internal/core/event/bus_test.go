package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmitDelivery(t *testing.T) {
	bus := NewBus()

	var got []uint64
	Subscribe(bus, func(ev SessionLoggedIn) {
		got = append(got, ev.CharacterID)
	})

	Emit(bus, SessionLoggedIn{CharacterID: 7})
	Emit(bus, SessionLoggedIn{CharacterID: 8})
	assert.Equal(t, []uint64{7, 8}, got)
}

func TestEmitTypeIsolation(t *testing.T) {
	bus := NewBus()

	logins := 0
	logouts := 0
	Subscribe(bus, func(SessionLoggedIn) { logins++ })
	Subscribe(bus, func(SessionLoggedOut) { logouts++ })

	Emit(bus, SessionLoggedIn{CharacterID: 1})
	assert.Equal(t, 1, logins)
	assert.Equal(t, 0, logouts)
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus()

	count := 0
	unsub := Subscribe(bus, func(SubsystemReady) { count++ })

	Emit(bus, SubsystemReady{Name: "a"})
	unsub()
	unsub() // second call is a no-op
	Emit(bus, SubsystemReady{Name: "b"})

	assert.Equal(t, 1, count)
}

func TestEmitNoSubscribers(t *testing.T) {
	bus := NewBus()
	Emit(bus, AreaChanged{CharacterID: 1, TerritoryID: 2}) // must not panic
}
