package event

// Session events bridged from the running game session.

type SessionLoggedIn struct {
	CharacterID uint64
}

type SessionLoggedOut struct {
	CharacterID uint64
}

type AreaChanged struct {
	CharacterID uint64
	TerritoryID uint32
}

// SubsystemReady is a foreign subsystem's explicit load signal. Bridges use
// it to short-circuit their probe backoff.
type SubsystemReady struct {
	Name string
}
