package event

import (
	"reflect"
	"sync"
)

// Bus is a typed synchronous event bus. Handlers run on the emitting
// goroutine; registration and dispatch are mutex-guarded.
type Bus struct {
	mu       sync.Mutex
	nextID   int
	handlers map[reflect.Type]map[int]any
}

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[reflect.Type]map[int]any),
	}
}

// Emit delivers event to every handler subscribed for type T.
func Emit[T any](b *Bus, event T) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	b.mu.Lock()
	hs := make([]any, 0, len(b.handlers[t]))
	for _, h := range b.handlers[t] {
		hs = append(hs, h)
	}
	b.mu.Unlock()
	for _, h := range hs {
		h.(func(T))(event)
	}
}

// Subscribe registers a typed handler for events of type T and returns a
// function that removes it. The returned function is safe to call twice.
func Subscribe[T any](b *Bus, fn func(T)) func() {
	t := reflect.TypeOf((*T)(nil)).Elem()
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers[t] == nil {
		b.handlers[t] = make(map[int]any)
	}
	id := b.nextID
	b.nextID++
	b.handlers[t][id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[t], id)
	}
}
