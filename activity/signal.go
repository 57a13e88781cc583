// Package activity keeps a session alive while the operator is present.
//
// A Monitor listens for interaction signals on a Source and runs a fixed
// interval ticker; both extend the active session.
package activity

import (
	"fmt"
	"sync"
)

// Signal is one kind of interaction event reported by the console.
type Signal string

const (
	PointerDown Signal = "pointerdown"
	KeyDown     Signal = "keydown"
	Scroll      Signal = "scroll"
	TouchStart  Signal = "touchstart"
)

var tracked = []Signal{PointerDown, KeyDown, Scroll, TouchStart}

// Signals returns the interaction signals the monitor reacts to.
func Signals() []Signal {
	return append([]Signal(nil), tracked...)
}

// Tracked reports whether s is one of Signals.
func (s Signal) Tracked() bool {
	for _, t := range tracked {
		if s == t {
			return true
		}
	}
	return false
}

// ParseSignal validates a signal name.
func ParseSignal(name string) (Signal, error) {
	s := Signal(name)
	if !s.Tracked() {
		return "", fmt.Errorf("unknown activity signal %q", name)
	}
	return s, nil
}

// Source delivers signals to subscribers. The returned function removes the
// subscription.
type Source interface {
	Subscribe(fn func(Signal)) (unsubscribe func())
}

// Bus is an in-process Source. Publish calls subscribers synchronously on the
// caller's goroutine.
type Bus struct {
	mu   sync.RWMutex
	next int
	subs map[int]func(Signal)
}

var _ Source = (*Bus)(nil)

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]func(Signal))}
}

// Subscribe registers fn until the returned function is called.
func (b *Bus) Subscribe(fn func(Signal)) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers s to every current subscriber.
func (b *Bus) Publish(s Signal) {
	b.mu.RLock()
	fns := make([]func(Signal), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(s)
	}
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
