//go:build darwin || windows

package keyboard

import (
	"fmt"
	"sync"

	"golang.design/x/hotkey"
)

type boundKey struct {
	sym rune
	hk  *hotkey.Hotkey
}

type xSource struct {
	keys   []boundKey
	events chan Event
	stop   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// New creates a source that grabs the chord keys globally through
// golang.design/x/hotkey (Cocoa/Win32), with no modifiers.
func New() Source {
	s := &xSource{events: make(chan Event, eventBuffer)}
	for _, b := range bindings {
		s.keys = append(s.keys, boundKey{sym: b.sym, hk: hotkey.New(nil, b.key)})
	}
	return s
}

func (s *xSource) Register() error {
	s.stop = make(chan struct{})
	for i, k := range s.keys {
		if err := k.hk.Register(); err != nil {
			for _, done := range s.keys[:i] {
				done.hk.Unregister()
			}
			return fmt.Errorf("register %s: %w", SymbolName(k.sym), err)
		}
	}
	for _, k := range s.keys {
		s.wg.Add(1)
		go s.forward(k)
	}
	go func() {
		s.wg.Wait()
		close(s.events)
	}()
	return nil
}

// forward relays one key. The OS repeats keydown while a key is held; a
// keydown without an intervening keyup is reported as a repeat.
func (s *xSource) forward(k boundKey) {
	defer s.wg.Done()
	held := false
	for {
		select {
		case <-s.stop:
			return
		case <-k.hk.Keydown():
			if !emit(s.events, s.stop, Event{Key: k.sym, Down: true, Repeat: held}) {
				return
			}
			held = true
		case <-k.hk.Keyup():
			held = false
			if !emit(s.events, s.stop, Event{Key: k.sym}) {
				return
			}
		}
	}
}

func (s *xSource) Unregister() {
	s.once.Do(func() {
		if s.stop != nil {
			close(s.stop)
		}
		for _, k := range s.keys {
			k.hk.Unregister()
		}
	})
}

func (s *xSource) Events() <-chan Event {
	return s.events
}

// Diagnose checks hotkey availability and returns a status message.
func Diagnose() (string, error) {
	return "global key capture available (F E W J I O, Space, Backspace)", nil
}
