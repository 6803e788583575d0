package keyboard

import (
	"fmt"
	"strings"
)

// Special symbols delivered alongside the six dot keys.
const (
	Backspace rune = '\b'
	Space     rune = ' '
)

// Event is one key transition from a source. Key is a lowercase dot key,
// Backspace or Space.
type Event struct {
	Key    rune
	Down   bool
	Repeat bool
}

func (e Event) String() string {
	dir := "up"
	if e.Down {
		dir = "down"
		if e.Repeat {
			dir = "repeat"
		}
	}
	return dir + " " + SymbolName(e.Key)
}

// Source delivers key events until Unregister is called.
type Source interface {
	Register() error
	Unregister()
	Events() <-chan Event
}

const eventBuffer = 64

// SymbolName is the printable name of a key symbol.
func SymbolName(k rune) string {
	switch k {
	case Backspace:
		return "backspace"
	case Space:
		return "space"
	}
	return string(k)
}

// ParseSymbol accepts a single letter, "backspace" or "space".
func ParseSymbol(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "backspace", "bs":
		return Backspace, nil
	case "space", "sp":
		return Space, nil
	}
	r := []rune(strings.ToLower(s))
	if len(r) != 1 {
		return 0, fmt.Errorf("bad key symbol %q", s)
	}
	return r[0], nil
}

// emit sends ev unless stop is closed first.
func emit(ch chan<- Event, stop <-chan struct{}, ev Event) bool {
	select {
	case ch <- ev:
		return true
	case <-stop:
		return false
	}
}
