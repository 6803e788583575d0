//go:build linux || darwin

// Package typer types committed characters into the focused window.
package typer

import (
	"fmt"
	"sync"
	"unicode"

	"github.com/micmonay/keybd_event"
)

var letters = map[rune]int{
	'a': keybd_event.VK_A, 'b': keybd_event.VK_B, 'c': keybd_event.VK_C,
	'd': keybd_event.VK_D, 'e': keybd_event.VK_E, 'f': keybd_event.VK_F,
	'g': keybd_event.VK_G, 'h': keybd_event.VK_H, 'i': keybd_event.VK_I,
	'j': keybd_event.VK_J, 'k': keybd_event.VK_K, 'l': keybd_event.VK_L,
	'm': keybd_event.VK_M, 'n': keybd_event.VK_N, 'o': keybd_event.VK_O,
	'p': keybd_event.VK_P, 'q': keybd_event.VK_Q, 'r': keybd_event.VK_R,
	's': keybd_event.VK_S, 't': keybd_event.VK_T, 'u': keybd_event.VK_U,
	'v': keybd_event.VK_V, 'w': keybd_event.VK_W, 'x': keybd_event.VK_X,
	'y': keybd_event.VK_Y, 'z': keybd_event.VK_Z,
}

// keyFor returns the virtual key for r and whether shift is needed.
func keyFor(r rune) (int, bool, bool) {
	switch r {
	case ' ':
		return keybd_event.VK_SPACE, false, true
	case '?':
		return keybd_event.VK_SLASH, true, true
	}
	if k, ok := letters[unicode.ToLower(r)]; ok {
		return k, unicode.IsUpper(r), true
	}
	return 0, false, false
}

// Typer sends synthetic key presses. Safe for concurrent use.
type Typer struct {
	mu sync.Mutex
	kb keybd_event.KeyBonding
}

func New() (*Typer, error) {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return nil, fmt.Errorf("typer: %w", err)
	}
	return &Typer{kb: kb}, nil
}

// Type presses the key for r. Characters with no key are reported.
func (t *Typer) Type(r rune) error {
	k, shift, ok := keyFor(r)
	if !ok {
		return fmt.Errorf("typer: no key for %q", r)
	}
	return t.press(k, shift)
}

func (t *Typer) Backspace() error {
	return t.press(backspaceKey, false)
}

func (t *Typer) press(k int, shift bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.kb.Clear()
	t.kb.SetKeys(k)
	t.kb.HasSHIFT(shift)
	return t.kb.Launching()
}
