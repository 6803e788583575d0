// Package clipboard copies the typed text to the system clipboard.
package clipboard

import (
	"errors"
	"fmt"

	cb "github.com/atotto/clipboard"
)

var ErrUnavailable = errors.New("clipboard: no clipboard utility available (install xclip, xsel or wl-clipboard)")

// Available reports whether the platform clipboard can be used.
func Available() bool {
	return !cb.Unsupported
}

// Copy replaces the clipboard contents with text.
func Copy(text string) error {
	if !Available() {
		return ErrUnavailable
	}
	if err := cb.WriteAll(text); err != nil {
		return fmt.Errorf("clipboard: %w", err)
	}
	return nil
}

func Read() (string, error) {
	if !Available() {
		return "", ErrUnavailable
	}
	return cb.ReadAll()
}
