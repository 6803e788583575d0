//go:build !linux && !darwin && !windows

package keyboard

import (
	"errors"
	"runtime"
)

var errNoCapture = errors.New("global key capture is not supported on " + runtime.GOOS)

type unsupportedSource struct {
	events chan Event
}

// New returns a source that fails to register. Use the MIDI source or
// script mode on these platforms.
func New() Source {
	return &unsupportedSource{events: make(chan Event)}
}

func (s *unsupportedSource) Register() error { return errNoCapture }

func (s *unsupportedSource) Unregister() {}

func (s *unsupportedSource) Events() <-chan Event { return s.events }

func Diagnose() (string, error) { return "", errNoCapture }
