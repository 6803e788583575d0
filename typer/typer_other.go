//go:build !linux && !darwin

// Package typer types committed characters into the focused window.
package typer

import (
	"errors"
	"runtime"
)

var errUnsupported = errors.New("typer: not supported on " + runtime.GOOS)

type Typer struct{}

func New() (*Typer, error) { return nil, errUnsupported }

func (t *Typer) Type(r rune) error { return errUnsupported }

func (t *Typer) Backspace() error { return errUnsupported }
