package main

import (
	"brio/audio"
	"brio/braille"
	"brio/chord"
	"brio/feedback"
)

// EventSink abstracts the display layer so the Bubble Tea TUI and the
// headless runner receive the same session events.
type EventSink interface {
	Dots(held, pending braille.Cell)
	Committed(c chord.Commit, text string)
	Text(text string)
	Mode(m feedback.Mode)
	Volume(v float64)
	AudioState(s audio.State)
	Notice(text string)
}

type nopSink struct{}

func (nopSink) Dots(braille.Cell, braille.Cell) {}
func (nopSink) Committed(chord.Commit, string)  {}
func (nopSink) Text(string)                     {}
func (nopSink) Mode(feedback.Mode)              {}
func (nopSink) Volume(float64)                  {}
func (nopSink) AudioState(audio.State)          {}
func (nopSink) Notice(string)                   {}
