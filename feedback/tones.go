package feedback

import (
	"time"

	"brio/braille"
)

// Note is the pitch a key sounds in piano mode.
type Note struct {
	Name string
	Freq float64
}

var notes = map[rune]Note{
	'f': {"C4", 261.63},
	'e': {"D4", 293.66},
	'w': {"E4", 329.63},
	'j': {"F4", 349.23},
	'i': {"G4", 392.00},
	'o': {"A4", 440.00},
}

// Click is a key's mechanical-mode sound: a click on press and a lower,
// softer release click.
type Click struct {
	Freq        float64
	Dur         time.Duration
	ReleaseFreq float64
	ReleaseDur  time.Duration
}

var clicks = map[rune]Click{
	'f': {600, 12 * time.Millisecond, 300, 15 * time.Millisecond},
	'e': {850, 9 * time.Millisecond, 425, 12 * time.Millisecond},
	'w': {1100, 11 * time.Millisecond, 550, 14 * time.Millisecond},
	'j': {1400, 8 * time.Millisecond, 700, 11 * time.Millisecond},
	'i': {1750, 10 * time.Millisecond, 875, 13 * time.Millisecond},
	'o': {2100, 7 * time.Millisecond, 1050, 10 * time.Millisecond},
}

// NoteOf returns the piano note bound to a dot key.
func NoteOf(key rune) (Note, bool) {
	n, ok := notes[key]
	return n, ok
}

// ClickOf returns the mechanical click pair bound to a dot key.
func ClickOf(key rune) (Click, bool) {
	c, ok := clicks[key]
	return c, ok
}

// rootNote returns the note of the lowest raised dot in c.
func rootNote(c braille.Cell) (Note, bool) {
	dots := c.Dots()
	if len(dots) == 0 {
		return Note{}, false
	}
	k, _ := braille.KeyOf(dots[0])
	return NoteOf(k)
}
