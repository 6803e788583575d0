package braille

import (
	"strconv"
	"strings"
)

// Dot is a position in the six-dot cell, numbered 1-3 down the left
// column and 4-6 down the right.
type Dot int

// Cell is a set of raised dots. Bit n-1 is set when dot n is raised.
type Cell uint8

// Unknown is produced for patterns with no letter assigned.
const Unknown = '?'

const (
	// Blank is the empty cell (U+2800).
	Blank Cell = 0
	// Full has all six dots raised.
	Full Cell = 0x3f
)

// Keys lists the home-row keys for dots 1 through 6.
var Keys = [6]rune{'f', 'e', 'w', 'j', 'i', 'o'}

// Of returns the cell with the given dots raised. Dots outside 1..6 are ignored.
func Of(dots ...Dot) Cell {
	var c Cell
	for _, d := range dots {
		c = c.With(d)
	}
	return c
}

// With returns c with dot d raised.
func (c Cell) With(d Dot) Cell {
	if d < 1 || d > 6 {
		return c
	}
	return c | 1<<(d-1)
}

// Without returns c with dot d lowered.
func (c Cell) Without(d Dot) Cell {
	if d < 1 || d > 6 {
		return c
	}
	return c &^ (1 << (d - 1))
}

// Has reports whether dot d is raised.
func (c Cell) Has(d Dot) bool {
	if d < 1 || d > 6 {
		return false
	}
	return c&(1<<(d-1)) != 0
}

// Empty reports whether no dot is raised.
func (c Cell) Empty() bool { return c&Full == 0 }

// Len returns the number of raised dots.
func (c Cell) Len() int {
	n := 0
	for d := Dot(1); d <= 6; d++ {
		if c.Has(d) {
			n++
		}
	}
	return n
}

// Dots returns the raised dots in ascending order.
func (c Cell) Dots() []Dot {
	dots := make([]Dot, 0, 6)
	for d := Dot(1); d <= 6; d++ {
		if c.Has(d) {
			dots = append(dots, d)
		}
	}
	return dots
}

// Pattern is the canonical key for c: raised dot numbers ascending and
// concatenated, e.g. "145". The blank cell has an empty pattern.
func (c Cell) Pattern() string {
	var sb strings.Builder
	for _, d := range c.Dots() {
		sb.WriteByte(byte('0' + d))
	}
	return sb.String()
}

// Rune returns the Unicode braille pattern character for c.
func (c Cell) Rune() rune { return 0x2800 + rune(c&Full) }

func (c Cell) String() string { return string(c.Rune()) }

// ParsePattern parses a dot string such as "145" or "1-4-5". Order and
// duplicates do not matter.
func ParsePattern(s string) (Cell, error) {
	var c Cell
	for _, r := range s {
		if r == '-' || r == ' ' || r == ',' {
			continue
		}
		if r < '1' || r > '6' {
			return 0, &PatternError{Pattern: s, Char: r}
		}
		c = c.With(Dot(r - '0'))
	}
	return c, nil
}

// PatternError reports an invalid character in a dot pattern.
type PatternError struct {
	Pattern string
	Char    rune
}

func (e *PatternError) Error() string {
	return "braille: invalid dot " + strconv.QuoteRune(e.Char) + " in pattern " + strconv.Quote(e.Pattern)
}

// DotOf returns the dot bound to key. ok is false for keys outside the
// six-key set.
func DotOf(key rune) (Dot, bool) {
	for i, k := range Keys {
		if k == key {
			return Dot(i + 1), true
		}
	}
	return 0, false
}

// KeyOf returns the key bound to dot d.
func KeyOf(d Dot) (rune, bool) {
	if d < 1 || d > 6 {
		return 0, false
	}
	return Keys[d-1], true
}

// IsDotKey reports whether key is one of the six chord keys.
func IsDotKey(key rune) bool {
	_, ok := DotOf(key)
	return ok
}
