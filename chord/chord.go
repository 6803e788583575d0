package chord

import (
	"brio/braille"
)

// Commit is the character produced when a chord is fully released.
type Commit struct {
	Cell braille.Cell
	Char rune
}

// Mapped reports whether the pattern had a letter assigned.
func (c Commit) Mapped() bool { return c.Char != braille.Unknown }

// Accumulator turns six-key press/release cycles into characters.
//
// A session starts when the first key goes down and ends when the last key
// comes up. maxSeen is the union of every held set observed during the
// session, so interleaved presses and releases still commit the full chord.
// Accumulator is not safe for concurrent use; callers serialize events.
type Accumulator struct {
	active  braille.Cell
	maxSeen braille.Cell
	buf     []rune
}

// New returns an empty accumulator with no keys held.
func New() *Accumulator {
	return &Accumulator{}
}

// KeyDown records a key press. It returns the held dots and whether the
// event changed state. Unknown keys, repeats and already-held keys are
// ignored.
func (a *Accumulator) KeyDown(key rune, repeat bool) ([]braille.Dot, bool) {
	d, ok := braille.DotOf(key)
	if !ok || repeat || a.active.Has(d) {
		return a.active.Dots(), false
	}
	a.active = a.active.With(d)
	a.maxSeen |= a.active
	return a.active.Dots(), true
}

// KeyUp records a key release. When the last held key is released the
// accumulated chord is committed to the buffer and returned with ok true.
// accepted is false when key was not held.
func (a *Accumulator) KeyUp(key rune) (dots []braille.Dot, c Commit, ok, accepted bool) {
	d, isDot := braille.DotOf(key)
	if !isDot || !a.active.Has(d) {
		return a.active.Dots(), Commit{}, false, false
	}
	a.active = a.active.Without(d)
	if !a.active.Empty() || a.maxSeen.Empty() {
		return a.active.Dots(), Commit{}, false, true
	}

	c = Commit{Cell: a.maxSeen, Char: braille.Character(a.maxSeen)}
	a.buf = append(a.buf, c.Char)
	a.maxSeen = braille.Blank
	return a.active.Dots(), c, true, true
}

// Backspace removes the last character. It reports whether anything was
// removed.
func (a *Accumulator) Backspace() bool {
	if len(a.buf) == 0 {
		return false
	}
	a.buf = a.buf[:len(a.buf)-1]
	return true
}

// Space appends a space regardless of chord state.
func (a *Accumulator) Space() {
	a.buf = append(a.buf, ' ')
}

// CurrentDots returns the held dots in ascending order.
func (a *Accumulator) CurrentDots() []braille.Dot { return a.active.Dots() }

// Active returns the held set as a cell.
func (a *Accumulator) Active() braille.Cell { return a.active }

// Pending returns the union accumulated so far in the current session.
func (a *Accumulator) Pending() braille.Cell { return a.maxSeen }

// Held returns the keys currently down, in dot order.
func (a *Accumulator) Held() []rune {
	var keys []rune
	for _, d := range a.active.Dots() {
		k, _ := braille.KeyOf(d)
		keys = append(keys, k)
	}
	return keys
}

// Reset abandons the current session without committing. The buffer is
// left untouched.
func (a *Accumulator) Reset() {
	a.active = braille.Blank
	a.maxSeen = braille.Blank
}

// Text returns a copy of the output buffer.
func (a *Accumulator) Text() string { return string(a.buf) }

// Len returns the number of characters in the buffer.
func (a *Accumulator) Len() int { return len(a.buf) }
