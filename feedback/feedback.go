package feedback

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"brio/audio"
	"brio/braille"
	"brio/chord"
	"brio/log"
)

type Mode int

const (
	Piano Mode = iota
	Mechanical
)

func (m Mode) String() string {
	if m == Mechanical {
		return "mechanical"
	}
	return "piano"
}

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "piano", "":
		return Piano, nil
	case "mechanical", "mech":
		return Mechanical, nil
	}
	return Piano, fmt.Errorf("unknown audio mode %q (want piano or mechanical)", s)
}

const (
	DefaultHold          = 2500 * time.Millisecond
	DefaultChordDuration = 900 * time.Millisecond
)

var DefaultIntervals = []int{0, 4, 7}

// Player is the audio side of feedback. *audio.Engine implements it.
type Player interface {
	Unlock(ctx context.Context) (bool, error)
	PlayPiano(freq float64, hold time.Duration) audio.Handle
	PlayClick(freq float64, dur time.Duration) audio.Handle
	PlayRelease(freq float64, dur time.Duration) audio.Handle
	PlayChord(root float64, intervals []int, dur time.Duration) audio.Handle
}

// Pulser is the haptic side of feedback. *haptic.Dispatcher implements it.
type Pulser interface {
	Pulse(dot braille.Dot) bool
}

type Options struct {
	Mode          Mode
	Hold          time.Duration
	CommitCue     bool
	Intervals     []int
	ChordDuration time.Duration
}

type sounding struct {
	mode   Mode
	handle audio.Handle
}

// Coordinator starts and stops feedback for accepted key transitions. A
// key sounds at most once until it is released, and is released in the
// mode it was sounded in.
type Coordinator struct {
	player  Player
	haptics Pulser

	mu        sync.Mutex
	mode      Mode
	hold      time.Duration
	commitCue bool
	intervals []int
	chordDur  time.Duration
	played    map[rune]sounding
}

func New(player Player, haptics Pulser, opts Options) *Coordinator {
	if opts.Hold <= 0 {
		opts.Hold = DefaultHold
	}
	if len(opts.Intervals) == 0 {
		opts.Intervals = DefaultIntervals
	}
	if opts.ChordDuration <= 0 {
		opts.ChordDuration = DefaultChordDuration
	}
	return &Coordinator{
		player:    player,
		haptics:   haptics,
		mode:      opts.Mode,
		hold:      opts.Hold,
		commitCue: opts.CommitCue,
		intervals: opts.Intervals,
		chordDur:  opts.ChordDuration,
		played:    make(map[rune]sounding),
	}
}

// SetMode changes the voice style for keys sounded from now on. Keys
// already sounding keep their mode.
func (c *Coordinator) SetMode(m Mode) {
	c.mu.Lock()
	c.mode = m
	c.mu.Unlock()
}

func (c *Coordinator) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

func (c *Coordinator) SetCommitCue(on bool) {
	c.mu.Lock()
	c.commitCue = on
	c.mu.Unlock()
}

// Sounding returns the number of keys with live feedback.
func (c *Coordinator) Sounding() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.played)
}

// KeyDown sounds key and pulses its dot unless key is already sounding.
// The first sound waits for the audio context to unlock.
func (c *Coordinator) KeyDown(ctx context.Context, key rune) {
	dot, ok := braille.DotOf(key)
	if !ok {
		return
	}
	c.mu.Lock()
	if _, dup := c.played[key]; dup {
		c.mu.Unlock()
		return
	}
	mode := c.mode
	hold := c.hold
	c.mu.Unlock()

	var h audio.Handle
	if c.player != nil {
		if _, err := c.player.Unlock(ctx); err != nil {
			log.Debugf("feedback: audio locked: %v", err)
		}
		switch mode {
		case Piano:
			n, _ := NoteOf(key)
			h = c.player.PlayPiano(n.Freq, hold)
		case Mechanical:
			p, _ := ClickOf(key)
			h = c.player.PlayClick(p.Freq, p.Dur)
		}
	}

	c.mu.Lock()
	c.played[key] = sounding{mode: mode, handle: h}
	c.mu.Unlock()

	if c.haptics != nil {
		c.haptics.Pulse(dot)
	}
}

// KeyUp ends key's feedback: an early release in piano mode, a release
// click in mechanical mode.
func (c *Coordinator) KeyUp(key rune) {
	c.mu.Lock()
	s, ok := c.played[key]
	delete(c.played, key)
	c.mu.Unlock()
	if !ok {
		return
	}

	switch s.mode {
	case Piano:
		s.handle.Stop()
	case Mechanical:
		if c.player != nil {
			p, _ := ClickOf(key)
			c.player.PlayRelease(p.ReleaseFreq, p.ReleaseDur)
		}
	}
}

// ReleaseAll stops every sounding key without release clicks. Used when
// the key source goes away mid-chord.
func (c *Coordinator) ReleaseAll() {
	c.mu.Lock()
	played := c.played
	c.played = make(map[rune]sounding)
	c.mu.Unlock()
	for _, s := range played {
		s.handle.Stop()
	}
}

// Commit plays the commit cue for a committed chord when enabled in piano
// mode: a soft triad rooted on the chord's lowest dot.
func (c *Coordinator) Commit(cm chord.Commit) audio.Handle {
	c.mu.Lock()
	on, mode := c.commitCue, c.mode
	intervals, dur := c.intervals, c.chordDur
	c.mu.Unlock()
	if !on || mode != Piano || c.player == nil {
		return audio.Handle{}
	}
	n, ok := rootNote(cm.Cell)
	if !ok {
		return audio.Handle{}
	}
	return c.player.PlayChord(n.Freq, intervals, dur)
}
