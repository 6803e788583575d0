// Package midi feeds the chord keys from a MIDI controller. Six adjacent
// white keys from the base note play the dots; the octave above the base
// is space and the semitone below is backspace.
package midi

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"brio/braille"
	"brio/keyboard"
	"brio/log"

	"github.com/sahilm/fuzzy"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// DefaultBase is middle C.
const DefaultBase = 60

// Virtual and system ports are never picked automatically.
var excludedPorts = []string{"Midi Through", "Through Port", "Dummy"}

// portPoll is how often the open input is checked for being unplugged.
const portPoll = time.Second

// whiteSteps are the offsets of C D E F G A from the base note.
var whiteSteps = [6]int{0, 2, 4, 5, 7, 9}

// Map translates MIDI note numbers to key symbols.
type Map struct {
	Base int
}

// Key returns the symbol for note, if any.
func (m Map) Key(note int) (rune, bool) {
	switch note - m.Base {
	case -1:
		return keyboard.Backspace, true
	case 12:
		return keyboard.Space, true
	}
	for i, step := range whiteSteps {
		if note-m.Base == step {
			return braille.KeyOf(braille.Dot(i + 1))
		}
	}
	return 0, false
}

// Source is a keyboard.Source reading note on/off from one MIDI input.
// Events closes on Unregister or when the input is unplugged.
type Source struct {
	mu      sync.Mutex
	port    string
	keys    Map
	drv     *rtmididrv.Driver
	in      drivers.In
	stopFn  func()
	events  chan keyboard.Event
	stopped chan struct{}
	once    sync.Once

	sendMu sync.RWMutex
	closed bool
}

// New creates a source for the input whose name contains port
// (case-insensitive). An empty port picks the only non-virtual input.
func New(port string, base int) *Source {
	if base <= 0 {
		base = DefaultBase
	}
	return &Source{
		port:    port,
		keys:    Map{Base: base},
		events:  make(chan keyboard.Event, 64),
		stopped: make(chan struct{}),
	}
}

func (s *Source) Register() error {
	drv, err := rtmididrv.New()
	if err != nil {
		return fmt.Errorf("rtmididrv: %w", err)
	}
	in, err := pickInput(drv, s.port)
	if err != nil {
		drv.Close()
		return err
	}
	if err := in.Open(); err != nil {
		drv.Close()
		return fmt.Errorf("open %q: %w", in.String(), err)
	}

	stop, err := midi.ListenTo(in, s.handle, midi.HandleError(func(err error) {
		log.Warnf("midi: listener error on %s: %v", in.String(), err)
	}))
	if err != nil {
		in.Close()
		drv.Close()
		return fmt.Errorf("listen %q: %w", in.String(), err)
	}

	s.mu.Lock()
	s.drv, s.in, s.stopFn = drv, in, stop
	s.mu.Unlock()
	log.Infof("midi: connected to %s (base note %d)", in.String(), s.keys.Base)
	go s.watch(in.String())
	return nil
}

// watch unregisters the source once name drops out of the input list.
func (s *Source) watch(name string) {
	t := time.NewTicker(portPoll)
	defer t.Stop()
	for {
		select {
		case <-s.stopped:
			return
		case <-t.C:
		}
		names, err := s.inputNames()
		if err != nil {
			continue
		}
		if !slices.Contains(names, name) {
			log.Warnf("midi: %s disconnected", name)
			s.Unregister()
			return
		}
	}
}

func (s *Source) inputNames() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drv == nil {
		return nil, fmt.Errorf("not registered")
	}
	ins, err := s.drv.Ins()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(ins))
	for i, in := range ins {
		names[i] = in.String()
	}
	return names, nil
}

func (s *Source) handle(msg midi.Message, _ int32) {
	var ch, key, vel uint8
	switch {
	case msg.GetNoteStart(&ch, &key, &vel):
		s.deliver(int(key), true)
	case msg.GetNoteEnd(&ch, &key):
		s.deliver(int(key), false)
	}
}

func (s *Source) deliver(note int, down bool) {
	k, ok := s.keys.Key(note)
	if !ok {
		return
	}
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.events <- keyboard.Event{Key: k, Down: down}:
	case <-s.stopped:
	}
}

func (s *Source) Unregister() {
	s.once.Do(func() {
		close(s.stopped)
		s.sendMu.Lock()
		s.closed = true
		close(s.events)
		s.sendMu.Unlock()

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.stopFn != nil {
			s.stopFn()
		}
		if s.in != nil {
			_ = s.in.Close()
		}
		if s.drv != nil {
			s.drv.Close()
			s.drv = nil
		}
	})
}

func (s *Source) Events() <-chan keyboard.Event {
	return s.events
}

// Inputs lists the non-virtual MIDI input ports.
func Inputs() ([]string, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("rtmididrv: %w", err)
	}
	defer drv.Close()
	ins, err := drv.Ins()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, in := range ins {
		if !excluded(in.String()) {
			names = append(names, in.String())
		}
	}
	return names, nil
}

func pickInput(drv *rtmididrv.Driver, port string) (drivers.In, error) {
	ins, err := drv.Ins()
	if err != nil {
		return nil, fmt.Errorf("list inputs: %w", err)
	}
	if port != "" {
		names := make([]string, len(ins))
		for i, in := range ins {
			names[i] = in.String()
		}
		i, ok := matchPort(names, port)
		if !ok {
			return nil, fmt.Errorf("midi input %q not found", port)
		}
		return ins[i], nil
	}
	var candidates []drivers.In
	for _, in := range ins {
		if !excluded(in.String()) {
			candidates = append(candidates, in)
		}
	}
	switch len(candidates) {
	case 0:
		return nil, fmt.Errorf("no midi inputs found")
	case 1:
		return candidates[0], nil
	}
	return nil, fmt.Errorf("%d midi inputs found, choose one with --midi-port", len(candidates))
}

// matchPort picks the input named by port: a case-insensitive substring
// match first, then the best fuzzy match.
func matchPort(names []string, port string) (int, bool) {
	for i, name := range names {
		if containsCI(name, port) {
			return i, true
		}
	}
	matches := fuzzy.Find(strings.ToLower(port), lowerAll(names))
	if len(matches) == 0 {
		return 0, false
	}
	return matches[0].Index, true
}

func lowerAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = strings.ToLower(n)
	}
	return out
}

func excluded(name string) bool {
	for _, pat := range excludedPorts {
		if containsCI(name, pat) {
			return true
		}
	}
	return false
}

func containsCI(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
