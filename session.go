package main

import (
	"context"
	"sync"

	"brio/audio"
	"brio/chord"
	"brio/feedback"
	"brio/haptic"
	"brio/keyboard"
	"brio/log"
)

const volumeStep = 0.02

// Typer receives committed characters. *typer.Typer implements it.
type Typer interface {
	Type(r rune) error
	Backspace() error
}

// Session ties one key source to the accumulator, the feedback
// coordinator and the display. Events are applied one at a time.
type Session struct {
	mu      sync.Mutex
	acc     *chord.Accumulator
	fb      *feedback.Coordinator
	eng     *audio.Engine
	haptics *haptic.Dispatcher
	sink    EventSink
	typer   Typer
	commits int
}

func NewSession(eng *audio.Engine, haptics *haptic.Dispatcher, opts feedback.Options) *Session {
	s := &Session{
		acc:     chord.New(),
		eng:     eng,
		haptics: haptics,
		sink:    nopSink{},
	}
	var pulser feedback.Pulser
	if haptics != nil {
		pulser = haptics
	}
	s.fb = feedback.New(eng, pulser, opts)
	return s
}

// SetSink replaces the display. nil restores the silent sink. The sink
// only sees changes made after this call.
func (s *Session) SetSink(sink EventSink) {
	if sink == nil {
		sink = nopSink{}
	}
	s.mu.Lock()
	s.sink = sink
	s.mu.Unlock()
}

func (s *Session) SetTyper(t Typer) {
	s.mu.Lock()
	s.typer = t
	s.mu.Unlock()
}

// handle applies one key event. Backspace and space act on release so a
// held key does not repeat them.
func (s *Session) handle(ctx context.Context, ev keyboard.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Key {
	case keyboard.Backspace:
		if ev.Down {
			return
		}
		if s.acc.Backspace() && s.typer != nil {
			s.typeErr(s.typer.Backspace())
		}
		s.sink.Text(s.acc.Text())
		return
	case keyboard.Space:
		if ev.Down {
			return
		}
		s.acc.Space()
		if s.typer != nil {
			s.typeErr(s.typer.Type(' '))
		}
		s.sink.Text(s.acc.Text())
		return
	}

	if ev.Down {
		if _, ok := s.acc.KeyDown(ev.Key, ev.Repeat); !ok {
			return
		}
		before := s.eng.State()
		s.fb.KeyDown(ctx, ev.Key)
		if after := s.eng.State(); after != before {
			s.sink.AudioState(after)
		}
		s.sink.Dots(s.acc.Active(), s.acc.Pending())
		return
	}

	_, c, committed, accepted := s.acc.KeyUp(ev.Key)
	if !accepted {
		return
	}
	s.fb.KeyUp(ev.Key)
	s.sink.Dots(s.acc.Active(), s.acc.Pending())
	if !committed {
		return
	}
	s.commits++
	log.Commit(c.Cell.Pattern(), c.Mapped())
	s.fb.Commit(c)
	if s.typer != nil {
		s.typeErr(s.typer.Type(c.Char))
	}
	s.sink.Committed(c, s.acc.Text())
}

func (s *Session) typeErr(err error) {
	if err != nil {
		log.Warnf("typer: %v", err)
		s.sink.Notice("typing failed: " + err.Error())
	}
}

// Run applies events from src until ctx is done or the source closes.
func (s *Session) Run(ctx context.Context, src keyboard.Source) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-src.Events():
			if !ok {
				s.Abandon()
				s.mu.Lock()
				sink := s.sink
				s.mu.Unlock()
				log.Warn("key source closed")
				sink.Notice("key source disconnected")
				return
			}
			s.handle(ctx, ev)
		}
	}
}

// Abandon drops a half-entered chord and silences its keys. Used when the
// key source goes away.
func (s *Session) Abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acc.Reset()
	s.fb.ReleaseAll()
	s.sink.Dots(s.acc.Active(), s.acc.Pending())
}

func (s *Session) SetMode(m feedback.Mode) {
	s.fb.SetMode(m)
	s.mu.Lock()
	sink := s.sink
	s.mu.Unlock()
	log.Infof("mode: %s", m)
	sink.Mode(m)
}

func (s *Session) ToggleMode() feedback.Mode {
	m := feedback.Mechanical
	if s.fb.Mode() == feedback.Mechanical {
		m = feedback.Piano
	}
	s.SetMode(m)
	return m
}

func (s *Session) SetVolume(v float64) float64 {
	s.eng.SetMasterVolume(v)
	v = s.eng.MasterVolume()
	s.mu.Lock()
	sink := s.sink
	s.mu.Unlock()
	sink.Volume(v)
	return v
}

func (s *Session) AdjustVolume(delta float64) float64 {
	return s.SetVolume(s.eng.MasterVolume() + delta)
}

func (s *Session) SetCommitCue(on bool) {
	s.fb.SetCommitCue(on)
}

// Unlock starts audio output ahead of the first key.
func (s *Session) Unlock(ctx context.Context) error {
	_, err := s.eng.Unlock(ctx)
	s.mu.Lock()
	sink := s.sink
	s.mu.Unlock()
	sink.AudioState(s.eng.State())
	return err
}

// Shutdown silences everything and closes the audio context. The next
// key recreates it.
func (s *Session) Shutdown() {
	s.mu.Lock()
	s.acc.Reset()
	s.fb.ReleaseAll()
	sink := s.sink
	s.mu.Unlock()
	s.eng.Shutdown()
	sink.AudioState(s.eng.State())
}

func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acc.Text()
}

// Dots returns the held dot pattern, "" when no key is down.
func (s *Session) Dots() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acc.Active().Pattern()
}

func (s *Session) Mode() feedback.Mode { return s.fb.Mode() }

func (s *Session) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

func (s *Session) Engine() *audio.Engine { return s.eng }

// Close shuts audio down and releases the haptic device.
func (s *Session) Close() {
	s.Shutdown()
	if s.haptics != nil {
		if err := s.haptics.Close(); err != nil {
			log.Warnf("haptics close: %v", err)
		}
	}
}
