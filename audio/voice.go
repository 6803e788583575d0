package audio

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"brio/log"
)

type Kind int

const (
	KindPiano Kind = iota
	KindClick
	KindRelease
	KindChord
)

func (k Kind) String() string {
	switch k {
	case KindPiano:
		return "piano"
	case KindClick:
		return "click"
	case KindRelease:
		return "release"
	case KindChord:
		return "chord"
	}
	return "unknown"
}

// Voice is one sounding instance. It owns its gain stages and oscillators
// exclusively and disconnects them exactly once.
//
// Two one-shot guards run a voice down. retired decides between the natural
// envelope end and an early Stop. cleanup decides between the ended
// notification and the fallback timer. Later attempts on either are no-ops.
type Voice struct {
	id      uint64
	kind    Kind
	freq    float64
	eng     *Engine
	g       *graph
	stages  []*gainStage
	stream  *voiceStream
	created time.Time

	retired atomic.Bool
	cleanup sync.Once
	done    chan struct{}

	mu    sync.Mutex
	timer *time.Timer
}

func (v *Voice) ID() uint64 { return v.id }

func (v *Voice) Kind() Kind { return v.kind }

func (v *Voice) Freq() float64 { return v.freq }

// Retired reports whether the voice has started its final release.
func (v *Voice) Retired() bool { return v.retired.Load() }

// arm (re)starts the fallback cleanup timer.
func (v *Voice) arm(d time.Duration, reason string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.timer != nil {
		v.timer.Stop()
	}
	v.timer = v.eng.after(d, func() { v.finish(reason) })
}

// ended is the completion notification from the graph.
func (v *Voice) ended() {
	if v.retired.CompareAndSwap(false, true) {
		v.eng.natural.Add(1)
	}
	v.finish("ended")
}

// stop starts the early forced release. It reports whether this call won
// the retirement.
func (v *Voice) stop() bool {
	if !v.retired.CompareAndSwap(false, true) {
		return false
	}
	v.eng.stopped.Add(1)

	var grace time.Duration
	v.g.mu.Lock()
	t := v.g.nowLocked()
	switch v.kind {
	case KindPiano:
		v.forceRelease(t, pianoForcedRelease, pianoForcedStop)
		grace = pianoStopCleanup
	case KindChord:
		v.forceRelease(t, chordForcedRelease, chordForcedStop)
		grace = chordStopCleanup
	default:
		for _, s := range v.stages {
			s.gain.CancelScheduledValues(t)
			s.gain.SetValueAtTime(Floor, t)
			v.stopOscillators(s, t+clickForcedStop)
		}
		grace = clickStopCleanup
	}
	v.g.mu.Unlock()

	log.Voice(v.kind.String(), v.freq, "stop")
	v.arm(grace, "stop-timer")
	return true
}

// forceRelease pins each stage at its current level and ramps it to the
// floor over release seconds. Cancellation always precedes the new ramp.
func (v *Voice) forceRelease(t, release, stopAfter float64) {
	for _, s := range v.stages {
		cur := s.gain.ValueAt(t)
		s.gain.CancelScheduledValues(t)
		s.gain.SetValueAtTime(cur, t)
		s.gain.LinearRampToValueAtTime(Floor, t+release)
		v.stopOscillators(s, t+stopAfter)
	}
}

func (v *Voice) stopOscillators(s *gainStage, at float64) {
	for _, o := range s.oscs {
		o.stop = math.Min(o.stop, at)
	}
}

// finish disconnects the voice and drops it from the registry. Only the
// first call has any effect.
func (v *Voice) finish(reason string) {
	v.cleanup.Do(func() {
		v.retired.Store(true)
		v.mu.Lock()
		if v.timer != nil {
			v.timer.Stop()
			v.timer = nil
		}
		v.mu.Unlock()

		v.g.mu.Lock()
		v.g.disconnectLocked(v.stream)
		v.g.mu.Unlock()
		v.eng.remove(v)
		if reason != "ended" && reason != "shutdown" {
			v.eng.fallback.Add(1)
		}
		v.eng.cleaned.Add(1)
		close(v.done)
		log.Voice(v.kind.String(), v.freq, "cleanup:"+reason)
	})
}

var closedCh = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Handle is the stop capability for a voice. The zero Handle is inert: it
// is returned while the engine is locked or unavailable and all of its
// methods are no-ops.
type Handle struct {
	v *Voice
}

// Stop triggers the early forced release. Calling it after the voice has
// retired, or more than once, does nothing.
func (h Handle) Stop() {
	if h.v != nil {
		h.v.stop()
	}
}

// Inert reports whether the handle refers to no voice.
func (h Handle) Inert() bool { return h.v == nil }

// Active reports whether the voice still holds graph resources.
func (h Handle) Active() bool {
	if h.v == nil {
		return false
	}
	select {
	case <-h.v.done:
		return false
	default:
		return true
	}
}

// Done is closed once the voice has been cleaned up.
func (h Handle) Done() <-chan struct{} {
	if h.v == nil {
		return closedCh
	}
	return h.v.done
}

func (h Handle) Voice() *Voice { return h.v }
