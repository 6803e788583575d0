package audio

import (
	"context"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"brio/log"
)

type State int

const (
	StateClosed State = iota
	StateLocked
	StateRunning
	StateUnsupported
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateLocked:
		return "locked"
	case StateRunning:
		return "running"
	case StateUnsupported:
		return "unsupported"
	}
	return "unknown"
}

// Stats counts voice lifecycle events since the engine was created.
type Stats struct {
	Started  int64
	Natural  int64 // ran the full envelope
	Stopped  int64 // early forced release
	Fallback int64 // cleaned up by a timer rather than the ended notification
	Cleaned  int64
}

type VoiceInfo struct {
	ID   uint64
	Kind Kind
	Freq float64
	Age  time.Duration
}

// Engine owns the audio context: the output, the mixing graph with its
// master bus, and the registry of sounding voices. The context is created
// on the first request, torn down by Shutdown and created again on the
// next request after that.
type Engine struct {
	settings Settings
	open     Opener
	after    func(time.Duration, func()) *time.Timer

	unlockMu sync.Mutex

	mu     sync.Mutex
	state  State
	g      *graph
	out    Output
	master float64
	voices map[*Voice]struct{}
	nextID uint64
	warned bool

	started  atomic.Int64
	natural  atomic.Int64
	stopped  atomic.Int64
	fallback atomic.Int64
	cleaned  atomic.Int64
}

// NewEngine returns an engine that opens its output with open, or the
// platform default when open is nil. Nothing is opened until needed.
func NewEngine(settings Settings, open Opener) *Engine {
	if settings.SampleRate <= 0 {
		settings.SampleRate = DefaultSampleRate
	}
	if open == nil {
		open = OpenDefault
	}
	return &Engine{
		settings: settings,
		open:     open,
		after:    time.AfterFunc,
		master:   clamp01(settings.MasterVolume),
		voices:   make(map[*Voice]struct{}),
	}
}

func (e *Engine) Settings() Settings { return e.settings }

// ensureLocked creates the context if needed. It returns nil when no output
// can be opened; that is logged once per context lifetime.
func (e *Engine) ensureLocked() *graph {
	switch e.state {
	case StateUnsupported:
		return nil
	case StateLocked, StateRunning:
		return e.g
	}
	out, err := e.open(e.settings.SampleRate)
	if err != nil {
		e.state = StateUnsupported
		if !e.warned {
			e.warned = true
			log.Warnf("audio unavailable, feedback disabled: %v", err)
		}
		return nil
	}
	e.g = newGraph(e.settings.SampleRate, e.master)
	e.out = out
	e.state = StateLocked
	log.AudioState(e.state.String(), e.settings.SampleRate)
	return e.g
}

// Unlock starts playback and waits for the output to acknowledge it. It is
// idempotent once running. While locked, voice requests return inert
// handles.
func (e *Engine) Unlock(ctx context.Context) (bool, error) {
	e.unlockMu.Lock()
	defer e.unlockMu.Unlock()

	e.mu.Lock()
	g := e.ensureLocked()
	if g == nil {
		e.mu.Unlock()
		return false, ErrUnsupported
	}
	if e.state == StateRunning {
		e.mu.Unlock()
		return true, nil
	}
	out := e.out
	e.mu.Unlock()

	err := out.Start(ctx, g)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.out != out {
		// shut down while starting
		return false, nil
	}
	if err != nil {
		log.Warnf("audio unlock failed: %v", err)
		return false, err
	}
	e.state = StateRunning
	log.AudioState(e.state.String(), e.settings.SampleRate)
	return true, nil
}

func (e *Engine) Unlocked() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == StateRunning
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Now returns the context clock in seconds, or 0 with no context.
func (e *Engine) Now() float64 {
	e.mu.Lock()
	g := e.g
	e.mu.Unlock()
	if g == nil {
		return 0
	}
	return g.Now()
}

// begin registers a new voice, creating the context on first use. It
// returns nil unless the context is running.
func (e *Engine) begin(kind Kind, freq float64) *Voice {
	e.mu.Lock()
	defer e.mu.Unlock()
	g := e.ensureLocked()
	if g == nil || e.state != StateRunning {
		return nil
	}
	e.nextID++
	v := &Voice{
		id:      e.nextID,
		kind:    kind,
		freq:    freq,
		eng:     e,
		g:       g,
		created: time.Now(),
		done:    make(chan struct{}),
	}
	e.voices[v] = struct{}{}
	e.started.Add(1)
	return v
}

func (e *Engine) remove(v *Voice) {
	e.mu.Lock()
	delete(e.voices, v)
	e.mu.Unlock()
}

// PlayPiano sounds a two-oscillator tone that sustains for hold and then
// releases on its own unless stopped first.
func (e *Engine) PlayPiano(freq float64, hold time.Duration) Handle {
	v := e.begin(KindPiano, freq)
	if v == nil {
		return Handle{}
	}
	p := e.settings.Piano
	g := v.g

	g.mu.Lock()
	now := g.nowLocked()
	s := &gainStage{gain: NewParam(Floor)}
	fundamental := newOscillator(Triangle, freq, 1, now)
	overtone := newOscillator(Sine, freq*2, p.OvertoneMix, now)

	releaseAt := math.Max(now+hold.Seconds(), now+p.Attack+p.Decay)
	s.gain.SetValueAtTime(Floor, now)
	s.gain.LinearRampToValueAtTime(p.Peak, now+p.Attack)
	s.gain.LinearRampToValueAtTime(p.Sustain, now+p.Attack+p.Decay)
	s.gain.SetValueAtTime(p.Sustain, releaseAt)
	s.gain.LinearRampToValueAtTime(Floor, releaseAt+p.Release)

	end := releaseAt + p.Release + stopMargin
	fundamental.stop, overtone.stop = end, end
	s.oscs = []*oscillator{fundamental, overtone}
	v.stages = []*gainStage{s}
	v.stream = g.connectLocked(v.stages, v.ended)
	g.mu.Unlock()

	log.Voice(v.kind.String(), freq, "start")
	v.arm(fallbackAfter(now, end, time.Second), "timer")
	return Handle{v: v}
}

// PlayClick sounds a short square-wave click that decays exponentially
// over dur.
func (e *Engine) PlayClick(freq float64, dur time.Duration) Handle {
	return e.playPercussive(KindClick, freq, dur, e.settings.Mechanical.Gain)
}

// PlayRelease sounds the softer key-up click. It is independent of any
// click started on key-down.
func (e *Engine) PlayRelease(freq float64, dur time.Duration) Handle {
	return e.playPercussive(KindRelease, freq, dur, e.settings.Mechanical.ReleaseGain)
}

func (e *Engine) playPercussive(kind Kind, freq float64, dur time.Duration, level float64) Handle {
	v := e.begin(kind, freq)
	if v == nil {
		return Handle{}
	}
	m := e.settings.Mechanical
	g := v.g

	g.mu.Lock()
	now := g.nowLocked()
	s := &gainStage{gain: NewParam(Floor)}
	o := newOscillator(Square, freq, 1, now)
	decayEnd := math.Max(now+dur.Seconds(), now+m.Attack)
	s.gain.SetValueAtTime(Floor, now)
	s.gain.LinearRampToValueAtTime(level, now+m.Attack)
	s.gain.ExponentialRampToValueAtTime(Floor, decayEnd)
	end := decayEnd + clickTail
	o.stop = end
	s.oscs = []*oscillator{o}
	v.stages = []*gainStage{s}
	v.stream = g.connectLocked(v.stages, v.ended)
	g.mu.Unlock()

	log.Voice(v.kind.String(), freq, "start")
	v.arm(fallbackAfter(now, end, 200*time.Millisecond), "timer")
	return Handle{v: v}
}

// PlayChord sounds a triangle triad (or any interval set, in semitones
// above root) with the piano envelope held for dur.
func (e *Engine) PlayChord(root float64, intervals []int, dur time.Duration) Handle {
	if len(intervals) == 0 {
		return Handle{}
	}
	v := e.begin(KindChord, root)
	if v == nil {
		return Handle{}
	}
	p := e.settings.Piano
	g := v.g

	g.mu.Lock()
	now := g.nowLocked()
	releaseAt := math.Max(now+dur.Seconds(), now+p.Attack+p.Decay)
	end := releaseAt + p.Release + stopMargin
	for _, semitones := range intervals {
		freq := root * math.Pow(2, float64(semitones)/12)
		s := &gainStage{gain: NewParam(Floor)}
		o := newOscillator(Triangle, freq, 1, now)
		o.stop = end
		s.gain.SetValueAtTime(Floor, now)
		s.gain.LinearRampToValueAtTime(p.Peak, now+p.Attack)
		s.gain.LinearRampToValueAtTime(p.Sustain, now+p.Attack+p.Decay)
		s.gain.SetValueAtTime(p.Sustain, releaseAt)
		s.gain.LinearRampToValueAtTime(Floor, releaseAt+p.Release)
		s.oscs = []*oscillator{o}
		v.stages = append(v.stages, s)
	}
	v.stream = g.connectLocked(v.stages, v.ended)
	g.mu.Unlock()

	log.Voice(v.kind.String(), root, "start")
	v.arm(max(2*time.Second, fallbackAfter(now, end, time.Second)), "timer")
	return Handle{v: v}
}

// fallbackAfter sizes a cleanup timer to outlast a natural end at graph
// time end by margin.
func fallbackAfter(now, end float64, margin time.Duration) time.Duration {
	return time.Duration((end-now)*float64(time.Second)) + margin
}

// SetMasterVolume sets the shared bus level, clamped to [0,1]. It is the
// only write to the bus after creation.
func (e *Engine) SetMasterVolume(vol float64) {
	vol = clamp01(vol)
	e.mu.Lock()
	e.master = vol
	g := e.g
	e.mu.Unlock()
	if g != nil {
		g.setMaster(vol)
	}
}

func (e *Engine) MasterVolume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.master
}

// ActiveVoices returns the number of voices still holding graph resources.
func (e *Engine) ActiveVoices() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.voices)
}

// Snapshot lists the registered voices, oldest first.
func (e *Engine) Snapshot() []VoiceInfo {
	e.mu.Lock()
	infos := make([]VoiceInfo, 0, len(e.voices))
	for v := range e.voices {
		infos = append(infos, VoiceInfo{ID: v.id, Kind: v.kind, Freq: v.freq, Age: time.Since(v.created)})
	}
	e.mu.Unlock()
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

func (e *Engine) Stats() Stats {
	return Stats{
		Started:  e.started.Load(),
		Natural:  e.natural.Load(),
		Stopped:  e.stopped.Load(),
		Fallback: e.fallback.Load(),
		Cleaned:  e.cleaned.Load(),
	}
}

// Shutdown disconnects every voice and closes the output. It is safe with
// no voices and with no context; the next request creates a fresh context.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	voices := make([]*Voice, 0, len(e.voices))
	for v := range e.voices {
		voices = append(voices, v)
	}
	out := e.out
	e.g = nil
	e.out = nil
	e.state = StateClosed
	e.warned = false
	e.mu.Unlock()

	for _, v := range voices {
		v.finish("shutdown")
	}
	if out != nil {
		if err := out.Close(); err != nil {
			log.Warnf("audio close: %v", err)
		}
		log.AudioState(StateClosed.String(), e.settings.SampleRate)
	}
}
