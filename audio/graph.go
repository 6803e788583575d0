package audio

import (
	"math"
	"sync"

	"github.com/gopxl/beep/v2"
)

type Waveform int

const (
	Sine Waveform = iota
	Triangle
	Square
)

func (w Waveform) String() string {
	switch w {
	case Sine:
		return "sine"
	case Triangle:
		return "triangle"
	case Square:
		return "square"
	}
	return "unknown"
}

func (w Waveform) sample(phase float64) float64 {
	switch w {
	case Triangle:
		// phase in [0,1): 0 -> 0, 0.25 -> 1, 0.75 -> -1
		return 1 - 4*math.Abs(math.Mod(phase+0.25, 1)-0.5)
	case Square:
		if phase < 0.5 {
			return 1
		}
		return -1
	default:
		return math.Sin(2 * math.Pi * phase)
	}
}

type oscillator struct {
	wave  Waveform
	freq  float64
	level float64
	phase float64
	start float64
	stop  float64
}

func newOscillator(wave Waveform, freq, level, start float64) *oscillator {
	return &oscillator{wave: wave, freq: freq, level: level, start: start, stop: math.Inf(1)}
}

// gainStage sums its oscillators and scales them by an automated gain.
type gainStage struct {
	gain *Param
	oscs []*oscillator
}

// voiceStream is one voice on the mixer. It follows the graph clock from
// the frame it was connected at and drains once its last oscillator stops
// or it is disconnected. Stream runs under the graph lock.
type voiceStream struct {
	rate   float64
	stages []*gainStage
	pos    int64
	cut    bool
}

func (s *voiceStream) end() float64 {
	end := math.Inf(-1)
	for _, st := range s.stages {
		for _, o := range st.oscs {
			end = math.Max(end, o.stop)
		}
	}
	return end
}

func (s *voiceStream) Stream(samples [][2]float64) (n int, ok bool) {
	if s.cut {
		return 0, false
	}
	end := s.end()
	for i := range samples {
		t := float64(s.pos) / s.rate
		if t >= end {
			break
		}
		var sum float64
		for _, st := range s.stages {
			var v float64
			for _, o := range st.oscs {
				if t < o.start || t >= o.stop {
					continue
				}
				v += o.wave.sample(o.phase) * o.level
				o.phase += o.freq / s.rate
				if o.phase >= 1 {
					o.phase -= math.Floor(o.phase)
				}
			}
			if v != 0 {
				sum += v * st.gain.ValueAt(t)
			}
		}
		samples[i][0], samples[i][1] = sum, sum
		s.pos++
		n++
	}
	return n, n > 0
}

func (s *voiceStream) Err() error { return nil }

// graph is the mixing context: voice streams on one beep.Mixer feeding a
// master gain, rendered against a sample clock.
type graph struct {
	mu     sync.Mutex
	rate   int
	frames int64
	master *Param
	mixer  *beep.Mixer
	voices map[*voiceStream]struct{}
	ended  []func()
	mix    [][2]float64
}

func newGraph(rate int, master float64) *graph {
	return &graph{
		rate:   rate,
		master: NewParam(master),
		mixer:  &beep.Mixer{},
		voices: make(map[*voiceStream]struct{}),
	}
}

func (g *graph) nowLocked() float64 { return float64(g.frames) / float64(g.rate) }

// Now returns the graph clock in seconds.
func (g *graph) Now() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.nowLocked()
}

// connectLocked adds stages to the mixer as one stream starting at the
// current frame. onEnded runs once the stream drains on its own, after the
// rendering block releases the lock.
func (g *graph) connectLocked(stages []*gainStage, onEnded func()) *voiceStream {
	s := &voiceStream{rate: float64(g.rate), stages: stages, pos: g.frames}
	g.voices[s] = struct{}{}
	g.mixer.Add(beep.Seq(s, beep.Callback(func() {
		if !s.cut && onEnded != nil {
			g.ended = append(g.ended, onEnded)
		}
	})))
	return s
}

// disconnectLocked silences s and lets the mixer drop it on the next
// block. Disconnecting nil or an already removed stream is a no-op.
func (g *graph) disconnectLocked(s *voiceStream) {
	if s == nil {
		return
	}
	s.cut = true
	delete(g.voices, s)
}

// connected returns the number of gain stages still on the bus.
func (g *graph) connected() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for s := range g.voices {
		n += len(s.stages)
	}
	return n
}

func (g *graph) setMaster(v float64) {
	g.mu.Lock()
	t := g.nowLocked()
	g.master.CancelScheduledValues(t)
	g.master.SetValueAtTime(v, t)
	g.mu.Unlock()
}

// Render fills buf with mono samples in [-1,1] and advances the clock.
// Ended notifications for streams that drained within the block are
// delivered after the lock is released.
func (g *graph) Render(buf []float32) {
	g.mu.Lock()
	if cap(g.mix) < len(buf) {
		g.mix = make([][2]float64, len(buf))
	}
	mix := g.mix[:len(buf)]
	clear(mix)
	g.mixer.Stream(mix)

	rate := float64(g.rate)
	for i := range buf {
		t := float64(g.frames) / rate
		sum := mix[i][0] * g.master.ValueAt(t)
		if sum > 1 {
			sum = 1
		} else if sum < -1 {
			sum = -1
		}
		buf[i] = float32(sum)
		g.frames++
	}

	t := g.nowLocked()
	for s := range g.voices {
		for _, st := range s.stages {
			st.gain.prune(t)
		}
	}
	g.master.prune(t)
	ended := g.ended
	g.ended = nil
	g.mu.Unlock()

	for _, f := range ended {
		f()
	}
}
