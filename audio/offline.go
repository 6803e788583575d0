package audio

import (
	"context"
	"time"
)

// Offline drives an engine on a ManualOutput so feedback can be rendered
// to samples faster than real time.
type Offline struct {
	out     *ManualOutput
	eng     *Engine
	samples []float32
}

// NewOffline returns an unlocked engine whose clock advances only through
// Advance.
func NewOffline(settings Settings) (*Offline, error) {
	out := NewManualOutput()
	eng := NewEngine(settings, out.Opener())
	if _, err := eng.Unlock(context.Background()); err != nil {
		return nil, err
	}
	return &Offline{out: out, eng: eng}, nil
}

func (o *Offline) Engine() *Engine { return o.eng }

// Advance renders d and appends it to the captured samples.
func (o *Offline) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	o.samples = append(o.samples, o.out.Advance(d)...)
}

// Elapsed returns the rendered length.
func (o *Offline) Elapsed() time.Duration {
	rate := o.eng.settings.SampleRate
	return time.Duration(len(o.samples)) * time.Second / time.Duration(rate)
}

func (o *Offline) Samples() []float32 { return o.samples }

func (o *Offline) SampleRate() int { return o.eng.settings.SampleRate }

// Close shuts the engine down. Captured samples stay available.
func (o *Offline) Close() {
	o.eng.Shutdown()
}
