package audio

import (
	"errors"
	"time"
)

const (
	DefaultSampleRate = 44100

	// Floor is the near-silent level envelopes start from and decay to.
	// Exponential ramps cannot reach zero.
	Floor = 0.0001

	stopMargin = 0.05 // oscillators outlive the release ramp by this much
	clickTail  = 0.02
)

// ErrUnsupported is returned when no audio output can be opened.
var ErrUnsupported = errors.New("audio: no output available")

// PianoSettings shape the piano envelope and its overtone.
type PianoSettings struct {
	Attack      float64 `mapstructure:"attack"`  // seconds
	Decay       float64 `mapstructure:"decay"`   // seconds
	Sustain     float64 `mapstructure:"sustain"` // level
	Release     float64 `mapstructure:"release"` // seconds
	OvertoneMix float64 `mapstructure:"overtone_mix"`
	Peak        float64 `mapstructure:"peak"`
}

// MechanicalSettings shape the key-down and key-up clicks.
type MechanicalSettings struct {
	Attack      float64 `mapstructure:"attack"` // seconds
	Gain        float64 `mapstructure:"gain"`
	ReleaseGain float64 `mapstructure:"release_gain"`
}

// Settings configure an Engine.
type Settings struct {
	SampleRate   int                `mapstructure:"sample_rate"`
	MasterVolume float64            `mapstructure:"master_volume"`
	Piano        PianoSettings      `mapstructure:"piano"`
	Mechanical   MechanicalSettings `mapstructure:"mechanical"`
}

func DefaultSettings() Settings {
	return Settings{
		SampleRate:   DefaultSampleRate,
		MasterVolume: 0.18,
		Piano: PianoSettings{
			Attack:      0.006,
			Decay:       0.12,
			Sustain:     0.09,
			Release:     0.25,
			OvertoneMix: 0.5,
			Peak:        1.0,
		},
		Mechanical: MechanicalSettings{
			Attack:      0.001,
			Gain:        0.14,
			ReleaseGain: 0.06,
		},
	}
}

// Forced release lengths and the cleanup grace that follows an early stop.
const (
	pianoForcedRelease = 0.12
	pianoForcedStop    = 0.13
	pianoStopCleanup   = 150 * time.Millisecond

	clickForcedStop  = 0.01
	clickStopCleanup = 50 * time.Millisecond

	chordForcedRelease = 0.06
	chordForcedStop    = 0.08
	chordStopCleanup   = 150 * time.Millisecond
)

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
