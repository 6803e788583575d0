// Package config loads brio settings from brio.yaml, BRIO_* environment
// variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"brio/audio"
	"brio/feedback"
	"brio/haptic"
	"brio/log"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"
)

const (
	Name      = "brio"
	EnvPrefix = "BRIO"
)

type PianoConfig struct {
	audio.PianoSettings `mapstructure:",squash"`
	Hold                time.Duration `mapstructure:"hold"`
}

type AudioConfig struct {
	Enabled      bool                     `mapstructure:"enabled"`
	SampleRate   int                      `mapstructure:"sample_rate"`
	MasterVolume float64                  `mapstructure:"master_volume"`
	Piano        PianoConfig              `mapstructure:"piano"`
	Mechanical   audio.MechanicalSettings `mapstructure:"mechanical"`
}

type HapticsConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Debounce time.Duration `mapstructure:"debounce"`
	Device   string        `mapstructure:"device"`
}

type InputConfig struct {
	Source       string `mapstructure:"source"`
	MidiPort     string `mapstructure:"midi_port"`
	MidiBaseNote int    `mapstructure:"midi_base_note"`
}

type FeedbackConfig struct {
	CommitCue bool `mapstructure:"commit_cue"`
}

type OutputConfig struct {
	Type bool `mapstructure:"type"`
}

type Config struct {
	Mode     string         `mapstructure:"mode"`
	Audio    AudioConfig    `mapstructure:"audio"`
	Haptics  HapticsConfig  `mapstructure:"haptics"`
	Input    InputConfig    `mapstructure:"input"`
	Feedback FeedbackConfig `mapstructure:"feedback"`
	Output   OutputConfig   `mapstructure:"output"`
}

// Input sources.
const (
	SourceEvdev  = "evdev"
	SourceHotkey = "hotkey"
	SourceMIDI   = "midi"
)

func Default() Config {
	a := audio.DefaultSettings()
	return Config{
		Mode: feedback.Piano.String(),
		Audio: AudioConfig{
			Enabled:      true,
			SampleRate:   a.SampleRate,
			MasterVolume: a.MasterVolume,
			Piano:        PianoConfig{PianoSettings: a.Piano, Hold: feedback.DefaultHold},
			Mechanical:   a.Mechanical,
		},
		Haptics: HapticsConfig{
			Enabled:  true,
			Debounce: haptic.DefaultDebounce,
		},
		Input: InputConfig{
			MidiBaseNote: 60,
		},
	}
}

// AudioSettings converts the audio section for audio.NewEngine.
func (c Config) AudioSettings() audio.Settings {
	return audio.Settings{
		SampleRate:   c.Audio.SampleRate,
		MasterVolume: c.Audio.MasterVolume,
		Piano:        c.Audio.Piano.PianoSettings,
		Mechanical:   c.Audio.Mechanical,
	}
}

func (c Config) FeedbackMode() feedback.Mode {
	m, _ := feedback.ParseMode(c.Mode)
	return m
}

// maxEnvelope bounds each envelope segment, in seconds.
const maxEnvelope = 10.0

func (c Config) Validate() error {
	var errs []error
	if _, err := feedback.ParseMode(c.Mode); err != nil {
		errs = append(errs, err)
	}
	if v := c.Audio.MasterVolume; v < 0 || v > 1 {
		errs = append(errs, fmt.Errorf("audio.master_volume %v out of range [0,1]", v))
	}
	if c.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate must be positive, got %d", c.Audio.SampleRate))
	}
	p := c.Audio.Piano
	for _, e := range []struct {
		key string
		v   float64
	}{
		{"audio.piano.attack", p.Attack},
		{"audio.piano.decay", p.Decay},
		{"audio.piano.release", p.Release},
		{"audio.mechanical.attack", c.Audio.Mechanical.Attack},
	} {
		if e.v < 0 || e.v > maxEnvelope {
			errs = append(errs, fmt.Errorf("%s %vs out of range [0,%v]", e.key, e.v, maxEnvelope))
		}
	}
	for _, l := range []struct {
		key string
		v   float64
	}{
		{"audio.piano.sustain", p.Sustain},
		{"audio.piano.peak", p.Peak},
		{"audio.piano.overtone_mix", p.OvertoneMix},
		{"audio.mechanical.gain", c.Audio.Mechanical.Gain},
		{"audio.mechanical.release_gain", c.Audio.Mechanical.ReleaseGain},
	} {
		if l.v < 0 || l.v > 1 {
			errs = append(errs, fmt.Errorf("%s %v out of range [0,1]", l.key, l.v))
		}
	}
	if c.Audio.Piano.Hold <= 0 {
		errs = append(errs, fmt.Errorf("audio.piano.hold must be positive"))
	}
	if c.Haptics.Debounce < 0 {
		errs = append(errs, fmt.Errorf("haptics.debounce must not be negative"))
	}
	switch c.Input.Source {
	case "", SourceEvdev, SourceHotkey, SourceMIDI:
	default:
		errs = append(errs, fmt.Errorf("input.source %q (want evdev, hotkey or midi)", c.Input.Source))
	}
	if n := c.Input.MidiBaseNote; n < 1 || n > 115 {
		errs = append(errs, fmt.Errorf("input.midi_base_note %d out of range [1,115]", n))
	}
	return errors.Join(errs...)
}

// New returns a viper instance with every key defaulted, the config
// search path set and BRIO_* environment overrides enabled. A non-empty
// file replaces the search path.
func New(file string) *viper.Viper {
	v := viper.New()
	setDefaults(v, Default())

	if file != "" {
		v.SetConfigFile(file)
	} else {
		for _, dir := range SearchDirs() {
			v.AddConfigPath(dir)
		}
		v.SetConfigName(Name)
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("mode", d.Mode)
	v.SetDefault("audio.enabled", d.Audio.Enabled)
	v.SetDefault("audio.sample_rate", d.Audio.SampleRate)
	v.SetDefault("audio.master_volume", d.Audio.MasterVolume)
	v.SetDefault("audio.piano.attack", d.Audio.Piano.Attack)
	v.SetDefault("audio.piano.decay", d.Audio.Piano.Decay)
	v.SetDefault("audio.piano.sustain", d.Audio.Piano.Sustain)
	v.SetDefault("audio.piano.release", d.Audio.Piano.Release)
	v.SetDefault("audio.piano.overtone_mix", d.Audio.Piano.OvertoneMix)
	v.SetDefault("audio.piano.peak", d.Audio.Piano.Peak)
	v.SetDefault("audio.piano.hold", d.Audio.Piano.Hold)
	v.SetDefault("audio.mechanical.attack", d.Audio.Mechanical.Attack)
	v.SetDefault("audio.mechanical.gain", d.Audio.Mechanical.Gain)
	v.SetDefault("audio.mechanical.release_gain", d.Audio.Mechanical.ReleaseGain)
	v.SetDefault("haptics.enabled", d.Haptics.Enabled)
	v.SetDefault("haptics.debounce", d.Haptics.Debounce)
	v.SetDefault("haptics.device", d.Haptics.Device)
	v.SetDefault("input.source", d.Input.Source)
	v.SetDefault("input.midi_port", d.Input.MidiPort)
	v.SetDefault("input.midi_base_note", d.Input.MidiBaseNote)
	v.SetDefault("feedback.commit_cue", d.Feedback.CommitCue)
	v.SetDefault("output.type", d.Output.Type)
}

// SearchDirs lists the directories searched for brio.yaml, in order.
// BRIO_CONFIG_HOME and XDG_CONFIG_HOME come first when set.
func SearchDirs() []string {
	var dirs []string
	if c := os.Getenv("BRIO_CONFIG_HOME"); c != "" {
		dirs = append(dirs, c)
	}
	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append(dirs, filepath.Join(c, Name))
	}
	if scoped, err := gap.NewScope(gap.User, Name).ConfigDirs(); err == nil {
		dirs = append(dirs, scoped...)
	}
	return append(dirs, ".")
}

// Load reads the config file, if any, and decodes the merged settings.
// A missing file is not an error.
func Load(v *viper.Viper) (Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
	}
	if used := v.ConfigFileUsed(); used != "" {
		log.Infof("using config file %s", used)
	}
	return decode(v)
}

func decode(v *viper.Viper) (Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return c, nil
}

// reloadDelay coalesces the bursts of events editors produce on save.
const reloadDelay = 100 * time.Millisecond

// Watch calls fn with the re-decoded config each time the config file is
// written. Invalid edits are logged and skipped.
func Watch(v *viper.Viper, fn func(Config)) {
	var mu sync.Mutex
	debounced := debounce.New(reloadDelay)
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		debounced(func() {
			mu.Lock()
			defer mu.Unlock()
			c, err := decode(v)
			if err != nil {
				log.Warnf("config reload (%s): %v", e.Name, err)
				return
			}
			log.Infof("config reloaded from %s", e.Name)
			fn(c)
		})
	})
	v.WatchConfig()
}

// Template is written by `brio config --init`.
const Template = `# brio configuration

# feedback voice: piano or mechanical
mode: piano

audio:
  enabled: true
  master_volume: 0.18
  sample_rate: 44100
  piano:
    attack: 0.006
    decay: 0.12
    sustain: 0.09
    release: 0.25
    overtone_mix: 0.5
    # how long a held key sounds before its tone releases on its own
    hold: 2.5s
  mechanical:
    attack: 0.001
    gain: 0.14
    release_gain: 0.06

haptics:
  enabled: true
  debounce: 40ms
  # hidraw device path; empty searches for a supported controller
  device: ""

input:
  # evdev (Linux), hotkey (macOS, Windows) or midi; empty picks the platform default
  source: ""
  midi_port: ""
  midi_base_note: 60

feedback:
  # play a chord when a character is committed (piano mode)
  commit_cue: false

output:
  # type committed characters into the focused window
  type: false
`

// WriteTemplate creates path with Template unless it already exists.
func WriteTemplate(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(Template), 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// DefaultPath is where `brio config --init` writes when no path is given.
func DefaultPath() (string, error) {
	p, err := gap.NewScope(gap.User, Name).ConfigPath(Name + ".yaml")
	if err != nil {
		return "", fmt.Errorf("resolving config path: %w", err)
	}
	return p, nil
}
