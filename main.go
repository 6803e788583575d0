package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"brio/audio"
	"brio/config"
	"brio/doctor"
	"brio/feedback"
	"brio/haptic"
	"brio/keyboard"
	"brio/keyboard/midi"
	"brio/log"
	"brio/shutdown"
	"brio/typer"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

var version = "dev"

var (
	configFile   string
	logPathFlag  string
	modeFlag     string
	volumeFlag   float64
	sourceFlag   string
	midiPortFlag string
	hapticFlag   string
	muteFlag     bool
	typeFlag     bool

	v   *viper.Viper
	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "brio",
	Short: "Type braille chords on six keys with audio and haptic feedback",
	Long: `brio turns six keys (F E W for dots 1-3, J I O for dots 4-6) into a
braille keyboard. Press a chord, release it, and the letter appears. Every
key sounds a piano tone or a mechanical click.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	RunE:              runInteractive,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file (default: brio.yaml in the user config dir)")
	pf.StringVar(&logPathFlag, "logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	pf.StringVar(&modeFlag, "mode", "", "feedback voice: piano or mechanical")
	pf.Float64Var(&volumeFlag, "volume", config.Default().Audio.MasterVolume, "master volume 0-1")
	pf.StringVar(&sourceFlag, "source", "", "key source: evdev, hotkey or midi")
	pf.StringVar(&midiPortFlag, "midi-port", "", "MIDI input name (substring match)")
	pf.StringVar(&hapticFlag, "haptic-device", "", "hidraw device for rumble feedback")
	pf.BoolVar(&muteFlag, "mute", false, "disable audio output")
	pf.BoolVar(&typeFlag, "type", false, "type committed characters into the focused window")

	rootCmd.AddCommand(scriptCmd, renderCmd, doctorCmd, versionCmd, configCmd)
}

// setup resolves logging and loads the merged configuration. Flags win
// over the environment, which wins over the config file.
func setup(cmd *cobra.Command, _ []string) error {
	logPath, err := log.ResolveDir(logPathFlag)
	if err != nil {
		return fmt.Errorf("resolving log directory: %w", err)
	}
	log.SetDir(logPath)
	log.SetRunID(uuid.NewString()[:8])
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}

	v = config.New(configFile)
	pf := cmd.Flags()
	for flag, k := range map[string]string{
		"mode":          "mode",
		"volume":        "audio.master_volume",
		"source":        "input.source",
		"midi-port":     "input.midi_port",
		"haptic-device": "haptics.device",
		"type":          "output.type",
	} {
		if f := pf.Lookup(flag); f != nil {
			if err := v.BindPFlag(k, f); err != nil {
				return fmt.Errorf("binding --%s: %w", flag, err)
			}
		}
	}

	cfg, err = config.Load(v)
	if err != nil {
		return err
	}
	if muteFlag {
		cfg.Audio.Enabled = false
	}
	return nil
}

var shutdownOnce sync.Once

func gracefulShutdown(sess *Session) {
	shutdownOnce.Do(func() {
		if sess != nil {
			log.SessionEnd(sess.Commits())
			sess.Close()
		}
		log.Close()
	})
}

func newEngine(cfg config.Config) *audio.Engine {
	var open audio.Opener
	if !cfg.Audio.Enabled {
		open = audio.Unavailable
	}
	return audio.NewEngine(cfg.AudioSettings(), open)
}

func newSession(cfg config.Config, eng *audio.Engine, haptics *haptic.Dispatcher) *Session {
	return NewSession(eng, haptics, feedback.Options{
		Mode:      cfg.FeedbackMode(),
		Hold:      cfg.Audio.Piano.Hold,
		CommitCue: cfg.Feedback.CommitCue,
	})
}

// openHaptics returns nil when haptics are off or no device can be opened.
func openHaptics(hc config.HapticsConfig) *haptic.Dispatcher {
	if !hc.Enabled {
		return nil
	}
	paths := []string{hc.Device}
	if hc.Device == "" {
		paths = haptic.FindHIDRaw()
	}
	for _, p := range paths {
		act, err := haptic.OpenHIDRaw(p)
		if err != nil {
			log.Debugf("haptics: %v", err)
			continue
		}
		log.Infof("haptics: using %s", p)
		return haptic.NewDispatcher(act, hc.Debounce)
	}
	if hc.Device != "" {
		log.Warnf("haptics: could not open %s", hc.Device)
	}
	return nil
}

func newSource(in config.InputConfig) (keyboard.Source, string) {
	if in.Source == config.SourceMIDI {
		return midi.New(in.MidiPort, in.MidiBaseNote), config.SourceMIDI
	}
	if in.Source != "" && in.Source != platformSource {
		log.Warnf("input.source %s is not available here, using %s", in.Source, platformSource)
	}
	return keyboard.New(), platformSource
}

func runInteractive(cmd *cobra.Command, _ []string) error {
	sess := newSession(cfg, newEngine(cfg), openHaptics(cfg.Haptics))
	defer gracefulShutdown(sess)

	src, name := newSource(cfg.Input)
	if err := src.Register(); err != nil {
		log.Errorf("key source register error: %v", err)
		return fmt.Errorf("registering %s key source: %w", name, err)
	}
	defer src.Unregister()

	// Created after the source so a virtual keyboard is never read back.
	if cfg.Output.Type {
		t, err := typer.New()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: typing disabled: %v\n", err)
			log.Warnf("typer: %v", err)
		} else {
			sess.SetTyper(t)
		}
	}

	if v.ConfigFileUsed() != "" {
		config.Watch(v, func(c config.Config) {
			sess.SetMode(c.FeedbackMode())
			sess.SetVolume(c.Audio.MasterVolume)
			sess.SetCommitCue(c.Feedback.CommitCue)
		})
	}

	log.SessionStart(name, sess.Mode().String())

	ctx, cancel := shutdown.Context(cmd.Context())
	defer cancel()

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return runHeadless(ctx, sess, src, os.Stdout)
	}

	tuiMu.Lock()
	tuiProgram = NewTUIProgram(sess, name)
	p := tuiProgram
	tuiMu.Unlock()

	sess.SetSink(tuiSink{})
	go sess.Run(ctx, src)
	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	// Start audio before the first key so the first tone is not lost.
	go func() {
		uctx, ucancel := context.WithTimeout(ctx, 3*time.Second)
		defer ucancel()
		if err := sess.Unlock(uctx); err != nil {
			log.Warnf("audio unlock: %v", err)
		}
	}()

	if _, err := p.Run(); err != nil {
		log.Errorf("TUI error: %v", err)
		return fmt.Errorf("running TUI: %w", err)
	}
	return nil
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check key capture, audio output and haptics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if code := doctor.Run(cfg); code != 0 {
			log.Close()
			os.Exit(code)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "brio %s\n", version)
	},
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Close()
		os.Exit(1)
	}
}

// initCrashLog sends fatal runtime errors to crash_log.txt next to the
// diagnostics log. It runs before flags are parsed, so only the
// environment and OS default locations apply.
func initCrashLog() {
	dir, err := log.ResolveDir("")
	if err != nil {
		return
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return
	}
	crashPath := filepath.Join(dir, "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(crashFile, debug.CrashOptions{})
}
