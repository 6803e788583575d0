package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"brio/audio"
	"brio/feedback"
	"brio/keyboard"
	"brio/log"

	"github.com/spf13/cobra"
)

var scriptOffline bool

var scriptCmd = &cobra.Command{
	Use:   "script [file|-]",
	Short: "Drive a session from a command script (headless)",
	Long: `Reads one command per line from a file or stdin:

  DOWN f | UP f | REPEAT f   key transitions (f e w j i o, backspace, space)
  TAP fj                     press the keys in order, then release them
  BACKSPACE | SPACE          tap a special key
  MODE piano|mechanical      switch the feedback voice
  VOLUME 0.3                 set the master volume
  UNLOCK | SHUTDOWN          start or close the audio context
  SLEEP 50                   wait (or advance the clock with --offline)
  TEXT | DOTS                print the typed text or the held dots
  VOICES | STATS             print live voices or voice counters
  QUIT                       stop reading

Lines starting with # are ignored.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var in io.Reader = os.Stdin
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening script: %w", err)
			}
			defer f.Close()
			in = f
		}

		eng := newEngine(cfg)
		var off *audio.Offline
		if scriptOffline {
			var err error
			if off, err = audio.NewOffline(cfg.AudioSettings()); err != nil {
				return fmt.Errorf("starting offline audio: %w", err)
			}
			eng = off.Engine()
		}
		sess := newSession(cfg, eng, nil)
		defer gracefulShutdown(sess)

		log.SessionStart("script", sess.Mode().String())
		r := &scriptRunner{sess: sess, off: off, out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr()}
		return r.run(cmd.Context(), in)
	},
}

func init() {
	scriptCmd.Flags().BoolVar(&scriptOffline, "offline", false, "render audio on a virtual clock instead of the speakers")
}

type scriptRunner struct {
	sess   *Session
	off    *audio.Offline
	out    io.Writer
	errOut io.Writer
}

func (r *scriptRunner) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		quit, err := r.exec(ctx, text)
		if err != nil {
			fmt.Fprintf(r.errOut, "line %d: %v\n", line, err)
		}
		if quit {
			return nil
		}
	}
	return scanner.Err()
}

func (r *scriptRunner) exec(ctx context.Context, text string) (bool, error) {
	fields := strings.Fields(text)
	cmd, args := strings.ToUpper(fields[0]), fields[1:]

	arg := func() (string, error) {
		if len(args) != 1 {
			return "", fmt.Errorf("%s takes one argument", cmd)
		}
		return args[0], nil
	}
	key := func() (rune, error) {
		a, err := arg()
		if err != nil {
			return 0, err
		}
		return keyboard.ParseSymbol(a)
	}

	switch cmd {
	case "DOWN", "UP", "REPEAT":
		k, err := key()
		if err != nil {
			return false, err
		}
		r.sess.handle(ctx, keyboard.Event{Key: k, Down: cmd != "UP", Repeat: cmd == "REPEAT"})

	case "TAP":
		a, err := arg()
		if err != nil {
			return false, err
		}
		for _, k := range a {
			r.sess.handle(ctx, keyboard.Event{Key: k, Down: true})
		}
		for _, k := range a {
			r.sess.handle(ctx, keyboard.Event{Key: k})
		}

	case "BACKSPACE", "SPACE":
		k := keyboard.Backspace
		if cmd == "SPACE" {
			k = keyboard.Space
		}
		r.sess.handle(ctx, keyboard.Event{Key: k, Down: true})
		r.sess.handle(ctx, keyboard.Event{Key: k})

	case "MODE":
		a, err := arg()
		if err != nil {
			return false, err
		}
		m, err := feedback.ParseMode(a)
		if err != nil {
			return false, err
		}
		r.sess.SetMode(m)

	case "VOLUME":
		a, err := arg()
		if err != nil {
			return false, err
		}
		vol, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return false, fmt.Errorf("bad volume %q", a)
		}
		r.sess.SetVolume(vol)

	case "UNLOCK":
		uctx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := r.sess.Unlock(uctx); err != nil {
			return false, fmt.Errorf("unlock: %w", err)
		}

	case "SHUTDOWN":
		r.sess.Shutdown()

	case "SLEEP":
		a, err := arg()
		if err != nil {
			return false, err
		}
		ms, err := strconv.Atoi(a)
		if err != nil || ms < 0 {
			return false, fmt.Errorf("bad duration %q", a)
		}
		r.sleep(time.Duration(ms) * time.Millisecond)

	case "TEXT":
		fmt.Fprintf(r.out, "TEXT %s\n", strconv.Quote(r.sess.Text()))

	case "DOTS":
		dots := r.sess.Dots()
		if dots == "" {
			dots = "-"
		}
		fmt.Fprintf(r.out, "DOTS %s\n", dots)

	case "VOICES":
		fmt.Fprintf(r.out, "VOICES %d\n", r.sess.Engine().ActiveVoices())

	case "STATS":
		st := r.sess.Engine().Stats()
		fmt.Fprintf(r.out, "STATS started=%d natural=%d stopped=%d fallback=%d cleaned=%d\n",
			st.Started, st.Natural, st.Stopped, st.Fallback, st.Cleaned)

	case "QUIT":
		return true, nil

	default:
		return false, fmt.Errorf("unknown command %q", fields[0])
	}
	return false, nil
}

func (r *scriptRunner) sleep(d time.Duration) {
	if r.off != nil {
		r.off.Advance(d)
		return
	}
	time.Sleep(d)
}
