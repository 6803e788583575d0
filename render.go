package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"brio/audio"
	"brio/encoder"
	"brio/keyboard"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	renderKeys    string
	renderOut     string
	renderHold    time.Duration
	renderStagger time.Duration
	renderGap     time.Duration
)

const (
	renderStep    = 50 * time.Millisecond
	renderMaxTail = 3 * time.Second
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the feedback for a sequence of chords to FLAC",
	Example: `  brio render --mode piano --keys fj -o c.flac
  brio render --mode mechanical --keys f,fw,fj --hold 150ms -o abc.flac`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		chords := strings.Split(renderKeys, ",")
		off, err := audio.NewOffline(cfg.AudioSettings())
		if err != nil {
			return fmt.Errorf("starting offline audio: %w", err)
		}
		sess := newSession(cfg, off.Engine(), nil)
		defer gracefulShutdown(sess)

		renderChords(cmd.Context(), sess, off, chords)

		if _, err := encoder.WriteFile(renderOut, off.SampleRate(), off.Samples()); err != nil {
			return fmt.Errorf("writing %s: %w", renderOut, err)
		}
		if renderOut == "-" {
			fmt.Fprintf(cmd.ErrOrStderr(), "%.2fs at %d Hz, typed %q\n",
				off.Elapsed().Seconds(), off.SampleRate(), sess.Text())
			return nil
		}
		size := "?"
		if fi, err := os.Stat(renderOut); err == nil {
			size = humanize.Bytes(uint64(fi.Size()))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s): %.2fs at %d Hz, typed %q\n",
			renderOut, size, off.Elapsed().Seconds(), off.SampleRate(), sess.Text())
		return nil
	},
}

func init() {
	f := renderCmd.Flags()
	f.StringVar(&renderKeys, "keys", "fj", "chords to play, comma separated (keys f e w j i o)")
	f.StringVarP(&renderOut, "output", "o", "brio.flac", "output file, - for stdout")
	f.DurationVar(&renderHold, "hold", 300*time.Millisecond, "how long each chord is held")
	f.DurationVar(&renderStagger, "stagger", 15*time.Millisecond, "delay between keys within a chord")
	f.DurationVar(&renderGap, "gap", 200*time.Millisecond, "silence between chords")
}

// renderChords presses and releases each chord on the offline clock, then
// runs until every voice has been cleaned up.
func renderChords(ctx context.Context, sess *Session, off *audio.Offline, chords []string) {
	for _, ch := range chords {
		ch = strings.TrimSpace(ch)
		for _, k := range ch {
			sess.handle(ctx, keyboard.Event{Key: k, Down: true})
			off.Advance(renderStagger)
		}
		off.Advance(renderHold)
		for _, k := range ch {
			sess.handle(ctx, keyboard.Event{Key: k})
			off.Advance(renderStagger)
		}
		off.Advance(renderGap)
	}
	for tail := time.Duration(0); tail < renderMaxTail; tail += renderStep {
		if sess.Engine().ActiveVoices() == 0 {
			return
		}
		off.Advance(renderStep)
	}
}
