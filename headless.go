package main

import (
	"context"
	"fmt"
	"io"
	"sync"

	"brio/audio"
	"brio/braille"
	"brio/chord"
	"brio/feedback"
	"brio/keyboard"
	"brio/log"
)

// lineSink prints one line per text change for non-terminal output.
type lineSink struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *lineSink) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, format, args...)
}

func (s *lineSink) Dots(braille.Cell, braille.Cell) {}

func (s *lineSink) Committed(c chord.Commit, text string) {
	s.printf("%s\n", text)
}

func (s *lineSink) Text(text string) { s.printf("%s\n", text) }

func (s *lineSink) Mode(m feedback.Mode) { s.printf("# mode %s\n", m) }

func (s *lineSink) Volume(v float64) { s.printf("# volume %.2f\n", v) }

func (s *lineSink) AudioState(st audio.State) { s.printf("# audio %s\n", st) }

func (s *lineSink) Notice(text string) { s.printf("# %s\n", text) }

// runHeadless applies key events until ctx is cancelled, printing the
// text after every change.
func runHeadless(ctx context.Context, sess *Session, src keyboard.Source, w io.Writer) error {
	sess.SetSink(&lineSink{w: w})
	log.Info("headless: stdout is not a terminal")
	sess.Run(ctx, src)
	return nil
}
