package feedback

import (
	"context"
	"sync"
	"testing"
	"time"

	"brio/audio"
	"brio/braille"
	"brio/chord"
	"brio/haptic"
)

type pulses struct {
	mu   sync.Mutex
	dots []braille.Dot
}

func (p *pulses) Pulse(d braille.Dot) bool {
	p.mu.Lock()
	p.dots = append(p.dots, d)
	p.mu.Unlock()
	return true
}

func (p *pulses) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.dots)
}

func newTestCoordinator(t *testing.T, opts Options) (*Coordinator, *audio.Engine, *audio.ManualOutput, *pulses) {
	t.Helper()
	out := audio.NewManualOutput()
	eng := audio.NewEngine(audio.DefaultSettings(), out.Opener())
	t.Cleanup(eng.Shutdown)
	p := &pulses{}
	return New(eng, p, opts), eng, out, p
}

func waitFor(t *testing.T, cond func() bool, timeout time.Duration) {
	t.Helper()
	deadline := time.After(timeout)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal("condition not met before timeout")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"piano": Piano, "Mechanical": Mechanical, "": Piano} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseMode("organ"); err == nil {
		t.Error("expected error")
	}
}

func TestKeyDownUnlocksAndSounds(t *testing.T) {
	c, eng, _, p := newTestCoordinator(t, Options{})

	c.KeyDown(context.Background(), 'f')
	if !eng.Unlocked() {
		t.Fatal("first key did not unlock audio")
	}
	if eng.ActiveVoices() != 1 {
		t.Errorf("ActiveVoices = %d", eng.ActiveVoices())
	}
	if p.count() != 1 || p.dots[0] != 1 {
		t.Errorf("pulses = %v", p.dots)
	}
	info := eng.Snapshot()
	if len(info) != 1 || info[0].Kind != audio.KindPiano || info[0].Freq != 261.63 {
		t.Errorf("voices = %+v", info)
	}
}

func TestDuplicateKeyDown(t *testing.T) {
	c, eng, _, p := newTestCoordinator(t, Options{})
	ctx := context.Background()

	c.KeyDown(ctx, 'j')
	c.KeyDown(ctx, 'j')
	if eng.ActiveVoices() != 1 {
		t.Errorf("ActiveVoices = %d, want 1", eng.ActiveVoices())
	}
	if p.count() != 1 {
		t.Errorf("pulses = %d, want 1", p.count())
	}
}

func TestPianoKeyUpStopsEarly(t *testing.T) {
	c, eng, out, _ := newTestCoordinator(t, Options{})

	c.KeyDown(context.Background(), 'o')
	out.Advance(30 * time.Millisecond)
	c.KeyUp('o')
	if c.Sounding() != 0 {
		t.Errorf("Sounding = %d", c.Sounding())
	}
	out.Advance(200 * time.Millisecond)
	waitFor(t, func() bool { return eng.ActiveVoices() == 0 }, time.Second)

	st := eng.Stats()
	if st.Stopped != 1 || st.Cleaned != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestMechanicalReleaseClick(t *testing.T) {
	c, eng, out, _ := newTestCoordinator(t, Options{Mode: Mechanical})

	c.KeyDown(context.Background(), 'e')
	c.KeyUp('e')
	info := eng.Snapshot()
	if len(info) != 2 || info[0].Kind != audio.KindClick || info[1].Kind != audio.KindRelease {
		t.Fatalf("voices = %+v", info)
	}
	if info[0].Freq != 850 || info[1].Freq != 425 {
		t.Errorf("freqs = %v, %v", info[0].Freq, info[1].Freq)
	}
	out.Advance(100 * time.Millisecond)
	waitFor(t, func() bool { return eng.ActiveVoices() == 0 }, time.Second)
	if st := eng.Stats(); st.Stopped != 0 {
		t.Errorf("mechanical key-up stopped a voice: %+v", st)
	}
}

func TestModeChangeMidChord(t *testing.T) {
	c, eng, _, _ := newTestCoordinator(t, Options{Mode: Piano})
	ctx := context.Background()

	c.KeyDown(ctx, 'f')
	c.SetMode(Mechanical)
	c.KeyDown(ctx, 'e')

	c.KeyUp('f') // sounded as piano: early stop, no release click
	c.KeyUp('e') // sounded as mechanical: release click

	st := eng.Stats()
	if st.Stopped != 1 {
		t.Errorf("Stopped = %d, want 1", st.Stopped)
	}
	var releases int
	for _, v := range eng.Snapshot() {
		if v.Kind == audio.KindRelease {
			releases++
		}
	}
	if releases != 1 {
		t.Errorf("release clicks = %d, want 1", releases)
	}
}

func TestKeyUpUnknown(t *testing.T) {
	c, eng, _, _ := newTestCoordinator(t, Options{})
	c.KeyUp('f')
	c.KeyDown(context.Background(), 'x')
	if eng.ActiveVoices() != 0 || c.Sounding() != 0 {
		t.Error("feedback for an unsounded or unknown key")
	}
}

func TestLockedStillPulses(t *testing.T) {
	eng := audio.NewEngine(audio.DefaultSettings(), audio.Unavailable)
	defer eng.Shutdown()
	p := &pulses{}
	c := New(eng, p, Options{})

	c.KeyDown(context.Background(), 'i')
	if p.count() != 1 {
		t.Error("haptic skipped when audio is unavailable")
	}
	c.KeyUp('i') // inert handle stop
	if c.Sounding() != 0 {
		t.Errorf("Sounding = %d", c.Sounding())
	}
}

func TestReleaseAll(t *testing.T) {
	c, eng, _, _ := newTestCoordinator(t, Options{})
	ctx := context.Background()
	for _, k := range "fewj" {
		c.KeyDown(ctx, k)
	}
	c.ReleaseAll()
	if c.Sounding() != 0 {
		t.Errorf("Sounding = %d", c.Sounding())
	}
	if st := eng.Stats(); st.Stopped != 4 {
		t.Errorf("Stopped = %d, want 4", st.Stopped)
	}
}

func TestCommitCue(t *testing.T) {
	c, eng, _, _ := newTestCoordinator(t, Options{CommitCue: true})
	if _, err := eng.Unlock(context.Background()); err != nil {
		t.Fatal(err)
	}

	h := c.Commit(chord.Commit{Cell: braille.Of(4, 5), Char: 'j'})
	if h.Inert() {
		t.Fatal("no commit cue")
	}
	info := eng.Snapshot()
	if len(info) != 1 || info[0].Kind != audio.KindChord || info[0].Freq != 349.23 {
		t.Errorf("voices = %+v", info)
	}

	c.SetMode(Mechanical)
	if h := c.Commit(chord.Commit{Cell: braille.Of(1), Char: 'a'}); !h.Inert() {
		t.Error("commit cue in mechanical mode")
	}
	c.SetMode(Piano)
	c.SetCommitCue(false)
	if h := c.Commit(chord.Commit{Cell: braille.Of(1), Char: 'a'}); !h.Inert() {
		t.Error("commit cue while disabled")
	}
}

func TestWithDispatcher(t *testing.T) {
	out := audio.NewManualOutput()
	eng := audio.NewEngine(audio.DefaultSettings(), out.Opener())
	defer eng.Shutdown()
	fake := haptic.NewFake()
	c := New(eng, haptic.NewDispatcher(fake, haptic.DefaultDebounce), Options{})

	ctx := context.Background()
	c.KeyDown(ctx, 'f')
	c.KeyDown(ctx, 'o') // within the debounce window
	if got := fake.Pulses(); len(got) != 1 || got[0] != haptic.Pattern(1) {
		t.Errorf("pulses = %v", got)
	}
}

func TestTones(t *testing.T) {
	prev := 0.0
	for _, k := range braille.Keys {
		n, ok := NoteOf(k)
		if !ok || n.Freq <= prev {
			t.Errorf("note for %q = %+v", k, n)
		}
		prev = n.Freq
		cl, ok := ClickOf(k)
		if !ok || cl.ReleaseFreq*2 != cl.Freq || cl.ReleaseDur != cl.Dur+3*time.Millisecond {
			t.Errorf("click for %q = %+v", k, cl)
		}
	}
}
