package audio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func newTestEngine(t *testing.T) (*Engine, *ManualOutput) {
	t.Helper()
	out := NewManualOutput()
	e := NewEngine(DefaultSettings(), out.Opener())
	t.Cleanup(e.Shutdown)
	return e, out
}

func unlock(t *testing.T, e *Engine) {
	t.Helper()
	ok, err := e.Unlock(context.Background())
	if err != nil || !ok {
		t.Fatalf("Unlock = %v, %v", ok, err)
	}
}

func waitDone(t *testing.T, h Handle, timeout time.Duration) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(timeout):
		t.Fatalf("voice not cleaned up after %v", timeout)
	}
}

func TestLockedReturnsInert(t *testing.T) {
	e, out := newTestEngine(t)

	h := e.PlayPiano(440, time.Second)
	if !h.Inert() {
		t.Fatal("expected inert handle while locked")
	}
	h.Stop() // no-op
	if out.Opened() != 1 {
		t.Errorf("context not created lazily: opened %d", out.Opened())
	}
	if e.State() != StateLocked {
		t.Errorf("State = %v, want locked", e.State())
	}
	if e.ActiveVoices() != 0 {
		t.Errorf("ActiveVoices = %d", e.ActiveVoices())
	}
	select {
	case <-h.Done():
	default:
		t.Error("inert handle Done should be closed")
	}
}

func TestUnsupported(t *testing.T) {
	e := NewEngine(DefaultSettings(), Unavailable)
	defer e.Shutdown()

	ok, err := e.Unlock(context.Background())
	if ok || !errors.Is(err, ErrUnsupported) {
		t.Fatalf("Unlock = %v, %v", ok, err)
	}
	if h := e.PlayClick(600, 12*time.Millisecond); !h.Inert() {
		t.Error("expected inert handle")
	}
	if e.State() != StateUnsupported {
		t.Errorf("State = %v", e.State())
	}
}

func TestUnlockIdempotent(t *testing.T) {
	e, out := newTestEngine(t)
	unlock(t, e)
	unlock(t, e)
	if out.Opened() != 1 {
		t.Errorf("opened %d times", out.Opened())
	}
	if !e.Unlocked() {
		t.Error("not unlocked")
	}
}

func TestUnlockCanceled(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if ok, err := e.Unlock(ctx); ok || err == nil {
		t.Fatalf("Unlock = %v, %v", ok, err)
	}
	if e.State() != StateLocked {
		t.Errorf("State = %v, want locked", e.State())
	}
	unlock(t, e)
}

func TestUnlockStartFailure(t *testing.T) {
	e, out := newTestEngine(t)
	out.FailStart(errors.New("device busy"))
	if ok, err := e.Unlock(context.Background()); ok || err == nil {
		t.Fatalf("Unlock = %v, %v", ok, err)
	}
	if h := e.PlayPiano(440, time.Second); !h.Inert() {
		t.Error("voice created without unlock")
	}
}

func TestPianoNaturalEnd(t *testing.T) {
	e, out := newTestEngine(t)
	unlock(t, e)

	h := e.PlayPiano(440, 100*time.Millisecond)
	if h.Inert() {
		t.Fatal("inert handle after unlock")
	}
	if e.ActiveVoices() != 1 {
		t.Fatalf("ActiveVoices = %d", e.ActiveVoices())
	}

	out.Advance(200 * time.Millisecond)
	if !h.Active() {
		t.Fatal("cleaned up before the release finished")
	}
	out.Advance(300 * time.Millisecond)
	waitDone(t, h, time.Second)

	st := e.Stats()
	if st.Natural != 1 || st.Stopped != 0 || st.Cleaned != 1 || st.Fallback != 0 {
		t.Errorf("stats = %+v", st)
	}
	if e.ActiveVoices() != 0 {
		t.Errorf("ActiveVoices = %d", e.ActiveVoices())
	}

	h.Stop() // after natural end: no-op
	if e.Stats().Stopped != 0 {
		t.Error("stop after natural end took effect")
	}
}

func TestPianoLongReleaseOutlivesFallback(t *testing.T) {
	settings := DefaultSettings()
	settings.Piano.Release = 2.0
	out := NewManualOutput()
	e := NewEngine(settings, out.Opener())
	t.Cleanup(e.Shutdown)
	unlock(t, e)

	var mu sync.Mutex
	var armed []time.Duration
	e.after = func(d time.Duration, f func()) *time.Timer {
		mu.Lock()
		armed = append(armed, d)
		mu.Unlock()
		return time.AfterFunc(d, f)
	}

	h := e.PlayPiano(440, 100*time.Millisecond)
	// release starts after attack+decay (126ms) and runs 2s, plus the stop margin
	natural := 2176 * time.Millisecond

	mu.Lock()
	if len(armed) != 1 || armed[0] <= natural {
		t.Errorf("fallback armed with %v, want past %v", armed, natural)
	}
	mu.Unlock()

	out.Advance(2100 * time.Millisecond)
	if !h.Active() {
		t.Fatal("cleaned up while the release was still sounding")
	}
	out.Advance(200 * time.Millisecond)
	waitDone(t, h, time.Second)

	if st := e.Stats(); st.Natural != 1 || st.Fallback != 0 || st.Cleaned != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestPianoEarlyStop(t *testing.T) {
	e, out := newTestEngine(t)
	unlock(t, e)

	h := e.PlayPiano(261.63, 2500*time.Millisecond)
	out.Advance(50 * time.Millisecond)

	s := h.Voice().stages[0]
	now := e.Now()
	before := s.gain.ValueAt(now)

	h.Stop()
	h.Stop()

	if got := s.gain.ValueAt(now); got != before {
		t.Errorf("gain jumped on stop: %v -> %v", before, got)
	}
	if got := s.gain.ValueAt(now + pianoForcedRelease); got != Floor {
		t.Errorf("forced release ends at %v, want floor", got)
	}

	out.Advance(200 * time.Millisecond)
	waitDone(t, h, time.Second)

	st := e.Stats()
	if st.Stopped != 1 || st.Natural != 0 || st.Cleaned != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestEarlyStopTimerCleanup(t *testing.T) {
	e, _ := newTestEngine(t)
	unlock(t, e)

	// The clock never advances, so only the timer can clean up.
	h := e.PlayPiano(440, 2500*time.Millisecond)
	h.Stop()
	waitDone(t, h, 2*time.Second)

	st := e.Stats()
	if st.Cleaned != 1 || st.Fallback != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestFallbackWithoutEndedNotification(t *testing.T) {
	e, _ := newTestEngine(t)
	unlock(t, e)

	var mu sync.Mutex
	var armed []time.Duration
	e.after = func(d time.Duration, f func()) *time.Timer {
		mu.Lock()
		armed = append(armed, d)
		mu.Unlock()
		return time.AfterFunc(time.Millisecond, f)
	}

	h := e.PlayClick(600, 12*time.Millisecond)
	waitDone(t, h, time.Second)

	mu.Lock()
	defer mu.Unlock()
	// 12ms decay, 20ms tail, 200ms margin
	if len(armed) != 1 || armed[0] < 231*time.Millisecond || armed[0] > 233*time.Millisecond {
		t.Errorf("fallback armed with %v, want [232ms]", armed)
	}
	if st := e.Stats(); st.Fallback != 1 || st.Natural != 0 {
		t.Errorf("stats = %+v", st)
	}
}

func TestCleanupRunsOnce(t *testing.T) {
	e, out := newTestEngine(t)
	unlock(t, e)

	h := e.PlayClick(850, 9*time.Millisecond)
	v := h.Voice()
	out.Advance(100 * time.Millisecond)
	waitDone(t, h, time.Second)

	// late fallback and late stop are no-ops
	v.finish("timer")
	v.ended()
	h.Stop()

	if st := e.Stats(); st.Cleaned != 1 || st.Started != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestClickRendersSound(t *testing.T) {
	e, out := newTestEngine(t)
	unlock(t, e)

	silent := out.Advance(10 * time.Millisecond)
	for i, s := range silent {
		if s != 0 {
			t.Fatalf("sample %d = %v with no voices", i, s)
		}
	}

	e.PlayClick(1100, 11*time.Millisecond)
	buf := out.Advance(10 * time.Millisecond)
	var peak float32
	for _, s := range buf {
		if s > peak {
			peak = s
		}
		if s > 1 || s < -1 {
			t.Fatalf("sample out of range: %v", s)
		}
	}
	if peak == 0 {
		t.Error("click produced silence")
	}
}

func TestReleaseIndependentOfClick(t *testing.T) {
	e, out := newTestEngine(t)
	unlock(t, e)

	click := e.PlayClick(600, 12*time.Millisecond)
	rel := e.PlayRelease(300, 15*time.Millisecond)
	if click.Voice() == rel.Voice() {
		t.Fatal("release reused the click voice")
	}
	if e.ActiveVoices() != 2 {
		t.Errorf("ActiveVoices = %d", e.ActiveVoices())
	}
	out.Advance(100 * time.Millisecond)
	waitDone(t, click, time.Second)
	waitDone(t, rel, time.Second)
}

func TestChordStop(t *testing.T) {
	e, out := newTestEngine(t)
	unlock(t, e)

	h := e.PlayChord(261.63, []int{0, 4, 7}, 900*time.Millisecond)
	g := h.Voice().g
	if g.connected() != 3 {
		t.Fatalf("connected stages = %d, want 3", g.connected())
	}
	out.Advance(20 * time.Millisecond)
	h.Stop()
	out.Advance(100 * time.Millisecond)
	waitDone(t, h, time.Second)
	if g.connected() != 0 {
		t.Errorf("connected stages = %d after cleanup", g.connected())
	}
}

func TestShutdown(t *testing.T) {
	e, out := newTestEngine(t)
	e.Shutdown() // no context yet

	unlock(t, e)
	handles := []Handle{
		e.PlayPiano(440, 2500*time.Millisecond),
		e.PlayClick(600, 12*time.Millisecond),
		e.PlayChord(440, []int{0, 4, 7}, time.Second),
	}
	e.Shutdown()

	for _, h := range handles {
		waitDone(t, h, time.Second)
	}
	if e.ActiveVoices() != 0 {
		t.Errorf("ActiveVoices = %d", e.ActiveVoices())
	}
	if !out.Closed() {
		t.Error("output not closed")
	}
	if e.State() != StateClosed {
		t.Errorf("State = %v", e.State())
	}
	e.Shutdown()

	// next request recreates the context, locked until unlocked again
	if h := e.PlayPiano(440, time.Second); !h.Inert() {
		t.Error("voice created on a fresh locked context")
	}
	if out.Opened() != 2 {
		t.Errorf("opened %d times, want 2", out.Opened())
	}
	unlock(t, e)
	if h := e.PlayPiano(440, time.Second); h.Inert() {
		t.Error("inert after re-unlock")
	}
}

func TestMixerDropsFinishedVoices(t *testing.T) {
	e, out := newTestEngine(t)
	unlock(t, e)

	click := e.PlayClick(600, 12*time.Millisecond)
	piano := e.PlayPiano(440, 2500*time.Millisecond)
	g := piano.Voice().g

	out.Advance(100 * time.Millisecond)
	waitDone(t, click, time.Second)
	if n := g.connected(); n != 1 {
		t.Errorf("connected stages = %d, want 1", n)
	}

	piano.Stop()
	out.Advance(200 * time.Millisecond)
	waitDone(t, piano, time.Second)

	g.mu.Lock()
	n := g.mixer.Len()
	g.mu.Unlock()
	if n != 0 {
		t.Errorf("mixer still holds %d streamers", n)
	}
	for _, s := range out.Advance(10 * time.Millisecond) {
		if s != 0 {
			t.Fatal("sound after every voice was cleaned up")
		}
	}
}

func TestMasterVolume(t *testing.T) {
	e, out := newTestEngine(t)
	e.SetMasterVolume(1.5)
	if v := e.MasterVolume(); v != 1 {
		t.Errorf("MasterVolume = %v, want 1", v)
	}
	e.SetMasterVolume(-0.2)
	if v := e.MasterVolume(); v != 0 {
		t.Errorf("MasterVolume = %v, want 0", v)
	}

	unlock(t, e)
	e.PlayClick(600, 50*time.Millisecond)
	for _, s := range out.Advance(20 * time.Millisecond) {
		if s != 0 {
			t.Fatal("sound at zero master volume")
		}
	}
}

func TestConcurrentStopAndRender(t *testing.T) {
	e, out := newTestEngine(t)
	unlock(t, e)

	var handles []Handle
	for i := 0; i < 32; i++ {
		handles = append(handles, e.PlayPiano(220+float64(i), 2500*time.Millisecond))
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			out.Advance(10 * time.Millisecond)
		}
	}()
	go func() {
		defer wg.Done()
		for _, h := range handles {
			h.Stop()
		}
	}()
	wg.Wait()
	out.Advance(200 * time.Millisecond)

	for _, h := range handles {
		waitDone(t, h, 2*time.Second)
	}
	if st := e.Stats(); st.Cleaned != 32 || st.Stopped != 32 {
		t.Errorf("stats = %+v", st)
	}
}
